package streaming

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deskstream/deskstream/internal/buffer"
	"github.com/deskstream/deskstream/internal/capture"
	"github.com/deskstream/deskstream/internal/diag"
	"github.com/deskstream/deskstream/internal/netconn"
	"github.com/deskstream/deskstream/internal/portset"
	"github.com/deskstream/deskstream/internal/queue"
	"github.com/deskstream/deskstream/internal/service"
	"github.com/deskstream/deskstream/internal/stats"
)

// Service is the server-side desktop-streaming service (C9): it owns the
// capture and encode threads beyond the network I/O thread, and the
// inherited service.Service worker used for the "capture exactly N frames"
// job (§4.9).
type Service struct {
	base *service.Service

	msgConn  *netconn.MsgConn
	dataConn *netconn.DataConn
	pool     *buffer.Pool
	ring     *queue.Ring

	capturer portset.Capturer
	encoder  portset.Encoder
	limiter  *capture.RateLimiter

	fps        *stats.Counter
	payloadLog *diag.PayloadLog

	msgHandlerID int
	errHandlerID int

	mu            sync.Mutex
	capturing     bool
	encoding      bool
	captureCancel context.CancelFunc
	captureDone   chan struct{}
	encodeDone    chan struct{}

	yuvSeqNo   uint32
	frameSeqNo uint32

	yuvFrameSize int
}

// Config bundles everything needed to construct a streaming Service.
type Config struct {
	MsgConn  *netconn.MsgConn
	DataConn *netconn.DataConn
	Pool     *buffer.Pool
	Ring     *queue.Ring

	Capturer portset.Capturer
	Encoder  portset.Encoder
	Limiter  *capture.RateLimiter

	FPS        *stats.Counter
	PayloadLog *diag.PayloadLog

	YUVFrameSize int

	// MsgHandlerID/ErrHandlerID are the registry ids this service claims on
	// its session's connections (§4.5 ordering contract).
	MsgHandlerID int
	ErrHandlerID int
}

// NewService constructs a streaming Service and registers its message and
// error handlers on the given connections.
func NewService(cfg Config) *Service {
	s := &Service{
		base:         service.New("DesktopStreaming"),
		msgConn:      cfg.MsgConn,
		dataConn:     cfg.DataConn,
		pool:         cfg.Pool,
		ring:         cfg.Ring,
		capturer:     cfg.Capturer,
		encoder:      cfg.Encoder,
		limiter:      cfg.Limiter,
		fps:          cfg.FPS,
		payloadLog:   cfg.PayloadLog,
		yuvFrameSize: cfg.YUVFrameSize,
		msgHandlerID: cfg.MsgHandlerID,
		errHandlerID: cfg.ErrHandlerID,
	}
	s.msgConn.AddMsgHandler(s.msgHandlerID, s.handleMsg)
	s.msgConn.AddErrorHandler(s.errHandlerID, s.handleError)
	s.dataConn.AddErrorHandler(s.errHandlerID, s.handleError)
	return s
}

// handleMsg implements the command table of §4.9.
func (s *Service) handleMsg(msg string) bool {
	switch {
	case strings.HasPrefix(msg, "x265"):
		s.StartStreaming(msg)
		_ = s.msgConn.Send("Streaming started.\n")
		return true

	case msg == "pause":
		s.StopCapture()
		_ = s.msgConn.Send("Capture paused.\n")
		return true

	case msg == "start":
		if s.StartCapture() {
			_ = s.msgConn.Send("Capture going on.\n")
		} else {
			_ = s.msgConn.Send("Capture already running.\n")
		}
		return true

	case msg == "quit":
		s.Terminate()
		_ = s.msgConn.Send("Streaming terminated.\n")
		return true

	case len(msg) > 0 && msg[0] >= '0' && msg[0] <= '9':
		if s.Capturing() {
			_ = s.msgConn.Send("Capture running! you have to pause first.\n")
			return true
		}
		n, err := strconv.Atoi(msg)
		if err != nil {
			_ = s.msgConn.Send("Invalid request!\n")
			return true
		}
		s.base.Submit(&service.Job{
			Msg: msg,
			Routine: func(_ string, _ error, cancelled func() bool) {
				s.captureNFrames(n, cancelled)
			},
		})
		return true

	default:
		return false
	}
}

func (s *Service) handleError(err error) bool {
	log.Printf("streaming: session error, tearing down: %v", err)
	s.Terminate()
	return false // pass the error on to any handler registered at a higher id
}

// Capturing reports whether the capture thread is currently running.
func (s *Service) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}

// StartStreaming implements §4.9: tears down any running encoder, resets
// yuvSeqNo, and spawns a fresh encode thread plus the capture thread.
func (s *Service) StartStreaming(cmd string) {
	s.mu.Lock()
	alreadyEncoding := s.encoding
	s.mu.Unlock()
	if alreadyEncoding {
		s.EndStreaming()
	}

	atomic.StoreUint32(&s.yuvSeqNo, 0)

	done := make(chan struct{})
	s.mu.Lock()
	s.encoding = true
	s.encodeDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := s.encoder.Run(context.Background(), cmd, s.emitNAL); err != nil {
			log.Printf("streaming: encoder exited with error: %v", err)
		}
	}()

	s.StartCapture()
}

// StartCapture starts the capture thread if it isn't already running,
// reporting whether it did.
func (s *Service) StartCapture() bool {
	s.mu.Lock()
	if s.capturing {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	s.capturing = true
	s.captureCancel = cancel
	s.captureDone = doneCh
	s.mu.Unlock()

	go func() {
		defer close(doneCh)
		s.captureLoop(ctx)
	}()
	return true
}

// StopCapture stops the capture thread and waits for it to exit.
func (s *Service) StopCapture() {
	s.mu.Lock()
	if !s.capturing {
		s.mu.Unlock()
		return
	}
	cancel := s.captureCancel
	doneCh := s.captureDone
	s.capturing = false
	s.mu.Unlock()

	cancel()
	<-doneCh
}

// EndStreaming stops capture, resets yuvSeqNo, unblocks a pull-blocked
// encoder with the empty-buffer sentinel, and joins the encode thread
// (§4.2, §4.9).
func (s *Service) EndStreaming() {
	s.StopCapture()
	atomic.StoreUint32(&s.yuvSeqNo, 0)

	s.mu.Lock()
	wasEncoding := s.encoding
	doneCh := s.encodeDone
	s.encoding = false
	s.mu.Unlock()

	if !wasEncoding {
		return
	}
	s.ring.Push(buffer.New(0)) // end-of-stream sentinel, §4.2
	if doneCh != nil {
		<-doneCh
	}
}

// Terminate ends streaming and the service worker thread.
func (s *Service) Terminate() {
	s.EndStreaming()
	s.base.Terminate()
	s.msgConn.RemoveMsgHandler(s.msgHandlerID)
	s.msgConn.RemoveErrorHandler(s.errHandlerID)
	s.dataConn.RemoveErrorHandler(s.errHandlerID)
}

func (s *Service) captureLoop(ctx context.Context) {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		slot := s.ring.WriteSlot()
		slot.Resize(YUVHeaderLen + s.yuvFrameSize)
		n, err := s.capturer.CaptureOne(slot.Bytes()[YUVHeaderLen:])
		if err != nil {
			log.Printf("streaming: capture error: %v", err)
			continue
		}
		slot.Resize(YUVHeaderLen + n)

		seq := atomic.AddUint32(&s.yuvSeqNo, 1) - 1
		ts := uint32(time.Now().UnixMilli())
		EncodeYUVHeaderInto(slot.Bytes()[:YUVHeaderLen], seq, ts)

		s.ring.Commit()
		s.fps.Add(1)
	}
}

// emitNAL packages one encoder-emitted access unit into an encoded frame
// and hands it to the data connection (§4.9 SendEncodedFrame).
func (s *Service) emitNAL(nal []byte) {
	buf := s.pool.Acquire()
	buf.Resize(HeaderLen)
	buf.Append(nal)
	s.SendEncodedFrame(buf)
}

// SendEncodedFrame stamps the 15-byte wire header in place and hands buf to
// the data connection; the data connection's send-completion handler
// returns buf to the pool (§4.9 steps 1-5, §9 "definitive last user").
func (s *Service) SendEncodedFrame(buf *buffer.Buffer) {
	payload := buf.Bytes()[HeaderLen:]
	seq := atomic.AddUint32(&s.frameSeqNo, 1) - 1
	ts := uint32(time.Now().UnixMilli())
	EncodeHeaderInto(buf.Bytes()[:HeaderLen], seq, ts, payload)

	s.fps.Add(1)
	if err := s.payloadLog.Write(payload); err != nil {
		log.Printf("streaming: payload log write failed: %v", err)
	}
	if err := s.dataConn.Send(buf); err != nil {
		log.Printf("streaming: send encoded frame failed: %v", err)
		s.pool.Release(buf)
	}
}

func (s *Service) captureNFrames(n int, cancelled func() bool) {
	for i := 0; i < n && !cancelled(); i++ {
		slot := s.ring.WriteSlot()
		slot.Resize(YUVHeaderLen + s.yuvFrameSize)
		frameLen, err := s.capturer.CaptureOne(slot.Bytes()[YUVHeaderLen:])
		if err != nil {
			log.Printf("streaming: n-frame capture error: %v", err)
			s.ring.Commit()
			continue
		}
		slot.Resize(YUVHeaderLen + frameLen)
		seq := atomic.AddUint32(&s.yuvSeqNo, 1) - 1
		ts := uint32(time.Now().UnixMilli())
		EncodeYUVHeaderInto(slot.Bytes()[:YUVHeaderLen], seq, ts)
		s.ring.Commit()
	}
}
