package streaming

import (
	"context"
	"log"

	"github.com/deskstream/deskstream/internal/buffer"
	"github.com/deskstream/deskstream/internal/netconn"
	"github.com/deskstream/deskstream/internal/queue"
	"github.com/deskstream/deskstream/internal/service"
	"github.com/deskstream/deskstream/internal/stats"
)

// PlayerEntry is the out-of-scope decoder/display subsystem's entry point
// (§1): the player thread invokes it once, handing it readPacket — the
// core's "read_packet" port (§6) — to pull decoded frame payloads from.
type PlayerEntry func(ctx context.Context, readPacket func(buf []byte) (int, error)) error

// Request is the client-side desktop-streaming request (C10): it drives
// the header/body receive loop and hands decoded frame payloads
// to the player thread via a bounded FIFO.
type Request struct {
	*service.Request

	pool *buffer.Pool
	fifo *queue.FIFO[*buffer.Buffer]

	fps          *stats.Counter
	crcMismatch  *stats.Counter

	playerEntry PlayerEntry
	playerDone  chan struct{}
	playerCancel context.CancelFunc

	msgHandlerID int
	errHandlerID int
}

// RequestConfig bundles everything needed to construct a streaming Request.
type RequestConfig struct {
	MsgConn  *netconn.MsgConn
	DataConn *netconn.DataConn
	Pool     *buffer.Pool
	FIFOCap  int

	FPS         *stats.Counter
	CRCMismatch *stats.Counter

	PlayerEntry PlayerEntry

	MsgHandlerID int
	ErrHandlerID int
}

// NewRequest constructs a streaming Request and registers its error
// handlers; it does not yet arm the receive loop or spawn the player
// thread — call Start for that.
func NewRequest(cfg RequestConfig) *Request {
	r := &Request{
		Request:      service.NewRequest(cfg.MsgConn, cfg.DataConn),
		pool:         cfg.Pool,
		fifo:         queue.NewFIFO[*buffer.Buffer](cfg.FIFOCap),
		fps:          cfg.FPS,
		crcMismatch:  cfg.CRCMismatch,
		playerEntry:  cfg.PlayerEntry,
		msgHandlerID: cfg.MsgHandlerID,
		errHandlerID: cfg.ErrHandlerID,
	}
	r.OnError(r.errHandlerID, r.handleError)
	return r
}

// Start sends the encoder-configuration command, spawns the player thread,
// and arms the pipelined header/body receive loop on its own goroutine
// (§4.10). It returns as soon as both are underway — the server only
// starts streaming once it receives streamCmd, so arming the first read
// must never block Start's return.
func (r *Request) Start(streamCmd string) error {
	ctx, cancel := context.WithCancel(context.Background())
	r.playerCancel = cancel
	playerDone := make(chan struct{})
	r.playerDone = playerDone
	go func() {
		defer close(playerDone)
		if err := r.playerEntry(ctx, r.ReadPacket); err != nil && ctx.Err() == nil {
			log.Printf("streaming: player exited with error: %v", err)
		}
	}()

	go r.recvLoop()

	if streamCmd != "" {
		if err := r.MsgConn().Send(streamCmd); err != nil {
			return err
		}
	}
	return nil
}

// Stop cancels the player thread and waits for it to exit.
func (r *Request) Stop() {
	if r.playerCancel != nil {
		r.playerCancel()
		// A nil entry wakes a player blocked in ReadPacket on an empty FIFO.
		go r.fifo.Push(nil)
	}
	if r.playerDone != nil {
		<-r.playerDone
	}
}

// recvLoop implements §4.10's OnFrameHeader/OnFrameBody as a plain
// sequential loop on its own goroutine rather than mutual recursion, so
// each frame's CRC check and FIFO push happen as soon as its body arrives
// instead of nesting inside every subsequent frame's read.
func (r *Request) recvLoop() {
	for {
		hdr := buffer.New(HeaderLen)
		if err := r.DataConn().RecvExact(hdr, HeaderLen); err != nil {
			return // error handler already dispatched by DataConn
		}

		parsed, err := DecodeHeader(hdr.Bytes())
		if err != nil {
			log.Printf("streaming: protocol-malformed frame header: %v", err)
			r.Terminate()
			return
		}

		payload := r.pool.Acquire()
		payload.Resize(int(parsed.FrameSize))
		if err := r.DataConn().RecvExact(payload, int(parsed.FrameSize)); err != nil {
			return
		}

		if got := CRC16(payload.Bytes()); got != parsed.CRC16 {
			log.Printf("streaming: CRC mismatch on frame seq=%d: got 0x%04x want 0x%04x",
				parsed.SeqNo, got, parsed.CRC16)
			r.crcMismatch.Add(1)
		}

		r.fps.Add(1)
		r.fifo.Push(payload)
	}
}

// ReadPacket is the read_packet port (§6): it blocks on the frame FIFO,
// copies the payload into buf (which must be large enough), and returns
// the pooled buffer before returning the byte count. Once Stop has been
// called it returns context.Canceled.
func (r *Request) ReadPacket(buf []byte) (int, error) {
	payload := r.fifo.Pop()
	if payload == nil {
		return 0, context.Canceled
	}
	n := payload.Len()
	if n > len(buf) {
		r.pool.Release(payload)
		return 0, errFrameTooLarge(n, len(buf))
	}
	copy(buf, payload.Bytes())
	r.pool.Release(payload)
	return n, nil
}

func (r *Request) handleError(err error) bool {
	log.Printf("streaming: request session error, tearing down: %v", err)
	r.Terminate()
	return false
}

// Terminate stops the player thread and deregisters this request's
// handlers.
func (r *Request) Terminate() {
	r.Stop()
	r.Close()
}
