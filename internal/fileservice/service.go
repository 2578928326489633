// Package fileservice implements the supplemental file-transfer service
// (§4.13): on "get <path>" it streams a file's bytes unframed over the data
// connection, then always sends a well-formed status line over the message
// connection — on both the success and failure path, unlike the original's
// uninitialized-reply bug on one of them (§9(c)).
package fileservice

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/deskstream/deskstream/internal/buffer"
	"github.com/deskstream/deskstream/internal/netconn"
	"github.com/deskstream/deskstream/internal/service"
)

// defaultChunkSize is the read/send granularity for SendFile, matching the
// teacher's pool-buffer reservation idiom rather than one huge allocation.
const defaultChunkSize = 64 * 1024

// Service is the server-side file-transfer service: a thin command table
// over a single service.Service worker, mirroring streaming.Service's shape
// but with one job kind.
type Service struct {
	base *service.Service

	msgConn  *netconn.MsgConn
	dataConn *netconn.DataConn
	pool     *buffer.Pool

	chunkSize int

	msgHandlerID int
	errHandlerID int
}

// Config bundles everything needed to construct a file-transfer Service.
type Config struct {
	MsgConn  *netconn.MsgConn
	DataConn *netconn.DataConn
	Pool     *buffer.Pool

	// ChunkSize overrides the read/send granularity; 0 selects the default.
	ChunkSize int

	MsgHandlerID int
	ErrHandlerID int
}

// NewService constructs a file-transfer Service and registers its handlers.
func NewService(cfg Config) *Service {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	s := &Service{
		base:         service.New("FileTransfer"),
		msgConn:      cfg.MsgConn,
		dataConn:     cfg.DataConn,
		pool:         cfg.Pool,
		chunkSize:    chunkSize,
		msgHandlerID: cfg.MsgHandlerID,
		errHandlerID: cfg.ErrHandlerID,
	}
	s.msgConn.AddMsgHandler(s.msgHandlerID, s.handleMsg)
	s.msgConn.AddErrorHandler(s.errHandlerID, s.handleError)
	s.dataConn.AddErrorHandler(s.errHandlerID, s.handleError)
	return s
}

// handleMsg implements the "get <path>" / "stop" command table.
func (s *Service) handleMsg(msg string) bool {
	cmd, arg, _ := strings.Cut(msg, " ")
	switch cmd {
	case "stop":
		s.Terminate()
		return true

	case "get":
		if arg == "" {
			return false
		}
		path := arg
		s.base.Submit(&service.Job{
			Msg: path,
			Routine: func(path string, _ error, cancelled func() bool) {
				s.SendFile(path, cancelled)
			},
		})
		return true

	default:
		return false
	}
}

func (s *Service) handleError(err error) bool {
	log.Printf("fileservice: session error, tearing down: %v", err)
	s.Terminate()
	return false
}

// SendFile streams path unframed over the data connection, then always
// sends a terminal status line over the message connection (§9(c)).
func (s *Service) SendFile(path string, cancelled func() bool) {
	f, err := os.Open(path)
	if err != nil {
		s.reportStatus("File " + path + " not exists.\n")
		return
	}
	defer f.Close()

	var readErr error
	for !cancelled() {
		buf := s.pool.Acquire()
		buf.Resize(s.chunkSize)
		n, err := f.Read(buf.Bytes())
		if n > 0 {
			buf.Resize(n)
			if sendErr := s.dataConn.Send(buf); sendErr != nil {
				log.Printf("fileservice: send chunk of %s failed: %v", path, sendErr)
				readErr = sendErr
				break
			}
		} else {
			s.pool.Release(buf)
		}
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break
		}
	}

	if readErr != nil {
		log.Printf("fileservice: read %s failed: %v", path, readErr)
		s.reportStatus("read file " + path + " fail!\n")
		return
	}
	s.reportStatus("send file " + path + " finish!\n")
}

func (s *Service) reportStatus(line string) {
	if err := s.msgConn.Send(line); err != nil {
		log.Printf("fileservice: status reply failed: %v", err)
	}
}

// Terminate stops the worker and deregisters this service's handlers.
func (s *Service) Terminate() {
	s.base.Terminate()
	s.msgConn.RemoveMsgHandler(s.msgHandlerID)
	s.msgConn.RemoveErrorHandler(s.errHandlerID)
	s.dataConn.RemoveErrorHandler(s.errHandlerID)
}
