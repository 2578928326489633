// Package main implements the desktop-streaming server binary: it accepts
// exactly one client's message and data connections, admits them into a
// session, and attaches the desktop-streaming or file-transfer service the
// client asks for by name (§4.11).
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/deskstream/deskstream/internal/buffer"
	"github.com/deskstream/deskstream/internal/capture"
	"github.com/deskstream/deskstream/internal/config"
	"github.com/deskstream/deskstream/internal/diag"
	"github.com/deskstream/deskstream/internal/fileservice"
	"github.com/deskstream/deskstream/internal/monitor"
	"github.com/deskstream/deskstream/internal/netconn"
	"github.com/deskstream/deskstream/internal/queue"
	"github.com/deskstream/deskstream/internal/session"
	"github.com/deskstream/deskstream/internal/stats"
	"github.com/deskstream/deskstream/internal/streaming"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

// serviceMsgHandlerID / serviceErrHandlerID are the registry ids claimed by
// whichever named service is currently attached to a session (§4.5).
const (
	serviceMsgHandlerID  = 20
	serviceErrHandlerID  = 5
	dispatchHandlerID    = 10
	dispatchErrHandlerID = 1
)

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "streamserver"
	app.Usage = "desktop-streaming session server"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "msg-port", Value: 9000, Usage: "message channel listen port"},
		cli.IntFlag{Name: "data-port", Value: 9001, Usage: "data channel listen port"},
		cli.IntFlag{Name: "pool-cap", Value: 64, Usage: "cached buffer count per pool"},
		cli.IntFlag{Name: "ring-cap", Value: 8, Usage: "capture/encode ring capacity in frames"},
		cli.BoolFlag{Name: "nocomp", Usage: "disable snappy compression on both channels"},
		cli.StringFlag{Name: "log", Value: "", Usage: "specify a log file to output, default goes to stderr"},
		cli.StringFlag{Name: "snapshot-dir", Value: "", Usage: "directory for scheduled JPEG snapshots, empty disables"},
		cli.StringFlag{Name: "snapshot-cron", Value: "", Usage: "six-field cron expression for snapshot scheduling"},
		cli.StringFlag{Name: "payload-log", Value: "", Usage: "gzip log of raw encoded frame payloads, empty disables"},
		cli.StringFlag{Name: "s3-bucket", Value: "", Usage: "S3 bucket for snapshot archival, empty disables"},
		cli.StringFlag{Name: "s3-prefix", Value: "", Usage: "S3 key prefix for archived snapshots"},
		cli.StringFlag{Name: "monitor-addr", Value: "", Usage: "address to serve the read-only stats websocket, empty disables"},
		cli.StringFlag{Name: "c", Value: "", Usage: "config from json/yaml file, overrides shell flags"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := config.DefaultServerConfig()
	cfg.MsgPort = c.Int("msg-port")
	cfg.DataPort = c.Int("data-port")
	cfg.PoolCap = c.Int("pool-cap")
	cfg.RingCap = c.Int("ring-cap")
	cfg.Log = c.String("log")
	cfg.SnapshotDir = c.String("snapshot-dir")
	cfg.SnapshotCron = c.String("snapshot-cron")
	cfg.PayloadLog = c.String("payload-log")
	cfg.S3Bucket = c.String("s3-bucket")
	cfg.S3Prefix = c.String("s3-prefix")
	cfg.MonitorAddr = c.String("monitor-addr")
	nocomp := c.Bool("nocomp")

	if cfg.RingCap < 2 {
		color.Red("ring-cap %d is very small, expect frequent capture stalls", cfg.RingCap)
	}

	if path := c.String("c"); path != "" {
		if err := config.Load(&cfg, path); err != nil {
			return err
		}
	}

	if cfg.Log != "" {
		f, err := os.OpenFile(cfg.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		defer f.Close()
		log.SetOutput(f)
	}

	log.Println("version:", VERSION)
	log.Println("msg-port:", cfg.MsgPort, "data-port:", cfg.DataPort)
	log.Println("pool-cap:", cfg.PoolCap, "ring-cap:", cfg.RingCap)
	log.Println("compression:", !nocomp)

	payloadLog, err := diag.OpenPayloadLog(cfg.PayloadLog)
	if err != nil {
		return err
	}
	defer payloadLog.Close()

	var archiver *diag.Archiver
	if cfg.S3Bucket != "" {
		archiver, err = diag.NewArchiver(context.Background(), cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return err
		}
	}
	var scheduler *diag.Scheduler
	if cfg.SnapshotDir != "" && cfg.SnapshotCron != "" {
		scheduler, err = diag.NewScheduler(cfg.SnapshotCron, cfg.SnapshotDir, placeholderSnapshot, archiver)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Println("snapshot scheduler running:", cfg.SnapshotCron, "->", cfg.SnapshotDir)
	}

	var hub *monitor.Hub
	if cfg.MonitorAddr != "" {
		hub = monitor.NewHub()
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		srv := &http.Server{Addr: cfg.MonitorAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("monitor: server exited: %v", err)
			}
		}()
		log.Println("monitor listening on:", cfg.MonitorAddr)
	}

	registry := session.NewRegistry()

	msgLn, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.MsgPort))
	if err != nil {
		return err
	}
	dataLn, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.DataPort))
	if err != nil {
		return err
	}
	log.Println("listening on msg:", msgLn.Addr(), "data:", dataLn.Addr())

	srv := &server{
		cfg:        cfg,
		nocomp:     nocomp,
		registry:   registry,
		payloadLog: payloadLog,
		hub:        hub,
		dataPools:  make(map[string]*buffer.Pool),
	}

	go srv.acceptLoop(msgLn, srv.handleMsgConn)
	go srv.acceptLoop(dataLn, srv.handleDataConn)

	select {} // run forever; Ctrl-C / SIGTERM ends the process
}

// placeholderSnapshot stands in for the out-of-scope screen-capture-to-JPEG
// collaborator (§1); diag only schedules and persists, it never draws
// pixels itself.
func placeholderSnapshot() ([]byte, error) {
	return nil, fmt.Errorf("streamserver: no snapshot source wired")
}

type server struct {
	cfg        config.ServerConfig
	nocomp     bool
	registry   *session.Registry
	payloadLog *diag.PayloadLog
	hub        *monitor.Hub

	mu        sync.Mutex
	dataPools map[string]*buffer.Pool // keyed by remote address, set by handleDataConn
}

func (s *server) acceptLoop(ln net.Listener, handle func(net.Conn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("accept on %v failed: %v", ln.Addr(), err)
			return
		}
		go handle(conn)
	}
}

func (s *server) wrap(conn net.Conn) net.Conn {
	if s.nocomp {
		return conn
	}
	return netconn.NewCompConn(conn)
}

func (s *server) handleMsgConn(conn net.Conn) {
	mc := netconn.NewMsgConn(s.wrap(conn))
	sess, ready, ok := s.registry.AddMsgConn(mc)
	if !ok {
		log.Println("rejecting second client's msg connection from", conn.RemoteAddr())
		mc.Close()
		return
	}
	mc.AddMsgHandler(dispatchHandlerID, func(msg string) bool { return s.handleDispatch(sess, msg) })
	mc.AddErrorHandler(dispatchErrHandlerID, func(err error) bool {
		log.Println("msg connection error from", conn.RemoteAddr(), ":", err)
		s.registry.Remove(sess)
		return false
	})
	if ready {
		log.Println("session ready:", sess.RemoteAddr)
	}
	mc.RecvLoop()
}

func (s *server) handleDataConn(conn net.Conn) {
	pool := buffer.NewPool(s.cfg.PoolCap, streaming.HeaderLen+4096)
	dc := netconn.NewDataConn(s.wrap(conn), func(buf *buffer.Buffer) { pool.Release(buf) })
	sess, ready, ok := s.registry.AddDataConn(dc)
	if !ok {
		log.Println("rejecting second client's data connection from", conn.RemoteAddr())
		dc.Close()
		return
	}
	// Stashed so handleDispatch can hand the exact same pool to whichever
	// service it instantiates for this session — buffers a service acquires
	// must come back to this pool when the data connection's write
	// completion hook releases them (§9 "definitive last user").
	s.mu.Lock()
	s.dataPools[sess.RemoteAddr] = pool
	s.mu.Unlock()

	dc.AddErrorHandler(dispatchErrHandlerID, func(err error) bool {
		log.Println("data connection error from", conn.RemoteAddr(), ":", err)
		s.registry.Remove(sess)
		s.mu.Lock()
		delete(s.dataPools, sess.RemoteAddr)
		s.mu.Unlock()
		return false
	})
	if ready {
		log.Println("session ready:", sess.RemoteAddr)
	}
}

// dataPool returns the buffer pool bound to sess's data connection, falling
// back to a fresh pool if none was recorded yet (should not happen once a
// session is Ready, but keeps handleDispatch total).
func (s *server) dataPool(sess *session.Session) *buffer.Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.dataPools[sess.RemoteAddr]; ok {
		return p
	}
	return buffer.NewPool(s.cfg.PoolCap, streaming.HeaderLen+4096)
}

// handleDispatch implements §4.11's "service <name>" handshake: the first
// handler on the session's message connection, instantiating the named
// service (factory pattern, mirroring the teacher's ServiceFactory) and
// falling through to "Invalid request!" for anything unclaimed.
func (s *server) handleDispatch(sess *session.Session, msg string) bool {
	const prefix = "service "
	if len(msg) <= len(prefix) || msg[:len(prefix)] != prefix {
		return false
	}
	name := msg[len(prefix):]

	switch name {
	case "DesktopStreaming":
		ring := queue.NewRing(s.cfg.RingCap, streaming.YUVHeaderLen+synthFrameSize)
		pool := s.dataPool(sess)
		fps := &stats.Counter{}
		svc := streaming.NewService(streaming.Config{
			MsgConn:      sess.MsgConn,
			DataConn:     sess.DataConn,
			Pool:         pool,
			Ring:         ring,
			Capturer:     &synthCapturer{},
			Encoder:      &passthroughEncoder{ring: ring},
			Limiter:      capture.NewRateLimiter(30),
			FPS:          fps,
			PayloadLog:   s.payloadLog,
			YUVFrameSize: synthFrameSize,
			MsgHandlerID: serviceMsgHandlerID,
			ErrHandlerID: serviceErrHandlerID,
		})
		sess.AttachService("DesktopStreaming", svc)
		sampler := stats.NewSampler(fps, ring.Len, nil)
		go sampler.Run()
		if s.hub != nil {
			go s.bridgeStats(sampler, sess.RemoteAddr)
		}
		_ = sess.MsgConn.Send("Service DesktopStreaming started.\n")
		return true

	case "FileTransfer":
		pool := s.dataPool(sess)
		svc := fileservice.NewService(fileservice.Config{
			MsgConn:      sess.MsgConn,
			DataConn:     sess.DataConn,
			Pool:         pool,
			MsgHandlerID: serviceMsgHandlerID,
			ErrHandlerID: serviceErrHandlerID,
		})
		sess.AttachService("FileTransfer", svc)
		_ = sess.MsgConn.Send("Service FileTransfer started.\n")
		return true

	default:
		_ = sess.MsgConn.Send("Invalid request!\n")
		return true
	}
}

func (s *server) bridgeStats(sampler *stats.Sampler, remoteAddr string) {
	log.Println("bridging stats snapshots to monitor hub for", remoteAddr)
	for range time.Tick(time.Second) {
		s.hub.Broadcast(sampler.Latest())
	}
}
