// Package main implements the desktop-streaming client binary: it dials a
// server's message and data ports, requests a named service, and for
// DesktopStreaming drives the client-side streaming.Request, handing
// decoded frame payloads to a player entry point.
package main

import (
	"fmt"
	"log"
	"net"
	"os"

	"github.com/urfave/cli"

	"github.com/deskstream/deskstream/internal/buffer"
	"github.com/deskstream/deskstream/internal/config"
	"github.com/deskstream/deskstream/internal/netconn"
	"github.com/deskstream/deskstream/internal/stats"
	"github.com/deskstream/deskstream/internal/streaming"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

const (
	msgHandlerID = 1
	errHandlerID = 2
)

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "streamclient"
	app.Usage = "desktop-streaming client"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "remote", Value: "127.0.0.1", Usage: "server host"},
		cli.IntFlag{Name: "msg-port", Value: 9000, Usage: "message channel port"},
		cli.IntFlag{Name: "data-port", Value: 9001, Usage: "data channel port"},
		cli.StringFlag{Name: "stream-cmd", Value: "x265 - --preset ultrafast --fps 30 -o -\n", Usage: "encoder configuration line sent after Start"},
		cli.IntFlag{Name: "fifo-cap", Value: 32, Usage: "player frame queue capacity"},
		cli.IntFlag{Name: "pool-cap", Value: 64, Usage: "cached buffer count"},
		cli.BoolFlag{Name: "nocomp", Usage: "disable snappy compression on both channels"},
		cli.StringFlag{Name: "log", Value: "", Usage: "specify a log file to output, default goes to stderr"},
		cli.StringFlag{Name: "c", Value: "", Usage: "config from json/yaml file, overrides shell flags"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := config.DefaultClientConfig()
	cfg.RemoteAddr = c.String("remote")
	cfg.StreamCmd = c.String("stream-cmd")
	cfg.FIFOCap = c.Int("fifo-cap")
	cfg.PoolCap = c.Int("pool-cap")
	cfg.Log = c.String("log")
	msgPort := c.Int("msg-port")
	dataPort := c.Int("data-port")
	nocomp := c.Bool("nocomp")

	// An optional positional IP:Port names the message port P; data uses P+1.
	if c.NArg() > 0 {
		host, port, err := net.SplitHostPort(c.Args().First())
		if err != nil {
			return err
		}
		if msgPort, err = net.LookupPort("tcp", port); err != nil {
			return err
		}
		cfg.RemoteAddr = host
		dataPort = msgPort + 1
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
	log.Println("remote:", cfg.RemoteAddr, "msg-port:", msgPort, "data-port:", dataPort)
	log.Println("stream-cmd:", cfg.StreamCmd)
	log.Println("compression:", !nocomp)

	wrap := func(conn net.Conn) net.Conn {
		if nocomp {
			return conn
		}
		return netconn.NewCompConn(conn)
	}

	msgRaw, err := net.Dial("tcp", fmt.Sprintf("%s:%d", cfg.RemoteAddr, msgPort))
	if err != nil {
		return err
	}
	dataRaw, err := net.Dial("tcp", fmt.Sprintf("%s:%d", cfg.RemoteAddr, dataPort))
	if err != nil {
		return err
	}

	pool := buffer.NewPool(cfg.PoolCap, streaming.HeaderLen+4096)
	msgConn := netconn.NewMsgConn(wrap(msgRaw))
	dataConn := netconn.NewDataConn(wrap(dataRaw), func(buf *buffer.Buffer) { pool.Release(buf) })
	go msgConn.RecvLoop()

	replies := make(chan string, 16)
	msgConn.AddMsgHandler(msgHandlerID, func(msg string) bool {
		replies <- msg
		log.Println("server:", msg)
		return true
	})

	if err := msgConn.Send("service DesktopStreaming\n"); err != nil {
		return err
	}
	log.Println("reply:", <-replies)

	player := newConsolePlayer()
	req := streaming.NewRequest(streaming.RequestConfig{
		MsgConn:      msgConn,
		DataConn:     dataConn,
		Pool:         pool,
		FIFOCap:      cfg.FIFOCap,
		FPS:          &stats.Counter{},
		CRCMismatch:  &stats.Counter{},
		PlayerEntry:  player.run,
		MsgHandlerID: msgHandlerID,
		ErrHandlerID: errHandlerID,
	})
	defer req.Terminate()

	if err := req.Start(cfg.StreamCmd); err != nil {
		return err
	}

	select {} // run until the connection errors out and tears the request down
}
