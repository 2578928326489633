package main

import (
	"context"
	"log"
)

// consolePlayer stands in for the out-of-scope decoder/display subsystem
// (§1, §6): it just logs what it receives instead of decoding and showing
// it, since neither HEVC decoding nor a display surface is this module's
// concern.
type consolePlayer struct {
	frames uint64
}

func newConsolePlayer() *consolePlayer { return &consolePlayer{} }

// run is the PlayerEntry this binary wires into streaming.Request: it pulls
// decoded frame payloads via readPacket until the session ends.
func (p *consolePlayer) run(ctx context.Context, readPacket func(buf []byte) (int, error)) error {
	buf := make([]byte, 1<<20)
	for {
		n, err := readPacket(buf)
		if err != nil {
			return err
		}
		p.frames++
		if p.frames%30 == 0 {
			log.Printf("player: received %d frames, last payload %d bytes", p.frames, n)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
