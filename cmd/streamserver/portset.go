package main

import (
	"context"

	"github.com/deskstream/deskstream/internal/buffer"
	"github.com/deskstream/deskstream/internal/queue"
)

// synthFrameSize is the fixed YUV frame payload size produced by
// synthCapturer — a stand-in test pattern, since the real platform screen
// grabber is an out-of-scope external collaborator (§1, §6).
const synthFrameSize = 64 * 64 * 3 / 2 // 64x64 I420

// synthCapturer fills each frame with an incrementing solid value, giving
// the pipeline something deterministic to push end-to-end without a real
// capture backend.
type synthCapturer struct {
	tick byte
}

func (c *synthCapturer) CaptureOne(out []byte) (int, error) {
	c.tick++
	for i := range out[:synthFrameSize] {
		out[i] = c.tick
	}
	return synthFrameSize, nil
}

// passthroughEncoder stands in for the out-of-scope HEVC encoder (§6): it
// pulls raw YUV frames off the ring and emits them unmodified as if they
// were encoded access units, so the send/receive/player pipeline can be
// exercised without linking a real codec.
type passthroughEncoder struct {
	ring *queue.Ring
}

func (e *passthroughEncoder) ReadPicture(out []byte) bool { return false }

func (e *passthroughEncoder) Run(ctx context.Context, cmd string, emit func(nal []byte)) error {
	for {
		out := buffer.New(0)
		e.ring.Pop(out)
		if out.Len() == 0 {
			return nil // end-of-stream sentinel, §4.2
		}
		payload := append([]byte(nil), out.Bytes()...)
		emit(payload)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
