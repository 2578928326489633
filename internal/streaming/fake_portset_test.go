package streaming

import (
	"context"

	"github.com/deskstream/deskstream/internal/buffer"
	"github.com/deskstream/deskstream/internal/queue"
)

// fakeCapturer produces fixed-size frames of incrementing byte values,
// standing in for the out-of-scope platform capture primitive.
type fakeCapturer struct {
	frameSize int
	counter   byte
}

func (f *fakeCapturer) CaptureOne(out []byte) (int, error) {
	f.counter++
	for i := range out[:f.frameSize] {
		out[i] = f.counter
	}
	return f.frameSize, nil
}

// fakeEncoder stands in for the out-of-scope HEVC encoder: it is wired
// directly to the service's YUV ring (as the real adapter would be, by
// whatever constructs it) and pulls pictures from it, emitting the raw
// picture payload back out as if it were an encoded NAL — sufficient to
// exercise the frame-send pipeline without implementing HEVC.
type fakeEncoder struct {
	ring *queue.Ring
}

// ReadPicture is unused by this fake: it pulls pictures directly off the
// ring inside Run instead, since it already holds the ring reference.
func (f *fakeEncoder) ReadPicture(out []byte) bool { return false }

func (f *fakeEncoder) Run(ctx context.Context, cmd string, emit func(nal []byte)) error {
	for {
		out := buffer.New(0)
		f.ring.Pop(out)
		if out.Len() == 0 {
			return nil // end-of-stream sentinel, §4.2
		}
		payload := make([]byte, out.Len()-YUVHeaderLen)
		copy(payload, out.Bytes()[YUVHeaderLen:])
		emit(payload)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
