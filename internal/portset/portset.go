// Package portset defines the narrow interfaces separating the streaming
// service/request from the platform-specific pieces this module does not
// implement: screen capture, HEVC encode/decode, and playback/display.
package portset

import "context"

// Capturer produces one raw frame (e.g. BGRA or YUV, platform-defined) per
// call into out, returning the number of bytes written.
type Capturer interface {
	CaptureOne(out []byte) (n int, err error)
}

// Encoder drives an external or native HEVC encoder. Run starts the encoder
// with the given command-line-style configuration and invokes emit once per
// NAL unit produced until ctx is canceled or the encoder exits. ReadPicture
// pulls the next raw picture to feed the encoder, returning false when no
// picture is currently available.
type Encoder interface {
	ReadPicture(out []byte) (ok bool)
	Run(ctx context.Context, cmd string, emit func(nal []byte)) error
}

// Player consumes decoded/displayable packets one at a time.
type Player interface {
	ReadPacket(buf []byte) (n int, err error)
}
