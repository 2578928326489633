package streaming

import "github.com/pkg/errors"

func errFrameTooLarge(n, cap int) error {
	return errors.Errorf("streaming: decoded frame of %d bytes does not fit caller buffer of %d bytes", n, cap)
}
