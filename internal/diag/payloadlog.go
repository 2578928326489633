// Package diag implements the out-of-scope debug artifacts §6 calls out as
// optional: a raw encoded-frame payload log and scheduled JPEG snapshots,
// archived to S3 when configured. None of this participates in the wire
// protocol or session lifecycle.
package diag

import (
	"os"
	"sync"

	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
)

// PayloadLog appends raw encoded-frame payloads to a gzip-compressed file,
// one write per frame, for offline inspection. Writes are serialized; a nil
// PayloadLog is a valid no-op (diagnostics are opt-in).
type PayloadLog struct {
	mu sync.Mutex
	f  *os.File
	gz *pgzip.Writer
}

// OpenPayloadLog creates (or truncates) path and wraps it in a parallel
// gzip writer. path == "" disables logging — OpenPayloadLog returns a nil
// *PayloadLog that Write/Close treat as a no-op.
func OpenPayloadLog(path string) (*PayloadLog, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "diag: opening payload log")
	}
	return &PayloadLog{f: f, gz: pgzip.NewWriter(f)}, nil
}

// Write appends payload to the log. Safe for concurrent callers even
// though the streaming service only ever calls it from the encode thread.
func (p *PayloadLog) Write(payload []byte) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.gz.Write(payload)
	return errors.WithStack(err)
}

// Close flushes and closes the underlying file.
func (p *PayloadLog) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.gz.Close(); err != nil {
		return errors.WithStack(err)
	}
	return p.f.Close()
}
