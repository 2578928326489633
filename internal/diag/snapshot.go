package diag

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// SnapshotFunc produces one already-encoded JPEG image. JPEG encoding
// itself is an out-of-scope external collaborator (§1); diag only
// schedules the call and persists/archives the result.
type SnapshotFunc func() ([]byte, error)

// Scheduler periodically invokes a SnapshotFunc on a cron schedule and
// writes the result under dir, optionally handing it to an Archiver.
type Scheduler struct {
	cron     *cron.Cron
	dir      string
	snapshot SnapshotFunc
	archiver *Archiver // may be nil
}

// NewScheduler builds (but does not start) a cron-driven snapshot
// scheduler. spec is a six-field cron expression whose first field is
// seconds (e.g. "*/30 * * * * *"), since the parser is built with
// cron.WithSeconds().
func NewScheduler(spec, dir string, snapshot SnapshotFunc, archiver *Archiver) (*Scheduler, error) {
	s := &Scheduler{dir: dir, snapshot: snapshot, archiver: archiver}
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(spec, s.fire); err != nil {
		return nil, err
	}
	s.cron = c
	return s, nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the scheduler and waits for any in-flight job.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

func (s *Scheduler) fire() {
	jpg, err := s.snapshot()
	if err != nil {
		log.Printf("diag: snapshot capture failed: %v", err)
		return
	}
	name := fmt.Sprintf("snapshot-%d.jpg", time.Now().UnixNano())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, jpg, 0o644); err != nil {
		log.Printf("diag: writing snapshot %s: %v", path, err)
		return
	}
	if s.archiver != nil {
		if err := s.archiver.Upload(name, jpg); err != nil {
			log.Printf("diag: archiving snapshot %s: %v", name, err)
		}
	}
}
