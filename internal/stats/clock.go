package stats

import (
	"os"
	"time"
)

func currentPID() int { return os.Getpid() }

func nowUnix() int64 { return time.Now().Unix() }
