// Package config loads server/client configuration from JSON or YAML files,
// selected by file extension, generalizing the teacher's JSON-only
// parseJSONConfig (server/config.go) to the two formats the rest of the
// retrieval pack reaches for.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures cmd/streamserver.
type ServerConfig struct {
	MsgPort  int `json:"msg_port" yaml:"msg_port"`
	DataPort int `json:"data_port" yaml:"data_port"`

	PoolCap int `json:"pool_cap" yaml:"pool_cap"`
	RingCap int `json:"ring_cap" yaml:"ring_cap"`

	Log         string `json:"log" yaml:"log"`
	StatsPeriod int    `json:"stats_period" yaml:"stats_period"`

	SnapshotDir  string `json:"snapshot_dir" yaml:"snapshot_dir"`
	SnapshotCron string `json:"snapshot_cron" yaml:"snapshot_cron"`
	PayloadLog   string `json:"payload_log" yaml:"payload_log"`

	S3Bucket string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Prefix string `json:"s3_prefix" yaml:"s3_prefix"`

	MonitorAddr string `json:"monitor_addr" yaml:"monitor_addr"`
}

// ClientConfig configures cmd/streamclient.
type ClientConfig struct {
	RemoteAddr string `json:"remote_addr" yaml:"remote_addr"`
	StreamCmd  string `json:"stream_cmd" yaml:"stream_cmd"`

	FIFOCap int `json:"fifo_cap" yaml:"fifo_cap"`
	PoolCap int `json:"pool_cap" yaml:"pool_cap"`

	Log         string `json:"log" yaml:"log"`
	MonitorAddr string `json:"monitor_addr" yaml:"monitor_addr"`
}

// DefaultServerConfig returns the zero-config defaults used when no -c flag
// is given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MsgPort:     9000,
		DataPort:    9001,
		PoolCap:     64,
		RingCap:     8,
		StatsPeriod: 1,
	}
}

// DefaultClientConfig returns the zero-config defaults used when no -c flag
// is given.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		FIFOCap: 32,
		PoolCap: 64,
	}
}

// Load decodes the file at path into v, choosing JSON or YAML by file
// extension (.yaml/.yml vs. everything else).
func Load(v interface{}, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(f).Decode(v); err != nil {
			return errors.Wrapf(err, "config: parsing yaml %s", path)
		}
	default:
		if err := json.NewDecoder(f).Decode(v); err != nil {
			return errors.Wrapf(err, "config: parsing json %s", path)
		}
	}
	return nil
}
