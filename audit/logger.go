package audit

import (
	"fmt"
	"time"
)

// Logger records store operations for security monitoring. Implementations
// must be safe for concurrent use; a failing logger must never block or
// fail the store operation it observes.
type Logger interface {
	Log(action string, success bool, metadata map[string]interface{}) error
	Close() error
}

// Event is one audit record.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Database  string                 `json:"database,omitempty"`
	Action    string                 `json:"action"`
	Success   bool                   `json:"success"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Config selects and configures a logger implementation.
type Config struct {
	Enabled  bool       `json:"enabled"`
	Database string     `json:"database,omitempty"`
	Type     ConfigType `json:"type"`
	FilePath string     `json:"file_path,omitempty"`
}

type ConfigType string

const (
	FileAuditType ConfigType = "file"
	NoOp          ConfigType = ""
)

// NewLogger creates the logger named by config. A nil or disabled config
// yields a no-op logger so callers never need a nil check.
func NewLogger(config *Config) (Logger, error) {
	if config == nil || !config.Enabled {
		return &NoOpLogger{}, nil
	}

	switch config.Type {
	case FileAuditType:
		return NewFileLogger(config)
	case NoOp:
		return &NoOpLogger{}, nil
	default:
		return nil, fmt.Errorf("unknown audit provider: %s", config.Type)
	}
}
