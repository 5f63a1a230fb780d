// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"

	"biosignal-service/internal/model"
)

// ByteSource is where the acquisition pipeline gets its raw bytes from
type ByteSource interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Read returns at most maxBytes of the bytes available right now. It may
	// return an empty slice and must not block for longer than the source's
	// configured read timeout.
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Source information
	GetSourceType() model.SourceType
	Describe() string
	Stats() SourceStats
}

// SourceStats provides source-level statistics
type SourceStats struct {
	BytesRead    int64     `json:"bytes_read"`
	ReadCount    int64     `json:"read_count"`
	ErrorCount   int64     `json:"error_count"`
	LastActivity time.Time `json:"last_activity"`
	OpenedAt     time.Time `json:"opened_at"`
	IsConnected  bool      `json:"is_connected"`
}
