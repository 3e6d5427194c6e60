package backend

import (
	"context"
	"time"

	"meterbot/internal/core"
	"meterbot/internal/services"
)

// Journal is the full journal surface shared by the bot and the export
// worker
type Journal interface {
	services.Journal
	GetCalculation(ctx context.Context, id int64) (*core.ConfirmedCalculation, error)
	PendingExports(ctx context.Context, limit int) ([]core.ConfirmedCalculation, error)
	MarkExported(ctx context.Context, id int64, at time.Time) error
	SaveClock(ctx context.Context, p core.Period) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the journal, the optional publisher and a cleanup
// function closing both
type BackendResult struct {
	Journal Journal
	// Publisher is nil when no AMQP broker is configured or reachable
	Publisher services.Publisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional calculation queue
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
