// Package backend assembles the ledger store and the optional messaging
// client selected by configuration.
package backend

import (
	"context"

	"masjid/internal/amqp"
	"masjid/internal/ledger"
	"masjid/internal/services"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// HealthChecker is implemented by stores that can report readiness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// BackendResult holds the wired components.
type BackendResult struct {
	Store   ledger.Store
	Ledger  *ledger.Ledger
	Balance *services.BalanceService
	// AMQP is nil when messaging is not configured or unreachable.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Ping checks the store when it supports it.
func (r *BackendResult) Ping(ctx context.Context) error {
	if hc, ok := r.Store.(HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; seed.json in this directory is loaded at startup.
	DataDirectory string

	// Optional messaging
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend.
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
