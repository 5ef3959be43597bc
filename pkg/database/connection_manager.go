package database

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/isg-automation/scheduler/config"
)

// ConnectionManager wraps the single shared *sql.DB pool this service uses.
// Every table is scoped by owner_id rather than living in a per-tenant
// database, so there is exactly one pool to manage rather than one per
// workspace.
type ConnectionManager interface {
	// GetSystemConnection returns the shared database connection pool.
	GetSystemConnection() *sql.DB

	// GetStats returns connection pool statistics.
	GetStats() ConnectionStats

	// Close closes the underlying pool.
	Close() error
}

// ConnectionStats provides visibility into pool usage, surfaced by the
// health handler.
type ConnectionStats struct {
	MaxOpen      int
	OpenConnections int
	InUse        int
	Idle         int
	WaitCount    int64
	WaitDuration time.Duration
}

type connectionManager struct {
	mu       sync.RWMutex
	systemDB *sql.DB
}

var (
	instance     *connectionManager
	instanceOnce sync.Once
	instanceMu   sync.RWMutex
)

// InitializeConnectionManager initializes the singleton wrapping systemDB,
// applying the pool-size configuration cmd/automationd/main.go read at
// startup.
func InitializeConnectionManager(cfg *config.Config, systemDB *sql.DB) error {
	instanceOnce.Do(func() {
		instanceMu.Lock()
		defer instanceMu.Unlock()

		maxOpen := cfg.Database.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 20
		}
		maxIdle := cfg.Database.MaxIdleConns
		if maxIdle <= 0 {
			maxIdle = maxOpen / 2
		}

		systemDB.SetMaxOpenConns(maxOpen)
		systemDB.SetMaxIdleConns(maxIdle)
		systemDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

		instance = &connectionManager{systemDB: systemDB}
	})

	return nil
}

// GetConnectionManager returns the singleton instance.
func GetConnectionManager() (ConnectionManager, error) {
	instanceMu.RLock()
	defer instanceMu.RUnlock()

	if instance == nil {
		return nil, fmt.Errorf("connection manager not initialized")
	}

	return instance, nil
}

// ResetConnectionManager resets the singleton. Test-only.
func ResetConnectionManager() {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		instance.Close()
		instance = nil
	}
	instanceOnce = sync.Once{}
}

func (cm *connectionManager) GetSystemConnection() *sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.systemDB
}

func (cm *connectionManager) GetStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.systemDB == nil {
		return ConnectionStats{}
	}

	stats := cm.systemDB.Stats()
	return ConnectionStats{
		MaxOpen:         stats.MaxOpenConnections,
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
	}
}

// Close closes the underlying pool. The caller (cmd/automationd/main.go)
// owns systemDB's lifecycle in the common case; this exists for symmetry
// and for callers that hand the manager full ownership.
func (cm *connectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.systemDB == nil {
		return nil
	}
	return cm.systemDB.Close()
}
