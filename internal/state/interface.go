package state

import (
	"database/sql"
	"io"

	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// EntityStore handles entity persistence operations.
type EntityStore interface {
	ListEntities() ([]*models.Entity, error)
	ListTombstones() ([]string, error)
	// Transaction runs fn atomically; PutEntity and TombstoneEntity accept the tx.
	Transaction(fn func(tx *sql.Tx) error) error
}

// StepStore handles step execution persistence operations.
type StepStore interface {
	CreateStep(s *Step) error
	UpdateStep(s *Step) error
	GetStep(id string) (*Step, error)
	LatestSteps() (map[string]*Step, error)
	EffectiveSteps() (map[string]*Step, error)
}

// ManualStore tracks manual-mode chunk progress between processes.
type ManualStore interface {
	PutManualProgress(p *ManualProgress) error
	GetManualProgress(taskID string) (*ManualProgress, error)
	DeleteManualProgress(taskID string) error
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// StateStore composes all persistence operations.
type StateStore interface {
	io.Closer
	Migrator
	EntityStore
	StepStore
	ManualStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore  = (*DB)(nil)
	_ EntityStore = (*DB)(nil)
	_ StepStore   = (*DB)(nil)
	_ ManualStore = (*DB)(nil)
)
