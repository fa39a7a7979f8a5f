// Package store holds the entity store: every committed point of interest,
// route and content chapter, partitioned by kind. The store owns its
// entities; callers only ever receive copies.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gumaertl2/PPT-sub001/internal/state"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

var (
	// ErrNotFound is returned when an id is unknown to the store.
	ErrNotFound = errors.New("entity not found")
	// ErrRetired is returned when an id was discarded and may not be reused.
	ErrRetired = errors.New("entity id retired")
	// ErrKindMismatch is returned when a record targets the wrong partition.
	ErrKindMismatch = errors.New("entity kind mismatch")
)

// Record is an incoming create or update. An empty ID means create.
type Record struct {
	ID       string
	Kind     models.Kind
	Category models.Category
	Name     string
	Fields   map[string]any
	// Task is the task id committing the record.
	Task string
}

// Reader is the read-only view of the store handed to preparers and outer layers.
type Reader interface {
	Get(id string) (*models.Entity, bool)
	ListByCategory(c models.Category) []*models.Entity
	ListByKind(k models.Kind) []*models.Entity
	All() []*models.Entity
	Names(c models.Category) []string
	IsRetired(id string) bool
	Len() int
}

var _ Reader = (*Store)(nil)

// Store is the entity store.
type Store struct {
	mu         sync.RWMutex
	partitions map[models.Kind]map[string]*models.Entity
	index      map[string]models.Kind
	retired    map[string]bool

	persist state.EntityStore
	log     *zap.Logger
	now     func() time.Time
	newID   func(models.Kind) string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how ids are minted.
func WithIDGenerator(fn func(models.Kind) string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		partitions: map[models.Kind]map[string]*models.Entity{
			models.KindPOI:     {},
			models.KindRoute:   {},
			models.KindContent: {},
		},
		index:   make(map[string]models.Kind),
		retired: make(map[string]bool),
		log:     zap.NewNop(),
		now:     time.Now,
		newID:   defaultID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store backed by db and loads every persisted entity and
// tombstone. Each later commit is written in one database transaction
// before it becomes visible in memory.
func Open(db state.EntityStore, opts ...Option) (*Store, error) {
	s := New(opts...)
	s.persist = db

	entities, err := db.ListEntities()
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	for _, e := range entities {
		part, ok := s.partitions[e.Kind]
		if !ok {
			s.log.Warn("skipping entity with unknown kind", zap.String("entity", e.ID), zap.String("kind", string(e.Kind)))
			continue
		}
		part[e.ID] = e
		s.index[e.ID] = e.Kind
	}

	retired, err := db.ListTombstones()
	if err != nil {
		return nil, fmt.Errorf("load tombstones: %w", err)
	}
	for _, id := range retired {
		s.retired[id] = true
	}

	s.log.Debug("store loaded", zap.Int("entities", len(s.index)), zap.Int("tombstones", len(s.retired)))
	return s, nil
}

func defaultID(k models.Kind) string {
	return k.IDPrefix() + "-" + uuid.NewString()
}

// Get returns a copy of the entity with the given id.
func (s *Store) Get(id string) (*models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.lookupLocked(id)
	if e == nil {
		return nil, false
	}
	return e.Clone(), true
}

// IsRetired reports whether id was discarded by a correction run.
func (s *Store) IsRetired(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retired[id]
}

// Len returns the number of live entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// ListByCategory returns copies of all entities of a category in creation order.
func (s *Store) ListByCategory(c models.Category) []*models.Entity {
	return s.list(func(e *models.Entity) bool { return e.Category == c })
}

// ListByKind returns copies of all entities in a partition in creation order.
func (s *Store) ListByKind(k models.Kind) []*models.Entity {
	return s.list(func(e *models.Entity) bool { return e.Kind == k })
}

// All returns copies of every entity in creation order.
func (s *Store) All() []*models.Entity {
	return s.list(func(*models.Entity) bool { return true })
}

// ListProducedBy returns copies of the entities a task created.
func (s *Store) ListProducedBy(taskID string) []*models.Entity {
	return s.list(func(e *models.Entity) bool { return e.ProducedBy == taskID })
}

// Names returns the names of all entities of a category in creation order.
func (s *Store) Names(c models.Category) []string {
	list := s.ListByCategory(c)
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Name)
	}
	return names
}

func (s *Store) list(match func(*models.Entity) bool) []*models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Entity
	for _, part := range s.partitions {
		for _, e := range part {
			if match(e) {
				out = append(out, e.Clone())
			}
		}
	}
	sortEntities(out)
	return out
}

func sortEntities(list []*models.Entity) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func (s *Store) lookupLocked(id string) *models.Entity {
	k, ok := s.index[id]
	if !ok {
		return nil
	}
	return s.partitions[k][id]
}

// Upsert creates or updates one entity atomically. Updates go through the
// preservation merge selected by policy.
func (s *Store) Upsert(rec Record, policy Policy) (MergeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		return s.createLocked(rec)
	}
	return s.updateLocked(rec, policy)
}

func (s *Store) createLocked(rec Record) (MergeRecord, error) {
	if !rec.Kind.Valid() {
		return MergeRecord{}, fmt.Errorf("create entity: %w: %q", ErrKindMismatch, rec.Kind)
	}
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return MergeRecord{}, errors.New("create entity: name is required")
	}

	id := s.newID(rec.Kind)
	for s.retired[id] || s.index[id] != "" {
		id = s.newID(rec.Kind)
	}

	now := s.now()
	e := &models.Entity{
		ID:         id,
		Kind:       rec.Kind,
		Category:   rec.Category,
		Name:       name,
		Fields:     make(map[string]any, len(rec.Fields)),
		ProducedBy: rec.Task,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if rec.Task != "" {
		e.Sources = []string{rec.Task}
	}
	decisions := mergeFields(e.Fields, models.CloneFields(rec.Fields), Preserve)

	if err := s.writeLocked(func(tx *sql.Tx) error { return state.PutEntity(tx, e) }); err != nil {
		return MergeRecord{}, err
	}
	s.partitions[e.Kind][id] = e
	s.index[id] = e.Kind

	s.log.Debug("entity created",
		zap.String("entity", id),
		zap.String("name", name),
		zap.String("category", string(e.Category)),
		zap.String("task", rec.Task))
	return MergeRecord{Action: ActionCreate, EntityID: id, Name: name, Decisions: decisions}, nil
}

func (s *Store) updateLocked(rec Record, policy Policy) (MergeRecord, error) {
	if s.retired[rec.ID] {
		return MergeRecord{}, fmt.Errorf("update %s: %w", rec.ID, ErrRetired)
	}
	cur := s.lookupLocked(rec.ID)
	if cur == nil {
		return MergeRecord{}, fmt.Errorf("update %s: %w", rec.ID, ErrNotFound)
	}
	if rec.Kind != "" && rec.Kind != cur.Kind {
		return MergeRecord{}, fmt.Errorf("update %s: %w: %s is in %s", rec.ID, ErrKindMismatch, rec.Kind, cur.Kind)
	}

	work := cur.Clone()
	if work.Fields == nil {
		work.Fields = make(map[string]any, len(rec.Fields))
	}
	decisions := mergeFields(work.Fields, models.CloneFields(rec.Fields), policy)

	// Names are identity keys; they only fill a blank.
	if strings.TrimSpace(work.Name) == "" && strings.TrimSpace(rec.Name) != "" {
		work.Name = strings.TrimSpace(rec.Name)
		decisions["name"] = TakeIncoming
	}
	if work.Category == "" && rec.Category != "" {
		work.Category = rec.Category
	}

	mr := MergeRecord{Action: ActionUpdate, EntityID: work.ID, Name: work.Name, Decisions: decisions}
	addedSource := false
	if rec.Task != "" && !containsString(work.Sources, rec.Task) {
		work.Sources = append(work.Sources, rec.Task)
		addedSource = true
	}
	if !mr.Changed() && !addedSource {
		return mr, nil
	}
	work.UpdatedAt = s.now()

	if err := s.writeLocked(func(tx *sql.Tx) error { return state.PutEntity(tx, work) }); err != nil {
		return MergeRecord{}, err
	}
	s.partitions[work.Kind][work.ID] = work

	s.log.Debug("entity updated",
		zap.String("entity", work.ID),
		zap.String("task", rec.Task),
		zap.String("policy", policy.String()),
		zap.Strings("fields", mr.Fields()))
	return mr, nil
}

// Discard removes entities and retires their ids so they are never reused.
// All removals are applied together or not at all.
func (s *Store) Discard(taskID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if s.lookupLocked(id) == nil {
			return fmt.Errorf("discard %s: %w", id, ErrNotFound)
		}
	}

	now := s.now()
	err := s.writeLocked(func(tx *sql.Tx) error {
		for _, id := range ids {
			if err := state.TombstoneEntity(tx, id, taskID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		k := s.index[id]
		delete(s.partitions[k], id)
		delete(s.index, id)
		s.retired[id] = true
	}
	s.log.Debug("entities discarded", zap.String("task", taskID), zap.Strings("ids", ids))
	return nil
}

func (s *Store) writeLocked(fn func(tx *sql.Tx) error) error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.Transaction(fn); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
