// Package store holds the per-session record table.
package store

import (
	"errors"
	"sync"

	"github.com/ukaji3/certissue-go/pkg/certissue/models"
)

var (
	// ErrNoRecord indicates no record exists for the key.
	ErrNoRecord = errors.New("no record for key")
	// ErrStaleGeneration indicates the write belongs to a batch that was
	// cleared after it started.
	ErrStaleGeneration = errors.New("store was cleared since the batch started")
)

// Store is an insertion-ordered key → record table. It is safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	gen     uint64
	order   []string
	records map[string]*models.Record
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]*models.Record),
	}
}

// Clear discards all records and starts a new generation.
func (s *Store) Clear() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.order = nil
	s.records = make(map[string]*models.Record)
	return s.gen
}

// Generation returns the current generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Upsert inserts a record for key or replaces the fields of the existing
// one. A replaced record keeps its position and its images.
// It reports whether an existing record was overwritten.
func (s *Store) Upsert(key string, fields models.Row) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key]; ok {
		rec.Fields = fields
		return true
	}
	s.records[key] = &models.Record{
		Key:    key,
		Fields: fields,
		Images: []models.Image{},
	}
	s.order = append(s.order, key)
	return false
}

// AttachImage appends img to the record for key. gen must be the
// generation the caller's batch started under.
func (s *Store) AttachImage(gen uint64, key string, img models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return ErrStaleGeneration
	}
	rec, ok := s.records[key]
	if !ok {
		return ErrNoRecord
	}
	rec.Images = append(rec.Images, img)
	return nil
}

// Has reports whether a record exists for key.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok
}

// Get returns a copy of the record for key.
func (s *Store) Get(key string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return models.Record{}, false
	}
	return copyRecord(rec), true
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Keys returns the keys in insertion order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Entries returns copies of all records in insertion order.
func (s *Store) Entries() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Record, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, copyRecord(s.records[key]))
	}
	return out
}

// Load replaces the store content with records, keeping their order.
// Later duplicates overwrite earlier ones.
func (s *Store) Load(records []models.Record) {
	s.Clear()
	for _, rec := range records {
		s.Upsert(rec.Key, rec.Fields)
		s.mu.Lock()
		r := s.records[rec.Key]
		r.Images = append(r.Images[:0], rec.Images...)
		s.mu.Unlock()
	}
}

func copyRecord(rec *models.Record) models.Record {
	images := make([]models.Image, len(rec.Images))
	copy(images, rec.Images)
	return models.Record{
		Key:    rec.Key,
		Fields: rec.Fields.Clone(),
		Images: images,
	}
}
