package auditlog

import (
	"sync"
	"time"

	"github.com/illustory/gallery/src/models"
)

// The subset of audit log operations the in-process quota ledger needs.
type Store interface {
	Insert(entry models.DownloadLog) (models.DownloadLog, error)
	CountSince(axis Axis, value string, since time.Time) (int, error)
}

// An in-process audit log, for tests and for running without Postgres.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []models.DownloadLog
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Insert(entry models.DownloadLog) (models.DownloadLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextID == 0 {
		s.nextID = 1
	}
	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *MemoryStore) CountSince(axis Axis, value string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, e := range s.entries {
		if e.CreatedAt.Before(since) {
			continue
		}
		if axisValue(e, axis) == value {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) DeleteForIllustration(illustrationID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var deleted int64
	for _, e := range s.entries {
		if e.IllustrationID == illustrationID {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted
}

// A copy of every entry, oldest first.
func (s *MemoryStore) Entries() []models.DownloadLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.DownloadLog(nil), s.entries...)
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func axisValue(e models.DownloadLog, axis Axis) string {
	switch axis {
	case AxisNetwork:
		return e.IPAddress
	case AxisIdentifier:
		if e.UserIdentifier == nil {
			return ""
		}
		return *e.UserIdentifier
	}
	return ""
}
