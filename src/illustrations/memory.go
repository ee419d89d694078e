package illustrations

import (
	"context"
	"sync"

	"github.com/illustory/gallery/src/models"
)

type Memory struct {
	mu    sync.Mutex
	byID  map[int64]*models.Illustration
	maxID int64
}

var _ Store = &Memory{}

func NewMemory() *Memory {
	return &Memory{byID: make(map[int64]*models.Illustration)}
}

// Adds an illustration, assigning an id if it has none.
func (m *Memory) Add(ill models.Illustration) *models.Illustration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ill.ID == 0 {
		ill.ID = m.maxID + 1
	}
	if ill.ID > m.maxID {
		m.maxID = ill.ID
	}
	m.byID[ill.ID] = &ill
	copied := ill
	return &copied
}

func (m *Memory) FetchVisible(ctx context.Context, id int64) (*models.Illustration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ill, ok := m.byID[id]
	if !ok || !ill.Visible {
		return nil, ErrNotFound
	}
	copied := *ill
	return &copied, nil
}

func (m *Memory) IncrementDownloadCount(ctx context.Context, id int64, format models.Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ill, ok := m.byID[id]
	if !ok || !ill.Visible {
		return ErrNotFound
	}
	switch format {
	case models.FormatSVG:
		ill.DownloadCountSVG++
	case models.FormatPNG:
		ill.DownloadCountPNG++
	}
	return nil
}
