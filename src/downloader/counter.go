package downloader

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/illustory/gallery/src/clock"
	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/utils"
)

// Counts downloads made from this machine today. The server has the final
// say; this only saves a round trip once the client knows it is out.
//
// The file holds one key per day, e.g. {"downloads_2026-10-15": 3}. A new day
// means a new key, so nothing ever needs resetting.
type LocalCounter struct {
	Path  string
	Limit int
	Clock clock.Clock

	mu sync.Mutex
}

func NewLocalCounter(path string, limit int, clk clock.Clock) *LocalCounter {
	return &LocalCounter{Path: path, Limit: limit, Clock: clk}
}

func counterKey(now time.Time) string {
	return "downloads_" + now.Format("2006-01-02")
}

func (lc *LocalCounter) Used() (int, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	counts, err := lc.load()
	if err != nil {
		return 0, err
	}
	return counts[counterKey(lc.Clock.Now())], nil
}

func (lc *LocalCounter) Remaining() (int, error) {
	used, err := lc.Used()
	if err != nil {
		return 0, err
	}
	return utils.IntMax(lc.Limit-used, 0), nil
}

func (lc *LocalCounter) Increment() error {
	return lc.update(func(used int) int {
		return used + 1
	})
}

// Makes sure the local count is at least what the server says has been used.
// It never raises the local remaining count.
func (lc *LocalCounter) LowerRemaining(serverRemaining int) error {
	return lc.update(func(used int) int {
		return utils.IntMax(used, lc.Limit-serverRemaining)
	})
}

func (lc *LocalCounter) update(f func(used int) int) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	counts, err := lc.load()
	if err != nil {
		return err
	}
	key := counterKey(lc.Clock.Now())
	newCounts := map[string]int{key: f(counts[key])}
	return lc.save(newCounts)
}

func (lc *LocalCounter) load() (map[string]int, error) {
	contents, err := os.ReadFile(lc.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]int{}, nil
	} else if err != nil {
		return nil, oops.New(err, "failed to read download counter")
	}

	counts := map[string]int{}
	if err := json.Unmarshal(contents, &counts); err != nil {
		// A mangled file is not worth failing a download over.
		return map[string]int{}, nil
	}
	return counts, nil
}

func (lc *LocalCounter) save(counts map[string]int) error {
	contents, err := json.Marshal(counts)
	if err != nil {
		return oops.New(err, "failed to encode download counter")
	}
	if err := os.MkdirAll(filepath.Dir(lc.Path), 0755); err != nil {
		return oops.New(err, "failed to create directory for download counter")
	}

	tmp := lc.Path + ".tmp"
	if err := os.WriteFile(tmp, contents, 0644); err != nil {
		return oops.New(err, "failed to write download counter")
	}
	if err := os.Rename(tmp, lc.Path); err != nil {
		return oops.New(err, "failed to replace download counter")
	}
	return nil
}
