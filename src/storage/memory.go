package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	content     []byte
	contentType string
}

// An in-process object store. It also serves its objects over HTTP, so a
// signed URL can be fetched if its base URL points at a server running it.
type Memory struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

var _ ObjectStore = &Memory{}
var _ http.Handler = &Memory{}

func NewMemory(baseURL string) *Memory {
	return &Memory{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string]memoryObject),
	}
}

func (m *Memory) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	base := m.baseURL
	m.mu.RUnlock()

	q := url.Values{}
	q.Set("X-Amz-Expires", fmt.Sprintf("%d", int(ttl/time.Second)))
	return fmt.Sprintf("%s/%s?%s", base, key, q.Encode()), nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) Put(ctx context.Context, key string, content []byte, contentType string) error {
	if len(content) == 0 {
		return ErrEmptyObject
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{
		content:     append([]byte(nil), content...),
		contentType: contentType,
	}
	return nil
}

func (m *Memory) SetBaseURL(base string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseURL = strings.TrimSuffix(base, "/")
}

func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

func (m *Memory) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimPrefix(req.URL.Path, "/")
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		rw.WriteHeader(http.StatusNotFound)
		return
	}
	rw.Header().Set("Content-Type", obj.contentType)
	rw.Header().Set("Content-Length", fmt.Sprintf("%d", len(obj.content)))
	rw.WriteHeader(http.StatusOK)
	if req.Method == http.MethodGet {
		rw.Write(obj.content)
	}
}
