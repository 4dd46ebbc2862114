package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// HeaderKey is the request header that opts a submission into replay.
const HeaderKey = "X-Idempotency-Key"

var (
	// ErrKeyReused is returned when a key is presented again with a different payload.
	ErrKeyReused = errors.New("idempotency key reused with a different request")
	// ErrInFlight is returned while the first request holding a key is still running.
	ErrInFlight = errors.New("a request with this idempotency key is still in progress")
)

// Record holds a stored response for replay.
type Record struct {
	StatusCode  int       `json:"statusCode"`
	Response    []byte    `json:"response"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (r Record) Expired(now time.Time) bool { return now.After(r.ExpiresAt) }

// Pending reports whether r is a reservation with no response yet.
func (r Record) Pending() bool { return r.StatusCode == 0 }

// Reservation is the placeholder stored while the first request for a key runs.
func Reservation(fingerprint string, now time.Time, ttl time.Duration) Record {
	return Record{Fingerprint: fingerprint, CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

// Matches reports whether fingerprint belongs to the request that produced r.
func (r Record) Matches(fingerprint string) bool {
	return r.Fingerprint == "" || r.Fingerprint == fingerprint
}

// Store abstracts idempotency persistence. Get returns nil, nil for missing
// or expired keys. Reserve stores record only when key is absent or expired
// and reports whether it did; Release drops a key.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Save(ctx context.Context, key string, record Record) error
	Reserve(ctx context.Context, key string, record Record) (bool, error)
	Release(ctx context.Context, key string) error
}

// ScopedKey namespaces a client key by account and route, so two accounts
// cannot replay each other's submissions.
func ScopedKey(account, method, path, key string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(account) + "\x00" + method + "\x00" + path + "\x00" + key))
	return hex.EncodeToString(sum[:])
}

// Fingerprint identifies a request body.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// MemoryStore keeps records in process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Record),
		now:  time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[key]
	if !ok || rec.Expired(m.now()) {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = record
	return nil
}

func (m *MemoryStore) Reserve(_ context.Context, key string, record Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.data[key]; ok && !rec.Expired(m.now()) {
		return false, nil
	}
	m.data[key] = record
	return true, nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Prune drops expired records and returns how many were removed.
func (m *MemoryStore) Prune(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var removed int64
	for k, rec := range m.data {
		if rec.Expired(now) {
			delete(m.data, k)
			removed++
		}
	}
	return removed, nil
}

// FileStore persists records to a JSON file. Suitable for a single local instance.
type FileStore struct {
	path string
	mu   sync.Mutex
	data map[string]Record
	now  func() time.Time
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is empty")
	}
	fs := &FileStore{
		path: path,
		data: make(map[string]Record),
		now:  time.Now,
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStore) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	blob, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(blob) == 0 {
		return nil
	}
	return json.Unmarshal(blob, &f.data)
}

func (f *FileStore) persist() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Get(_ context.Context, key string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.data[key]
	if !ok {
		return nil, nil
	}
	if record.Expired(f.now()) {
		delete(f.data, key)
		_ = f.persist()
		return nil, nil
	}
	return &record, nil
}

func (f *FileStore) Save(_ context.Context, key string, record Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = record
	return f.persist()
}

func (f *FileStore) Reserve(_ context.Context, key string, record Record) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.data[key]; ok && !rec.Expired(f.now()) {
		return false, nil
	}
	f.data[key] = record
	if err := f.persist(); err != nil {
		delete(f.data, key)
		return false, err
	}
	return true, nil
}

func (f *FileStore) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return nil
	}
	delete(f.data, key)
	return f.persist()
}

// Prune drops expired records and rewrites the file when any were removed.
func (f *FileStore) Prune(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	var removed int64
	for k, rec := range f.data {
		if rec.Expired(now) {
			delete(f.data, k)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, f.persist()
}

// Ping checks that the directory holding the file is writable.
func (f *FileStore) Ping(context.Context) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
