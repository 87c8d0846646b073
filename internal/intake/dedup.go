package intake

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store records which files were already taken up for processing.
type Store interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
	Close() error
}

// MemoryStore keeps processed keys for the lifetime of the process.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]struct{})}
}

func (m *MemoryStore) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *MemoryStore) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = struct{}{}
	return nil
}

// Len returns the number of recorded keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

func (m *MemoryStore) Close() error { return nil }

// JournalStore is a MemoryStore backed by an append-only file with one key
// per line, reloaded when opened.
type JournalStore struct {
	mem  *MemoryStore
	mu   sync.Mutex
	file *os.File
}

// OpenJournal loads path, creating it if needed.
func OpenJournal(path string) (*JournalStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	mem := NewMemoryStore()
	if f, err := os.Open(path); err == nil { //nolint:gosec // G304: journal path is operator configured
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				mem.keys[line] = struct{}{}
			}
		}
		err = sc.Err()
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read journal %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // G304: see above
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &JournalStore{mem: mem, file: f}, nil
}

func (j *JournalStore) Seen(ctx context.Context, key string) (bool, error) {
	return j.mem.Seen(ctx, key)
}

func (j *JournalStore) Mark(ctx context.Context, key string) error {
	if strings.ContainsAny(key, "\r\n") {
		return fmt.Errorf("journal key contains a line break: %q", key)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if ok, _ := j.mem.Seen(ctx, key); ok {
		return nil
	}
	if _, err := j.file.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return j.mem.Mark(ctx, key)
}

// Len returns the number of recorded keys.
func (j *JournalStore) Len() int { return j.mem.Len() }

func (j *JournalStore) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// RedisStore keeps processed keys in a Redis set, shared by every instance
// pointing at the same key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "formflow:processed"
	}
	return &RedisStore{client: client, key: key}
}

// OpenRedis connects using a redis:// URL.
func OpenRedis(url, key string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opt), key), nil
}

func (r *RedisStore) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) Mark(ctx context.Context, key string) error {
	if err := r.client.SAdd(ctx, r.key, key).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error { return r.client.Close() }

// OpenStore builds the store named by kind: "memory", "journal" or "redis".
func OpenStore(kind, journalPath, redisURL, redisKey string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "journal":
		if journalPath == "" {
			return nil, errors.New("journal store needs a path")
		}
		return OpenJournal(journalPath)
	case "redis":
		return OpenRedis(redisURL, redisKey)
	default:
		return nil, fmt.Errorf("unknown dedup store %q", kind)
	}
}
