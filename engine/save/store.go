package save

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

// ErrNotFound is returned when a slot holds no snapshot.
var ErrNotFound = errors.New("save slot not found")

// DefaultSlot is used when the caller names no slot.
const DefaultSlot = "quicksave"

// SlotInfo describes one stored snapshot.
type SlotInfo struct {
	Name      string
	Size      int64
	UpdatedAt time.Time
}

// Store keeps encoded snapshots in named slots.
type Store interface {
	Put(ctx context.Context, slot string, data []byte) error
	Get(ctx context.Context, slot string) ([]byte, error)
	List(ctx context.Context) ([]SlotInfo, error)
	Delete(ctx context.Context, slot string) error
	Close() error
}

var slotPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateSlot rejects slot names that are empty or unsafe as file names
// and keys.
func ValidateSlot(slot string) error {
	if !slotPattern.MatchString(slot) {
		return fmt.Errorf("invalid slot name %q: use letters, digits, '-' or '_'", slot)
	}
	return nil
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Options selects and configures a store backend.
type Options struct {
	Backend    string
	Dir        string
	RedisAddr  string
	SQLitePath string
}

// Open creates the store named by opts.Backend.
func Open(ctx context.Context, opts Options, log *slog.Logger) (Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		s, err := NewFileStore(opts.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRedis:
		s := NewRedisStore(opts.RedisAddr, log)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown save backend %q", opts.Backend)
	}
}
