package rank

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/zillionme/2023-naaga/server/api"
	"github.com/zillionme/2023-naaga/shared/protocol"
)

var ErrPlayerNotFound = api.NewError(http.StatusNotFound, protocol.CodePlayerNotFound, "player not found")

// Store keeps each player's accumulated score.
type Store interface {
	// AddScore adds delta to nickname's total, creating the player on first use.
	// MemoryStore leaves the total unchanged when it returns an error.
	AddScore(ctx context.Context, nickname string, delta int) (protocol.PlayerView, error)
	// Player returns ErrPlayerNotFound for unknown nicknames.
	Player(ctx context.Context, nickname string) (protocol.PlayerView, error)
	Players(ctx context.Context) ([]protocol.PlayerView, error)
	Close() error
}

// MemoryStore is a Store held in memory and, when path is set, mirrored to a
// JSON file after every write.
type MemoryStore struct {
	mu      sync.RWMutex
	saveMu  sync.Mutex // orders file writes
	path    string
	nextID  int64
	players map[string]*protocol.PlayerView
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore loads path if it exists. An empty path disables persistence.
func NewMemoryStore(path string) (*MemoryStore, error) {
	s := &MemoryStore{path: path, players: map[string]*protocol.PlayerView{}}
	if path == "" {
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var list []protocol.PlayerView
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	for i := range list {
		p := list[i]
		s.players[p.Nickname] = &p
		if p.ID > s.nextID {
			s.nextID = p.ID
		}
	}
	return s, nil
}

func (s *MemoryStore) AddScore(_ context.Context, nickname string, delta int) (protocol.PlayerView, error) {
	s.mu.Lock()
	p, ok := s.players[nickname]
	if !ok {
		s.nextID++
		p = &protocol.PlayerView{ID: s.nextID, Nickname: nickname}
		s.players[nickname] = p
	}
	p.TotalScore += delta
	out := *p
	s.mu.Unlock()

	if err := s.save(); err != nil {
		s.rollback(nickname, delta)
		return protocol.PlayerView{}, errors.Wrap(err, "persist scores")
	}
	return out, nil
}

// rollback undoes a delta that could not be persisted. A player left at zero
// was created by that write and is removed again.
func (s *MemoryStore) rollback(nickname string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[nickname]
	if !ok {
		return
	}
	p.TotalScore -= delta
	if p.TotalScore == 0 {
		delete(s.players, nickname)
	}
}

func (s *MemoryStore) Player(_ context.Context, nickname string) (protocol.PlayerView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[nickname]
	if !ok {
		return protocol.PlayerView{}, ErrPlayerNotFound
	}
	return *p, nil
}

func (s *MemoryStore) Players(context.Context) ([]protocol.PlayerView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(), nil
}

// snapshot must be called with s.mu held.
func (s *MemoryStore) snapshot() []protocol.PlayerView {
	out := make([]protocol.PlayerView, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) save() error {
	if s.path == "" {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.mu.RLock()
	b, err := json.MarshalIndent(s.snapshot(), "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *MemoryStore) Close() error { return s.save() }
