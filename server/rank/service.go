package rank

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/zillionme/2023-naaga/server/api"
	"github.com/zillionme/2023-naaga/shared/protocol"
)

var (
	ErrInvalidSortBy = api.NewError(http.StatusBadRequest, protocol.CodeInvalidSortBy, "unsupported sort-by")
	ErrInvalidOrder  = api.NewError(http.StatusBadRequest, protocol.CodeInvalidOrder, "unsupported order")
	ErrInvalidScore  = api.NewError(http.StatusBadRequest, protocol.CodeInvalidScore, "score must be positive")
)

// Publisher receives the full board after every score change.
type Publisher interface {
	Publish(board protocol.RankBoard)
}

// Service answers rank queries from a Store. The computed board is cached
// until the next score change.
type Service struct {
	store Store
	pub   Publisher
	group singleflight.Group

	mu    sync.RWMutex
	board []protocol.RankEntry // rank 1 first; nil when stale
	gen   uint64               // bumped on every write

	pubMu     sync.Mutex
	published uint64 // generation of the last published board
}

// NewService returns a service over store. pub may be nil.
func NewService(store Store, pub Publisher) *Service {
	return &Service{store: store, pub: pub}
}

// Rank orders players by total score, highest first, ties broken by id.
// Equal scores share a rank (1, 2, 2, 4) and percentage is rank/total
// rounded to a whole percent.
func Rank(players []protocol.PlayerView) []protocol.RankEntry {
	sorted := append([]protocol.PlayerView(nil), players...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TotalScore != sorted[j].TotalScore {
			return sorted[i].TotalScore > sorted[j].TotalScore
		}
		return sorted[i].ID < sorted[j].ID
	})

	total := len(sorted)
	out := make([]protocol.RankEntry, total)
	for i, p := range sorted {
		rank := i + 1
		if i > 0 && p.TotalScore == sorted[i-1].TotalScore {
			rank = out[i-1].Rank
		}
		out[i] = protocol.RankEntry{
			Player:     p,
			Rank:       rank,
			Percentage: int(math.Round(float64(rank) * 100 / float64(total))),
		}
	}
	return out
}

// Board returns every ranked player, rank 1 first.
func (s *Service) Board(ctx context.Context) ([]protocol.RankEntry, error) {
	board, _, err := s.load(ctx)
	return board, err
}

// load returns a copy of the board and the write generation it reflects.
func (s *Service) load(ctx context.Context) ([]protocol.RankEntry, uint64, error) {
	s.mu.RLock()
	board, gen := s.board, s.gen
	s.mu.RUnlock()
	if board != nil {
		return copyBoard(board), gen, nil
	}

	// keyed by generation so a load started before a write is never reused after it
	v, err, _ := s.group.Do("board:"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		players, err := s.store.Players(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "load players")
		}
		ranked := Rank(players)
		s.mu.Lock()
		if s.gen == gen {
			s.board = ranked
		}
		s.mu.Unlock()
		return ranked, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return copyBoard(v.([]protocol.RankEntry)), gen, nil
}

// publish forwards board unless a newer generation has already gone out.
func (s *Service) publish(board []protocol.RankEntry, gen uint64) {
	if s.pub == nil {
		return
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if gen <= s.published {
		return
	}
	s.published = gen
	s.pub.Publish(protocol.RankBoard{Ranks: board})
}

// copyBoard never returns nil so an empty board encodes as [].
func copyBoard(b []protocol.RankEntry) []protocol.RankEntry {
	out := make([]protocol.RankEntry, len(b))
	copy(out, b)
	return out
}

// Ranks is the board in the requested order. Only sort-by "rank" is supported.
func (s *Service) Ranks(ctx context.Context, sortBy, order string) ([]protocol.RankEntry, error) {
	if sortBy != protocol.SortByRank {
		return nil, ErrInvalidSortBy
	}
	if order != protocol.OrderAscending && order != protocol.OrderDescending {
		return nil, ErrInvalidOrder
	}
	board, err := s.Board(ctx)
	if err != nil {
		return nil, err
	}
	if order == protocol.OrderDescending {
		for i, j := 0, len(board)-1; i < j; i, j = i+1, j-1 {
			board[i], board[j] = board[j], board[i]
		}
	}
	return board, nil
}

// MyRank returns ErrPlayerNotFound until nickname has scored.
func (s *Service) MyRank(ctx context.Context, nickname string) (protocol.RankEntry, error) {
	board, err := s.Board(ctx)
	if err != nil {
		return protocol.RankEntry{}, err
	}
	for _, e := range board {
		if e.Player.Nickname == nickname {
			return e, nil
		}
	}
	return protocol.RankEntry{}, ErrPlayerNotFound
}

// AddScore credits nickname and publishes the new board.
func (s *Service) AddScore(ctx context.Context, nickname string, score int) (protocol.RankEntry, error) {
	if score <= 0 {
		return protocol.RankEntry{}, ErrInvalidScore
	}
	_, err := s.store.AddScore(ctx, nickname, score)
	// a remote store may have applied the write before failing
	s.invalidate()
	if err != nil {
		return protocol.RankEntry{}, err
	}

	board, gen, err := s.load(ctx)
	if err != nil {
		return protocol.RankEntry{}, err
	}
	s.publish(board, gen)
	for _, e := range board {
		if e.Player.Nickname == nickname {
			return e, nil
		}
	}
	return protocol.RankEntry{}, ErrPlayerNotFound
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.board = nil
	s.gen++
	s.mu.Unlock()
}
