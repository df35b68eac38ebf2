package rank

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zillionme/2023-naaga/server/metrics"
	"github.com/zillionme/2023-naaga/shared/protocol"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 2048,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans rank boards out to stream subscribers. A slow subscriber only ever
// sees the latest board.
type Hub struct {
	mu   sync.Mutex
	subs map[chan protocol.RankBoard]struct{}
}

var _ Publisher = (*Hub)(nil)

// NewHub returns a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan protocol.RankBoard]struct{})}
}

// Subscribe registers a channel that holds at most one pending board.
func (h *Hub) Subscribe() chan protocol.RankBoard {
	ch := make(chan protocol.RankBoard, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan protocol.RankBoard) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish replaces any unread board with board for every subscriber.
func (h *Hub) Publish(board protocol.RankBoard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		// drop the unread board, keep the newest
		select {
		case <-ch:
		default:
		}
		ch <- board
	}
}

// ServeStream upgrades to a websocket, sends the current board, then every
// board published on hub until the client goes away.
func ServeStream(svc *Service, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade:", err)
			return
		}
		defer conn.Close()

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)
		gauge := metrics.StreamClients.WithLabelValues("ranks")
		gauge.Inc()
		defer gauge.Dec()

		// reads only to notice the close
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		board, err := svc.Board(r.Context())
		if err != nil {
			log.Printf("rank stream: initial board: %v", err)
			return
		}
		if err := writeBoard(conn, protocol.RankBoard{Ranks: board}); err != nil {
			return
		}

		for {
			select {
			case b := <-ch:
				if err := writeBoard(conn, b); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	}
}

func writeBoard(conn *websocket.Conn, b protocol.RankBoard) error {
	if b.Ranks == nil {
		b.Ranks = []protocol.RankEntry{}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(b)
}
