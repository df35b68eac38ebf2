package api

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zillionme/2023-naaga/shared/protocol"
)

// WatchBoard connects to the rank stream at wsURL and calls fn for every board
// the server pushes. It returns nil once ctx is done.
func WatchBoard(ctx context.Context, wsURL, token string, fn func(protocol.RankBoard)) error {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return errors.Wrapf(err, "dial %s", wsURL)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var board protocol.RankBoard
		if err := conn.ReadJSON(&board); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read rank board")
		}
		fn(board)
	}
}
