package api

import (
	"net/http"

	"github.com/zillionme/2023-naaga/shared/protocol"
)

// RankService is the client side of the rank endpoints. Every method returns a
// pending call; nothing is sent until the call is executed.
type RankService interface {
	// GetAllRank fetches the whole board: GET /rank?sort-by=<sortBy>&order=<order>.
	GetAllRank(sortBy, order string) *Call[[]protocol.RankEntry]
	// GetMyRank fetches the caller's entry: GET /ranks/my.
	GetMyRank() *Call[protocol.RankEntry]
}

// RankQuery holds the board query parameters. Values are passed through unchecked.
type RankQuery struct {
	SortBy string
	Order  string
}

func (q RankQuery) params() []Param {
	return []Param{
		{Name: protocol.ParamSortBy, Value: q.SortBy},
		{Name: protocol.ParamOrder, Value: q.Order},
	}
}

// RankClient implements RankService over a Client.
type RankClient struct {
	client *Client
}

var _ RankService = (*RankClient)(nil)

// NewRankClient returns a RankService bound to c.
func NewRankClient(c *Client) *RankClient {
	return &RankClient{client: c}
}

// GetAllRank returns a pending GET /rank?sort-by=<sortBy>&order=<order>.
func (r *RankClient) GetAllRank(sortBy, order string) *Call[[]protocol.RankEntry] {
	return r.Query(RankQuery{SortBy: sortBy, Order: order})
}

// Query is GetAllRank taking a RankQuery.
func (r *RankClient) Query(q RankQuery) *Call[[]protocol.RankEntry] {
	return newCall[[]protocol.RankEntry](r.client, Request{
		Method: http.MethodGet,
		Path:   "/rank",
		Query:  q.params(),
	})
}

// GetMyRank returns a pending GET /ranks/my. A player with no score yet gets a 404 HTTPError.
func (r *RankClient) GetMyRank() *Call[protocol.RankEntry] {
	return newCall[protocol.RankEntry](r.client, Request{
		Method: http.MethodGet,
		Path:   "/ranks/my",
	})
}

// AddScore adds score to the caller's total and returns the updated entry.
func (r *RankClient) AddScore(score int) *Call[protocol.RankEntry] {
	return newCall[protocol.RankEntry](r.client, Request{
		Method: http.MethodPost,
		Path:   "/ranks/my/score",
		Body:   protocol.AddScore{Score: score},
	})
}
