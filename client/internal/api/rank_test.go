package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/zillionme/2023-naaga/shared/protocol"
)

// recorder is a fake rank server that remembers every request it saw.
type recorder struct {
	mu     sync.Mutex
	hits   []*http.Request
	status int
	body   string
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec.mu.Lock()
	rec.hits = append(rec.hits, r)
	rec.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if rec.status != 0 {
		w.WriteHeader(rec.status)
	}
	_, _ = w.Write([]byte(rec.body))
}

func (rec *recorder) requests() []*http.Request {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]*http.Request(nil), rec.hits...)
}

func newTestRankClient(t *testing.T, rec *recorder, opts ...Option) *RankClient {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return NewRankClient(NewClient(srv.URL, srv.Client(), opts...))
}

func TestGetAllRankSendsOneGet(t *testing.T) {
	rec := &recorder{body: `[{"id":1,"score":100}]`}
	rc := newTestRankClient(t, rec)

	ranks, err := rc.GetAllRank("rank", "descending").Execute(context.Background())
	if err != nil {
		t.Fatalf("GetAllRank: %v", err)
	}
	if len(ranks) != 1 {
		t.Fatalf("got %d entries, want 1", len(ranks))
	}

	hits := rec.requests()
	if len(hits) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(hits))
	}
	r := hits[0]
	if r.Method != http.MethodGet {
		t.Errorf("method = %s, want GET", r.Method)
	}
	if r.URL.Path != "/rank" {
		t.Errorf("path = %s, want /rank", r.URL.Path)
	}
	if r.URL.RawQuery != "sort-by=rank&order=descending" {
		t.Errorf("query = %q", r.URL.RawQuery)
	}
}

func TestGetAllRankKeepsServerOrder(t *testing.T) {
	board := []protocol.RankEntry{
		{Player: protocol.PlayerView{ID: 7, Nickname: "c", TotalScore: 10}, Rank: 3, Percentage: 100},
		{Player: protocol.PlayerView{ID: 3, Nickname: "a", TotalScore: 90}, Rank: 1, Percentage: 33},
		{Player: protocol.PlayerView{ID: 5, Nickname: "b", TotalScore: 40}, Rank: 2, Percentage: 67},
	}
	b, _ := json.Marshal(board)
	rc := newTestRankClient(t, &recorder{body: string(b)})

	ranks, err := rc.GetAllRank("rank", "ascending").Execute(context.Background())
	if err != nil {
		t.Fatalf("GetAllRank: %v", err)
	}
	if len(ranks) != len(board) {
		t.Fatalf("got %d entries, want %d", len(ranks), len(board))
	}
	for i := range board {
		if ranks[i] != board[i] {
			t.Errorf("entry %d = %+v, want %+v", i, ranks[i], board[i])
		}
	}
}

func TestGetAllRankEscapesValues(t *testing.T) {
	rec := &recorder{body: `[]`}
	rc := newTestRankClient(t, rec)

	if _, err := rc.GetAllRank("total score", "a&b").Execute(context.Background()); err != nil {
		t.Fatalf("GetAllRank: %v", err)
	}
	q := rec.requests()[0].URL.Query()
	if got := q.Get("sort-by"); got != "total score" {
		t.Errorf("sort-by = %q", got)
	}
	if got := q.Get("order"); got != "a&b" {
		t.Errorf("order = %q", got)
	}
}

func TestGetMyRankSendsOneGet(t *testing.T) {
	rec := &recorder{body: `{"player":{"id":4,"nickname":"dora","totalScore":55},"rank":2,"percentage":50}`}
	rc := newTestRankClient(t, rec)

	me, err := rc.GetMyRank().Execute(context.Background())
	if err != nil {
		t.Fatalf("GetMyRank: %v", err)
	}
	if me.Player.Nickname != "dora" || me.Rank != 2 || me.Percentage != 50 {
		t.Errorf("unexpected entry %+v", me)
	}

	hits := rec.requests()
	if len(hits) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(hits))
	}
	if hits[0].Method != http.MethodGet || hits[0].URL.Path != "/ranks/my" {
		t.Errorf("request = %s %s", hits[0].Method, hits[0].URL.Path)
	}
	if hits[0].URL.RawQuery != "" {
		t.Errorf("unexpected query %q", hits[0].URL.RawQuery)
	}
}

func TestCallCreationSendsNothing(t *testing.T) {
	rec := &recorder{body: `[]`}
	rc := newTestRankClient(t, rec)

	all := rc.GetAllRank("rank", "ascending")
	my := rc.GetMyRank()
	if all == nil || my == nil {
		t.Fatal("nil call")
	}
	if n := len(rec.requests()); n != 0 {
		t.Fatalf("server saw %d requests before execution", n)
	}
	if got := all.Request().String(); got != "GET /rank?sort-by=rank&order=ascending" {
		t.Errorf("descriptor = %q", got)
	}
	if got := my.Request().String(); got != "GET /ranks/my" {
		t.Errorf("descriptor = %q", got)
	}
}

func TestNotFoundFailsTheCall(t *testing.T) {
	rec := &recorder{status: http.StatusNotFound, body: `{"code":406,"message":"player not found"}`}
	rc := newTestRankClient(t, rec)

	_, errAll := rc.GetAllRank("rank", "ascending").Execute(context.Background())
	_, errMy := rc.GetMyRank().Execute(context.Background())

	for name, err := range map[string]error{"GetAllRank": errAll, "GetMyRank": errMy} {
		var he *HTTPError
		if !errors.As(err, &he) {
			t.Fatalf("%s: want *HTTPError, got %v", name, err)
		}
		if !he.NotFound() || !IsNotFound(err) {
			t.Errorf("%s: status %d not reported as not found", name, he.StatusCode)
		}
		if he.Response == nil || he.Response.Code != protocol.CodePlayerNotFound {
			t.Errorf("%s: error body not decoded: %+v", name, he.Response)
		}
	}
}

func TestMalformedBodyIsDecodeError(t *testing.T) {
	rc := newTestRankClient(t, &recorder{body: `[{"id":1,"score":`})

	ranks, err := rc.GetAllRank("rank", "ascending").Execute(context.Background())
	if err == nil {
		t.Fatal("expected an error for a truncated body")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want *DecodeError, got %T: %v", err, err)
	}
	if ranks != nil {
		t.Errorf("got %v alongside the error", ranks)
	}
}

func TestEmptyBodyIsDecodeError(t *testing.T) {
	rc := newTestRankClient(t, &recorder{})

	_, err := rc.GetMyRank().Execute(context.Background())
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want *DecodeError, got %v", err)
	}
}

func TestNullBodyIsDecodeError(t *testing.T) {
	for _, body := range []string{"null", " null\n"} {
		rc := newTestRankClient(t, &recorder{body: body})

		ranks, err := rc.GetAllRank("rank", "ascending").Execute(context.Background())
		var de *DecodeError
		if !errors.As(err, &de) || !errors.Is(err, ErrNullBody) {
			t.Errorf("GetAllRank(%q): want null-body DecodeError, got %v", body, err)
		}
		if ranks != nil {
			t.Errorf("GetAllRank(%q): got %v alongside the error", body, ranks)
		}

		entry, err := rc.GetMyRank().Execute(context.Background())
		if !errors.As(err, &de) || !errors.Is(err, ErrNullBody) {
			t.Errorf("GetMyRank(%q): want null-body DecodeError, got %v (entry %+v)", body, err, entry)
		}
	}
}

func TestServerErrorWithPlainBody(t *testing.T) {
	rc := newTestRankClient(t, &recorder{status: http.StatusBadGateway, body: "upstream down"})

	_, err := rc.GetMyRank().Execute(context.Background())
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("want *HTTPError, got %v", err)
	}
	if he.StatusCode != http.StatusBadGateway || he.Response != nil {
		t.Errorf("unexpected error %+v", he)
	}
	if string(he.Body) != "upstream down" {
		t.Errorf("body = %q", he.Body)
	}
}

func TestBearerTokenIsForwarded(t *testing.T) {
	rec := &recorder{body: `{}`}
	rc := newTestRankClient(t, rec, WithToken(func() string { return "tok" }))

	if _, err := rc.GetMyRank().Execute(context.Background()); err != nil {
		t.Fatalf("GetMyRank: %v", err)
	}
	if got := rec.requests()[0].Header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestNoTokenNoHeader(t *testing.T) {
	rec := &recorder{body: `{}`}
	rc := newTestRankClient(t, rec, WithToken(func() string { return "" }))

	if _, err := rc.GetMyRank().Execute(context.Background()); err != nil {
		t.Fatalf("GetMyRank: %v", err)
	}
	if got := rec.requests()[0].Header.Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want none", got)
	}
}

func TestAddScorePostsJSON(t *testing.T) {
	var got protocol.AddScore
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ranks/my/score" {
			http.Error(w, "bad route", http.StatusTeapot)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"player":{"id":1,"nickname":"a","totalScore":30},"rank":1,"percentage":100}`))
	}))
	defer srv.Close()
	rc := NewRankClient(NewClient(srv.URL, srv.Client()))

	me, err := rc.AddScore(30).Execute(context.Background())
	if err != nil {
		t.Fatalf("AddScore: %v", err)
	}
	if got.Score != 30 || me.Player.TotalScore != 30 {
		t.Errorf("sent %+v, got back %+v", got, me)
	}
}
