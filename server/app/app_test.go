package app

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zillionme/2023-naaga/shared/protocol"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.RedisAddr = ""
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return a
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rr := do(t, newTestApp(t).Router(), http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rr.Code, rr.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	h := newTestApp(t).Router()

	rr := do(t, h, http.MethodGet, "/healthz", "", nil)
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatal("no request id generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("request id = %q, want caller's", got)
	}
}

func TestScoreFlow(t *testing.T) {
	h := newTestApp(t).Router()

	rr := do(t, h, http.MethodPost, "/auth/register", "", protocol.RegisterReq{Username: "mina", Password: "hunter22", PasswordConfirm: "hunter22"})
	if rr.Code != http.StatusOK {
		t.Fatalf("register = %d %s", rr.Code, rr.Body)
	}
	rr = do(t, h, http.MethodPost, "/auth/login", "", protocol.LoginReq{Username: "mina", Password: "hunter22"})
	var login protocol.LoginResp
	if err := json.Unmarshal(rr.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("login = %d %s", rr.Code, rr.Body)
	}

	if rr := do(t, h, http.MethodGet, "/ranks/my", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("my rank without token = %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/ranks/my", login.Token, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("my rank before scoring = %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/ranks/my/score", login.Token, protocol.AddScore{Score: 12})
	if rr.Code != http.StatusOK {
		t.Fatalf("add score = %d %s", rr.Code, rr.Body)
	}

	rr = do(t, h, http.MethodGet, "/rank?sort-by=rank&order=ascending", "", nil)
	var ranks []protocol.RankEntry
	if err := json.Unmarshal(rr.Body.Bytes(), &ranks); err != nil {
		t.Fatalf("ranks body %s: %v", rr.Body, err)
	}
	if len(ranks) != 1 || ranks[0].Player.Nickname != "mina" || ranks[0].Player.TotalScore != 12 {
		t.Fatalf("ranks = %+v", ranks)
	}
}

func TestScoresSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.RedisAddr = ""

	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Service.AddScore(context.Background(), "jun", 4); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	rr := do(t, b.Router(), http.MethodGet, "/rank?sort-by=rank&order=descending", "", nil)
	var ranks []protocol.RankEntry
	_ = json.Unmarshal(rr.Body.Bytes(), &ranks)
	if len(ranks) != 1 || ranks[0].Player.Nickname != "jun" {
		t.Fatalf("ranks after restart = %+v", ranks)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("NAAGA_ADDR", ":9000")
	t.Setenv("NAAGA_REDIS_ADDR", "redis:6379")
	cfg := DefaultConfig()
	if cfg.Addr != ":9000" || cfg.RedisAddr != "redis:6379" {
		t.Fatalf("env not read: %+v", cfg)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"-addr", ":7000", "-redis", ""}); err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":7000" || cfg.RedisAddr != "" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestApp(t).Router()
	if rr := do(t, h, http.MethodGet, "/rank?sort-by=rank&order=ascending", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("rank = %d", rr.Code)
	}

	rr := do(t, h, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rr.Code)
	}
	want := `naaga_rank_requests_total{endpoint="all",outcome="ok"}`
	if !strings.Contains(rr.Body.String(), want) {
		t.Fatalf("metrics output missing %s", want)
	}
}
