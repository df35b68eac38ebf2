package rank

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/zillionme/2023-naaga/server/api"
	"github.com/zillionme/2023-naaga/server/auth"
	"github.com/zillionme/2023-naaga/server/metrics"
	"github.com/zillionme/2023-naaga/shared/protocol"
)

// Handler serves the rank endpoints.
type Handler struct {
	svc *Service
	hub *Hub
}

func NewHandler(svc *Service, hub *Hub) *Handler {
	return &Handler{svc: svc, hub: hub}
}

// Register mounts the rank routes. requireAuth guards the per-player ones.
func (h *Handler) Register(r *mux.Router, requireAuth func(http.Handler) http.Handler) {
	r.HandleFunc("/rank", h.HandleAllRank).Methods(http.MethodGet)
	r.Handle("/ranks/my", requireAuth(http.HandlerFunc(h.HandleMyRank))).Methods(http.MethodGet)
	r.Handle("/ranks/my/score", requireAuth(http.HandlerFunc(h.HandleAddScore))).Methods(http.MethodPost)
	r.HandleFunc("/ranks/ws", ServeStream(h.svc, h.hub)).Methods(http.MethodGet)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var ae *api.Error
	if errors.As(err, &ae) {
		return strconv.Itoa(ae.Status)
	}
	return "500"
}

func fail(w http.ResponseWriter, endpoint string, err error) {
	metrics.RankRequests.WithLabelValues(endpoint, outcome(err)).Inc()
	api.WriteError(w, err)
}

// HandleAllRank handles GET /rank?sort-by=rank&order=ascending|descending
func (h *Handler) HandleAllRank(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ranks, err := h.svc.Ranks(r.Context(), q.Get(protocol.ParamSortBy), q.Get(protocol.ParamOrder))
	if err != nil {
		fail(w, "all", err)
		return
	}
	metrics.RankRequests.WithLabelValues("all", "ok").Inc()
	api.WriteJSON(w, http.StatusOK, ranks)
}

// HandleMyRank handles GET /ranks/my
func (h *Handler) HandleMyRank(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		fail(w, "my", api.ErrUnauthorized)
		return
	}
	entry, err := h.svc.MyRank(r.Context(), user)
	if err != nil {
		fail(w, "my", err)
		return
	}
	metrics.RankRequests.WithLabelValues("my", "ok").Inc()
	api.WriteJSON(w, http.StatusOK, entry)
}

// HandleAddScore handles POST /ranks/my/score
func (h *Handler) HandleAddScore(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		fail(w, "score", api.ErrUnauthorized)
		return
	}
	var req protocol.AddScore
	if err := api.DecodeJSON(r, &req); err != nil {
		fail(w, "score", err)
		return
	}
	entry, err := h.svc.AddScore(r.Context(), user, req.Score)
	if err != nil {
		fail(w, "score", err)
		return
	}
	metrics.RankRequests.WithLabelValues("score", "ok").Inc()
	metrics.ScoreUpdates.WithLabelValues("all").Inc()
	api.WriteJSON(w, http.StatusOK, entry)
}
