// Package api serves the read-only spectator surface and the sim
// control endpoints. Everything here reads snapshots; nothing on this
// surface can reach into a live tick.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/feed"
	"github.com/ashgrove/embervale/internal/relation"
	"github.com/ashgrove/embervale/internal/sim"
	"github.com/ashgrove/embervale/internal/store"
)

// MemoryArchive is the slice of the recall stack the reset op touches.
type MemoryArchive interface {
	Wipe(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers. The store, graph, and
// archive are optional; endpoints needing an absent one answer 503.
type Handler struct {
	sched   *sim.Scheduler
	reg     *sim.Registry
	ring    *feed.Ring
	store   *store.Store
	graph   *relation.Graph
	archive MemoryArchive
	logger  *zap.Logger
}

// NewHandler creates the API handler over the always-present core.
func NewHandler(sched *sim.Scheduler, reg *sim.Registry, ring *feed.Ring, logger *zap.Logger) *Handler {
	return &Handler{sched: sched, reg: reg, ring: ring, logger: logger}
}

// SetStore wires the relational store for board/diary/chronicle reads.
func (h *Handler) SetStore(s *store.Store) { h.store = s }

// SetGraph wires the relation graph for per-villager ties.
func (h *Handler) SetGraph(g *relation.Graph) { h.graph = g }

// SetArchive wires the semantic memory archive so reset can clear it.
func (h *Handler) SetArchive(a MemoryArchive) { h.archive = a }

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/world", h.worldStatus)
		r.Get("/agents", h.listAgents)
		r.Get("/agents/{id}", h.getAgent)
		r.Get("/feed/recent", h.recentFeed)
		r.Get("/board", h.boardPosts)
		r.Get("/conversations", h.recentConversations)
		r.Get("/chronicle", h.chronicleEntries)

		r.Post("/sim/start", h.startSim)
		r.Post("/sim/stop", h.stopSim)
		r.Post("/sim/reset", h.resetSim)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "world": "embervale"})
}

func (h *Handler) worldStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.Roster())
}

// agentDetail is a villager plus whatever the optional collaborators
// know about them.
type agentDetail struct {
	agent.Agent
	Relations []relation.Tie     `json:"relations,omitempty"`
	Diary     []store.DiaryEntry `json:"diary,omitempty"`
}

func (h *Handler) getAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, ok := h.reg.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
		return
	}

	detail := agentDetail{Agent: a}
	if h.graph != nil {
		ties, err := h.graph.TiesOf(r.Context(), a.Name)
		if err != nil {
			h.logger.Warn("relation lookup failed", zap.String("name", a.Name), zap.Error(err))
		} else {
			detail.Relations = ties
		}
	}
	if h.store != nil {
		diary, err := h.store.DiaryFor(r.Context(), a.ID, 10)
		if err != nil {
			h.logger.Warn("diary lookup failed", zap.String("id", a.ID), zap.Error(err))
		} else {
			detail.Diary = diary
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) recentFeed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ring.Recent(parseLimit(r, 50)))
}

func (h *Handler) boardPosts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not configured"})
		return
	}
	posts, err := h.store.RecentBoardPosts(r.Context(), parseLimit(r, 20))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *Handler) recentConversations(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not configured"})
		return
	}
	convos, err := h.store.RecentConversations(r.Context(), parseLimit(r, 10))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, convos)
}

func (h *Handler) chronicleEntries(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not configured"})
		return
	}
	entries, err := h.store.RecentChronicle(r.Context(), parseLimit(r, 10))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) startSim(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) stopSim(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) resetSim(w http.ResponseWriter, r *http.Request) {
	if err := h.sched.Reset(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if h.archive != nil {
		if err := h.archive.Wipe(r.Context()); err != nil {
			h.logger.Warn("memory archive not wiped", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, h.sched.Status())
}

// parseLimit reads ?limit=N, falling back to def for junk or absence.
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
