// Package rest exposes collages over plain HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
	"github.com/edumarques81/chartfy-backend/internal/domain/render"
	"github.com/edumarques81/chartfy-backend/internal/infra/cache"
	"github.com/edumarques81/chartfy-backend/internal/infra/spotify"
	"github.com/edumarques81/chartfy-backend/internal/version"
)

// Generator produces grids. *collage.Service implements it.
type Generator interface {
	Generate(ctx context.Context, req collage.GenerateRequest) (collage.Grid, error)
	Providers() []string
}

// ImageRenderer encodes a grid as an image file. *render.Renderer implements it.
type ImageRenderer interface {
	Render(ctx context.Context, grid collage.Grid, view collage.ViewState) ([]byte, error)
	Format() render.Format
}

// CollageResponse is the body of the grid endpoint.
type CollageResponse struct {
	View   collage.ViewState        `json:"view"`
	Grid   collage.Grid             `json:"grid"`
	Layout render.InteractiveLayout `json:"layout"`
}

// CacheStatsProvider reports lookup cache contents. *cache.DB implements it.
type CacheStatsProvider interface {
	GetStats() (*cache.Stats, error)
}

// ClientCounter reports connected realtime clients. *socketio.Server implements it.
type ClientCounter interface {
	ClientCount() int
}

// Option configures the router.
type Option func(*handler)

// WithCacheStats reports lookup cache statistics from /health.
func WithCacheStats(stats CacheStatsProvider) Option {
	return func(h *handler) {
		h.cache = stats
	}
}

// WithClientCounter reports the connected client count from /health.
func WithClientCounter(counter ClientCounter) Option {
	return func(h *handler) {
		h.clients = counter
	}
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status    string       `json:"status"`
	Providers []string     `json:"providers"`
	Clients   *int         `json:"clients,omitempty"`
	Cache     *cache.Stats `json:"cache,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	gen      Generator
	renderer ImageRenderer
	cache    CacheStatsProvider
	clients  ClientCounter
}

// NewRouter returns the REST API routes.
func NewRouter(gen Generator, renderer ImageRenderer, opts ...Option) *mux.Router {
	h := &handler{gen: gen, renderer: renderer}
	for _, opt := range opts {
		opt(h)
	}

	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet, http.MethodOptions)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/version", h.version).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/collage/{provider}/{category}/{identity}", h.collage).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/collage/{provider}/{category}/{identity}/image", h.image).Methods(http.MethodGet, http.MethodOptions)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	providers := h.gen.Providers()
	sort.Strings(providers)
	resp := HealthResponse{Status: "ok", Providers: providers}

	if h.clients != nil {
		n := h.clients.ClientCount()
		resp.Clients = &n
	}
	if h.cache != nil {
		stats, err := h.cache.GetStats()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read lookup cache stats")
			resp.Status = "degraded"
		} else {
			resp.Cache = stats
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}

func (h *handler) collage(w http.ResponseWriter, r *http.Request) {
	grid, view, ok := h.generate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, CollageResponse{
		View:   view,
		Grid:   grid,
		Layout: render.Interactive(grid, view),
	})
}

func (h *handler) image(w http.ResponseWriter, r *http.Request) {
	grid, view, ok := h.generate(w, r)
	if !ok {
		return
	}

	data, err := h.renderer.Render(r.Context(), grid, view)
	if err != nil {
		log.Error().Err(err).Str("identity", view.Identity).Msg("Collage render failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not render collage"})
		return
	}

	format := h.renderer.Format()
	w.Header().Set("Content-Type", format.MimeType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+render.Filename(view, format)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// generate parses the route and runs a generation. It writes the error response itself.
func (h *handler) generate(w http.ResponseWriter, r *http.Request) (collage.Grid, collage.ViewState, bool) {
	vars := mux.Vars(r)

	category, err := collage.ParseCategory(vars["category"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return collage.Grid{}, collage.ViewState{}, false
	}

	showNames, _ := strconv.ParseBool(r.URL.Query().Get("showNames"))
	req := collage.GenerateRequest{
		Provider: vars["provider"],
		Identity: strings.TrimSpace(vars["identity"]),
		Category: category,
		Token:    bearerToken(r),
	}

	grid, err := h.gen.Generate(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Warn().Err(err).Str("provider", req.Provider).Str("identity", req.Identity).Msg("Collage request failed")
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return collage.Grid{}, collage.ViewState{}, false
	}

	return grid, collage.ViewState{
		Provider:  req.Provider,
		Category:  req.Category,
		Identity:  req.Identity,
		ShowNames: showNames,
	}, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, collage.ErrMissingIdentity),
		errors.Is(err, collage.ErrInvalidCategory),
		errors.Is(err, collage.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, spotify.ErrMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, collage.ErrRetrievalFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// bearerToken extracts the token of an "Authorization: Bearer ..." header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
