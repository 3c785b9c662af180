package socketio

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
	"github.com/edumarques81/chartfy-backend/internal/domain/render"
)

// Client events
const (
	EventGenerate  = "collage:generate"
	EventShowNames = "collage:showNames"
	EventGet       = "collage:get"
	EventExport    = "collage:export"
)

// Server pushes
const (
	PushCollageLoading = "pushCollageLoading"
	PushCollage        = "pushCollage"
	PushToast          = "pushToast"
	PushDownload       = "pushDownload"
)

// Exporter renders a grid into client commands. *render.Renderer implements it.
type Exporter interface {
	Export(ctx context.Context, grid collage.Grid, view collage.ViewState) ([]render.Command, error)
}

// emitFunc sends one event to the client.
type emitFunc func(event string, args ...any)

// LoadingPayload is the body of pushCollageLoading.
type LoadingPayload struct {
	Loading   bool   `json:"loading"`
	RequestID string `json:"requestId"`
}

// CollagePayload is the body of pushCollage.
type CollagePayload struct {
	Generated bool                     `json:"generated"`
	View      collage.ViewState        `json:"view"`
	Layout    render.InteractiveLayout `json:"layout"`
}

// ToastPayload is the body of pushToast.
type ToastPayload struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// DownloadPayload is the body of pushDownload. Data is base64.
type DownloadPayload struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// clientHandler serves the collage events of one connected client.
type clientHandler struct {
	id       string
	ctx      context.Context
	session  *collage.Session
	exporter Exporter
	emit     emitFunc
	pushes   *PushDebouncer

	wg sync.WaitGroup
}

func newClientHandler(ctx context.Context, id string, gen collage.Generator, exporter Exporter, emit emitFunc, cfg serverOptions) *clientHandler {
	h := &clientHandler{
		id:       id,
		ctx:      ctx,
		session:  collage.NewSession(gen),
		exporter: exporter,
		emit:     emit,
	}
	h.pushes = NewPushDebouncer(cfg.showNamesDelay, h.pushCollage)
	return h
}

// generate starts a generation in the background. A newer call supersedes it.
func (h *clientHandler) generate(args ...any) {
	m := payloadMap(args)
	req := collage.GenerateRequest{
		Provider: stringField(m, "provider"),
		Identity: strings.TrimSpace(stringField(m, "identity")),
		Token:    stringField(m, "token"),
	}
	if req.Provider == "" {
		req.Provider = "lastfm"
	}

	if req.Identity == "" {
		h.toastError("Error", "Enter a username to generate a collage.")
		return
	}

	category, err := collage.ParseCategory(stringField(m, "category"))
	if err != nil {
		h.toastError("Error", "Choose albums, tracks or artists.")
		return
	}
	req.Category = category

	requestID := uuid.NewString()
	log.Debug().
		Str("id", h.id).
		Str("request", requestID).
		Str("provider", req.Provider).
		Str("identity", req.Identity).
		Str("category", string(req.Category)).
		Msg(EventGenerate)

	h.emit(PushCollageLoading, LoadingPayload{Loading: true, RequestID: requestID})

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		snap, err := h.session.Generate(h.ctx, req)
		if errors.Is(err, collage.ErrSuperseded) {
			log.Debug().Str("id", h.id).Str("request", requestID).Msg("Generation superseded")
			return
		}

		h.emit(PushCollageLoading, LoadingPayload{Loading: false, RequestID: requestID})
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("id", h.id).Str("identity", req.Identity).Msg("Collage generation failed")
			h.toastError("Error!", generateErrorMessage(err))
			return
		}

		h.emit(PushCollage, collagePayload(snap))
		h.emit(PushToast, ToastPayload{
			Type:    "success",
			Title:   "Success!",
			Message: "Collage of top " + string(req.Category) + " generated!",
		})
	}()
}

// showNames toggles captions and pushes the layout once the toggles settle.
func (h *clientHandler) showNames(args ...any) {
	m := payloadMap(args)
	show, ok := m["value"].(bool)
	if !ok && len(args) > 0 {
		show, _ = args[0].(bool)
	}
	log.Debug().Str("id", h.id).Bool("value", show).Msg(EventShowNames)

	h.session.SetShowNames(show)
	h.pushes.Trigger()
}

func (h *clientHandler) get(args ...any) {
	log.Debug().Str("id", h.id).Msg(EventGet)
	h.pushCollage()
}

// export renders the current grid and sends the file plus a toast.
func (h *clientHandler) export(args ...any) {
	snap := h.session.Snapshot()
	if !snap.Generated {
		h.toastError("Download failed", "Generate a collage first.")
		return
	}
	log.Debug().Str("id", h.id).Str("identity", snap.View.Identity).Msg(EventExport)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		cmds, err := h.exporter.Export(h.ctx, snap.Grid, snap.View)
		if err != nil && h.ctx.Err() != nil {
			return
		}
		for _, cmd := range cmds {
			switch c := cmd.(type) {
			case render.DownloadCommand:
				h.emit(PushDownload, DownloadPayload{
					Filename: c.Filename,
					MimeType: c.MimeType,
					Data:     base64.StdEncoding.EncodeToString(c.Data),
				})
			case render.NotifyCommand:
				h.emit(PushToast, ToastPayload{Type: string(c.Level), Title: c.Title, Message: c.Message})
			}
		}
	}()
}

func (h *clientHandler) pushCollage() {
	h.emit(PushCollage, collagePayload(h.session.Snapshot()))
}

func (h *clientHandler) toastError(title, message string) {
	h.emit(PushToast, ToastPayload{Type: "error", Title: title, Message: message})
}

// close stops pending work and waits for in-flight handlers.
func (h *clientHandler) close() {
	h.pushes.Stop()
	h.session.Close()
	h.wg.Wait()
}

func collagePayload(snap collage.Snapshot) CollagePayload {
	return CollagePayload{
		Generated: snap.Generated,
		View:      snap.View,
		Layout:    render.Interactive(snap.Grid, snap.View),
	}
}

func generateErrorMessage(err error) string {
	switch {
	case errors.Is(err, collage.ErrUnknownProvider):
		return "That music service is not supported."
	case errors.Is(err, collage.ErrRetrievalFailed):
		return "Could not generate the collage. Please check the username and try again."
	default:
		return "Could not generate the collage. Please try again."
	}
}

// payloadMap returns the first argument as an object, or an empty map.
func payloadMap(args []any) map[string]any {
	if len(args) > 0 {
		if m, ok := args[0].(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
