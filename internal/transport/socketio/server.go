// Package socketio provides the Socket.io server for client communication.
package socketio

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

const (
	// DefaultMaxClientsPerIP bounds concurrent sessions from one address.
	DefaultMaxClientsPerIP = 4

	// DefaultShowNamesDelay collapses rapid caption toggles into one push.
	DefaultShowNamesDelay = 150 * time.Millisecond
)

type serverOptions struct {
	maxClientsPerIP int
	showNamesDelay  time.Duration
}

// Option configures the server.
type Option func(*serverOptions)

// WithMaxClientsPerIP sets the per-address session cap. Zero disables it.
func WithMaxClientsPerIP(n int) Option {
	return func(o *serverOptions) {
		o.maxClientsPerIP = n
	}
}

// WithShowNamesDelay sets the caption toggle debounce window.
func WithShowNamesDelay(d time.Duration) Option {
	return func(o *serverOptions) {
		o.showNamesDelay = d
	}
}

// Server handles Socket.io connections and events.
type Server struct {
	io       *socket.Server
	gen      collage.Generator
	exporter Exporter
	opts     serverOptions
	limiter  *ConnectionLimiter

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	clients map[string]*socket.Socket
	handler map[string]*clientHandler
}

// NewServer creates a new Socket.io server.
func NewServer(gen collage.Generator, exporter Exporter, opts ...Option) (*Server, error) {
	o := serverOptions{
		maxClientsPerIP: DefaultMaxClientsPerIP,
		showNamesDelay:  DefaultShowNamesDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}

	// Configure Socket.io server options
	sopts := socket.DefaultServerOptions()
	sopts.SetPingTimeout(20 * time.Second)
	sopts.SetPingInterval(25 * time.Second)
	sopts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		io:       socket.NewServer(nil, sopts),
		gen:      gen,
		exporter: exporter,
		opts:     o,
		limiter:  NewConnectionLimiter(o.maxClientsPerIP),
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[string]*socket.Socket),
		handler:  make(map[string]*clientHandler),
	}

	s.setupHandlers()

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		remote := client.Handshake().Address

		log.Info().Str("id", clientID).Str("remote", remote).Msg("Client connected")

		h := newClientHandler(s.ctx, clientID, s.gen, s.exporter, func(event string, args ...any) {
			client.Emit(event, args...)
		}, s.opts)

		s.mu.Lock()
		s.clients[clientID] = client
		s.handler[clientID] = h
		s.mu.Unlock()

		if evicted := s.limiter.Add(clientID, remote); evicted != "" {
			s.evict(evicted)
		}
		log.Debug().Int("tracked", s.limiter.Count()).Msg("Session registered")

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			delete(s.handler, clientID)
			s.mu.Unlock()

			go h.close()
		})

		client.On(EventGenerate, h.generate)
		client.On(EventShowNames, h.showNames)
		client.On(EventGet, h.get)
		client.On(EventExport, h.export)

		// Send the empty grid so the client can draw placeholders
		h.pushCollage()
	})
}

// evict disconnects a client pushed out by the per-address cap.
func (s *Server) evict(clientID string) {
	s.mu.RLock()
	client := s.clients[clientID]
	s.mu.RUnlock()
	if client == nil {
		return
	}

	log.Warn().Str("id", clientID).Msg("Evicting client over per-address session limit")
	client.Emit(PushToast, ToastPayload{
		Type:    "error",
		Title:   "Disconnected",
		Message: "Too many open sessions from your address.",
	})
	client.Disconnect(true)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close cancels in-flight generations and closes the Socket.io server.
func (s *Server) Close() error {
	s.cancel()

	s.mu.Lock()
	handlers := make([]*clientHandler, 0, len(s.handler))
	for _, h := range s.handler {
		handlers = append(handlers, h)
	}
	s.handler = make(map[string]*clientHandler)
	s.mu.Unlock()

	for _, h := range handlers {
		h.close()
	}

	s.io.Close(nil)
	return nil
}
