// Package main is the entry point for the Chartfy collage backend.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/chartfy-backend/internal/config"
	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
	"github.com/edumarques81/chartfy-backend/internal/domain/render"
	"github.com/edumarques81/chartfy-backend/internal/infra/cache"
	"github.com/edumarques81/chartfy-backend/internal/infra/fetch"
	"github.com/edumarques81/chartfy-backend/internal/infra/lastfm"
	"github.com/edumarques81/chartfy-backend/internal/infra/spotify"
	"github.com/edumarques81/chartfy-backend/internal/transport/rest"
	"github.com/edumarques81/chartfy-backend/internal/transport/socketio"
	"github.com/edumarques81/chartfy-backend/internal/version"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Top Items Collage Backend")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("port", cfg.Port).
		Bool("lastfm_key_set", cfg.LastFM.APIKey != "").
		Str("lastfm_period", cfg.LastFM.Period).
		Str("spotify_range", cfg.Spotify.TimeRange).
		Str("cache_db", cfg.Cache.DB).
		Str("export_format", cfg.Export.Format).
		Int("export_scale", cfg.Export.Scale).
		Msg("Configuration")

	// Optional lookup cache
	var serviceOpts []collage.ServiceOption
	var routerOpts []rest.Option
	if cfg.Cache.DB != "" {
		db := cache.NewDB(cfg.Cache.DB)
		if err := db.Open(); err != nil {
			log.Fatal().Err(err).Msg("Failed to open lookup cache")
		}
		defer db.Close()

		if removed, err := db.Prune(); err != nil {
			log.Warn().Err(err).Msg("Failed to prune lookup cache")
		} else if removed > 0 {
			log.Info().Int64("removed", removed).Msg("Pruned expired lookups")
		}
		serviceOpts = append(serviceOpts, collage.WithLookupWrapper(cache.Wrapper(db, cfg.Cache.TTL)))
		routerOpts = append(routerOpts, rest.WithCacheStats(db))
	}

	// Providers
	service := collage.NewService(serviceOpts...)
	registerProviders(service, cfg, versionInfo.UserAgent())

	// Export
	format, err := render.ParseFormat(cfg.Export.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid export format")
	}
	fetcher := fetch.New(fetch.WithUserAgent(versionInfo.UserAgent()))
	renderer := render.NewRenderer(
		render.NewRasterizer(fetcher, cfg.Export.Scale),
		render.WithFormat(format),
		render.WithCellSize(cfg.Export.CellSize),
	)

	// Create Socket.io server
	socketServer, err := socketio.NewServer(service, renderer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	// Setup HTTP server
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", socketServer)

	routerOpts = append(routerOpts, rest.WithClientCounter(socketServer))
	api := rest.NewRouter(service, renderer, routerOpts...)
	mux.Handle("/api/", api)
	mux.Handle("/health", api)

	// Serve static files if directory specified (SPA mode)
	if cfg.StaticDir != "" {
		log.Info().Str("dir", cfg.StaticDir).Msg("Serving static files")
		mux.Handle("/", spaHandler(cfg.StaticDir))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", ":"+cfg.Port).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}

// registerProviders adds every provider the configuration allows.
func registerProviders(service *collage.Service, cfg *config.Config, userAgent string) {
	if cfg.LastFM.APIKey != "" {
		client := lastfm.NewClient(cfg.LastFM.APIKey,
			lastfm.WithBaseURL(cfg.LastFM.BaseURL),
			lastfm.WithUserAgent(userAgent),
			lastfm.WithPeriod(cfg.LastFM.Period),
			lastfm.WithLimit(cfg.LastFM.Limit),
		)
		service.Register(lastfm.ProviderName, func(string) (collage.Provider, error) {
			return client, nil
		})
	} else {
		log.Warn().Msg("No Last.fm API key configured, lastfm provider disabled")
	}

	spotifyOpts := []spotify.Option{spotify.WithTimeRange(cfg.Spotify.TimeRange)}
	if cfg.Spotify.BaseURL != "" {
		spotifyOpts = append(spotifyOpts, spotify.WithBaseURL(cfg.Spotify.BaseURL))
	}
	service.Register(spotify.ProviderName, func(token string) (collage.Provider, error) {
		p, err := spotify.New(token, spotifyOpts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// spaHandler serves files from dir, falling back to index.html for unknown paths.
func spaHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if r.URL.Path == "/" {
			path = index
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			serveIndex(w, r, index)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// serveIndex writes the SPA entry point regardless of the request path.
func serveIndex(w http.ResponseWriter, r *http.Request, index string) {
	f, err := os.Open(index)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "failed to stat index", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, "index.html", info.ModTime(), f)
}
