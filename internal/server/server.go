package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mehmoodulhaq570/WifiX/internal/access"
	"github.com/mehmoodulhaq570/WifiX/internal/broker"
	"github.com/mehmoodulhaq570/WifiX/internal/discovery"
	"github.com/mehmoodulhaq570/WifiX/internal/hub"
	"github.com/mehmoodulhaq570/WifiX/internal/netutil"
	"github.com/mehmoodulhaq570/WifiX/internal/rooms"
	"github.com/mehmoodulhaq570/WifiX/internal/server/middleware"
	"github.com/mehmoodulhaq570/WifiX/internal/storage"
	"github.com/mehmoodulhaq570/WifiX/internal/sweeper"
	"github.com/mehmoodulhaq570/WifiX/pkg/config"
	"github.com/mehmoodulhaq570/WifiX/pkg/registry"
)

// sessionState is the server-side per-session flag set: currently only the
// global access-PIN gate.
type sessionState struct {
	Authed bool
}

type App struct {
	logger *slog.Logger
	config *config.Config

	store    *storage.Store
	access   *access.Registry
	rooms    *rooms.Directory
	hub      *hub.Hub
	broker   *broker.Broker
	sessions *registry.Expiring[string, sessionState]
	sweeper  *sweeper.Sweeper
	mdns     *discovery.Announcer

	http  *http.Server
	wg    sync.WaitGroup
	lanIP string
	port  int

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) (*App, error) {
	store, err := storage.NewStore(cfg.Uploads.Dir, logger)
	if err != nil {
		return nil, err
	}

	connHub := hub.New(logger)
	negBroker := broker.New(connHub, logger)
	connHub.BindBroker(negBroker)

	port, err := portOf(cfg.Server.Address)
	if err != nil {
		return nil, err
	}

	app := &App{
		logger:   logger,
		config:   cfg,
		store:    store,
		access:   access.NewRegistry(logger),
		rooms:    rooms.NewDirectory(cfg.Rooms.CodeLength, cfg.Rooms.TTL(), logger),
		hub:      connHub,
		broker:   negBroker,
		sessions: registry.NewExpiring[string, sessionState](cfg.Session.TTL()),
		mdns:     discovery.NewAnnouncer(logger),
		lanIP:    netutil.DetectLANIP(),
		port:     port,
		ctx:      rootCtx,
	}
	app.sweeper = sweeper.New(app.rooms, app.sessions, store, app.access, connHub, cfg.Uploads.TTL(), cfg.Cleanup.Interval(), logger)

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: app.routes(),
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}
	return app, nil
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestMetadataMiddleware())
	r.Use(middleware.NewSessionMiddleware(a.logger, a.config.Session.Secret, a.config.Session.TTL()))
	r.Use(middleware.NewRequestLogger(a.logger))

	limited := middleware.NewRateLimiter(
		a.logger,
		a.config.Server.RateLimit.RequestsPerSecond,
		a.config.Server.RateLimit.Burst,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/info", a.handleInfo)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/status", a.handleAuthStatus)
			r.With(limited).Post("/", a.handleAuth)
			r.Post("/logout", a.handleAuthLogout)
		})

		r.Get("/files", a.handleListFiles)
		r.With(limited).Post("/upload", a.handleUpload)
		r.With(limited).Delete("/files/{filename}", a.handleDeleteFile)

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", a.handleListRooms)
			r.Post("/", a.handleCreateRoom)
			r.Get("/{code}", a.handleResolveRoom)
			r.Delete("/{code}", a.handleRevokeRoom)
		})
	})

	r.Get("/download/{filename}", a.handleDownload)
	r.Get("/qr", a.handleQR)
	r.Get("/ws", a.handleWS)

	return r
}

func (a *App) Run() error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sweeper.Run(a.ctx)
	}()

	if a.config.Discovery.Zeroconf {
		if err := a.mdns.Start(a.port, a.config.Discovery.ServiceName); err != nil {
			a.logger.Warn("zeroconf registration failed", slog.Any("error", err))
		}
	}

	go func() {
		a.logger.Info("Server starting",
			slog.String("addr", a.http.Addr),
			slog.String("lanURL", fmt.Sprintf("http://%s:%d", a.lanIP, a.port)),
		)
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

// Shutdown performs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.logger.Info("Closing all active connections...")
	a.hub.CloseAll(errors.New("graceful shutdown"))
	a.mdns.Stop()

	// wait for the sweeper and all connection goroutines to finish cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}

// LANURL is the address peers on the same network should use.
func (a *App) LANURL() string {
	return fmt.Sprintf("http://%s:%d", a.lanIP, a.port)
}

func portOf(address string) (int, error) {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return 0, fmt.Errorf("invalid server address %q: %w", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid server port %q: %w", portStr, err)
	}
	return port, nil
}
