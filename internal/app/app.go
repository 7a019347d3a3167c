package app

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pianoroom/internal/config"
	"github.com/vovakirdan/pianoroom/internal/core"
	transporthttp "github.com/vovakirdan/pianoroom/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	router          *core.Router
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) *App {
	rooms := core.NewRoomRegistry(core.RoomDefaults{
		Color:      cfg.Rooms.DefaultColor,
		LobbyColor: cfg.Rooms.LobbyColor,
	})

	var quota core.NoteQuota = core.NopQuota{}
	if cfg.NoteQuota.Enabled {
		quota = core.NewRateQuota(core.QuotaTiers{
			Lobby: quotaParams(cfg.NoteQuota.Lobby),
			Room:  quotaParams(cfg.NoteQuota.Room),
			Owner: quotaParams(cfg.NoteQuota.Owner),
		})
	}

	router := core.NewRouter(rooms, core.NewParticipantRegistry(), logger, core.RouterOptions{
		NameMaxLen:       cfg.Rooms.NameMaxLen,
		ChatMaxLen:       cfg.Rooms.ChatMaxLen,
		EnforceCrownSolo: cfg.Rooms.EnforceCrownSolo,
		Quota:            quota,
		Observers:        []core.Observer{core.LogObserver{Logger: logger}},
	})

	logger.Info().
		Bool("note_quota", cfg.NoteQuota.Enabled).
		Bool("enforce_crown_solo", cfg.Rooms.EnforceCrownSolo).
		Msg("room router initialized")

	return &App{
		server:          transporthttp.NewServer(router, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		router:          router,
		log:             logger,
	}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup drops every room and disconnects every participant.
func (a *App) cleanup() {
	a.router.Close()
	a.log.Info().Msg("router closed")
}

func quotaParams(p config.QuotaParams) core.QuotaParams {
	return core.QuotaParams{Allowance: p.Allowance, Max: p.Max, MaxHistLen: core.DefaultMaxHistLen}
}
