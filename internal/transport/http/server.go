package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pianoroom/internal/config"
	"github.com/vovakirdan/pianoroom/internal/core"
)

// NewServer builds the HTTP server: websocket endpoint, health check and room API.
func NewServer(router *core.Router, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(router, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler builds the routed handler wrapped in CORS.
// The websocket endpoint sits on the mux next to gin since the upgrade hijacks
// the connection after the handshake has been written.
func NewHandler(router *core.Router, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	if cfg.LogLevel != "debug" && cfg.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(logger))

	engine.GET("/health", healthHandler)

	rooms := NewRoomHandlers(router.Rooms(), logger)
	api := engine.Group("/api")
	{
		api.GET("/rooms", rooms.ListRooms)
		api.GET("/rooms/:id", rooms.GetRoom)
	}

	c := cors.New(cors.Options{
		AllowedMethods: []string{stdhttp.MethodGet, stdhttp.MethodHead, stdhttp.MethodOptions},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(router, cfg, logger))
	mux.Handle("/", engine)
	return c.Handler(mux)
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
