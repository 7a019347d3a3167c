package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"slices"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vovakirdan/pianoroom/internal/config"
	"github.com/vovakirdan/pianoroom/internal/core"
	"github.com/vovakirdan/pianoroom/internal/proto"
	"github.com/vovakirdan/pianoroom/internal/utils"
)

// maxBatch bounds how many queued events are coalesced into one frame.
const maxBatch = 64

const tracerName = "github.com/vovakirdan/pianoroom/internal/transport/http"

// WSHandler upgrades HTTP connections and bridges them to the router.
type WSHandler struct {
	router *core.Router
	cfg    *config.Config
	log    *zerolog.Logger
	tracer trace.Tracer
}

// NewWSHandler builds a new WebSocket handler. Spans go to the global tracer provider.
func NewWSHandler(router *core.Router, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{router: router, cfg: cfg, log: logger, tracer: otel.Tracer(tracerName)}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	opts := &websocket.AcceptOptions{}
	if len(h.cfg.AllowedOrigins) == 0 || slices.Contains(h.cfg.AllowedOrigins, "*") {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.cfg.AllowedOrigins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewConnID(), h.cfg.SendBuffer)
	if _, err := h.router.Connect(client); err != nil {
		conn.Close(websocket.StatusTryAgainLater, "server shutting down")
		return
	}
	defer h.router.Disconnect(client)
	h.log.Debug().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("ws connected")

	ctx, span := h.tracer.Start(ctx, "ws.session", trace.WithAttributes(attribute.String("client.id", client.ID)))
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.cfg.MaxFramesPerSecond)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if !limiter.allow() {
			h.log.Debug().Str("client_id", client.ID).Msg("rate limit exceeded, dropping frame")
			continue
		}

		envs, err := proto.DecodeFrame(data)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("malformed frame")
			continue
		}
		for _, env := range envs {
			cmd, err := envelopeToCommand(env)
			if err != nil {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("dropping envelope")
				continue
			}
			if err := h.handle(ctx, client, cmd); err != nil {
				if errors.Is(err, core.ErrClosed) {
					return err
				}
				h.log.Debug().Err(err).
					Str("client_id", client.ID).
					Str("command", cmd.Kind.String()).
					Str("class", core.DropClass(err)).
					Msg("command dropped")
			}
		}
	}
}

func (h *WSHandler) handle(ctx context.Context, client *core.Client, cmd *core.Command) error {
	_, span := h.tracer.Start(ctx, "router.handle", trace.WithAttributes(attribute.String("command", cmd.Kind.String())))
	defer span.End()

	err := h.router.Handle(client, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, core.DropClass(err))
	}
	return err
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			batch := appendOutbound(nil, event)
		drain:
			for len(batch) < maxBatch {
				select {
				case next := <-client.Events:
					batch = appendOutbound(batch, next)
				default:
					break drain
				}
			}
			if len(batch) == 0 {
				continue
			}

			data, err := proto.EncodeFrame(batch...)
			if err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("encode ws frame")
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("write ws frame")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func appendOutbound(batch []any, ev *core.Event) []any {
	if ev == nil {
		return batch
	}
	if out := outboundFromEvent(ev); out != nil {
		batch = append(batch, out)
	}
	return batch
}
