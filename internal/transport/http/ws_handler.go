package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/formsync/internal/auth"
	"github.com/vovakirdan/formsync/internal/config"
	"github.com/vovakirdan/formsync/internal/core"
	"github.com/vovakirdan/formsync/internal/proto"
	"github.com/vovakirdan/formsync/internal/store"
	"github.com/vovakirdan/formsync/internal/utils"
)

const wsPrefix = "/ws/"

var (
	errLagging  = errors.New("client could not keep up")
	errShutdown = errors.New("server shutting down")
)

// WSHandler upgrades channel requests and bridges them to core.Client.
// The resource comes from the path and the credential from access_token;
// both are checked before the upgrade so clients see 401 and 404 on the handshake.
//
// It is mounted on the plain mux, outside gin: gin's writer refuses the hijack
// once the 101 status is written.
type WSHandler struct {
	hub   *core.Hub
	auth  *auth.Service
	store store.Store
	cfg   *config.Config
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, auth: authService, store: st, cfg: cfg, log: logger}
}

// ServeHTTP serves GET /ws/{resource path}.
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	if r.Method != stdhttp.MethodGet {
		writeJSONError(w, stdhttp.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resource, err := proto.ParseResourcePath(strings.TrimPrefix(r.URL.EscapedPath(), wsPrefix))
	if err != nil {
		writeJSONError(w, stdhttp.StatusNotFound, err.Error())
		return
	}

	identity, err := h.auth.Authenticate(ctx, r.URL.Query().Get("access_token"))
	if err != nil {
		h.log.Debug().Err(err).Str("resource", resource.Path()).Msg("channel rejected")
		writeJSONError(w, stdhttp.StatusUnauthorized, "invalid token")
		return
	}

	if resource.Kind != proto.ResourceForms {
		if _, err := h.store.GetForm(ctx, resource.ID); err != nil {
			writeJSONError(w, statusFor(err), core.AsCoreError(err).Message)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewID(), memberFromIdentity(identity), resource)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	log := h.log.With().Str("client_id", client.ID).Str("resource", resource.Path()).Logger()
	log.Info().Int64("user_id", identity.User.ID).Msg("channel open")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := newRateLimiter(h.cfg.CommandsPerMinute)
	limiter.startReset(ctx.Done())

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter, &log)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &log)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	// Neither is a normal closure, so the client reconnects and bootstraps again.
	switch {
	case errors.Is(err, errLagging):
		conn.Close(websocket.StatusTryAgainLater, err.Error())
		return
	case errors.Is(err, errShutdown):
		conn.Close(websocket.StatusGoingAway, err.Error())
		return
	}
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
			log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	log.Info().Int("code", int(status)).Msg("channel closed")
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, limiter *rateLimiter, log *zerolog.Logger) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Command
		if err := json.Unmarshal(data, &inbound); err != nil {
			log.Debug().Err(err).Msg("malformed command")
			if err := writeError(ctx, conn, client, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed command"}); err != nil {
				return err
			}
			continue
		}

		if !limiter.allow() {
			if err := writeError(ctx, conn, client, &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many commands"}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := commandFromFrame(client.Resource, inbound)
		if protoErr != nil {
			if err := writeError(ctx, conn, client, protoErr); err != nil {
				return err
			}
			continue
		}

		// The authoritative result reaches every participant, this one
		// included, through the room broadcast.
		if _, err := h.hub.Do(ctx, *cmd); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			log.Debug().Err(err).Msg("command rejected")
			if err := writeError(ctx, conn, client, errorToProto(err)); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, log *zerolog.Logger) error {
	field := client.Resource.Kind.Field()
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				switch client.Dropped() {
				case core.DropLagging:
					return errLagging
				case core.DropShutdown:
					return errShutdown
				}
				return nil
			}
			frame, err := frameFromEvent(field, event)
			if err != nil {
				log.Error().Err(err).Msg("cannot render event")
				continue
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				log.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, client *core.Client, protoErr *proto.Error) error {
	frame, err := proto.NewFrame(proto.KindError, client.Resource.Kind.Field(), protoErr)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, frame)
}

func writeJSONError(w stdhttp.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
