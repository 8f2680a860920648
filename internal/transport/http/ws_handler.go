package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/livepoll-server/internal/auth"
	"github.com/vovakirdan/livepoll-server/internal/config"
	"github.com/vovakirdan/livepoll-server/internal/core"
	"github.com/vovakirdan/livepoll-server/internal/proto"
	"github.com/vovakirdan/livepoll-server/internal/utils"
)

var (
	errKicked    = errors.New("kicked")
	errHubClosed = errors.New("server shutting down")
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub             *core.Hub
	auth            *auth.Service
	log             *zerolog.Logger
	maxMessageBytes int64
	rateLimit       int
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		hub:             hub,
		auth:            authService,
		log:             logger,
		maxMessageBytes: cfg.MaxMessageBytes,
		rateLimit:       cfg.RateLimitPerMin,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	role, err := h.roleFor(r)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws token rejected")
		stdhttp.Error(w, "invalid token", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if !protocolSupported(r) {
		_ = wsjson.Write(ctx, conn, proto.Outbound{
			Type: proto.OutboundTypeError,
			Error: &proto.Error{
				Code: "unsupported_version",
				Msg:  fmt.Sprintf("protocol version %d is required", proto.ProtocolVersion),
			},
		})
		conn.Close(websocket.StatusPolicyViolation, "unsupported protocol version")
		return
	}

	client := core.NewClient(utils.NewID(), "", role)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)
	h.log.Info().Str("client_id", client.ID).Str("role", string(role)).Msg("ws connected")

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	status, reason := closeStatus(err)
	if status == websocket.StatusInternalError {
		h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
	} else {
		h.log.Info().Str("client_id", client.ID).Str("reason", reason).Msg("ws disconnected")
	}

	// close before cancelling: a cancelled read sends its own close frame
	conn.Close(status, reason)
	cancel()
	<-errCh
}

// roleFor returns teacher for a valid token, student when no token is given.
func (h *WSHandler) roleFor(r *stdhttp.Request) (core.Role, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return core.RoleStudent, nil
	}
	if h.auth == nil {
		return "", auth.ErrLoginDisabled
	}
	if _, err := h.auth.ValidateTeacher(token); err != nil {
		return "", err
	}
	return core.RoleTeacher, nil
}

func protocolSupported(r *stdhttp.Request) bool {
	raw := r.URL.Query().Get("protocol")
	if raw == "" {
		return true
	}
	v, err := strconv.Atoi(raw)
	return err == nil && v == proto.ProtocolVersion
}

func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case errors.Is(err, errKicked):
		return websocket.StatusPolicyViolation, "kicked"
	case errors.Is(err, errHubClosed):
		return websocket.StatusGoingAway, "server shutting down"
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, "closing"
	case websocket.StatusMessageTooBig:
		return websocket.StatusMessageTooBig, "message too big"
	}
	return websocket.StatusInternalError, "internal error"
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.rateLimit)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			h.log.Debug().Str("client_id", client.ID).Msg("ws rate limit exceeded")
			if err := h.writeError(ctx, conn, &proto.Error{Code: "rate_limited", Msg: "too many messages"}); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			if err := h.writeError(ctx, conn, badRequest("invalid json")); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			if err := h.writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			// the write loop reports why the hub dropped us
			<-ctx.Done()
			return ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return droppedReason(client)
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// droppedReason tells a kick apart from a hub shutdown once Events is closed.
func droppedReason(client *core.Client) error {
	if client.Kicked() {
		return errKicked
	}
	return errHubClosed
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, e *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: e})
}
