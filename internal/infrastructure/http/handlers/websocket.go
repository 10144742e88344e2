package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/application/store"
	"github.com/alchemorsel/recipe-studio/internal/domain/chat"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/security"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait       = 10 * time.Second
	maxSocketFrame  = 64 << 10
	feedBufferDepth = 32
)

var errFeedBackpressure = errors.New("change feed client is not keeping up")

// SocketFrame is one server to client websocket message.
type SocketFrame struct {
	Type    string                  `json:"type"`
	Session *inbound.ChatSession    `json:"session,omitempty"`
	Message *chat.Message           `json:"message,omitempty"`
	Change  json.RawMessage         `json:"change,omitempty"`
	Error   *apperrors.ErrorDetails `json:"error,omitempty"`
}

// SocketQuestion is one client to server chat message.
type SocketQuestion struct {
	Question string `json:"question"`
}

// ChatSocket handles GET /ws/recipes/{id}/chat. The socket owns one chat
// session, which is closed with the connection.
func (h *Handlers) ChatSocket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	session, err := h.chat.Open(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer func() {
		if err := h.chat.Close(context.WithoutCancel(ctx), session.ID); err != nil {
			h.logger.Debug("Chat session already gone", zap.String("session_id", session.ID.String()))
		}
	}()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxSocketFrame)

	if err := h.writeFrame(conn, SocketFrame{Type: "session", Session: session}); err != nil {
		return
	}

	for {
		var in SocketQuestion
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Chat socket closed unexpectedly", zap.Error(err))
			}
			return
		}

		frame := SocketFrame{Type: "answer"}
		reply, err := h.chat.Ask(ctx, session.ID, in.Question)
		if err != nil {
			frame = h.errorFrame(r, err)
		} else {
			frame.Message = reply
		}
		if err := h.writeFrame(conn, frame); err != nil {
			return
		}
	}
}

// ChangeFeed handles GET /ws/recipes/updates, streaming the caller's
// recipe changes until the client disconnects.
func (h *Handlers) ChangeFeed(w http.ResponseWriter, r *http.Request) {
	owner, ok := security.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperrors.NewAuthFailure())
		return
	}

	changes := make(chan json.RawMessage, feedBufferDepth)
	unsubscribe, err := h.bus.Subscribe(r.Context(), store.Topic(owner), func(_ context.Context, msg outbound.Message) error {
		select {
		case changes <- json.RawMessage(msg.Payload):
			return nil
		default:
			return errFeedBackpressure
		}
	})
	if err != nil {
		h.writeError(w, r, apperrors.NewServiceUnavailableError("Change feed unavailable").WithCause(err))
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxSocketFrame)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.writeFrame(conn, SocketFrame{Type: "subscribed"}); err != nil {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case payload := <-changes:
			if err := h.writeFrame(conn, SocketFrame{Type: "change", Change: payload}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handlers) writeFrame(conn *websocket.Conn, frame SocketFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		h.logger.Debug("WebSocket write failed", zap.Error(err))
		return err
	}
	return nil
}

func (h *Handlers) errorFrame(r *http.Request, err error) SocketFrame {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewInternalError("")
	}
	details := apperrors.ToErrorResponse(appErr, chimiddleware.GetReqID(r.Context())).Error
	return SocketFrame{Type: "error", Error: &details}
}
