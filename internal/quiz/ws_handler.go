package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/shakai-quiz/internal/server"
	httperrors "github.com/gokatarajesh/shakai-quiz/pkg/http/errors"
	ws "github.com/gokatarajesh/shakai-quiz/pkg/http/ws"
)

// WSHandler carries session actions over a WebSocket. Each action is
// answered with a view message, preceded by an error message if it failed.
type WSHandler struct {
	service *Service
	http    *HTTPHandlers
	hub     *ws.Hub
	logger  zerolog.Logger
}

// NewWSHandler creates a session WebSocket handler. Session ids come from the
// same cookie the HTTP handlers use.
func NewWSHandler(service *Service, httpHandlers *HTTPHandlers, hub *ws.Hub, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		http:    httpHandlers,
		hub:     hub,
		logger:  logger.With().Str("component", "quiz_ws").Logger(),
	}
}

// HandleWebSocket handles GET /ws/session
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.http.sessionID(w, r)
	if err != nil {
		httperrors.RespondInternalError(w, "Could not establish session")
		return
	}

	// the upgrade response only carries headers passed explicitly
	var header http.Header
	if cookies := w.Header().Values("Set-Cookie"); len(cookies) > 0 {
		header = http.Header{"Set-Cookie": cookies}
	}

	conn, err := server.WSUpgrader.Upgrade(w, r, header)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, sessionID)
}

// HandleConnection serves one upgraded connection until it closes.
func (h *WSHandler) HandleConnection(conn *websocket.Conn, sessionID string) {
	logger := h.logger.With().Str("session_id", sessionID).Logger()
	wsConn := ws.NewConnection(conn, logger)
	h.hub.Register(sessionID, wsConn)

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), sessionID, msg)
	})

	h.hub.Unregister(sessionID, wsConn)
}

func (h *WSHandler) handleMessage(ctx context.Context, sessionID string, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeSelectDataset:
		var req ws.SelectDatasetPayload
		if err := decodePayload(msg.Payload, &req); err != nil {
			return h.sendError(sessionID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid select_dataset payload")
		}
		v, err := h.service.SelectDataset(ctx, sessionID, req.Dataset)
		return h.reply(sessionID, msg.RequestID, v, err)

	case ws.TypeSetName:
		var req ws.SetNamePayload
		if err := decodePayload(msg.Payload, &req); err != nil {
			return h.sendError(sessionID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid set_name payload")
		}
		v, err := h.service.SetName(ctx, sessionID, req.Name)
		return h.reply(sessionID, msg.RequestID, v, err)

	case ws.TypeStart:
		var req ws.StartPayload
		if err := decodePayload(msg.Payload, &req); err != nil {
			return h.sendError(sessionID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid start payload")
		}
		v, err := h.service.Start(ctx, sessionID, StartRequest{Count: req.Count, Preset: req.Preset})
		return h.reply(sessionID, msg.RequestID, v, err)

	case ws.TypeRender:
		v, err := h.service.Render(ctx, sessionID)
		return h.reply(sessionID, msg.RequestID, v, err)

	case ws.TypeSubmitAnswer:
		var req ws.SubmitAnswerPayload
		if err := decodePayload(msg.Payload, &req); err != nil {
			return h.sendError(sessionID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload")
		}
		v, err := h.service.Answer(ctx, sessionID, req.Choice)
		return h.reply(sessionID, msg.RequestID, v, err)

	case ws.TypeNext:
		v, err := h.service.Next(ctx, sessionID)
		return h.reply(sessionID, msg.RequestID, v, err)

	case ws.TypePlayAgain:
		v, err := h.service.PlayAgain(ctx, sessionID)
		return h.reply(sessionID, msg.RequestID, v, err)

	case ws.TypeFinish:
		var req ws.FinishPayload
		if err := decodePayload(msg.Payload, &req); err != nil {
			return h.sendError(sessionID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid finish payload")
		}
		v, err := h.service.Finish(ctx, sessionID, req.Name)
		return h.reply(sessionID, msg.RequestID, v, err)

	case ws.TypePing:
		out, _ := ws.NewMessage(ws.TypePong, msg.RequestID, nil)
		return h.hub.Send(sessionID, out)

	default:
		return h.sendError(sessionID, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *WSHandler) reply(sessionID, requestID string, v View, err error) error {
	if err != nil {
		_, code := ErrorStatus(err)
		message := err.Error()
		if code == httperrors.ErrCodeInternalError {
			h.logger.Error().Err(err).Str("session_id", sessionID).Msg("session action failed")
			message = "Internal error"
		}
		if sendErr := h.sendError(sessionID, requestID, code, message); sendErr != nil {
			return sendErr
		}
		if v.SessionID == "" {
			return nil
		}
	}

	msg, mErr := ws.NewMessage(ws.TypeView, requestID, v)
	if mErr != nil {
		return fmt.Errorf("marshal view: %w", mErr)
	}
	return h.hub.Send(sessionID, msg)
}

func (h *WSHandler) sendError(sessionID, requestID, code, message string) error {
	msg, _ := ws.NewMessage(ws.TypeError, requestID, ws.ErrorPayload{
		Code:    code,
		Message: message,
	})
	return h.hub.Send(sessionID, msg)
}

func decodePayload(payload json.RawMessage, dst any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	return json.Unmarshal(payload, dst)
}
