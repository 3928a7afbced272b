package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"cancer-detect/internal/common"
	"cancer-detect/internal/ml"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type wsRequest struct {
	Features  json.RawMessage `json:"features"`
	RequestID string          `json:"request_id,omitempty"`
}

// wsResponse carries either a prediction or an error.
type wsResponse struct {
	RequestID string `json:"request_id,omitempty"`
	*ml.Prediction
	Error string `json:"error,omitempty"`
}

// handleWebSocket answers every text frame with one prediction. The
// connection stays open across bad frames; only read errors end it.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(common.DefaultWSReadLimit)

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
	}()

	log.Debug().Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("WebSocket read failed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		resp := s.predictFrame(r.Context(), data)
		conn.SetWriteDeadline(time.Now().Add(common.DefaultWSWriteWaitSecs * time.Second))
		if err := conn.WriteJSON(resp); err != nil {
			log.Error().Err(err).Msg("Failed to send message to WebSocket client")
			return
		}
	}
}

func (s *Server) predictFrame(ctx context.Context, data []byte) wsResponse {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return wsResponse{Error: "Invalid JSON message"}
	}
	if isNull(req.Features) {
		return wsResponse{RequestID: req.RequestID, Error: "No features provided"}
	}
	features, ok := decodeFeatures(req.Features)
	if !ok {
		return wsResponse{RequestID: req.RequestID, Error: msgNotNumeric}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	pred, err := s.predictor.Predict(ctx, features)
	if err != nil {
		_, msg := s.predictError(err, len(features))
		return wsResponse{RequestID: req.RequestID, Error: msg}
	}
	return wsResponse{RequestID: req.RequestID, Prediction: &pred}
}
