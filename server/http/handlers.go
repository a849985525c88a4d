package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/eunoia-app/eunoia/internal/service/chat"
	"github.com/eunoia-app/eunoia/logger"
	"github.com/eunoia-app/eunoia/store"
	"github.com/gorilla/mux"
)

type conversationSummary struct {
	ConversationId string `json:"conversation_id"`
	Title          string `json:"title"`
}

type transcriptTurn struct {
	UserMessage string `json:"user_message"`
	BotResponse string `json:"bot_response"`
	Timestamp   string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChatStream serves one chat turn as Server-Sent Events: content
// fragments, then a terminal end or error event.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported by response writer")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeSSEError(w, flusher, "Invalid request body")
		return
	}

	ctx := r.Context()

	events, err := s.chat.Stream(ctx, req)
	if err != nil {
		s.writeSSEError(w, flusher, rejectionMessage(err))
		return
	}

	for event := range events {
		select {
		case <-ctx.Done():
			s.logger.Info("client disconnected mid-stream", logger.Fields{"user_id": req.UserId})
			return
		default:
		}

		switch {
		case event.Err != nil:
			s.writeSSEError(w, flusher, terminalMessage(event.Err))
			return
		case event.Done:
			s.writeSSE(w, flusher, map[string]any{"end": true, "conversation_id": event.ConversationId})
			return
		default:
			s.writeSSE(w, flusher, map[string]any{"content": event.Content})
		}
	}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userId := r.URL.Query().Get("user_id")
	if len(userId) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	summaries, err := s.chat.ListConversations(r.Context(), userId, 0)
	if err != nil {
		s.logger.Error("failed to list conversations", logger.Fields{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	payload := make([]conversationSummary, 0, len(summaries))
	for _, summary := range summaries {
		payload = append(payload, conversationSummary{
			ConversationId: summary.ConversationId,
			Title:          summary.Title,
		})
	}

	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	conversationId := mux.Vars(r)["id"]

	turns, err := s.chat.Transcript(r.Context(), conversationId)
	if err != nil {
		s.logger.Error("failed to load transcript", logger.Fields{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	payload := make([]transcriptTurn, 0, len(turns))
	for _, turn := range turns {
		payload = append(payload, transcriptTurn{
			UserMessage: turn.UserMessage,
			BotResponse: turn.BotResponse,
			Timestamp:   turn.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}

	writeJSON(w, http.StatusOK, payload)
}

// rejectionMessage maps synchronous validation failures onto user-visible
// text.
func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrInvalidRequest):
		return "User not found or request is incomplete"
	case errors.Is(err, store.ErrConversationOwned):
		return "Conversation belongs to another user"
	default:
		return "Internal error"
	}
}

// terminalMessage maps mid-stream failures onto user-visible text. A
// generation failure is substituted with the canned empathetic fallback.
func terminalMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrGenerationFailed):
		return chat.FallbackMessage
	default:
		return "Internal error"
	}
}

func (s *Server) writeSSE(w http.ResponseWriter, flusher http.Flusher, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal sse event", logger.Fields{"error": err.Error()})
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (s *Server) writeSSEError(w http.ResponseWriter, flusher http.Flusher, message string) {
	s.writeSSE(w, flusher, map[string]any{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
