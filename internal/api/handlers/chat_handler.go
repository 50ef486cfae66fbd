package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lectern-ai/lectern/internal/core/chat"
	"github.com/lectern-ai/lectern/internal/models"
)

// ChatService is the slice of the query orchestrator the handler needs.
type ChatService interface {
	Ask(ctx context.Context, conversationID, question, titleFilter, modeOverride string) (*chat.Answer, error)
	History(ctx context.Context, conversationID string) ([]models.ChatTurn, error)
	ClearHistory(ctx context.Context, conversationID string) error
	SetMode(ctx context.Context, conversationID, mode string) error
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Clients that never send a conversation_id all share this one, which keeps
// the single-conversation API shape working unchanged.
const defaultConversation = "default"

func conversationID(id string) string {
	if id == "" {
		return defaultConversation
	}
	return id
}

type queryRequest struct {
	Query          string `json:"query"`
	FileTitle      string `json:"file_title"`
	Mode           string `json:"mode"`
	ConversationID string `json:"conversation_id"`
}

type queryResponse struct {
	Answer string                  `json:"answer"`
	Chunks []models.RetrievedChunk `json:"chunks"`
}

// QueryDocument answers one question over the ingested corpus, scoped to a
// single document when file_title is set. mode switches the persona for this
// call only.
func (h *ChatHandler) QueryDocument(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		badRequest(w, "query must not be empty")
		return
	}

	ans, err := h.svc.Ask(r.Context(), conversationID(req.ConversationID), req.Query, req.FileTitle, req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}

	chunks := ans.Sources
	if chunks == nil {
		chunks = []models.RetrievedChunk{}
	}
	writeJSON(w, http.StatusOK, queryResponse{Answer: ans.Answer, Chunks: chunks})
}

func (h *ChatHandler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := h.svc.History(r.Context(), conversationID(r.URL.Query().Get("conversation_id")))
	if err != nil {
		writeError(w, err)
		return
	}
	if turns == nil {
		turns = []models.ChatTurn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (h *ChatHandler) ClearChatHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearHistory(r.Context(), conversationID(r.URL.Query().Get("conversation_id"))); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat history cleared successfully"})
}

type setModeRequest struct {
	Mode           string `json:"mode"`
	ConversationID string `json:"conversation_id"`
}

// SetChatMode switches the conversation's persona for every later query. The
// conversation history is cleared as part of the switch.
func (h *ChatHandler) SetChatMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := h.svc.SetMode(r.Context(), conversationID(req.ConversationID), req.Mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat mode updated", "mode": req.Mode})
}
