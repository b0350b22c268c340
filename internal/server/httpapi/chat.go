package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) {
	var body chatRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	resp, err := r.services.Chat.Chat(req.Context(), getEmail(req.Context()), body.ConversationID, body.Message)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) handleListConversations(w http.ResponseWriter, req *http.Request) {
	list, err := r.services.Chat.List(req.Context(), getEmail(req.Context()))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (r *Router) handleGetConversation(w http.ResponseWriter, req *http.Request) {
	conv, err := r.services.Chat.Get(req.Context(), getEmail(req.Context()), chi.URLParam(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (r *Router) handleDeleteConversation(w http.ResponseWriter, req *http.Request) {
	if err := r.services.Chat.Delete(req.Context(), getEmail(req.Context()), chi.URLParam(req, "id")); err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "conversation deleted"})
}
