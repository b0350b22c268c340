package httpapi

import (
	"net/http"
)

type registerRequest struct {
	Email string `json:"email"`
}

type registerResponse struct {
	Message    string `json:"message"`
	DebugToken string `json:"debug_token,omitempty"`
}

type loginRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

const (
	msgTokenSent     = "login token sent by email"
	msgTokenFallback = "login token generated, check the server logs"
)

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var body registerRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	if body.Email == "" {
		writeDetail(w, http.StatusBadRequest, "email required")
		return
	}
	res, err := r.services.Auth.Register(req.Context(), body.Email)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	if res.Delivered {
		writeJSON(w, http.StatusOK, registerResponse{Message: msgTokenSent})
		return
	}
	resp := registerResponse{Message: msgTokenFallback}
	if r.opts.ExposeDebugToken {
		resp.DebugToken = res.Token
	}
	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	if body.Email == "" || body.Token == "" {
		writeDetail(w, http.StatusBadRequest, "email and token required")
		return
	}
	resp, err := r.services.Auth.Login(req.Context(), body.Email, body.Token)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
