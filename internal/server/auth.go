package server

import (
	"net/http"

	"github.com/and161185/servicecenter/internal/auth"
	"github.com/and161185/servicecenter/internal/middleware"
	"github.com/and161185/servicecenter/internal/model"
)

type registerResponse struct {
	User    model.UserProfile `json:"user"`
	Session auth.Session      `json:"session"`
}

func (srv *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "bad request")
		return
	}

	user, session, err := srv.identity.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}

	w.Header().Set("Authorization", "Bearer "+session.Token)
	writeJSON(w, http.StatusCreated, registerResponse{User: user, Session: session})
}

func (srv *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		badRequest(w, "bad request")
		return
	}
	if creds.Email == "" || creds.Password == "" {
		badRequest(w, "email and password required")
		return
	}

	session, err := srv.identity.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}

	w.Header().Set("Authorization", "Bearer "+session.Token)
	writeJSON(w, http.StatusOK, session)
}

func (srv *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := srv.identity.Logout(r.Context(), token); err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (srv *Server) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var patch model.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		badRequest(w, "bad request")
		return
	}

	profile, err := srv.identity.UpdateProfile(r.Context(), user.ID, patch)
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
