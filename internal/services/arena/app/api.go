package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/louisbranch/gambit.space/internal/services/arena/auth"
	"github.com/louisbranch/gambit.space/internal/services/arena/storage"
)

// allowedLevels is the fixed set of self-reported skill levels.
var allowedLevels = map[string]bool{
	"beginner":     true,
	"intermediate": true,
	"advanced":     true,
}

// apiHandler serves the account endpoints: registration, login,
// profile, skill level, and logout.
type apiHandler struct {
	users  storage.UserStore
	tokens *auth.TokenManager
	newID  func() (string, error)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type levelRequest struct {
	Level string `json:"level"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
	Rating   int    `json:"rating"`
	Level    string `json:"level"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

func (h *apiHandler) register(mux *http.ServeMux) {
	mux.HandleFunc("/api/register", h.handleRegister)
	mux.HandleFunc("/api/login", h.handleLogin)
	mux.HandleFunc("/api/profile", h.handleProfile)
	mux.HandleFunc("/api/user/level", h.handleLevel)
	mux.HandleFunc("/api/logout", h.handleLogout)
}

func (h *apiHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeAPIError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("arena: hash password: %v", err)
		writeAPIError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	userID, err := h.newID()
	if err != nil {
		log.Printf("arena: generate user id: %v", err)
		writeAPIError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	user := storage.User{
		ID:           userID,
		Username:     username,
		PasswordHash: hash,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			writeAPIError(w, http.StatusConflict, "username already taken")
			return
		}
		log.Printf("arena: create user: %v", err)
		writeAPIError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	stored, err := h.users.UserByID(r.Context(), user.ID)
	if err != nil {
		log.Printf("arena: fetch created user: %v", err)
		writeAPIError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	h.writeAuthResponse(w, http.StatusCreated, stored)
}

func (h *apiHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.UserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeAPIError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("arena: fetch user for login: %v", err)
		writeAPIError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeAPIError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.writeAuthResponse(w, http.StatusOK, user)
}

func (h *apiHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	user, err := h.users.UserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeAPIError(w, http.StatusNotFound, "account not found")
			return
		}
		log.Printf("arena: fetch profile: %v", err)
		writeAPIError(w, http.StatusInternalServerError, "profile lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *apiHandler) handleLevel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req levelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	level := strings.ToLower(strings.TrimSpace(req.Level))
	if !allowedLevels[level] {
		writeAPIError(w, http.StatusBadRequest, "invalid level")
		return
	}

	if err := h.users.SetLevel(r.Context(), claims.UserID, level); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeAPIError(w, http.StatusNotFound, "account not found")
			return
		}
		log.Printf("arena: set level: %v", err)
		writeAPIError(w, http.StatusInternalServerError, "level update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogout exists for client symmetry. Tokens are stateless, so
// there is nothing to revoke server-side.
func (h *apiHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) authenticate(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	token := accessTokenFromRequest(r)
	if token == "" {
		writeAPIError(w, http.StatusUnauthorized, "authentication required")
		return auth.Claims{}, false
	}
	claims, err := h.tokens.Verify(token)
	if err != nil {
		writeAPIError(w, http.StatusUnauthorized, "authentication required")
		return auth.Claims{}, false
	}
	return claims, true
}

func (h *apiHandler) writeAuthResponse(w http.ResponseWriter, status int, user storage.User) {
	token, err := h.tokens.Mint(user.ID, user.Username)
	if err != nil {
		log.Printf("arena: mint token: %v", err)
		writeAPIError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: toUserResponse(user)})
}

func toUserResponse(user storage.User) userResponse {
	return userResponse{
		ID:       user.ID,
		Username: user.Username,
		Wins:     user.Wins,
		Losses:   user.Losses,
		Draws:    user.Draws,
		Rating:   user.Rating,
		Level:    user.Level,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("arena: write json response: %v", err)
	}
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiErrorResponse{Error: message})
}
