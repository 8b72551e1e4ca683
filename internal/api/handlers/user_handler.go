package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/isdelr/taskdeck/internal/auth"
	"github.com/isdelr/taskdeck/internal/database"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for local user accounts.
type UserHandler struct {
	store auth.UserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store auth.UserStore) *UserHandler {
	return &UserHandler{store: store}
}

// AuthPayload defines the structure for register and login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.store.RegisterUser(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeStoreError(w, err, "Failed to register user")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// Login handles checking a user's credentials.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.store.LoginUser(r.Context(), payload.Email, payload.Password)
	if database.KindOf(err) == database.KindConnection {
		writeStoreError(w, err, "Failed to check credentials")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed authentication attempt")
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
