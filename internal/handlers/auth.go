package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/crexpressinc/formsgate/internal/models"
	"github.com/crexpressinc/formsgate/internal/utils"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest exchanges a refresh token for new tokens
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// login handles admin login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	// 1. Find User
	var user models.AdminUser
	email := strings.ToLower(strings.TrimSpace(loginReq.Email))
	if err := r.db.WithContext(req.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 2. Check Password
	if !user.IsActive || !utils.CheckPasswordHash(loginReq.Password, user.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 3. Update Last Login
	now := r.now().UTC()
	user.LastLogin = &now
	if err := r.db.WithContext(req.Context()).Model(&user).Update("last_login", now).Error; err != nil {
		r.log.Warn().Err(err).Str("user_id", user.ID).Msg("⚠️ Failed to record last login")
	}

	r.respondTokens(w, &user)
}

// refresh issues new tokens for a valid refresh token
func (r *Router) refresh(w http.ResponseWriter, req *http.Request) {
	var body RefreshRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	claims, err := utils.ValidateToken(body.RefreshToken, r.cfg.JWTSecret)
	if err != nil || claims["type"] != "refresh" {
		respondError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	id, _ := claims["id"].(string)

	var user models.AdminUser
	if err := r.db.WithContext(req.Context()).Where("id = ?", id).First(&user).Error; err != nil || !user.IsActive {
		respondError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	r.respondTokens(w, &user)
}

func (r *Router) respondTokens(w http.ResponseWriter, user *models.AdminUser) {
	accessToken, refreshToken, err := utils.GenerateTokens(user, r.cfg.JWTSecret, r.cfg.Auth)
	if err != nil {
		r.log.Error().Err(err).Msg("❌ Failed to generate tokens")
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user": user,
	})
}

// logout handles admin logout
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	// Tokens are stateless, the client drops them
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
