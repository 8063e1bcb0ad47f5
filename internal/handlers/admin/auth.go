package admin

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/auth"
	"github.com/xproxy/xproxy/internal/models"
)

// AuthHandler serves user registration and login for the management API.
type AuthHandler struct {
	baseHandler
	jwt *auth.JWTService
}

func NewAuthHandler(db *gorm.DB, jwt *auth.JWTService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{baseHandler: baseHandler{db: db, logger: logger}, jwt: jwt}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		h.sendError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user := models.User{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		IsActive:    true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := h.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		h.sendError(w, http.StatusConflict, "user already exists")
		return
	}

	h.sendJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	var user models.User
	err := h.db.WithContext(r.Context()).
		Where("email = ? AND is_active = ?", req.Email, true).
		First(&user).Error
	if err != nil || !user.CheckPassword(req.Password) {
		h.sendError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.jwt.IssueToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}
