package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/castboard/internal/auth"
	"github.com/lalith-99/castboard/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler issues operator tokens. Login is the only public POST:
// everything under /api/manage requires the token it produces.
type AuthHandler struct {
	users     repository.UserRepository
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthHandler(users repository.UserRepository, jwtSecret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwtSecret: jwtSecret, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login.
//
// Unknown username and wrong password produce the same response, and the
// bcrypt comparison runs in both cases; no timing or message oracle for
// which half was wrong.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "error", "Username and password required.")
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		h.logger.Error("failed to look up user", zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Login failed.")
		return
	}

	hash := "$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinval"
	if user != nil {
		hash = user.PasswordHash
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil || user == nil {
		respondMessage(c, http.StatusUnauthorized, "error", "Invalid username or password.")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Username, h.jwtSecret, 24*time.Hour)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Login failed.")
		return
	}

	respondData(c, gin.H{"token": token})
}
