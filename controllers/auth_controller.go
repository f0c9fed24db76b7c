package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"luxio/middlewares"
	"luxio/models"
	"luxio/repository"
	"luxio/utils"

	"github.com/gin-gonic/gin"
)

const authCookie = "auth_token"

type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

type AuthController struct {
	users        repository.Users
	revocations  Revoker
	secret       string
	ttl          time.Duration
	secureCookie bool
}

func NewAuthController(users repository.Users, revocations Revoker, secret string, ttl time.Duration, secureCookie bool) *AuthController {
	return &AuthController{users: users, revocations: revocations, secret: secret, ttl: ttl, secureCookie: secureCookie}
}

func (a *AuthController) issue(c *gin.Context, status int, user *models.User) {
	token, claims, err := utils.GenerateToken(a.secret, user.ID, user.Email, a.ttl)
	if err != nil {
		log.Printf("Failed to issue token for user %d: %v", user.ID, err)
		respondError(c, http.StatusInternalServerError, "Could not create session")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(authCookie, token, int(a.ttl.Seconds()), "/", "", a.secureCookie, true)
	c.JSON(status, models.AuthResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: *user})
}

func (a *AuthController) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, err.Error(), models.CodeValidation)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		respondError(c, http.StatusInternalServerError, "Could not create account")
		return
	}
	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		CreatedAt:    time.Now(),
	}
	if err := a.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			respondError(c, http.StatusConflict, "An account with this email already exists")
			return
		}
		log.Printf("Failed to create user: %v", err)
		respondError(c, http.StatusInternalServerError, "Could not create account")
		return
	}
	a.issue(c, http.StatusCreated, user)
}

func (a *AuthController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, err.Error(), models.CodeValidation)
		return
	}

	user, err := a.users.ByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !utils.CheckPassword(user.PasswordHash, req.Password)) {
		respondError(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		log.Printf("Failed to load user: %v", err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}
	if user.Suspended {
		respondCode(c, http.StatusForbidden, "Account suspended", models.CodeAccountSuspended)
		return
	}
	a.issue(c, http.StatusOK, user)
}

// Logout revokes the presented token until it would have expired anyway.
func (a *AuthController) Logout(c *gin.Context) {
	if claims, ok := middlewares.Claims(c); ok && a.revocations != nil {
		if err := a.revocations.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			log.Printf("Failed to revoke token %s: %v", claims.ID, err)
			respondError(c, http.StatusInternalServerError, "Could not end session")
			return
		}
	}
	c.SetCookie(authCookie, "", -1, "/", "", a.secureCookie, true)
	c.JSON(http.StatusOK, models.Result{Success: true, Message: "Logged out"})
}

func (a *AuthController) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := a.users.ByID(c.Request.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		respondCode(c, http.StatusUnauthorized, "User not found", models.CodeUserNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to load user %d: %v", userID, err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}
	c.JSON(http.StatusOK, user)
}

// SuspensionStatus lets the dashboard explain why an account is locked.
func (a *AuthController) SuspensionStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := a.users.ByID(c.Request.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		respondCode(c, http.StatusUnauthorized, "User not found", models.CodeUserNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to load user %d: %v", userID, err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}
	c.JSON(http.StatusOK, models.SuspensionStatus{Suspended: user.Suspended, Reason: user.SuspensionReason})
}
