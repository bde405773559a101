package server

import (
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"choti/apps/backend/internal/store"
)

const (
	minPasswordLength = 6
	// bcrypt only hashes the first 72 bytes and rejects longer input.
	maxPasswordBytes = 72
)

func (a *App) register(c *gin.Context) {
	var payload registerRequest
	if !mustJSON(c, &payload) {
		return
	}

	email := store.NormalizeEmail(payload.Email)
	if email == "" || strings.TrimSpace(payload.Password) == "" || strings.TrimSpace(payload.Name) == "" {
		writeError(c, http.StatusBadRequest, "Name, email and password are required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid email address")
		return
	}
	if len(payload.Password) < minPasswordLength {
		writeError(c, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}
	if len(payload.Password) > maxPasswordBytes {
		writeError(c, http.StatusBadRequest, "Password must be at most 72 bytes")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), a.bcryptCost())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user, err := a.store.CreateUser(c.Request.Context(), store.User{
		Email:                 email,
		PasswordHash:          string(hash),
		Name:                  payload.Name,
		Nickname:              payload.Nickname,
		Hobby:                 payload.Hobby,
		Passion:               payload.Passion,
		EducationalBackground: payload.EducationalBackground,
		Bio:                   payload.Bio,
	})
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(c, http.StatusConflict, "Email is already registered")
		return
	}
	if err != nil {
		log.Printf("register failed email=%s err=%v", email, err)
		writeError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, expiresAt, err := a.issueToken(user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       userResponse(user),
	})
}

func (a *App) login(c *gin.Context) {
	var payload loginRequest
	if !mustJSON(c, &payload) {
		return
	}
	email := store.NormalizeEmail(payload.Email)
	if email == "" || payload.Password == "" {
		writeError(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := a.store.GetUserByEmail(c.Request.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		writeError(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		log.Printf("login lookup failed email=%s err=%v", email, err)
		writeError(c, http.StatusInternalServerError, "Failed to load user")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		writeError(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, expiresAt, err := a.issueToken(user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       userResponse(user),
	})
}

func (a *App) verify(c *gin.Context) {
	authUser, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := a.store.GetUserByID(c.Request.Context(), authUser.ID)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user":  userResponse(user),
	})
}

func (a *App) getMe(c *gin.Context) {
	authUser, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := a.store.GetUserByID(c.Request.Context(), authUser.ID)
	if err != nil {
		writeError(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

func (a *App) updateMe(c *gin.Context) {
	authUser, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var payload updateMeRequest
	if !mustJSON(c, &payload) {
		return
	}

	user, err := a.store.GetUserByID(c.Request.Context(), authUser.ID)
	if err != nil {
		writeError(c, http.StatusNotFound, "User not found")
		return
	}
	applyStringPatch(&user.Name, payload.Name)
	applyStringPatch(&user.Nickname, payload.Nickname)
	applyStringPatch(&user.Hobby, payload.Hobby)
	applyStringPatch(&user.Passion, payload.Passion)
	applyStringPatch(&user.EducationalBackground, payload.EducationalBackground)
	applyStringPatch(&user.Bio, payload.Bio)
	if user.Name == "" {
		writeError(c, http.StatusBadRequest, "Name must not be empty")
		return
	}

	updated, err := a.store.UpdateUser(c.Request.Context(), user)
	if err != nil {
		log.Printf("update user failed user_id=%s err=%v", user.ID, err)
		writeError(c, http.StatusInternalServerError, "Failed to update user")
		return
	}
	c.JSON(http.StatusOK, userResponse(updated))
}

func (a *App) issueToken(userID string) (string, time.Time, error) {
	now := a.now().UTC()
	ttl := time.Duration(a.cfg.JWTTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	expiresAt := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	if a.cfg.JWTAudience != "" {
		claims["aud"] = a.cfg.JWTAudience
	}
	if a.cfg.JWTIssuer != "" {
		claims["iss"] = a.cfg.JWTIssuer
	}

	method := jwt.GetSigningMethod(a.cfg.JWTAlgorithm)
	if method == nil {
		method = jwt.SigningMethodHS256
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (a *App) bcryptCost() int {
	if a.cfg.BcryptCost < bcrypt.MinCost || a.cfg.BcryptCost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return a.cfg.BcryptCost
}
