// Package rest exposes the auth operations over HTTP/JSON using gin.
package rest

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

// AuthAPI is the orchestrator surface used by the handlers.
// *services.AuthService satisfies it.
type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (*services.AuthResult, error)
	SignUp(ctx context.Context, in services.SignUpInput) (*services.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) (*services.Message, error)
	VerifyOTP(ctx context.Context, email, code string) (*services.VerifyResult, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) (*services.Message, error)
	Refresh(ctx context.Context, userID, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, userID string) (*services.Message, error)
}

// TokenParser decodes access and refresh tokens. *auth.Issuer satisfies it.
type TokenParser interface {
	ParseAccess(token string) (*auth.Claims, error)
	ParseRefresh(token string) (*auth.Claims, error)
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type signUpRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Phone     string `json:"phone" binding:"omitempty,max=32"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=4,number"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required,len=4,number"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type authResponse struct {
	User         models.UserSummary `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

type AuthHandler struct {
	svc     AuthAPI
	tokens  TokenParser
	metrics *Metrics
}

func NewAuthHandler(svc AuthAPI, tokens TokenParser, m *Metrics) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens, metrics: m}
}

func (h *AuthHandler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/auth")
	g.POST("/signin", h.SignIn)
	g.POST("/signup", h.SignUp)
	g.POST("/forgot-password", h.ForgotPassword)
	g.POST("/verify-otp", h.VerifyOTP)
	g.POST("/reset-password", h.ResetPassword)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", requireAccessToken(h.tokens), h.Logout)
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if !h.bind(c, "signin", &req) {
		return
	}

	res, err := h.svc.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, "signin", err)
		return
	}
	h.ok(c, "signin", http.StatusOK, toAuthResponse(res))
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !h.bind(c, "signup", &req) {
		return
	}

	res, err := h.svc.SignUp(c.Request.Context(), services.SignUpInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		h.fail(c, "signup", err)
		return
	}
	h.ok(c, "signup", http.StatusCreated, toAuthResponse(res))
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !h.bind(c, "forgot_password", &req) {
		return
	}

	res, err := h.svc.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, "forgot_password", err)
		return
	}
	h.ok(c, "forgot_password", http.StatusOK, res)
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !h.bind(c, "verify_otp", &req) {
		return
	}

	res, err := h.svc.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		h.fail(c, "verify_otp", err)
		return
	}
	h.ok(c, "verify_otp", http.StatusOK, res)
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !h.bind(c, "reset_password", &req) {
		return
	}

	res, err := h.svc.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		h.fail(c, "reset_password", err)
		return
	}
	h.ok(c, "reset_password", http.StatusOK, res)
}

// Refresh takes the user identity from the refresh token itself. Expired
// and malformed tokens are reported like any other refresh denial.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bind(c, "refresh", &req) {
		return
	}

	claims, err := h.tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		h.fail(c, "refresh", common.ErrorUnauthorized)
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), claims.UserID(), req.RefreshToken)
	if err != nil {
		h.fail(c, "refresh", err)
		return
	}
	h.ok(c, "refresh", http.StatusOK, pair)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	res, err := h.svc.Logout(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, "logout", err)
		return
	}
	h.ok(c, "logout", http.StatusOK, res)
}

func (h *AuthHandler) bind(c *gin.Context, operation string, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, invalidRequest)
		h.metrics.observeOperation(operation, invalidRequest.Code)
		return false
	}
	return true
}

func (h *AuthHandler) fail(c *gin.Context, operation string, err error) {
	code := writeError(c, err)
	h.metrics.observeOperation(operation, code)
}

func (h *AuthHandler) ok(c *gin.Context, operation string, status int, body any) {
	c.JSON(status, body)
	h.metrics.observeOperation(operation, "OK")
}

func toAuthResponse(res *services.AuthResult) authResponse {
	return authResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}
}
