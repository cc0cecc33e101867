// Package services contains server-side business logic. This file implements
// AuthService, which handles sign-in, sign-up, the one-time code password
// reset flow, and issuing/rotating/revoking JWT pairs.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/otp"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

const (
	MessageOTPSent       = "If the email exists, a verification code has been sent"
	MessageOTPVerified   = "OTP verified successfully"
	MessagePasswordReset = "Password reset successfully"
	MessageLoggedOut     = "Logged out successfully"
)

// UserRepository is the persistence contract the auth flows rely on.
type UserRepository = users.Repository

// UserStore vends repositories and runs units of work transactionally.
type UserStore interface {
	Users() UserRepository
	WithTx(ctx context.Context, fn func(ctx context.Context, repo UserRepository) error) error
}

// Mailer delivers auth emails. Delivery failures should wrap
// common.ErrTransport; other errors are treated as such anyway.
type Mailer interface {
	SendOTPEmail(ctx context.Context, to, code, firstName string) error
	SendWelcomeEmail(ctx context.Context, to, firstName string) error
}

// TokenIssuer mints access/refresh pairs. *auth.Issuer satisfies it.
type TokenIssuer interface {
	Issue(userID, email, role string) (*auth.TokenPair, error)
}

type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

type AuthResult struct {
	User   models.UserSummary
	Tokens auth.TokenPair
}

type Message struct {
	Message string `json:"message"`
}

type VerifyResult struct {
	Message  string `json:"message"`
	Verified bool   `json:"verified"`
}

// AuthDeps are AuthService collaborators without usable defaults.
type AuthDeps struct {
	Store  UserStore
	Tokens TokenIssuer
	OTPs   otp.Store
	Mailer Mailer
	Logger logging.Logger
}

type Option func(*AuthService)

// WithPasswordHasher replaces the bcrypt password hasher.
func WithPasswordHasher(h auth.SecretHasher) Option {
	return func(s *AuthService) { s.passwords = h }
}

// WithRefreshHasher replaces the prehashing bcrypt refresh token hasher.
func WithRefreshHasher(h auth.SecretHasher) Option {
	return func(s *AuthService) { s.refreshHashes = h }
}

func WithCodeGenerator(g otp.Generator) Option {
	return func(s *AuthService) { s.codes = g }
}

func WithOTPTTL(ttl time.Duration) Option {
	return func(s *AuthService) { s.otpTTL = ttl }
}

// AuthService composes the user store, hashers, OTP store, token issuer and
// mailer. Every exported method returns either a result or exactly one
// public error kind from internal/common.
type AuthService struct {
	store         UserStore
	tokens        TokenIssuer
	otps          otp.Store
	mailer        Mailer
	log           logging.Logger
	passwords     auth.SecretHasher
	refreshHashes auth.SecretHasher
	codes         otp.Generator
	otpTTL        time.Duration
	locks         *otp.KeyedMutex

	// dummyDigest is verified against when the email is unknown so sign-in
	// takes the same time either way.
	dummyDigest string
}

// NewAuthService constructs an AuthService. It hashes a throwaway secret up
// front, so it fails if the password hasher does.
func NewAuthService(deps AuthDeps, opts ...Option) (*AuthService, error) {
	if deps.Store == nil || deps.Tokens == nil || deps.OTPs == nil || deps.Mailer == nil || deps.Logger == nil {
		return nil, errors.New("auth service: missing dependency")
	}

	s := &AuthService{
		store:         deps.Store,
		tokens:        deps.Tokens,
		otps:          deps.OTPs,
		mailer:        deps.Mailer,
		log:           deps.Logger.With("module", "auth"),
		passwords:     auth.NewBcryptHasher(),
		refreshHashes: auth.NewBcryptHasher(auth.WithPrehash()),
		codes:         otp.RandomGenerator{},
		otpTTL:        otp.DefaultTTL,
		locks:         otp.NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}

	dummy, err := s.passwords.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("auth service: dummy digest: %w", err)
	}
	s.dummyDigest = dummy

	return s, nil
}

// SignIn checks credentials and returns the user with a fresh token pair.
// Unknown email, wrong password and inactive account all yield
// common.ErrorUnauthorized.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	res, err := s.signIn(ctx, normalizeEmail(email), password)
	if err != nil {
		return nil, s.publicError(ctx, "signin", err)
	}
	return res, nil
}

// SignUp registers a user and returns it with a fresh token pair. The user
// row and its refresh token digest are written in one transaction.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	res, err := s.signUp(ctx, in)
	if err != nil {
		return nil, s.publicError(ctx, "signup", err)
	}

	if err := s.mailer.SendWelcomeEmail(ctx, res.User.Email, res.User.FirstName); err != nil {
		s.log.Warn(ctx, "welcome email not delivered", "user_id", res.User.ID, "error", err.Error())
	}
	return res, nil
}

// ForgotPassword stores a fresh code for a registered email and mails it.
// The reply is the same whether or not the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*Message, error) {
	email = normalizeEmail(email)

	unlock := s.locks.Lock(email)
	defer unlock()

	if err := s.forgotPassword(ctx, email); err != nil {
		return nil, s.publicError(ctx, "forgot_password", err)
	}
	return &Message{Message: MessageOTPSent}, nil
}

// VerifyOTP checks code against the pending entry for email without
// consuming it.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*VerifyResult, error) {
	email = normalizeEmail(email)

	unlock := s.locks.Lock(email)
	defer unlock()

	if err := s.checkOTP(ctx, email, code); err != nil {
		return nil, s.publicError(ctx, "verify_otp", err)
	}
	return &VerifyResult{Message: MessageOTPVerified, Verified: true}, nil
}

// ResetPassword re-checks the code, stores the new password digest and
// consumes the code.
//
// The password update and the code removal are not atomic. If the process
// dies in between, the code stays valid until it expires.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) (*Message, error) {
	email = normalizeEmail(email)

	unlock := s.locks.Lock(email)
	defer unlock()

	if err := s.resetPassword(ctx, email, code, newPassword); err != nil {
		return nil, s.publicError(ctx, "reset_password", err)
	}
	return &Message{Message: MessagePasswordReset}, nil
}

// Refresh exchanges the user's current refresh token for a new pair. Missing or
// inactive user, no stored digest and a mismatching token all yield
// common.ErrorUnauthorized.
func (s *AuthService) Refresh(ctx context.Context, userID, refreshToken string) (*auth.TokenPair, error) {
	unlock := s.locks.Lock("user:" + userID)
	defer unlock()

	pair, err := s.refresh(ctx, userID, refreshToken)
	if err != nil {
		return nil, s.publicError(ctx, "refresh", err)
	}
	return pair, nil
}

// Logout clears the stored refresh token digest. Unknown users are not an
// error.
func (s *AuthService) Logout(ctx context.Context, userID string) (*Message, error) {
	unlock := s.locks.Lock("user:" + userID)
	defer unlock()

	err := s.store.Users().UpdateRefreshTokenHash(ctx, userID, "")
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, s.publicError(ctx, "logout", oops.Code("AUTH_LOGOUT_FAILED").
			With("user_id", userID).
			Wrap(err))
	}
	return &Message{Message: MessageLoggedOut}, nil
}

func (s *AuthService) signIn(ctx context.Context, email, password string) (*AuthResult, error) {
	repo := s.store.Users()

	user, err := repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	digest := s.dummyDigest
	if user != nil {
		digest = user.PasswordHash
	}
	// Always verify, even for unknown emails.
	valid := s.passwords.Verify(password, digest)

	switch {
	case user == nil:
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").With("reason", "unknown email").Wrap(common.ErrorUnauthorized)
	case !valid:
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").With("reason", "password mismatch", "user_id", user.ID).Wrap(common.ErrorUnauthorized)
	case !user.IsActive:
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").With("reason", "inactive account", "user_id", user.ID).Wrap(common.ErrorUnauthorized)
	}

	pair, err := s.rotate(ctx, repo, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Summary(), Tokens: *pair}, nil
}

func (s *AuthService) signUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	if _, err := s.store.Users().FindByEmail(ctx, in.Email); err == nil {
		return nil, oops.Code("AUTH_EMAIL_TAKEN").Wrap(common.ErrorConflict)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	var res *AuthResult
	err = s.store.WithTx(ctx, func(ctx context.Context, repo UserRepository) error {
		user, err := repo.Create(ctx, models.NewUser{
			Email:        in.Email,
			PasswordHash: hash,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Phone:        in.Phone,
			Role:         common.DefaultRole,
		})
		if err != nil {
			if errors.Is(err, common.ErrorConflict) {
				return oops.Code("AUTH_EMAIL_TAKEN").Wrap(common.ErrorConflict)
			}
			return oops.Code("AUTH_SIGNUP_FAILED").
				With("operation", "create user").
				Wrap(err)
		}

		pair, err := s.rotate(ctx, repo, user)
		if err != nil {
			return err
		}
		res = &AuthResult{User: user.Summary(), Tokens: *pair}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *AuthService) forgotPassword(ctx context.Context, email string) error {
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return oops.Code("OTP_REQUEST_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return oops.Code("OTP_REQUEST_FAILED").
			With("operation", "generate code").
			Wrap(err)
	}

	if err := s.otps.Put(ctx, email, code, s.otpTTL); err != nil {
		return oops.Code("OTP_REQUEST_FAILED").
			With("operation", "store code").
			Wrap(err)
	}

	// The code stays stored if delivery fails; a later request replaces it.
	if err := s.mailer.SendOTPEmail(ctx, email, code, user.FirstName); err != nil {
		if !errors.Is(err, common.ErrTransport) {
			err = fmt.Errorf("%w: %v", common.ErrTransport, err)
		}
		return oops.Code("OTP_DELIVERY_FAILED").
			With("user_id", user.ID).
			Wrap(err)
	}

	s.log.Info(ctx, "password reset code issued", "user_id", user.ID)
	return nil
}

func (s *AuthService) checkOTP(ctx context.Context, email, code string) error {
	entry, err := s.otps.Take(ctx, email)
	switch {
	case errors.Is(err, otp.ErrNotFound):
		return oops.Code("OTP_NOT_FOUND").Wrap(common.ErrOTPNotFound)
	case errors.Is(err, otp.ErrExpired):
		return oops.Code("OTP_EXPIRED").Wrap(common.ErrOTPExpired)
	case err != nil:
		return oops.Code("OTP_LOOKUP_FAILED").Wrap(err)
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) != 1 {
		return oops.Code("OTP_INVALID").Wrap(common.ErrOTPInvalid)
	}
	return nil
}

func (s *AuthService) resetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := s.checkOTP(ctx, email, code); err != nil {
		return err
	}

	repo := s.store.Users()
	if _, err := repo.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return oops.Code("RESET_USER_GONE").Wrap(common.ErrorNotFound)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := repo.UpdatePassword(ctx, email, hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return oops.Code("RESET_USER_GONE").Wrap(common.ErrorNotFound)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	// The password is already changed; a leftover code expires on its own.
	if err := s.otps.Consume(ctx, email); err != nil {
		s.log.Error(ctx, "reset code not consumed", "error", err.Error())
	}
	return nil
}

func (s *AuthService) refresh(ctx context.Context, userID, refreshToken string) (*auth.TokenPair, error) {
	repo := s.store.Users()

	user, err := repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, oops.Code("AUTH_REFRESH_DENIED").With("reason", "unknown user").Wrap(common.ErrorUnauthorized)
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "find user by id").
			Wrap(err)
	}

	if !user.IsActive {
		return nil, oops.Code("AUTH_REFRESH_DENIED").With("reason", "inactive account", "user_id", user.ID).Wrap(common.ErrorUnauthorized)
	}
	if user.RefreshTokenHash == "" {
		return nil, oops.Code("AUTH_REFRESH_DENIED").With("reason", "no active refresh token", "user_id", user.ID).Wrap(common.ErrorUnauthorized)
	}
	if !s.refreshHashes.Verify(refreshToken, user.RefreshTokenHash) {
		return nil, oops.Code("AUTH_REFRESH_DENIED").With("reason", "refresh token mismatch", "user_id", user.ID).Wrap(common.ErrorUnauthorized)
	}

	return s.rotate(ctx, repo, user)
}

// rotate issues a new pair for user and stores the digest of its refresh
// token, replacing any earlier one.
func (s *AuthService) rotate(ctx context.Context, repo UserRepository, user *models.User) (*auth.TokenPair, error) {
	pair, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("user_id", user.ID).
			Wrap(err)
	}

	digest, err := s.refreshHashes.Hash(pair.RefreshToken)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "hash refresh token", "user_id", user.ID).
			Wrap(err)
	}

	if err := repo.UpdateRefreshTokenHash(ctx, user.ID, digest); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, oops.Code("AUTH_USER_GONE").With("user_id", user.ID).Wrap(common.ErrorUnauthorized)
		}
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "store refresh token digest", "user_id", user.ID).
			Wrap(err)
	}
	return pair, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
