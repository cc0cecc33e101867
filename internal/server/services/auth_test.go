package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/otp"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentOTP struct {
	to, code, firstName string
}

type fakeMailer struct {
	mu         sync.Mutex
	otps       []sentOTP
	welcomes   []string
	otpErr     error
	welcomeErr error
}

func (m *fakeMailer) SendOTPEmail(_ context.Context, to, code, firstName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.otpErr != nil {
		return m.otpErr
	}
	m.otps = append(m.otps, sentOTP{to: to, code: code, firstName: firstName})
	return nil
}

func (m *fakeMailer) SendWelcomeEmail(_ context.Context, to, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.welcomeErr != nil {
		return m.welcomeErr
	}
	m.welcomes = append(m.welcomes, to)
	return nil
}

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.otps, "no otp mail sent")
	return m.otps[len(m.otps)-1].code
}

type failingIssuer struct{}

func (failingIssuer) Issue(string, string, string) (*auth.TokenPair, error) {
	return nil, errors.New("sign refresh token: key unavailable")
}

// failingStore wraps a store and fails reads with a driver-like error.
type failingStore struct {
	*users.MemoryStore
	err error
}

func (s failingStore) Users() UserRepository { return failingRepo{s.MemoryStore.Users(), s.err} }

type failingRepo struct {
	users.Repository
	err error
}

func (r failingRepo) FindByEmail(context.Context, string) (*models.User, error) { return nil, r.err }
func (r failingRepo) FindByID(context.Context, string) (*models.User, error)    { return nil, r.err }
func (r failingRepo) UpdateRefreshTokenHash(context.Context, string, string) error {
	return r.err
}

// stickyOTPStore refuses to consume entries, as if the process died between
// the password update and the removal of the code.
type stickyOTPStore struct {
	otp.Store
}

func (stickyOTPStore) Consume(context.Context, string) error { return errors.New("crashed") }

type testEnv struct {
	svc    *AuthService
	users  *users.MemoryStore
	otps   *otp.MemoryStore
	mail   *fakeMailer
	clock  *fakeClock
	issuer *auth.Issuer
	logs   *bytes.Buffer
}

type envOption func(*AuthDeps)

func newTestEnv(t *testing.T, envOpts []envOption, opts ...Option) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	issuer, err := auth.NewIssuer(auth.IssuerConfig{AccessSecret: "access", RefreshSecret: "refresh"})
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	env := &testEnv{
		users:  users.NewMemoryStore(),
		otps:   otp.NewMemoryStore(clock.Now),
		mail:   &fakeMailer{},
		clock:  clock,
		issuer: issuer,
		logs:   logs,
	}

	deps := AuthDeps{
		Store:  env.users,
		Tokens: issuer,
		OTPs:   env.otps,
		Mailer: env.mail,
		Logger: logging.NewSlogLogger(slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{
			Level: slog.LevelDebug,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		}))),
	}
	for _, o := range envOpts {
		o(&deps)
	}

	opts = append([]Option{
		WithPasswordHasher(auth.NewBcryptHasher(auth.WithCost(bcrypt.MinCost))),
		WithRefreshHasher(auth.NewBcryptHasher(auth.WithPrehash(), auth.WithCost(bcrypt.MinCost))),
	}, opts...)

	env.svc, err = NewAuthService(deps, opts...)
	require.NoError(t, err)
	return env
}

func (e *testEnv) signUp(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := e.svc.SignUp(context.Background(), SignUpInput{
		Email: email, Password: password, FirstName: "Ann", LastName: "Lee",
	})
	require.NoError(t, err)
	return res
}

func fixedCode(code string) Option {
	return WithCodeGenerator(otp.GeneratorFunc(func() (string, error) { return code, nil }))
}

// --- constructor ---

func TestNewAuthService_MissingDependency(t *testing.T) {
	_, err := NewAuthService(AuthDeps{})
	require.Error(t, err)
}

type brokenHasher struct{}

func (brokenHasher) Hash(string) (string, error) { return "", common.ErrHashing }
func (brokenHasher) Verify(string, string) bool  { return false }

func TestNewAuthService_HasherFailure(t *testing.T) {
	deps := AuthDeps{
		Store:  users.NewMemoryStore(),
		Tokens: failingIssuer{},
		OTPs:   otp.NewMemoryStore(nil),
		Mailer: &fakeMailer{},
		Logger: logging.NewJSONLogger(&bytes.Buffer{}, "error"),
	}
	_, err := NewAuthService(deps, WithPasswordHasher(brokenHasher{}))
	assert.ErrorIs(t, err, common.ErrHashing)
}

// --- sign-up ---

func TestSignUp_SucceedsOnceThenConflict(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res := env.signUp(t, "a@x.com", "secret1")
	assert.NotEmpty(t, res.User.ID)
	assert.Equal(t, "a@x.com", res.User.Email)
	assert.Equal(t, common.DefaultRole, res.User.Role)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)

	_, err := env.svc.SignUp(ctx, SignUpInput{Email: "a@x.com", Password: "other12"})
	assert.ErrorIs(t, err, common.ErrorConflict)
	assert.Equal(t, common.ErrorConflict, err)

	_, err = env.svc.SignUp(ctx, SignUpInput{Email: "  A@X.COM ", Password: "other12"})
	assert.Equal(t, common.ErrorConflict, err)
}

func TestSignUp_StoresOnlyDigests(t *testing.T) {
	env := newTestEnv(t, nil)

	res := env.signUp(t, "a@x.com", "secret1")

	u, err := env.users.Users().FindByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.NotEmpty(t, u.RefreshTokenHash)
	assert.NotEqual(t, res.Tokens.RefreshToken, u.RefreshTokenHash)
}

func TestSignUp_TokenFailureRollsBackUser(t *testing.T) {
	env := newTestEnv(t, []envOption{func(d *AuthDeps) { d.Tokens = failingIssuer{} }})
	ctx := context.Background()

	_, err := env.svc.SignUp(ctx, SignUpInput{Email: "a@x.com", Password: "secret1"})
	assert.Equal(t, common.ErrorInternal, err)

	_, err = env.users.Users().FindByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, common.ErrorNotFound, "user must not survive failed issuance")
	assert.Empty(t, env.mail.welcomes)
}

func TestSignUp_WelcomeMail(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signUp(t, "a@x.com", "secret1")
	assert.Equal(t, []string{"a@x.com"}, env.mail.welcomes)
}

func TestSignUp_WelcomeMailFailureIsIgnored(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mail.welcomeErr = errors.New("smtp down")

	res := env.signUp(t, "a@x.com", "secret1")
	assert.NotEmpty(t, res.User.ID)
	assert.Contains(t, env.logs.String(), "welcome email not delivered")
}

// --- sign-in ---

func TestSignIn_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.signUp(t, "a@x.com", "secret1")

	res, err := env.svc.SignIn(context.Background(), "A@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.User, res.User)

	claims, err := env.issuer.ParseAccess(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, claims.UserID())
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
}

func TestSignIn_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	created := env.signUp(t, "a@x.com", "secret1")
	env.signUp(t, "off@x.com", "secret1")

	off, err := env.users.Users().FindByEmail(ctx, "off@x.com")
	require.NoError(t, err)
	require.NoError(t, env.users.Users().(*users.MemoryRepository).SetActive(off.ID, false))

	_, wrongPassword := env.svc.SignIn(ctx, "a@x.com", "nope123")
	_, unknownEmail := env.svc.SignIn(ctx, "ghost@x.com", "secret1")
	_, inactive := env.svc.SignIn(ctx, "off@x.com", "secret1")

	for _, err := range []error{wrongPassword, unknownEmail, inactive} {
		assert.Equal(t, common.ErrorUnauthorized, err)
		assert.Equal(t, wrongPassword.Error(), err.Error())
	}

	u, err := env.users.Users().FindByID(ctx, created.User.ID)
	require.NoError(t, err)
	assert.True(t, env.svc.refreshHashes.Verify(created.Tokens.RefreshToken, u.RefreshTokenHash),
		"failed sign-in must not rotate tokens")
}

func TestSignIn_StoreErrorIsInternal(t *testing.T) {
	env := newTestEnv(t, []envOption{func(d *AuthDeps) {
		d.Store = failingStore{MemoryStore: users.NewMemoryStore(), err: fmt.Errorf("db error: %w", errors.New("conn reset"))}
	}})

	_, err := env.svc.SignIn(context.Background(), "a@x.com", "secret1")
	assert.Equal(t, common.ErrorInternal, err)
	assert.Contains(t, env.logs.String(), "conn reset")
	assert.Contains(t, env.logs.String(), "AUTH_SIGNIN_FAILED")
}

// --- rotation ---

func TestRotation_PreviousRefreshTokenStopsVerifying(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	signedUp := env.signUp(t, "a@x.com", "secret1")
	id := signedUp.User.ID

	signedIn, err := env.svc.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = env.svc.Refresh(ctx, id, signedUp.Tokens.RefreshToken)
	assert.Equal(t, common.ErrorUnauthorized, err, "sign-up token rotated out by sign-in")

	refreshed, err := env.svc.Refresh(ctx, id, signedIn.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, signedIn.Tokens.RefreshToken, refreshed.RefreshToken)

	_, err = env.svc.Refresh(ctx, id, signedIn.Tokens.RefreshToken)
	assert.Equal(t, common.ErrorUnauthorized, err, "refresh token is single use")

	_, err = env.svc.Refresh(ctx, id, refreshed.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_FailuresCollapse(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res := env.signUp(t, "a@x.com", "secret1")
	_, err := env.svc.Logout(ctx, res.User.ID)
	require.NoError(t, err)

	_, unknownUser := env.svc.Refresh(ctx, "ghost", res.Tokens.RefreshToken)
	_, noHash := env.svc.Refresh(ctx, res.User.ID, res.Tokens.RefreshToken)

	env.signUp(t, "b@x.com", "secret1")
	other, err := env.svc.SignIn(ctx, "b@x.com", "secret1")
	require.NoError(t, err)
	_, mismatch := env.svc.Refresh(ctx, other.User.ID, res.Tokens.RefreshToken)

	for _, err := range []error{unknownUser, noHash, mismatch} {
		assert.Equal(t, common.ErrorUnauthorized, err)
	}
}

func TestRefresh_InactiveAccountDenied(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	created := env.signUp(t, "a@x.com", "secret1")

	require.NoError(t, env.users.Users().(*users.MemoryRepository).SetActive(created.User.ID, false))

	_, err := env.svc.Refresh(ctx, created.User.ID, created.Tokens.RefreshToken)
	assert.Equal(t, common.ErrorUnauthorized, err)
}

func TestRefresh_StoreErrorIsInternal(t *testing.T) {
	env := newTestEnv(t, []envOption{func(d *AuthDeps) {
		d.Store = failingStore{MemoryStore: users.NewMemoryStore(), err: errors.New("db error: timeout")}
	}})

	_, err := env.svc.Refresh(context.Background(), "u-1", "token")
	assert.Equal(t, common.ErrorInternal, err)
}

// --- logout ---

func TestLogout_IdempotentAndRevokes(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res := env.signUp(t, "a@x.com", "secret1")

	first, err := env.svc.Logout(ctx, res.User.ID)
	require.NoError(t, err)
	second, err := env.svc.Logout(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, MessageLoggedOut, first.Message)

	u, err := env.users.Users().FindByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Empty(t, u.RefreshTokenHash)

	_, err = env.svc.Refresh(ctx, res.User.ID, res.Tokens.RefreshToken)
	assert.Equal(t, common.ErrorUnauthorized, err)
}

func TestLogout_UnknownUser(t *testing.T) {
	env := newTestEnv(t, nil)

	msg, err := env.svc.Logout(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, MessageLoggedOut, msg.Message)
}

func TestLogout_StoreError(t *testing.T) {
	env := newTestEnv(t, []envOption{func(d *AuthDeps) {
		d.Store = failingStore{MemoryStore: users.NewMemoryStore(), err: errors.New("db error: gone")}
	}})

	_, err := env.svc.Logout(context.Background(), "u-1")
	assert.Equal(t, common.ErrorInternal, err)
}

// --- forgot / verify / reset ---

func TestForgotPassword_UnknownEmailLooksTheSame(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.signUp(t, "a@x.com", "secret1")

	known, err := env.svc.ForgotPassword(ctx, "a@x.com")
	require.NoError(t, err)
	unknown, err := env.svc.ForgotPassword(ctx, "ghost@x.com")
	require.NoError(t, err)

	assert.Equal(t, known, unknown)
	assert.Equal(t, MessageOTPSent, unknown.Message)
	assert.Len(t, env.mail.otps, 1)
	assert.Equal(t, 1, env.otps.Len())

	_, err = env.svc.VerifyOTP(ctx, "ghost@x.com", "1234")
	assert.Equal(t, common.ErrOTPNotFound, err)
}

func TestOTP_RoundTripAndRetryAfterInvalid(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.signUp(t, "a@x.com", "secret1")

	_, err := env.svc.ForgotPassword(ctx, "a@x.com")
	require.NoError(t, err)
	code := env.mail.lastCode(t)
	assert.Len(t, code, 4)
	assert.Equal(t, "Ann", env.mail.otps[0].firstName)

	wrong := "1000"
	if code == wrong {
		wrong = "1001"
	}
	_, err = env.svc.VerifyOTP(ctx, "a@x.com", wrong)
	assert.Equal(t, common.ErrOTPInvalid, err)

	res, err := env.svc.VerifyOTP(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, MessageOTPVerified, res.Message)

	// Verify does not consume.
	_, err = env.svc.VerifyOTP(ctx, "a@x.com", code)
	assert.NoError(t, err)
}

func TestOTP_ExpiryScenario(t *testing.T) {
	env := newTestEnv(t, nil, fixedCode("4821"))
	ctx := context.Background()
	env.signUp(t, "a@x.com", "secret1")

	_, err := env.svc.ForgotPassword(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "4821", env.mail.lastCode(t))

	env.clock.Advance(5 * time.Minute)
	res, err := env.svc.VerifyOTP(ctx, "a@x.com", "4821")
	require.NoError(t, err)
	assert.True(t, res.Verified)

	env.clock.Advance(6 * time.Minute)
	_, err = env.svc.VerifyOTP(ctx, "a@x.com", "4821")
	assert.Equal(t, common.ErrOTPExpired, err)

	_, err = env.svc.VerifyOTP(ctx, "a@x.com", "4821")
	assert.Equal(t, common.ErrOTPNotFound, err)
}

func TestOTP_NewRequestOverwrites(t *testing.T) {
	codes := []string{"1111", "2222"}
	var mu sync.Mutex
	gen := otp.GeneratorFunc(func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[0]
		codes = codes[1:]
		return c, nil
	})

	env := newTestEnv(t, nil, WithCodeGenerator(gen))
	ctx := context.Background()
	env.signUp(t, "a@x.com", "secret1")

	_, err := env.svc.ForgotPassword(ctx, "a@x.com")
	require.NoError(t, err)
	_, err = env.svc.ForgotPassword(ctx, "a@x.com")
	require.NoError(t, err)

	_, err = env.svc.VerifyOTP(ctx, "a@x.com", "1111")
	assert.Equal(t, common.ErrOTPInvalid, err)
	_, err = env.svc.VerifyOTP(ctx, "a@x.com", "2222")
	assert.NoError(t, err)
}

func TestResetPassword_ConsumesCode(t *testing.T) {
	env := newTestEnv(t, nil, fixedCode("4821"))
	ctx := context.Background()
	env.signUp(t, "a@x.com", "secret1")

	_, err := env.svc.ForgotPassword(ctx, "a@x.com")
	require.NoError(t, err)

	msg, err := env.svc.ResetPassword(ctx, "a@x.com", "4821", "brandnew1")
	require.NoError(t, err)
	assert.Equal(t, MessagePasswordReset, msg.Message)

	_, err = env.svc.ResetPassword(ctx, "a@x.com", "4821", "another12")
	assert.Equal(t, common.ErrOTPNotFound, err)

	_, err = env.svc.SignIn(ctx, "a@x.com", "secret1")
	assert.Equal(t, common.ErrorUnauthorized, err)
	_, err = env.svc.SignIn(ctx, "a@x.com", "brandnew1")
	assert.NoError(t, err)
}

func TestResetPassword_OTPFailures(t *testing.T) {
	env := newTestEnv(t, nil, fixedCode("4821"))
	ctx := context.Background()
	env.signUp(t, "a@x.com", "secret1")

	_, err := env.svc.ResetPassword(ctx, "a@x.com", "4821", "brandnew1")
	assert.Equal(t, common.ErrOTPNotFound, err)

	_, err = env.svc.ForgotPassword(ctx, "a@x.com")
	require.NoError(t, err)

	_, err = env.svc.ResetPassword(ctx, "a@x.com", "0000", "brandnew1")
	assert.Equal(t, common.ErrOTPInvalid, err)

	env.clock.Advance(11 * time.Minute)
	_, err = env.svc.ResetPassword(ctx, "a@x.com", "4821", "brandnew1")
	assert.Equal(t, common.ErrOTPExpired, err)

	_, err = env.svc.SignIn(ctx, "a@x.com", "secret1")
	assert.NoError(t, err, "password unchanged after failed resets")
}

func TestResetPassword_UserVanished(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.otps.Put(ctx, "gone@x.com", "4821", otp.DefaultTTL))

	_, err := env.svc.ResetPassword(ctx, "gone@x.com", "4821", "brandnew1")
	assert.Equal(t, common.ErrorNotFound, err)
}

// The password update and the code removal are separate steps. When the
// second one is lost, the code keeps working only until its TTL lapses.
func TestResetPassword_UnconsumedCodeIsBoundedByTTL(t *testing.T) {
	env := newTestEnv(t, []envOption{func(d *AuthDeps) {
		d.OTPs = stickyOTPStore{Store: d.OTPs}
	}}, fixedCode("4821"))
	ctx := context.Background()
	env.signUp(t, "a@x.com", "secret1")

	_, err := env.svc.ForgotPassword(ctx, "a@x.com")
	require.NoError(t, err)

	_, err = env.svc.ResetPassword(ctx, "a@x.com", "4821", "brandnew1")
	require.NoError(t, err)
	assert.Contains(t, env.logs.String(), "reset code not consumed")

	_, err = env.svc.VerifyOTP(ctx, "a@x.com", "4821")
	assert.NoError(t, err, "leftover code lingers within TTL")

	env.clock.Advance(otp.DefaultTTL + time.Second)
	_, err = env.svc.ResetPassword(ctx, "a@x.com", "4821", "hijacked1")
	assert.Equal(t, common.ErrOTPExpired, err)
}

func TestForgotPassword_DeliveryFailure(t *testing.T) {
	env := newTestEnv(t, nil, fixedCode("4821"))
	ctx := context.Background()
	env.signUp(t, "a@x.com", "secret1")
	env.mail.otpErr = errors.New("dial tcp: connection refused")

	_, err := env.svc.ForgotPassword(ctx, "a@x.com")
	assert.Equal(t, common.ErrTransport, err)

	// Delivery failure does not roll back the stored code.
	_, err = env.svc.VerifyOTP(ctx, "a@x.com", "4821")
	assert.NoError(t, err)
}

func TestForgotPassword_GeneratorFailure(t *testing.T) {
	env := newTestEnv(t, nil, WithCodeGenerator(otp.GeneratorFunc(func() (string, error) {
		return "", errors.New("entropy exhausted")
	})))
	env.signUp(t, "a@x.com", "secret1")

	_, err := env.svc.ForgotPassword(context.Background(), "a@x.com")
	assert.Equal(t, common.ErrorInternal, err)
	assert.Empty(t, env.mail.otps)
}

func TestForgotPassword_ConcurrentRequestsKeepLastMailedCode(t *testing.T) {
	var (
		mu sync.Mutex
		n  = 1000
	)
	gen := otp.GeneratorFunc(func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%d", n), nil
	})

	env := newTestEnv(t, nil, WithCodeGenerator(gen))
	ctx := context.Background()
	env.signUp(t, "a@x.com", "secret1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.svc.ForgotPassword(ctx, "a@x.com")
		}()
	}
	wg.Wait()

	_, err := env.svc.VerifyOTP(ctx, "a@x.com", env.mail.lastCode(t))
	assert.NoError(t, err)
}

// --- boundary ---

func TestPublicError_UnknownErrorsBecomeInternal(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	assert.NoError(t, env.svc.publicError(ctx, "op", nil))
	assert.Equal(t, common.ErrorInternal, env.svc.publicError(ctx, "op", errors.New("boom")))
	assert.Equal(t, common.ErrOTPInvalid, env.svc.publicError(ctx, "op", fmt.Errorf("wrapped: %w", common.ErrOTPInvalid)))
	assert.Equal(t, common.ErrHashing, env.svc.publicError(ctx, "op", fmt.Errorf("%w: cost", common.ErrHashing)))
}

func TestSecretsNeverLogged(t *testing.T) {
	env := newTestEnv(t, nil, fixedCode("4821"))
	ctx := context.Background()

	res := env.signUp(t, "a@x.com", "pw-secret-1")
	_, _ = env.svc.SignIn(ctx, "a@x.com", "pw-wrong-1")
	_, _ = env.svc.ForgotPassword(ctx, "a@x.com")
	_, _ = env.svc.VerifyOTP(ctx, "a@x.com", "9999")
	_, _ = env.svc.ResetPassword(ctx, "a@x.com", "4821", "pw-new-123")
	_, _ = env.svc.Refresh(ctx, res.User.ID, res.Tokens.RefreshToken)

	logs := env.logs.String()
	require.NotEmpty(t, logs)
	for _, secret := range []string{"pw-secret-1", "pw-wrong-1", "pw-new-123", `"4821"`, `"9999"`, res.Tokens.RefreshToken, res.Tokens.AccessToken} {
		assert.False(t, strings.Contains(logs, secret), "log leaked %q", secret)
	}
}
