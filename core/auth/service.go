package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

var nowFunc = time.Now // mockable

type (
	SessionRepository interface {
		// Create stores s; s.ID is kept when already set.
		Create(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)
		Get(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		// Touch slides the expiry of an active session.
		Touch(ctx context.Context, id string, lastActivity, expiresAt time.Time, exec ...core.DBExecutor) error
		UpdateToken(ctx context.Context, id, tokenHash string, lastActivity, expiresAt time.Time, exec ...core.DBExecutor) error
		Deactivate(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
		DeactivateByUser(ctx context.Context, userID string, at time.Time, exec ...core.DBExecutor) (int, error)
		// DeactivateExpired ends active sessions idle past their ExpiresAt or created before createdBefore.
		DeactivateExpired(ctx context.Context, now, createdBefore time.Time) (int, error)
	}

	// Users is the part of the user store used to log users in.
	Users interface {
		Get(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error)
		GetByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error)
		UpdateLastLogin(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
	}

	// DirectoryAuthenticator checks credentials against a directory server.
	// It returns ErrInvalidCredentials when the directory rejects them.
	DirectoryAuthenticator interface {
		Authenticate(ctx context.Context, username, password string) (DirectoryUser, error)
	}

	DirectoryUser struct {
		DN          string
		DisplayName string
		Email       string
	}

	Deps struct {
		Conf      *core.Config
		Users     Users
		Sessions  SessionRepository
		Directory DirectoryAuthenticator // nil when LDAP is disabled
		Tx        core.Transactor
		Logger    core.Logger
		Metrics   core.Metrics
	}

	Service struct {
		secretKey   []byte
		tokenTTL    time.Duration
		idleTimeout time.Duration
		maxDuration time.Duration
		users       Users
		sessions    SessionRepository
		directory   DirectoryAuthenticator
		tx          core.Transactor
		logger      core.Logger
		metrics     core.Metrics
	}
)

func NewService(deps Deps) *Service {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Service{
		secretKey:   []byte(deps.Conf.SecretKey),
		tokenTTL:    deps.Conf.Auth.JWTExpirationDelta,
		idleTimeout: deps.Conf.Auth.SessionIdleTimeout,
		maxDuration: deps.Conf.Auth.SessionMaxDuration,
		users:       deps.Users,
		sessions:    deps.Sessions,
		directory:   deps.Directory,
		tx:          deps.Tx,
		logger:      deps.Logger,
		metrics:     metrics,
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// hardExpiry is the instant past which a session can no longer be extended.
func (svc *Service) hardExpiry(s Session) time.Time {
	return s.CreatedAt.Add(svc.maxDuration)
}

// slidingExpiry returns now+idle timeout, capped by the session's hard expiry.
func (svc *Service) slidingExpiry(createdAt, now time.Time) time.Time {
	idle := now.Add(svc.idleTimeout)
	if hard := createdAt.Add(svc.maxDuration); idle.After(hard) {
		return hard
	}
	return idle
}

func (svc *Service) mintToken(usr user.User, s Session, now time.Time) (string, error) {
	exp := now.Add(svc.tokenTTL)
	if hard := svc.hardExpiry(s); exp.After(hard) {
		exp = hard
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   usr.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		SessionID: s.ID,
		Username:  usr.Username,
		Role:      usr.Role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secretKey)
	return token, errors.Wrap(err, "signing token")
}

func (svc *Service) parseToken(token string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return svc.secretKey, nil
	})
	if err != nil {
		var vErr *jwt.ValidationError
		if errors.As(err, &vErr) && vErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (svc *Service) checkPassword(ctx context.Context, usr user.User, password string) error {
	if usr.UseLDAP {
		if svc.directory == nil {
			return errors.New("LDAP authentication is not configured")
		}
		_, err := svc.directory.Authenticate(ctx, usr.Username, password)
		return err
	}
	if len(usr.PasswordHash) == 0 || usr.CheckPassword(password) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login checks the credentials, ends any other session of the user and opens a new one.
func (svc *Service) Login(ctx context.Context, creds Credentials, ipAddress, userAgent string) (LoginResult, error) {
	res, err := svc.login(ctx, creds, ipAddress, userAgent)
	svc.metrics.Login(loginOutcome(err))
	return res, err
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInactiveUser):
		return "inactive"
	case core.IsValidationError(err):
		return "invalid_request"
	}
	return "error"
}

func (svc *Service) login(ctx context.Context, creds Credentials, ipAddress, userAgent string) (LoginResult, error) {
	if err := creds.Validate(); err != nil {
		return LoginResult{}, err
	}
	usr, err := svc.users.GetByUsername(ctx, creds.Username)
	if err != nil {
		if core.IsNotFound(err) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err = svc.checkPassword(ctx, usr, creds.Password); err != nil {
		return LoginResult{}, err
	}
	if !usr.IsActive {
		return LoginResult{}, ErrInactiveUser
	}

	now := nowFunc().UTC()
	sess := Session{
		ID:           uuid.New().String(),
		UserID:       usr.ID,
		IPAddress:    ipAddress,
		UserAgent:    truncate(userAgent, 512),
		CreatedAt:    now,
		LastActivity: now,
		IsActive:     true,
	}
	sess.ExpiresAt = svc.slidingExpiry(now, now)

	token, err := svc.mintToken(usr, sess, now)
	if err != nil {
		return LoginResult{}, err
	}
	sess.TokenHash = hashToken(token)

	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		ended, err := svc.sessions.DeactivateByUser(ctx, usr.ID, now, exec)
		if err != nil {
			return err
		}
		if ended > 0 {
			svc.logger.Info("previous sessions ended on new login", map[string]interface{}{"user": usr.Username, "count": ended})
		}
		if sess, err = svc.sessions.Create(ctx, sess, exec); err != nil {
			return err
		}
		return svc.users.UpdateLastLogin(ctx, usr.ID, now, exec)
	})
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "opening session")
	}

	usr.LastLogin = &now
	return LoginResult{Token: token, ExpiresAt: sess.ExpiresAt, User: usr}, nil
}

// ValidateSession verifies token and its session, then slides the session expiry.
func (svc *Service) ValidateSession(ctx context.Context, token string) (*Claims, error) {
	claims, err := svc.parseToken(token)
	if err != nil {
		return nil, err
	}
	sess, err := svc.activeSession(ctx, claims, token)
	if err != nil {
		return nil, err
	}

	now := nowFunc().UTC()
	if err = svc.sessions.Touch(ctx, sess.ID, now, svc.slidingExpiry(sess.CreatedAt, now)); err != nil {
		return nil, err
	}
	return claims, nil
}

// activeSession loads the session of claims and checks that token is still valid for it.
// Expired sessions are deactivated on the way.
func (svc *Service) activeSession(ctx context.Context, claims *Claims, token string) (Session, error) {
	sess, err := svc.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if core.IsNotFound(err) {
			return Session{}, ErrSessionEnded
		}
		return Session{}, err
	}
	if !sess.IsActive || sess.UserID != claims.Subject {
		return Session{}, ErrSessionEnded
	}
	if sess.TokenHash != hashToken(token) {
		return Session{}, ErrInvalidToken
	}

	now := nowFunc().UTC()
	if now.After(sess.ExpiresAt) || now.After(svc.hardExpiry(sess)) {
		if err = svc.sessions.Deactivate(ctx, sess.ID, now); err != nil {
			svc.logger.Error("deactivating expired session", err)
		}
		return Session{}, ErrSessionExpired
	}
	return sess, nil
}

// Logout ends a session. Ending an already ended session is not an error.
func (svc *Service) Logout(ctx context.Context, sessionID string) error {
	err := svc.sessions.Deactivate(ctx, sessionID, nowFunc().UTC())
	if core.IsNotFound(err) {
		return ErrSessionNotFound
	}
	return err
}

// Refresh swaps token for a new one bound to the same session.
// The session expiry slides but never past its hard cap.
func (svc *Service) Refresh(ctx context.Context, token string) (LoginResult, error) {
	claims, err := svc.parseToken(token)
	if err != nil {
		return LoginResult{}, err
	}
	sess, err := svc.activeSession(ctx, claims, token)
	if err != nil {
		return LoginResult{}, err
	}
	usr, err := svc.users.Get(ctx, claims.Subject)
	if err != nil {
		return LoginResult{}, err
	}
	if !usr.IsActive {
		return LoginResult{}, ErrInactiveUser
	}

	now := nowFunc().UTC()
	newToken, err := svc.mintToken(usr, sess, now)
	if err != nil {
		return LoginResult{}, err
	}
	expiresAt := svc.slidingExpiry(sess.CreatedAt, now)
	if err = svc.sessions.UpdateToken(ctx, sess.ID, hashToken(newToken), now, expiresAt); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: newToken, ExpiresAt: expiresAt, User: usr}, nil
}

// Me returns the user owning the session described by claims.
func (svc *Service) Me(ctx context.Context, claims *Claims) (user.User, error) {
	usr, err := svc.users.Get(ctx, claims.Subject)
	if core.IsNotFound(err) {
		return usr, user.ErrNotFound
	}
	return usr, err
}

// EndUserSessions deactivates every session of a user, eg. after the account got disabled.
func (svc *Service) EndUserSessions(ctx context.Context, userID string) error {
	_, err := svc.sessions.DeactivateByUser(ctx, userID, nowFunc().UTC())
	return err
}

// CleanupExpiredSessions deactivates every session past its idle or hard expiry.
func (svc *Service) CleanupExpiredSessions(ctx context.Context) (int, error) {
	now := nowFunc().UTC()
	n, err := svc.sessions.DeactivateExpired(ctx, now, now.Add(-svc.maxDuration))
	return n, errors.Wrap(err, "cleaning up sessions")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
