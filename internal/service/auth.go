// Package service contains the credential service built on the hashing and
// message authentication primitives.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/and161185/passkit/internal/crypto"
	"github.com/and161185/passkit/internal/errs"
	"github.com/and161185/passkit/internal/limiter"
	"github.com/and161185/passkit/internal/model"
	"github.com/and161185/passkit/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// AuthService defines account and message authentication operations.
type AuthService interface {
	// Register creates a new user with an Argon2id password hash and a fresh MAC key.
	Register(ctx context.Context, username, password string) (userID string, err error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, username, password string, ip string) (tokens model.Tokens, user model.User, err error)
	// ChangePassword replaces the password after verifying the current one.
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
	// SignMessage returns the HMAC-SHA256 tag of payload under the user's key.
	SignMessage(ctx context.Context, userID uuid.UUID, payload []byte) ([]byte, error)
	// VerifyMessage reports whether tag authenticates payload under the user's key.
	VerifyMessage(ctx context.Context, userID uuid.UUID, payload, tag []byte) (bool, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	hasher    *crypto.Hasher
	lim       limiter.Limiter
	fp        *limiter.Fingerprinter
	signKey   []byte
	accessTTL time.Duration
	log       *zap.Logger

	dummyOnce sync.Once
	dummy     string
}

// NewAuthService constructs AuthService with required dependencies. A nil log
// discards rehash warnings.
func NewAuthService(
	users repository.UserRepository,
	hasher *crypto.Hasher,
	lim limiter.Limiter,
	fp *limiter.Fingerprinter,
	signKey []byte,
	accessTTL time.Duration,
	log *zap.Logger,
) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{
		users:     users,
		hasher:    hasher,
		lim:       lim,
		fp:        fp,
		signKey:   signKey,
		accessTTL: accessTTL,
		log:       log,
	}
}

// Register creates a new user record.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: empty username/password", errs.ErrInvalidInput)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	ph, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	macKey, err := crypto.GenerateMACKey(crypto.MACKeySize)
	if err != nil {
		return "", fmt.Errorf("mac key: %w", err)
	}

	u := &model.User{
		ID:           uid,
		Username:     username,
		PasswordHash: ph.Encode(),
		MACKey:       macKey,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	return uid.String(), nil
}

// LoginWithIP authenticates with rate limiting by (username, ip fingerprint).
// Unknown users and wrong passwords both yield ErrUnauthorized; a stored hash
// that cannot be verified is an internal error.
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (model.Tokens, model.User, error) {
	fp := s.fp.Fingerprint(clientHost(ip))

	allowed, _, err := s.lim.Allow(ctx, username, fp)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		// same work as a real verification, so absence does not show in timing
		s.dummyVerify(password)
		return model.Tokens{}, model.User{}, s.failure(ctx, username, fp)
	case err != nil:
		return model.Tokens{}, model.User{}, err
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return model.Tokens{}, model.User{}, fmt.Errorf("verify stored hash of %s: %w", u.ID, err)
	}
	if !ok {
		return model.Tokens{}, model.User{}, s.failure(ctx, username, fp)
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, username, fp)
	s.upgradeHash(ctx, u, password)

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// failure records a failed attempt and picks the error returned to the caller.
func (s *AuthServiceImpl) failure(ctx context.Context, username string, fp []byte) error {
	if blocked, _, err := s.lim.Failure(ctx, username, fp); err == nil && blocked {
		return errs.ErrRateLimited
	}
	return errs.ErrUnauthorized
}

func (s *AuthServiceImpl) dummyVerify(password string) {
	s.dummyOnce.Do(func() {
		if ph, err := s.hasher.Hash("passkit-dummy"); err == nil {
			s.dummy = ph.Encode()
		}
	})
	if s.dummy != "" {
		_, _ = s.hasher.Verify(password, s.dummy)
	}
}

// upgradeHash re-hashes password under the current parameters when the stored
// hash was produced with different ones. Failures are logged and ignored.
func (s *AuthServiceImpl) upgradeHash(ctx context.Context, u *model.User, password string) {
	stale, err := s.hasher.NeedsRehash(u.PasswordHash)
	if err != nil || !stale {
		return
	}
	ph, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Warn("rehash", zap.String("user_id", u.ID.String()), zap.Error(err))
		return
	}
	next := ph.Encode()
	if err := s.users.UpdatePasswordHash(ctx, u.ID, u.PasswordHash, next); err != nil {
		s.log.Warn("rehash store", zap.String("user_id", u.ID.String()), zap.Error(err))
		return
	}
	u.PasswordHash = next
	s.log.Info("password hash upgraded", zap.String("user_id", u.ID.String()))
}

// ChangePassword verifies oldPassword and stores a hash of newPassword.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	if userID == uuid.Nil || newPassword == "" {
		return fmt.Errorf("%w: userID/new password", errs.ErrInvalidInput)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(oldPassword, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify stored hash of %s: %w", u.ID, err)
	}
	if !ok {
		return errs.ErrUnauthorized
	}
	ph, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePasswordHash(ctx, u.ID, u.PasswordHash, ph.Encode())
}

// SignMessage computes HMAC-SHA256(payload) under the user's MAC key.
func (s *AuthServiceImpl) SignMessage(ctx context.Context, userID uuid.UUID, payload []byte) ([]byte, error) {
	key, err := s.macKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	return crypto.ComputeMACBytes(payload, key).Tag, nil
}

// VerifyMessage checks tag against payload under the user's MAC key.
func (s *AuthServiceImpl) VerifyMessage(ctx context.Context, userID uuid.UUID, payload, tag []byte) (bool, error) {
	key, err := s.macKey(ctx, userID)
	if err != nil {
		return false, err
	}
	return crypto.VerifyMACBytes(payload, tag, key), nil
}

func (s *AuthServiceImpl) macKey(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: userID", errs.ErrInvalidInput)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(u.MACKey) == 0 {
		return nil, fmt.Errorf("user %s has no mac key", u.ID)
	}
	return u.MACKey, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// clientHost drops the port from a peer address so that reconnects from the
// same host share a fingerprint.
func clientHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
