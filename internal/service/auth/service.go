package auth

import (
	"context"
	"fmt"
	"time"

	"tablevoice-service/internal/domain/identity"
	xerrors "tablevoice-service/internal/pkg/errors"
	"tablevoice-service/internal/pkg/jwt"
	"tablevoice-service/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the persistence surface the auth flows need.
type UserStore interface {
	Create(ctx context.Context, u *identity.User) error
	FindByID(ctx context.Context, id int64) (*identity.User, error)
	FindByEmail(ctx context.Context, email string) (*identity.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateProfile(ctx context.Context, id int64, fullName string) error
}

type AuthService struct {
	users       UserStore
	jwtManager  *jwt.Manager
	sessions    *session.Manager
	rateLimiter *session.RateLimiter
	logger      *zap.Logger
}

func NewAuthService(users UserStore, jwtManager *jwt.Manager, sessions *session.Manager, rateLimiter *session.RateLimiter, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:       users,
		jwtManager:  jwtManager,
		sessions:    sessions,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// Register creates a dashboard account on the free tier.
func (s *AuthService) Register(ctx context.Context, req *identity.RegisterRequest) (*identity.User, error) {
	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: email already registered", xerrors.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &identity.User{
		Email:              req.Email,
		PasswordHash:       string(hash),
		FullName:           req.FullName,
		SubscriptionTier:   identity.TierFree,
		SubscriptionStatus: identity.SubscriptionTrialing,
		IsActive:           true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
	)

	return user, nil
}

// Login verifies credentials, opens a session and issues an access token.
// Attempts are rate limited per (ip, email).
func (s *AuthService) Login(ctx context.Context, req *identity.LoginRequest, clientIP string) (*identity.LoginResponse, error) {
	allowed, remaining, err := s.rateLimiter.CheckLoginAttempt(ctx, clientIP, req.Email)
	if err != nil {
		s.logger.Error("rate limit check failed", zap.Error(err))
	} else if !allowed {
		s.logger.Warn("login rate limited",
			zap.String("email", req.Email),
			zap.String("ip", clientIP),
			zap.Int64("attempts_remaining", remaining),
		)
		return nil, fmt.Errorf("%w: too many login attempts, try again later", xerrors.ErrRateLimited)
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", xerrors.ErrUnauthenticated)
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, fmt.Errorf("%w: account disabled", xerrors.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", xerrors.ErrUnauthenticated)
	}

	token, jti, err := s.jwtManager.Generator.GenerateAccessToken(user.ID, req.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	expiresAt := time.Now().Add(s.jwtManager.Generator.Ttl)
	if err := s.sessions.CreateSession(ctx, &session.SessionData{
		JTI:            jti,
		IdentityID:     user.ID,
		Email:          user.Email,
		Device:         req.Device,
		IPAddress:      clientIP,
		LoginAt:        time.Now(),
		LastActivityAt: time.Now(),
		ExpiresAt:      expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.rateLimiter.ResetLoginAttempts(ctx, clientIP, req.Email); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}

	s.logger.Info("user logged in",
		zap.Int64("user_id", user.ID),
		zap.String("device", req.Device),
	)

	return &identity.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// ValidateToken checks the access token and its backing session, returning the
// authenticated identity id.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (int64, string, error) {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(token)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", xerrors.ErrUnauthenticated, err)
	}

	if _, err := s.sessions.GetSession(ctx, claims.IdentityID, claims.ID); err != nil {
		if xerrors.Is(err, xerrors.ErrSessionExpired) {
			return 0, "", fmt.Errorf("%w: session revoked or expired", xerrors.ErrUnauthenticated)
		}
		return 0, "", err
	}

	return claims.IdentityID, claims.ID, nil
}

// Logout revokes the current session.
func (s *AuthService) Logout(ctx context.Context, identityID int64, jti string) error {
	return s.sessions.DeleteSession(ctx, identityID, jti)
}

// LogoutAll revokes every session of the identity.
func (s *AuthService) LogoutAll(ctx context.Context, identityID int64) error {
	return s.sessions.DeleteAllSessions(ctx, identityID)
}

// GetProfile returns the account behind an identity id.
func (s *AuthService) GetProfile(ctx context.Context, identityID int64) (*identity.User, error) {
	return s.users.FindByID(ctx, identityID)
}

// UpdateProfile applies the partial profile update.
func (s *AuthService) UpdateProfile(ctx context.Context, identityID int64, req *identity.UpdateProfileRequest) (*identity.User, error) {
	user, err := s.users.FindByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil && *req.FullName != user.FullName {
		if err := s.users.UpdateProfile(ctx, identityID, *req.FullName); err != nil {
			return nil, err
		}
		user.FullName = *req.FullName
	}

	return user, nil
}
