package service

import (
	"context"
	"errors"
	"time"

	"raccordement_backend/internal/auth/password"
	"raccordement_backend/internal/auth/repository"
	"raccordement_backend/internal/auth/roles"
	"raccordement_backend/internal/events"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/config"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/sanitize"
	"raccordement_backend/platform/token"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenType  = "access"
	refreshTokenType = "refresh"

	setupTokenTTL = 72 * time.Hour
)

var (
	errInvalidCredentials = apperr.Unauthorized("invalid credentials")
	errAccountDisabled    = apperr.Forbidden("account disabled")
	errTokenInvalid       = apperr.Unauthorized("token invalid")
	errTokenExpired       = apperr.Unauthorized("token expired")
	errWrongPassword      = apperr.BadRequest("current password is incorrect")
)

type Service struct {
	repo     repository.AuthRepository
	cfg      config.AuthServiceConfig
	eventBus events.Bus
	log      *logger.Logger
	now      func() time.Time
}

func New(repo repository.AuthRepository, cfg config.AuthServiceConfig, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, eventBus: eventBus, log: log, now: time.Now}
}

// Tokens is the pair handed out on sign-in and refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Profile is the signed-in user as returned by /users/me.
type Profile struct {
	repository.User
	Permissions []string
}

func (s *Service) SignIn(ctx context.Context, email, plainPassword string) (Tokens, error) {
	email = sanitize.Email(email)
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.AuthEvent("sign_in", email, false, "unknown email")
			return Tokens{}, errInvalidCredentials
		}
		return Tokens{}, err
	}

	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		s.log.AuthEvent("sign_in", email, false, "wrong password")
		return Tokens{}, errInvalidCredentials
	}
	if !user.IsActive {
		s.log.AuthEvent("sign_in", email, false, "account disabled")
		return Tokens{}, errAccountDisabled
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return Tokens{}, err
	}
	if err := s.repo.TouchLastLogin(ctx, user.ID); err != nil {
		s.log.Warn("failed to record last login", "userId", user.ID, "error", err)
	}
	s.log.AuthEvent("sign_in", email, true, "")
	return tokens, nil
}

// Refresh rotates the refresh token. The presented token is revoked even
// when the exchange fails afterwards.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	hash := token.HashSHA256(refreshToken)
	userID, expiresAt, err := s.repo.GetRefreshToken(ctx, hash)
	if err != nil {
		return Tokens{}, errTokenInvalid
	}
	_ = s.repo.RevokeRefreshToken(ctx, hash)

	if s.now().After(expiresAt) {
		return Tokens{}, errTokenExpired
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return Tokens{}, errTokenInvalid
	}
	if !user.IsActive {
		return Tokens{}, errAccountDisabled
	}
	return s.issueTokens(ctx, user)
}

func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	return s.repo.RevokeRefreshToken(ctx, token.HashSHA256(refreshToken))
}

// ForgotPassword never reveals whether the email belongs to an account.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, sanitize.Email(email))
	if err != nil || !user.IsActive {
		return nil
	}

	resetToken, err := s.createUserToken(ctx, user.ID, repository.TokenTypePasswordReset, s.cfg.GetResetTokenTTL())
	if err != nil {
		return err
	}

	s.eventBus.Publish(ctx, events.PasswordResetRequested{
		BaseEvent:  events.NewBaseEvent(),
		UserID:     user.ID,
		Email:      user.Email,
		ResetToken: resetToken,
	})
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	return s.consumePasswordToken(ctx, rawToken, repository.TokenTypePasswordReset, newPassword)
}

// AcceptInvite sets the first password of an invited user.
func (s *Service) AcceptInvite(ctx context.Context, rawToken, newPassword string) error {
	return s.consumePasswordToken(ctx, rawToken, repository.TokenTypeAccountSetup, newPassword)
}

// IssueSetupToken creates the one-time token sent with an invitation.
func (s *Service) IssueSetupToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return s.createUserToken(ctx, userID, repository.TokenTypeAccountSetup, setupTokenTTL)
}

// RevokeSessions signs a user out everywhere, used when an account is disabled.
func (s *Service) RevokeSessions(ctx context.Context, userID uuid.UUID) error {
	return s.repo.RevokeAllRefreshTokens(ctx, userID)
}

func (s *Service) GetMe(ctx context.Context, userID uuid.UUID) (Profile, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: user, Permissions: roles.Permissions(user.Role)}, nil
}

func (s *Service) UpdateMe(ctx context.Context, userID uuid.UUID, params repository.UpdateProfileParams) (Profile, error) {
	params.FirstName = sanitize.TextPtr(params.FirstName)
	params.LastName = sanitize.TextPtr(params.LastName)
	params.Phone = sanitize.TextPtr(params.Phone)

	user, err := s.repo.UpdateProfile(ctx, userID, params)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: user, Permissions: roles.Permissions(user.Role)}, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := password.Compare(user.PasswordHash, currentPassword); err != nil {
		return errWrongPassword
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	return s.repo.RevokeAllRefreshTokens(ctx, userID)
}

func (s *Service) consumePasswordToken(ctx context.Context, rawToken, tokenType, newPassword string) error {
	hash := token.HashSHA256(rawToken)
	userID, expiresAt, err := s.repo.GetUserToken(ctx, hash, tokenType)
	if err != nil {
		return errTokenInvalid
	}
	if s.now().After(expiresAt) {
		return errTokenExpired
	}

	passwordHash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return err
	}

	_ = s.repo.UseUserToken(ctx, hash, tokenType)
	_ = s.repo.RevokeAllRefreshTokens(ctx, userID)
	return nil
}

func (s *Service) createUserToken(ctx context.Context, userID uuid.UUID, tokenType string, ttl time.Duration) (string, error) {
	raw, err := token.Random(32)
	if err != nil {
		return "", err
	}
	if err := s.repo.CreateUserToken(ctx, userID, token.HashSHA256(raw), tokenType, s.now().Add(ttl)); err != nil {
		return "", err
	}
	return raw, nil
}

func (s *Service) issueTokens(ctx context.Context, user repository.User) (Tokens, error) {
	accessTTL := s.cfg.GetAccessTokenTTL()
	accessToken, err := s.signJWT(user.ID, roles.Expand(user.Role), accessTTL, accessTokenType, s.cfg.GetJWTAccessSecret())
	if err != nil {
		return Tokens{}, err
	}

	refreshToken, err := token.Random(48)
	if err != nil {
		return Tokens{}, err
	}
	expiresAt := s.now().Add(s.cfg.GetRefreshTokenTTL())
	if err := s.repo.CreateRefreshToken(ctx, user.ID, token.HashSHA256(refreshToken), expiresAt); err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(accessTTL / time.Second),
	}, nil
}

func (s *Service) signJWT(userID uuid.UUID, roleList []string, ttl time.Duration, tokenType, secret string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"type":  tokenType,
		"roles": roleList,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenObj.SignedString([]byte(secret))
}

// IsAuthError reports whether err should clear the refresh cookie.
func IsAuthError(err error) bool {
	var appErr *apperr.Error
	return errors.As(err, &appErr) && (appErr.Kind == apperr.KindUnauthorized || appErr.Kind == apperr.KindForbidden)
}
