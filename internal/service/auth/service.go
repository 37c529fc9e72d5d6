package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"socialnet/internal/config"
	"socialnet/internal/domain"
	"socialnet/internal/repository"
	"socialnet/internal/service/email"
	"socialnet/internal/session"
)

var (
	ErrParamsMissing      = errors.New("errors.params_missing")
	ErrInvalidEmailFormat = errors.New("errors.invalid_email_format")
	ErrEmailExists        = errors.New("errors.email_already_registered")
	ErrInvalidCredentials = errors.New("errors.invalid_credentials")
	ErrInvalidToken       = errors.New("errors.invalid_token")
	ErrUserNotFound       = errors.New("errors.user_not_found")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Service interface {
	Register(ctx context.Context, input domain.CreateUserInput) (*domain.User, error)
	Login(ctx context.Context, input domain.LoginInput) (*domain.LoginResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, sessionToken string) error
	ValidateAccessToken(token string) (*Claims, error)
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
}

type Claims struct {
	Roles string `json:"roles"`
	jwt.RegisteredClaims
}

type service struct {
	userRepo     repository.UserRepository
	refreshRepo  repository.RefreshTokenRepository
	sessions     session.Store
	emailService email.Service
	cfg          *config.Config
	log          *zap.Logger
}

func NewService(
	userRepo repository.UserRepository,
	refreshRepo repository.RefreshTokenRepository,
	sessions session.Store,
	emailService email.Service,
	cfg *config.Config,
	log *zap.Logger,
) Service {
	return &service{
		userRepo:     userRepo,
		refreshRepo:  refreshRepo,
		sessions:     sessions,
		emailService: emailService,
		cfg:          cfg,
		log:          log,
	}
}

func (s *service) Register(ctx context.Context, input domain.CreateUserInput) (*domain.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || input.Password == "" {
		return nil, ErrParamsMissing
	}
	if !emailPattern.MatchString(input.Email) {
		return nil, ErrInvalidEmailFormat
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Roles:        domain.DefaultRole,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.emailService.SendWelcomeEmail(ctx, user.Email, user.DisplayName()); err != nil {
			s.log.Warn("failed to send welcome email", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}()

	return user, nil
}

func (s *service) Login(ctx context.Context, input domain.LoginInput) (*domain.LoginResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || input.Password == "" {
		return nil, ErrParamsMissing
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sessionToken, err := s.sessions.Create(ctx, user.ID.String())
	if err != nil {
		return nil, err
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		_ = s.sessions.Destroy(ctx, sessionToken)
		return nil, err
	}

	return &domain.LoginResult{User: user, Tokens: tokens, SessionToken: sessionToken}, nil
}

// RefreshToken rotates a refresh token: the presented one is revoked and a
// fresh pair issued.
func (s *service) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrParamsMissing
	}

	stored, err := s.refreshRepo.GetByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.RevokedAt != nil || time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := s.refreshRepo.Revoke(ctx, stored.ID); err != nil {
		return nil, err
	}

	return s.generateTokenPair(ctx, user)
}

// Logout destroys the session and revokes every refresh token of its owner.
// Unknown or expired sessions are not an error.
func (s *service) Logout(ctx context.Context, sessionToken string) error {
	identity, err := s.sessions.Resolve(ctx, sessionToken)
	if err != nil && !errors.Is(err, session.ErrUnauthenticated) {
		return err
	}
	if err := s.sessions.Destroy(ctx, sessionToken); err != nil {
		return err
	}
	if id, err := uuid.Parse(identity.String()); err == nil {
		return s.refreshRepo.RevokeAllForUser(ctx, id)
	}
	return nil
}

func (s *service) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *service) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *service) generateTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	now := time.Now()
	accessClaims := &Claims{
		Roles: user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTAccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}

	refreshTokenRaw := uuid.New().String()
	stored := &repository.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(refreshTokenRaw),
		ExpiresAt: now.Add(s.cfg.JWTRefreshExpiry),
	}
	if err := s.refreshRepo.Create(ctx, stored); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenRaw,
		ExpiresIn:    int64(s.cfg.JWTAccessExpiry.Seconds()),
	}, nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
