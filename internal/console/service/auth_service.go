package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xela07ax/apicalculator/internal/domain"
	"github.com/xela07ax/apicalculator/internal/infra"
	"github.com/xela07ax/apicalculator/internal/infra/auth"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository хранилище учетных записей.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User, role domain.Role) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

type TokenIssuer interface {
	Issue(user *domain.User) (string, time.Time, error)
}

type AuthService struct {
	repo       UserRepository
	issuer     TokenIssuer
	bcryptCost int
	logger     *zap.Logger
	metrics    *infra.Metrics
}

func NewAuthService(repo UserRepository, issuer TokenIssuer, bcryptCost int, logger *zap.Logger, metrics *infra.Metrics) *AuthService {
	return &AuthService{
		repo:       repo,
		issuer:     issuer,
		bcryptCost: bcryptCost,
		logger:     logger.Named("auth-service"),
		metrics:    metrics,
	}
}

// Register создает пользователя с ролью User.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	return s.register(ctx, req, domain.RoleUser)
}

// RegisterAdmin создает пользователя с ролью Admin.
func (s *AuthService) RegisterAdmin(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	return s.register(ctx, req, domain.RoleAdmin)
}

func (s *AuthService) register(ctx context.Context, req domain.RegisterRequest, role domain.Role) (*domain.User, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", domain.ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return nil, fmt.Errorf("%w: email is not a valid address", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(req.Password) < domain.MinPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password longer than 72 bytes", domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := s.repo.CreateUser(ctx, user, role); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Warn("registration conflict", zap.String("username", req.Username))
		} else {
			s.logger.Error("registration failed", zap.String("username", req.Username), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("username", user.Username),
		zap.String("identity_id", user.ID),
		zap.String("role", string(role)))
	return user, nil
}

// VerifyLogin возвращает пользователя с ролями, ErrUserNotFound или ErrBadPassword.
func (s *AuthService) VerifyLogin(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrBadPassword
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}

	s.logger.Info("login attempt", zap.String("username", req.Username))

	user, err := s.VerifyLogin(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			reason := auth.Reason(err)
			s.metrics.AuthFailures.WithLabelValues(reason).Inc()
			s.logger.Warn("login rejected", zap.String("username", req.Username), zap.String("reason", reason))
		} else {
			s.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		}
		return nil, err
	}

	token, exp, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("login succeeded", zap.String("username", user.Username), zap.Time("expiration", exp))
	return &domain.TokenResponse{Token: token, Expiration: exp}, nil
}
