package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sevakart/sevakart-backend/internal/referral"
	"github.com/sevakart/sevakart-backend/internal/users"
	pkgauth "github.com/sevakart/sevakart-backend/pkg/auth"
	"github.com/sevakart/sevakart-backend/pkg/config"
	"github.com/sevakart/sevakart-backend/pkg/db/models"
	"github.com/sevakart/sevakart-backend/pkg/enums"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	"github.com/sevakart/sevakart-backend/pkg/security"
)

// Service registers accounts and issues access tokens.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
}

// RegisterInput carries the sign-up form fields.
type RegisterInput struct {
	Name         string
	Email        string
	Phone        *string
	Password     string
	ReferralCode string
}

// Session is a freshly authenticated user plus their access token.
type Session struct {
	User        *models.User
	AccessToken string
	ExpiresAt   time.Time
}

// Params collects auth service dependencies.
type Params struct {
	Users     users.Service
	UsersRepo users.Repository
	Referrals referral.Service
	JWT       config.JWTConfig
	Password  config.PasswordConfig
	Logger    *logger.Logger
}

type service struct {
	users     users.Service
	usersRepo users.Repository
	referrals referral.Service
	jwt       config.JWTConfig
	password  config.PasswordConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the auth service. Referrals may be nil when signup
// referral codes are not in play.
func NewService(p Params) (Service, error) {
	if p.Users == nil || p.UsersRepo == nil {
		return nil, fmt.Errorf("users service and repository required")
	}
	if p.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		users:     p.Users,
		usersRepo: p.UsersRepo,
		referrals: p.Referrals,
		jwt:       p.JWT,
		password:  p.Password,
		logg:      p.Logger,
		now:       time.Now,
	}, nil
}

const minPasswordLength = 8

// Register creates the account and, if a referral code was supplied, applies
// it best-effort after the account exists.
func (s *service) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	if len(input.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	user, err := s.users.Create(ctx, users.CreateUserInput{
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: hash,
		Role:         enums.UserRoleCustomer,
	})
	if err != nil {
		return nil, err
	}

	if s.referrals != nil && input.ReferralCode != "" {
		s.referrals.ApplyOnSignup(ctx, user.ID, input.ReferralCode)
	}

	return s.startSession(ctx, user)
}

// Login verifies credentials against the stored hash. The error for a
// missing account and a bad password is the same on purpose.
func (s *service) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is disabled")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	if err := s.usersRepo.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "recording last login failed", err)
	}

	return s.startSession(ctx, user)
}

func (s *service) startSession(ctx context.Context, user *models.User) (*Session, error) {
	now := s.now()
	token, err := pkgauth.MintAccessToken(s.jwt, now, pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}
	return &Session{
		User:        user,
		AccessToken: token,
		ExpiresAt:   now.Add(s.jwt.Expiration()),
	}, nil
}
