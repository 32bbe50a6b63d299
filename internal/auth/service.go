package auth

import (
	"context"
	"errors"
	"time"

	"locallibrary/internal/loan"
	"locallibrary/internal/platform/crypto"
	"locallibrary/internal/user"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

const accessTokenTTL = 15 * time.Minute

// PermissionsForRole maps an account role to the permission names put into
// its tokens.
func PermissionsForRole(role string) []string {
	if role == user.RoleStaff {
		return []string{loan.CanManageLoans}
	}
	return nil
}

type Service struct {
	secret      string
	userService *user.Service
}

func NewService(secret string, userService *user.Service) *Service {
	return &Service{secret: secret, userService: userService}
}

func (s *Service) Register(ctx context.Context, email, username, password string) (user.User, error) {
	if err := crypto.ValidatePasswordStrength(password); err != nil {
		return user.User{}, err
	}
	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return user.User{}, err
	}
	return s.userService.Register(ctx, email, username, hashed)
}

// Login verifies credentials and issues an access token whose claims carry
// the permissions granted to the account's role.
func (s *Service) Login(ctx context.Context, email, password string) (string, int, error) {
	u, err := s.userService.GetByEmail(ctx, email)
	if err != nil || !crypto.VerifyPassword(u.Password, password) {
		return "", 0, ErrUnauthorized
	}

	token, err := crypto.GenerateToken(s.secret, u.ID, u.Role, PermissionsForRole(u.Role), accessTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return token, int(accessTokenTTL.Seconds()), nil
}
