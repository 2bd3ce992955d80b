// Package auth содержит логику бизнес-уровня для работы с пользователями
// и аутентификацией.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/membership-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/membership-portal/internal/lib/password"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его UID.
	RegisterUser(ctx context.Context, user models.User) (string, error)

	// GetUserByUsername возвращает пользователя по имени или ошибку, если не найден.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// UpdateUserRole изменяет роль пользователя.
	UpdateUserRole(ctx context.Context, userUID, role string) error
}

// AuthService отвечает за регистрацию, авторизацию и валидацию JWT.
type AuthService struct {
	users    UserRepository
	jwtMaker jwt.Maker
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker) *AuthService {
	return &AuthService{
		users:    users,
		jwtMaker: jwtMaker,
	}
}

// Register регистрирует нового пользователя и возвращает его UID.
func (a *AuthService) Register(ctx context.Context, username, rawPassword, email string) (string, error) {
	const op = "auth.Register"

	hash, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	uid, err := a.users.RegisterUser(ctx, models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return uid, nil
}

// Login проверяет пару логин/пароль и возвращает JWT с ролью пользователя.
func (a *AuthService) Login(ctx context.Context, username, rawPassword string) (token, role string, err error) {
	const op = "auth.Login"

	u, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err := password.CompareHash(u.PasswordHash, rawPassword); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err = a.jwtMaker.GenerateToken(u.Username, u.Role, u.UID)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return token, u.Role, nil
}

// ValidateToken проверяет JWT и возвращает claims.
func (a *AuthService) ValidateToken(_ context.Context, tokenStr string) (*jwt.CustomClaims, error) {
	return a.jwtMaker.ParseToken(tokenStr)
}

// UpdateUserRole — административная правка роли пользователя.
func (a *AuthService) UpdateUserRole(ctx context.Context, userUID, role string) error {
	const op = "auth.UpdateUserRole"
	if role != models.RoleUser && role != models.RoleAdmin {
		return fmt.Errorf("%s: unknown role %s", op, role)
	}
	if err := a.users.UpdateUserRole(ctx, userUID, role); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
