// Package service реализует бизнес-логику сервиса локер.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/locker-system/internal/model"
	"github.com/mmeshcher/locker-system/internal/repository"
	"github.com/mmeshcher/locker-system/internal/validation"
)

// InitialCredits — стартовый баланс нового пользователя в вибаксах.
const InitialCredits = 10000

// ErrInvalidPrice возвращается при покупке предмета без цены или с неположительной ценой.
var (
	ErrInvalidPrice = errors.New("invalid cosmetic price")
	// ErrInvalidAmount возвращается при отрицательной сумме возврата.
	ErrInvalidAmount = errors.New("invalid refund amount")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidUserData возвращается, если данные пользователя не проходят валидацию.
	ErrInvalidUserData = errors.New("invalid user data")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, name, email string, passwordHash []byte, initialCredits int) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]model.User, int, error)
	UpdateUser(ctx context.Context, u *model.User) error
	PurchaseCosmetic(ctx context.Context, userID int64, cosmetic *model.Cosmetic, price int) (*model.User, error)
	RefundCosmetic(ctx context.Context, userID int64, cosmeticID string, amount *int) (*model.User, error)
	GetBalance(ctx context.Context, userID int64) (int, error)
	ListTransactions(ctx context.Context, userID int64) ([]model.Transaction, error)
	ListOwnedCosmetics(ctx context.Context, userID int64) ([]model.OwnedCosmetic, error)
}

// Service содержит бизнес-логику работы с пользователями и их балансом.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя со стартовым балансом.
func (s *Service) RegisterUser(ctx context.Context, name, email, password string) (*model.User, error) {
	if !validation.IsValidName(name) {
		return nil, fmt.Errorf("%w: name must be between 3 and 80 characters", ErrInvalidUserData)
	}
	if !validation.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidUserData)
	}
	if !validation.IsValidPassword(password) {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidUserData)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.CreateUser(ctx, strings.TrimSpace(name), email, hash, InitialCredits)
}

// AuthenticateUser проверяет email и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ListUsers возвращает страницу пользователей и общее их количество.
func (s *Service) ListUsers(ctx context.Context, page, size int) ([]model.User, int, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}
	return s.repo.ListUsers(ctx, page*size, size)
}

// UpdateUser обновляет имя, email и пароль пользователя.
// Пустые поля запроса не изменяют текущие значения.
func (s *Service) UpdateUser(ctx context.Context, id int64, name, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) != "" {
		if !validation.IsValidName(name) {
			return nil, fmt.Errorf("%w: name must be between 3 and 80 characters", ErrInvalidUserData)
		}
		u.Name = strings.TrimSpace(name)
	}
	if strings.TrimSpace(email) != "" {
		if !validation.IsValidEmail(email) {
			return nil, fmt.Errorf("%w: malformed email", ErrInvalidUserData)
		}
		u.Email = email
	}
	if strings.TrimSpace(password) != "" {
		if !validation.IsValidPassword(password) {
			return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidUserData)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}

	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

// PurchaseCosmetic покупает предмет каталога для пользователя.
// Сначала проверяется существование пользователя, затем цена предмета;
// проверки состояния и списание выполняются в одной транзакции хранилища.
func (s *Service) PurchaseCosmetic(ctx context.Context, userID int64, cosmetic *model.Cosmetic) (*model.User, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	if cosmetic == nil || cosmetic.Price == nil || *cosmetic.Price <= 0 {
		return nil, ErrInvalidPrice
	}

	return s.repo.PurchaseCosmetic(ctx, userID, cosmetic, *cosmetic.Price)
}

// RefundCosmetic возвращает предмет и зачисляет средства на баланс.
// Без явной суммы возвращается цена покупки.
func (s *Service) RefundCosmetic(ctx context.Context, userID int64, cosmeticID string, amount *int) (*model.User, error) {
	if amount != nil && *amount < 0 {
		return nil, ErrInvalidAmount
	}

	return s.repo.RefundCosmetic(ctx, userID, cosmeticID, amount)
}

// GetBalance возвращает текущий баланс пользователя.
func (s *Service) GetBalance(ctx context.Context, userID int64) (int, error) {
	return s.repo.GetBalance(ctx, userID)
}

// ListTransactions возвращает историю операций пользователя от новых к старым.
func (s *Service) ListTransactions(ctx context.Context, userID int64) ([]model.Transaction, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, userID)
}

// ListOwnedCosmetics возвращает активные предметы пользователя.
func (s *Service) ListOwnedCosmetics(ctx context.Context, userID int64) ([]model.OwnedCosmetic, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListOwnedCosmetics(ctx, userID)
}
