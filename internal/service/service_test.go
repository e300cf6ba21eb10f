package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/locker-system/internal/model"
	"github.com/mmeshcher/locker-system/internal/repository"
)

type stubRepo struct {
	createdName  string
	createdEmail string
	createdHash  []byte
	createdInit  int
	createUser   *model.User
	createErr    error

	userByID    *model.User
	userByIDErr error

	userByEmail    *model.User
	userByEmailErr error

	updatedUser *model.User
	updateErr   error

	purchasePrice int
	purchaseUser  *model.User
	purchaseErr   error

	refundAmount *int
	refundUser   *model.User
	refundErr    error

	transactions []model.Transaction
	owned        []model.OwnedCosmetic
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, name, email string, passwordHash []byte, initialCredits int) (*model.User, error) {
	s.createdName = name
	s.createdEmail = email
	s.createdHash = passwordHash
	s.createdInit = initialCredits
	return s.createUser, s.createErr
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.userByID, s.userByIDErr
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.userByEmail, s.userByEmailErr
}

func (s *stubRepo) ListUsers(ctx context.Context, offset, limit int) ([]model.User, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) UpdateUser(ctx context.Context, u *model.User) error {
	s.updatedUser = u
	return s.updateErr
}

func (s *stubRepo) PurchaseCosmetic(ctx context.Context, userID int64, cosmetic *model.Cosmetic, price int) (*model.User, error) {
	s.purchasePrice = price
	return s.purchaseUser, s.purchaseErr
}

func (s *stubRepo) RefundCosmetic(ctx context.Context, userID int64, cosmeticID string, amount *int) (*model.User, error) {
	s.refundAmount = amount
	return s.refundUser, s.refundErr
}

func (s *stubRepo) GetBalance(ctx context.Context, userID int64) (int, error) {
	return 0, nil
}

func (s *stubRepo) ListTransactions(ctx context.Context, userID int64) ([]model.Transaction, error) {
	return s.transactions, nil
}

func (s *stubRepo) ListOwnedCosmetics(ctx context.Context, userID int64) ([]model.OwnedCosmetic, error) {
	return s.owned, nil
}

func TestRegisterUser_Validation(t *testing.T) {
	svc := NewService(&stubRepo{})

	tests := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{"short name", "ab", "user@example.com", "secret1"},
		{"bad email", "Alice Smith", "not-an-email", "secret1"},
		{"short password", "Alice Smith", "user@example.com", "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterUser(context.Background(), tt.userName, tt.email, tt.password)
			if !errors.Is(err, ErrInvalidUserData) {
				t.Fatalf("expected ErrInvalidUserData, got %v", err)
			}
		})
	}
}

func TestRegisterUser_HashesPasswordAndSetsCredits(t *testing.T) {
	repo := &stubRepo{createUser: &model.User{ID: 1}}
	svc := NewService(repo)

	_, err := svc.RegisterUser(context.Background(), "Alice Smith", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}

	if repo.createdInit != InitialCredits {
		t.Fatalf("initial credits = %d, want %d", repo.createdInit, InitialCredits)
	}
	if err := bcrypt.CompareHashAndPassword(repo.createdHash, []byte("secret1")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if string(repo.createdHash) == "secret1" {
		t.Fatalf("password stored in plain text")
	}
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{createErr: repository.ErrUserExists}
	svc := NewService(repo)

	_, err := svc.RegisterUser(context.Background(), "Alice Smith", "alice@example.com", "secret1")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	repo := &stubRepo{userByEmail: &model.User{ID: 1, Email: "alice@example.com", PasswordHash: hash}}
	svc := NewService(repo)

	u, err := svc.AuthenticateUser(context.Background(), "alice@example.com", "correct")
	if err != nil || u.ID != 1 {
		t.Fatalf("expected success, got user=%+v err=%v", u, err)
	}

	_, err = svc.AuthenticateUser(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	repo.userByEmail = nil
	repo.userByEmailErr = repository.ErrUserNotFound
	_, err = svc.AuthenticateUser(context.Background(), "ghost@example.com", "correct")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email must look like invalid credentials, got %v", err)
	}
}

func TestUpdateUser_SkipsBlankFields(t *testing.T) {
	repo := &stubRepo{userByID: &model.User{
		ID:           1,
		Name:         "Alice Smith",
		Email:        "alice@example.com",
		PasswordHash: []byte("old-hash"),
	}}
	svc := NewService(repo)

	u, err := svc.UpdateUser(context.Background(), 1, "", "new@example.com", "")
	if err != nil {
		t.Fatalf("UpdateUser error: %v", err)
	}

	if u.Name != "Alice Smith" {
		t.Fatalf("blank name must not overwrite, got %q", u.Name)
	}
	if u.Email != "new@example.com" {
		t.Fatalf("email = %q, want new@example.com", u.Email)
	}
	if string(u.PasswordHash) != "old-hash" {
		t.Fatalf("blank password must keep old hash")
	}
}

func TestPurchaseCosmetic_UnknownUserBeforePriceCheck(t *testing.T) {
	repo := &stubRepo{userByIDErr: repository.ErrUserNotFound}
	svc := NewService(repo)

	_, err := svc.PurchaseCosmetic(context.Background(), 999, &model.Cosmetic{ID: "skin-1"})
	if !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("unknown user must win over missing price, got %v", err)
	}
}

func TestPurchaseCosmetic_InvalidPrice(t *testing.T) {
	svc := NewService(&stubRepo{})

	if _, err := svc.PurchaseCosmetic(context.Background(), 1, nil); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for nil cosmetic, got %v", err)
	}

	if _, err := svc.PurchaseCosmetic(context.Background(), 1, &model.Cosmetic{ID: "a"}); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for missing price, got %v", err)
	}

	zero := 0
	if _, err := svc.PurchaseCosmetic(context.Background(), 1, &model.Cosmetic{ID: "a", Price: &zero}); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for zero price, got %v", err)
	}
}

func TestPurchaseCosmetic_PassesPrice(t *testing.T) {
	repo := &stubRepo{purchaseUser: &model.User{ID: 1, Vbucks: 9200}}
	svc := NewService(repo)

	price := 800
	u, err := svc.PurchaseCosmetic(context.Background(), 1, &model.Cosmetic{ID: "skin-1", Price: &price})
	if err != nil {
		t.Fatalf("PurchaseCosmetic error: %v", err)
	}
	if repo.purchasePrice != 800 {
		t.Fatalf("price passed to repo = %d, want 800", repo.purchasePrice)
	}
	if u.Vbucks != 9200 {
		t.Fatalf("vbucks = %d, want 9200", u.Vbucks)
	}
}

func TestRefundCosmetic_NegativeAmount(t *testing.T) {
	svc := NewService(&stubRepo{})

	amount := -100
	_, err := svc.RefundCosmetic(context.Background(), 1, "skin-1", &amount)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRefundCosmetic_PassesAmount(t *testing.T) {
	repo := &stubRepo{refundUser: &model.User{ID: 1}}
	svc := NewService(repo)

	if _, err := svc.RefundCosmetic(context.Background(), 1, "skin-1", nil); err != nil {
		t.Fatalf("RefundCosmetic error: %v", err)
	}
	if repo.refundAmount != nil {
		t.Fatalf("nil amount must pass through as nil")
	}

	amount := 500
	if _, err := svc.RefundCosmetic(context.Background(), 1, "skin-1", &amount); err != nil {
		t.Fatalf("RefundCosmetic error: %v", err)
	}
	if repo.refundAmount == nil || *repo.refundAmount != 500 {
		t.Fatalf("amount passed to repo = %v, want 500", repo.refundAmount)
	}
}

func TestListTransactions_ChecksUser(t *testing.T) {
	repo := &stubRepo{userByIDErr: repository.ErrUserNotFound}
	svc := NewService(repo)

	_, err := svc.ListTransactions(context.Background(), 42)
	if !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
