// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/locker-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже занятым email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrCosmeticAlreadyOwned возвращается при покупке предмета, которым пользователь уже владеет.
	ErrCosmeticAlreadyOwned = errors.New("cosmetic already owned")
	// ErrOwnershipNotFound возвращается, если активное владение предметом не найдено.
	ErrOwnershipNotFound = errors.New("active ownership not found")
	// ErrInsufficientFunds возвращается при покупке на сумму, превышающую баланс.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Повторяем только сбои сериализации и дедлоки; переподключением занимается pgxpool.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт пользователя со стартовым балансом и записывает
// начальную транзакцию CREDIT_INITIAL. Обе записи создаются в одной транзакции.
func (r *PostgresRepository) CreateUser(ctx context.Context, name, email string, passwordHash []byte, initialCredits int) (*model.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	u := model.User{
		Name:   name,
		Email:  email,
		Vbucks: initialCredits,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, vbucks)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, password_hash, role, created_at`,
		name, email, passwordHash, initialCredits,
	).Scan(&u.ID, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (user_id, type, amount, balance_after)
		 VALUES ($1, $2, $3, $4)`,
		u.ID, string(model.TransactionCreditInitial), initialCredits, initialCredits,
	)
	if err != nil {
		return nil, fmt.Errorf("insert initial transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, vbucks, role, created_at
		 FROM users WHERE id = $1`,
		id,
	))
}

// GetUserByEmail возвращает пользователя по адресу электронной почты.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, vbucks, role, created_at
		 FROM users WHERE email = $1`,
		email,
	))
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Vbucks, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ListUsers возвращает страницу пользователей и общее их количество.
func (r *PostgresRepository) ListUsers(ctx context.Context, offset, limit int) ([]model.User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, password_hash, vbucks, role, created_at
		 FROM users
		 ORDER BY id
		 OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Vbucks, &u.Role, &u.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return users, total, nil
}

// UpdateUser обновляет имя, email и хеш пароля пользователя.
// Баланс этим методом не меняется: им владеют операции покупки и возврата.
func (r *PostgresRepository) UpdateUser(ctx context.Context, u *model.User) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET name = $2, email = $3, password_hash = $4 WHERE id = $1`,
		u.ID, u.Name, u.Email, u.PasswordHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// PurchaseCosmetic списывает стоимость предмета с баланса, создаёт активное
// владение и запись PURCHASE в истории. Вся операция выполняется в одной
// транзакции; строка пользователя блокируется, чтобы параллельные покупки
// не прочитали один и тот же баланс.
func (r *PostgresRepository) PurchaseCosmetic(ctx context.Context, userID int64, cosmetic *model.Cosmetic, price int) (*model.User, error) {
	var updated *model.User

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (
			    SELECT 1 FROM owned_cosmetics
			    WHERE user_id = $1 AND cosmetic_id = $2 AND is_active
			 )`,
			userID, cosmetic.ID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check ownership: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrCosmeticAlreadyOwned, cosmetic.ID)
		}

		if u.Vbucks < price {
			return ErrInsufficientFunds
		}

		u.Vbucks -= price
		_, err = tx.Exec(ctx,
			`UPDATE users SET vbucks = $2 WHERE id = $1`,
			userID, u.Vbucks,
		)
		if err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}

		var name string
		if cosmetic.Name != nil {
			name = *cosmetic.Name
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO owned_cosmetics (user_id, cosmetic_id, cosmetic_name, price, rarity)
			 VALUES ($1, $2, $3, $4, $5)`,
			userID, cosmetic.ID, name, price, cosmetic.Rarity,
		)
		if err != nil {
			return fmt.Errorf("insert ownership: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO transactions (user_id, type, amount, balance_after, reference_id)
			 VALUES ($1, $2, $3, $4, $5)`,
			userID, string(model.TransactionPurchase), -price, u.Vbucks, cosmetic.ID,
		)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// RefundCosmetic деактивирует владение предметом и возвращает средства на баланс.
// Если сумма не указана, возвращается цена, уплаченная при покупке.
// Запись о владении не удаляется, чтобы история покупок сохранялась.
func (r *PostgresRepository) RefundCosmetic(ctx context.Context, userID int64, cosmeticID string, amount *int) (*model.User, error) {
	var updated *model.User

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		var ownershipID int64
		var paidPrice int
		err = tx.QueryRow(ctx,
			`SELECT id, price FROM owned_cosmetics
			 WHERE user_id = $1 AND cosmetic_id = $2 AND is_active
			 FOR UPDATE`,
			userID, cosmeticID,
		).Scan(&ownershipID, &paidPrice)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrOwnershipNotFound, cosmeticID)
			}
			return fmt.Errorf("select ownership: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE owned_cosmetics SET is_active = FALSE WHERE id = $1`,
			ownershipID,
		)
		if err != nil {
			return fmt.Errorf("deactivate ownership: %w", err)
		}

		refund := paidPrice
		if amount != nil {
			refund = *amount
		}

		u.Vbucks += refund
		_, err = tx.Exec(ctx,
			`UPDATE users SET vbucks = $2 WHERE id = $1`,
			userID, u.Vbucks,
		)
		if err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO transactions (user_id, type, amount, balance_after, reference_id)
			 VALUES ($1, $2, $3, $4, $5)`,
			userID, string(model.TransactionRefund), refund, u.Vbucks, cosmeticID,
		)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func lockUser(ctx context.Context, tx pgx.Tx, userID int64) (*model.User, error) {
	var u model.User
	err := tx.QueryRow(ctx,
		`SELECT id, name, email, password_hash, vbucks, role, created_at
		 FROM users WHERE id = $1
		 FOR UPDATE`,
		userID,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Vbucks, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user for update: %w", err)
	}
	return &u, nil
}

// GetBalance возвращает текущий баланс пользователя в вибаксах.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID int64) (int, error) {
	var vbucks int
	err := r.pool.QueryRow(ctx,
		`SELECT vbucks FROM users WHERE id = $1`,
		userID,
	).Scan(&vbucks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return vbucks, nil
}

// ListTransactions возвращает историю операций пользователя от новых к старым.
func (r *PostgresRepository) ListTransactions(ctx context.Context, userID int64) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, type, amount, balance_after, reference_id, created_at
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var txType string
		if err := rows.Scan(&t.ID, &t.UserID, &txType, &t.Amount, &t.BalanceAfter, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = model.TransactionType(txType)
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListOwnedCosmetics возвращает активные владения пользователя от новых к старым.
func (r *PostgresRepository) ListOwnedCosmetics(ctx context.Context, userID int64) ([]model.OwnedCosmetic, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, cosmetic_id, cosmetic_name, price, rarity, is_active, created_at
		 FROM owned_cosmetics
		 WHERE user_id = $1 AND is_active
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select owned cosmetics: %w", err)
	}
	defer rows.Close()

	var res []model.OwnedCosmetic
	for rows.Next() {
		var oc model.OwnedCosmetic
		if err := rows.Scan(&oc.ID, &oc.UserID, &oc.CosmeticID, &oc.CosmeticName, &oc.Price, &oc.Rarity, &oc.IsActive, &oc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan owned cosmetic: %w", err)
		}
		res = append(res, oc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
