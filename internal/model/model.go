// Package model содержит доменные сущности сервиса локер.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User представляет зарегистрированного пользователя с балансом в вибаксах.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash []byte
	Vbucks       int
	Role         Role
	CreatedAt    time.Time
}

// Cosmetic описывает нормализованный предмет каталога Fortnite.
// Значение живёт в рамках одного запроса и не сохраняется в БД.
type Cosmetic struct {
	ID       string  `json:"id"`
	Name     *string `json:"name"`
	Type     *string `json:"type"`
	Rarity   *string `json:"rarity"`
	ImageURL *string `json:"imageUrl"`
	Price    *int    `json:"price"`
	IsNew    *bool   `json:"isNew"`
	IsOnSale bool    `json:"isOnSale"`
}

// CosmeticFilter содержит необязательные условия отбора предметов каталога.
// Нулевое поле означает отсутствие условия.
type CosmeticFilter struct {
	Name     *string
	Type     *string
	Rarity   *string
	IsNew    *bool
	IsOnSale *bool
}

// TransactionType описывает тип операции по балансу пользователя.
type TransactionType string

const (
	TransactionCreditInitial TransactionType = "CREDIT_INITIAL"
	TransactionPurchase      TransactionType = "PURCHASE"
	TransactionRefund        TransactionType = "REFUND"
)

// Transaction описывает одну запись в истории операций пользователя.
// Записи не изменяются и не удаляются после создания.
type Transaction struct {
	ID           int64
	UserID       int64
	Type         TransactionType
	Amount       int
	BalanceAfter int
	ReferenceID  *string
	CreatedAt    time.Time
}

// OwnedCosmetic описывает факт владения предметом каталога.
// Возврат средств снимает флаг IsActive, сама запись сохраняется для истории.
type OwnedCosmetic struct {
	ID           int64
	UserID       int64
	CosmeticID   string
	CosmeticName string
	Price        int
	Rarity       *string
	IsActive     bool
	CreatedAt    time.Time
}
