// Package handler содержит HTTP-обработчики API сервиса локер.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/locker-system/internal/catalog"
	"github.com/mmeshcher/locker-system/internal/middleware"
	"github.com/mmeshcher/locker-system/internal/model"
	"github.com/mmeshcher/locker-system/internal/repository"
	"github.com/mmeshcher/locker-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, name, email, password string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context, page, size int) ([]model.User, int, error)
	UpdateUser(ctx context.Context, id int64, name, email, password string) (*model.User, error)
	PurchaseCosmetic(ctx context.Context, userID int64, cosmetic *model.Cosmetic) (*model.User, error)
	RefundCosmetic(ctx context.Context, userID int64, cosmeticID string, amount *int) (*model.User, error)
	GetBalance(ctx context.Context, userID int64) (int, error)
	ListTransactions(ctx context.Context, userID int64) ([]model.Transaction, error)
	ListOwnedCosmetics(ctx context.Context, userID int64) ([]model.OwnedCosmetic, error)
}

// Catalog определяет контракт сервиса каталога косметики.
type Catalog interface {
	ListAll(ctx context.Context, filter *model.CosmeticFilter, pr catalog.PageRequest) catalog.Page
	ListNew(ctx context.Context, pr catalog.PageRequest) catalog.Page
	ListShop(ctx context.Context, pr catalog.PageRequest) catalog.Page
	GetByID(ctx context.Context, id string) *model.Cosmetic
}

// Handler реализует HTTP-обработчики API сервиса локер.
type Handler struct {
	service        Service
	catalog        Catalog
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, c Catalog, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		catalog:        c,
		logger:         logger,
		authMiddleware: auth,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Type  string `json:"type"`
}

// Login выполняет аутентификацию пользователя и выдаёт токен доступа.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, err := h.authMiddleware.IssueToken(u.ID)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, Type: "Bearer"})
}

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Vbucks    int    `json:"vbucks"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Vbucks:    u.Vbucks,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// CreateUser обрабатывает регистрацию нового пользователя.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUserData):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrUserExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("register user error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// GetUser возвращает пользователя по идентификатору.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get user error", zap.Error(err), zap.Int64("userID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type userPageResponse struct {
	Content       []userResponse `json:"content"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalElements int            `json:"totalElements"`
}

// ListUsers возвращает страницу зарегистрированных пользователей.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	pr := parsePageRequest(r)

	users, total, err := h.service.ListUsers(r.Context(), pr.Page, pr.Size)
	if err != nil {
		h.logger.Error("list users error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := userPageResponse{
		Content:       make([]userResponse, 0, len(users)),
		Page:          pr.Page,
		Size:          pr.Size,
		TotalElements: total,
	}
	for i := range users {
		resp.Content = append(resp.Content, toUserResponse(&users[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateUser обновляет имя, email и пароль пользователя.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.UpdateUser(r.Context(), id, req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrInvalidUserData):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrUserExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("update user error", zap.Error(err), zap.Int64("userID", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// ListCosmetics возвращает страницу полного каталога с учётом фильтра из строки запроса.
func (h *Handler) ListCosmetics(w http.ResponseWriter, r *http.Request) {
	page := h.catalog.ListAll(r.Context(), parseCosmeticFilter(r), parsePageRequest(r))
	writeJSON(w, http.StatusOK, page)
}

// ListNewCosmetics возвращает страницу ленты новинок.
func (h *Handler) ListNewCosmetics(w http.ResponseWriter, r *http.Request) {
	page := h.catalog.ListNew(r.Context(), parsePageRequest(r))
	writeJSON(w, http.StatusOK, page)
}

// ListShopCosmetics возвращает страницу витрины магазина.
func (h *Handler) ListShopCosmetics(w http.ResponseWriter, r *http.Request) {
	page := h.catalog.ListShop(r.Context(), parsePageRequest(r))
	writeJSON(w, http.StatusOK, page)
}

// GetCosmetic возвращает один предмет каталога.
func (h *Handler) GetCosmetic(w http.ResponseWriter, r *http.Request) {
	c := h.catalog.GetByID(r.Context(), chi.URLParam(r, "id"))
	if c == nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// PurchaseCosmetic покупает предмет каталога для пользователя.
// Предмет запрашивается у внешнего каталога по идентификатору из URL.
func (h *Handler) PurchaseCosmetic(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	cosmeticID := chi.URLParam(r, "cosmeticID")
	cosmetic := h.catalog.GetByID(r.Context(), cosmeticID)
	if cosmetic == nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	u, err := h.service.PurchaseCosmetic(r.Context(), userID, cosmetic)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrInvalidPrice):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrCosmeticAlreadyOwned):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrInsufficientFunds):
			http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
		default:
			h.logger.Error("purchase error", zap.Error(err),
				zap.Int64("userID", userID), zap.String("cosmeticID", cosmeticID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type refundRequest struct {
	Amount *int `json:"amount"`
}

// RefundCosmetic возвращает предмет и зачисляет средства на баланс пользователя.
func (h *Handler) RefundCosmetic(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	cosmeticID := chi.URLParam(r, "cosmeticID")

	u, err := h.service.RefundCosmetic(r.Context(), userID, cosmeticID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrOwnershipNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrInvalidAmount):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		default:
			h.logger.Error("refund error", zap.Error(err),
				zap.Int64("userID", userID), zap.String("cosmeticID", cosmeticID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type balanceResponse struct {
	Vbucks int `json:"vbucks"`
}

// GetBalance возвращает текущий баланс пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	vbucks, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get balance error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Vbucks: vbucks})
}

type transactionResponse struct {
	ID           int64   `json:"id"`
	Type         string  `json:"type"`
	Amount       int     `json:"amount"`
	BalanceAfter int     `json:"balanceAfter"`
	ReferenceID  *string `json:"referenceId,omitempty"`
	CreatedAt    string  `json:"createdAt"`
}

// GetTransactions возвращает историю операций пользователя от новых к старым.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	transactions, err := h.service.ListTransactions(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get transactions error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(transactions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, transactionResponse{
			ID:           t.ID,
			Type:         string(t.Type),
			Amount:       t.Amount,
			BalanceAfter: t.BalanceAfter,
			ReferenceID:  t.ReferenceID,
			CreatedAt:    t.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type ownedCosmeticResponse struct {
	CosmeticID   string  `json:"cosmeticId"`
	CosmeticName string  `json:"cosmeticName"`
	Price        int     `json:"price"`
	Rarity       *string `json:"rarity,omitempty"`
	CreatedAt    string  `json:"createdAt"`
}

// GetOwnedCosmetics возвращает активные предметы пользователя.
func (h *Handler) GetOwnedCosmetics(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	owned, err := h.service.ListOwnedCosmetics(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get owned cosmetics error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(owned) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]ownedCosmeticResponse, 0, len(owned))
	for _, oc := range owned {
		resp = append(resp, ownedCosmeticResponse{
			CosmeticID:   oc.CosmeticID,
			CosmeticName: oc.CosmeticName,
			Price:        oc.Price,
			Rarity:       oc.Rarity,
			CreatedAt:    oc.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func parsePageRequest(r *http.Request) catalog.PageRequest {
	var pr catalog.PageRequest
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		pr.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil {
		pr.Size = v
	}
	return pr
}

// parseCosmeticFilter собирает фильтр каталога из строки запроса.
// Возвращает nil, если ни один параметр фильтра не задан.
func parseCosmeticFilter(r *http.Request) *model.CosmeticFilter {
	q := r.URL.Query()
	filter := &model.CosmeticFilter{}
	present := false

	for key, dst := range map[string]**string{
		"name":   &filter.Name,
		"type":   &filter.Type,
		"rarity": &filter.Rarity,
	} {
		if q.Has(key) {
			v := q.Get(key)
			*dst = &v
			present = true
		}
	}

	for key, dst := range map[string]**bool{
		"isNew":    &filter.IsNew,
		"isOnSale": &filter.IsOnSale,
	} {
		if q.Has(key) {
			if v, err := strconv.ParseBool(q.Get(key)); err == nil {
				*dst = &v
				present = true
			}
		}
	}

	if !present {
		return nil
	}
	return filter
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
