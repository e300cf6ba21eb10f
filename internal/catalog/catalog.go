// Package catalog реализует фильтрацию, сортировку и постраничную выдачу
// нормализованного каталога косметики.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/mmeshcher/locker-system/internal/model"
)

// DefaultPageSize применяется, когда размер страницы не задан или некорректен.
const DefaultPageSize = 20

// Fetcher описывает контракт клиента внешнего каталога.
type Fetcher interface {
	GetAllCosmetics(ctx context.Context) []model.Cosmetic
	GetNewCosmetics(ctx context.Context) []model.Cosmetic
	GetShopItems(ctx context.Context) []model.Cosmetic
	GetCosmeticByID(ctx context.Context, id string) *model.Cosmetic
}

// Service выполняет запросы к каталогу поверх данных, полученных на время запроса.
type Service struct {
	client Fetcher
}

// NewService создаёт сервис каталога поверх указанного клиента.
func NewService(client Fetcher) *Service {
	return &Service{client: client}
}

// PageRequest описывает запрошенную страницу выдачи.
type PageRequest struct {
	Page int
	Size int
}

// Page содержит одну страницу выдачи каталога и сведения о полном объёме.
type Page struct {
	Content       []model.Cosmetic `json:"content"`
	Page          int              `json:"page"`
	Size          int              `json:"size"`
	TotalElements int              `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
}

// ListAll возвращает страницу полного каталога с учётом фильтра.
// Результат всегда отсортирован по имени без учёта регистра, пустые имена в конце.
func (s *Service) ListAll(ctx context.Context, filter *model.CosmeticFilter, pr PageRequest) Page {
	pr = normalizePageRequest(pr)
	all := s.client.GetAllCosmetics(ctx)
	filtered := applyFilter(all, filter)
	return paginate(filtered, pr)
}

// ListNew возвращает страницу ленты новинок в порядке источника.
func (s *Service) ListNew(ctx context.Context, pr PageRequest) Page {
	pr = normalizePageRequest(pr)
	return paginate(s.client.GetNewCosmetics(ctx), pr)
}

// ListShop возвращает страницу витрины магазина в порядке источника.
func (s *Service) ListShop(ctx context.Context, pr PageRequest) Page {
	pr = normalizePageRequest(pr)
	return paginate(s.client.GetShopItems(ctx), pr)
}

// GetByID возвращает один предмет каталога либо nil, если предмет не найден
// или внешний каталог недоступен.
func (s *Service) GetByID(ctx context.Context, id string) *model.Cosmetic {
	return s.client.GetCosmeticByID(ctx, id)
}

// applyFilter применяет условия фильтра как конъюнкцию; нулевое поле фильтра
// пропускает все записи. Без фильтра выполняется только сортировка.
func applyFilter(list []model.Cosmetic, filter *model.CosmeticFilter) []model.Cosmetic {
	if len(list) == 0 {
		return nil
	}
	if filter == nil {
		return sortByName(list)
	}

	res := make([]model.Cosmetic, 0, len(list))
	for _, c := range list {
		if filter.Name != nil && !containsIgnoreCase(c.Name, *filter.Name) {
			continue
		}
		if filter.Type != nil && !equalStringPtr(c.Type, *filter.Type) {
			continue
		}
		if filter.Rarity != nil && !equalStringPtr(c.Rarity, *filter.Rarity) {
			continue
		}
		if filter.IsNew != nil && (c.IsNew == nil || *c.IsNew != *filter.IsNew) {
			continue
		}
		if filter.IsOnSale != nil && c.IsOnSale != *filter.IsOnSale {
			continue
		}
		res = append(res, c)
	}

	return sortByName(res)
}

func containsIgnoreCase(text *string, token string) bool {
	if text == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*text), strings.ToLower(token))
}

func equalStringPtr(value *string, want string) bool {
	return value != nil && *value == want
}

func sortByName(list []model.Cosmetic) []model.Cosmetic {
	res := make([]model.Cosmetic, len(list))
	copy(res, list)

	sort.SliceStable(res, func(i, j int) bool {
		a, b := res[i].Name, res[j].Name
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return strings.ToLower(*a) < strings.ToLower(*b)
	})

	return res
}

// paginate вырезает запрошенную страницу. Смещение за пределами коллекции
// даёт пустую страницу с корректным общим количеством элементов.
func paginate(list []model.Cosmetic, pr PageRequest) Page {
	total := len(list)
	page := Page{
		Content:       []model.Cosmetic{},
		Page:          pr.Page,
		Size:          pr.Size,
		TotalElements: total,
		TotalPages:    (total + pr.Size - 1) / pr.Size,
	}

	start := pr.Page * pr.Size
	if start >= total {
		return page
	}

	end := start + pr.Size
	if end > total {
		end = total
	}

	page.Content = list[start:end]
	return page
}

func normalizePageRequest(pr PageRequest) PageRequest {
	if pr.Page < 0 {
		pr.Page = 0
	}
	if pr.Size <= 0 {
		pr.Size = DefaultPageSize
	}
	return pr
}
