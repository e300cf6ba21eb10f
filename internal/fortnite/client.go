// Package fortnite предоставляет клиент для внешнего каталога косметики Fortnite.
package fortnite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/locker-system/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с API каталога Fortnite.
// Любая ошибка транспорта или разбора ответа не выходит за границу клиента:
// методы списков возвращают пустой срез, поиск по идентификатору — nil.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

type cosmeticsResponse struct {
	Data []RawItem `json:"data"`
}

type newCosmeticsResponse struct {
	Data struct {
		Items rawGroups `json:"items"`
	} `json:"data"`
}

type shopResponse struct {
	Data struct {
		Entries []RawItem `json:"entries"`
	} `json:"data"`
}

type singleCosmeticResponse struct {
	Data RawItem `json:"data"`
}

// NewClient создаёт HTTP-клиент каталога по указанному адресу.
// Ключ API необязателен и при наличии передаётся в заголовке x-api-key.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// GetAllCosmetics возвращает полный каталог косметики.
func (c *Client) GetAllCosmetics(ctx context.Context) []model.Cosmetic {
	var resp cosmeticsResponse
	if err := c.doGet(ctx, "/cosmetics/br", &resp); err != nil {
		c.warn("/cosmetics/br", err)
		return nil
	}
	return mapCosmetics(resp.Data, false)
}

// GetNewCosmetics возвращает предметы из ленты новинок.
// Лента группирует предметы по категориям; результат объединяется в один срез.
func (c *Client) GetNewCosmetics(ctx context.Context) []model.Cosmetic {
	var resp newCosmeticsResponse
	if err := c.doGet(ctx, "/cosmetics/new", &resp); err != nil {
		c.warn("/cosmetics/new", err)
		return nil
	}
	return mapGroupedCosmetics(resp.Data.Items, false)
}

// GetShopItems возвращает предметы текущей витрины магазина.
// Присутствие предмета в витрине само по себе означает продажу,
// поэтому каждый предмет помечается флагом isOnSale.
func (c *Client) GetShopItems(ctx context.Context) []model.Cosmetic {
	var resp shopResponse
	if err := c.doGet(ctx, "/shop", &resp); err != nil {
		c.warn("/shop", err)
		return nil
	}
	return mapShopEntries(resp.Data.Entries)
}

// GetCosmeticByID запрашивает один предмет каталога по идентификатору.
// Возвращает nil при пустом идентификаторе или любой ошибке запроса.
func (c *Client) GetCosmeticByID(ctx context.Context, id string) *model.Cosmetic {
	if strings.TrimSpace(id) == "" {
		return nil
	}

	var resp singleCosmeticResponse
	if err := c.doGet(ctx, "/cosmetics/br/"+id, &resp); err != nil {
		c.warn("/cosmetics/br/"+id, err)
		return nil
	}

	return mapCosmetic(resp.Data)
}

func (c *Client) doGet(ctx context.Context, path string, target any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("fortnite client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) warn(path string, err error) {
	if c.logger != nil {
		c.logger.Warn("fortnite API request failed", zap.String("path", path), zap.Error(err))
	}
}
