package fortnite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmeshcher/locker-system/internal/model"
)

// RawItem представляет один слабо типизированный предмет из внешнего каталога.
// Набор полей у API нестабилен, поэтому извлечение каждого поля выполняется
// явной функцией, а отсутствующие или неожиданные значения дают nil.
type RawItem map[string]any

// mapCosmetic нормализует одну запись каталога. Пустая запись даёт nil.
func mapCosmetic(item RawItem) *model.Cosmetic {
	if len(item) == 0 {
		return nil
	}

	isOnSale := extractBool(item["isOnSale"])
	if tag, ok := item["offerTag"]; ok && tag != nil {
		v := true
		isOnSale = &v
	}

	return &model.Cosmetic{
		ID:       stringifyOrEmpty(item["id"]),
		Name:     stringify(item["name"]),
		Type:     extractValue(item["type"]),
		Rarity:   extractValue(item["rarity"]),
		ImageURL: extractImageURL(item["images"]),
		Price:    extractPrice(item["price"], item["shopHistory"]),
		IsNew:    extractBool(item["new"]),
		IsOnSale: isOnSale != nil && *isOnSale,
	}
}

// mapShopEntry нормализует запись витрины магазина. Поля витрины отличаются
// от полей каталога: идентификатор предложения, девелоперское имя и итоговая
// цена лежат на верхнем уровне записи.
func mapShopEntry(entry RawItem) *model.Cosmetic {
	if len(entry) == 0 {
		return nil
	}

	isNew := entry["inDate"] != nil && entry["outDate"] == nil

	return &model.Cosmetic{
		ID:       stringifyOrEmpty(entry["offerId"]),
		Name:     stringify(entry["devName"]),
		ImageURL: stringify(entry["newDisplayAssetPath"]),
		Price:    toIntPtr(entry["finalPrice"]),
		IsNew:    &isNew,
		IsOnSale: true,
	}
}

// mapCosmetics нормализует плоский список записей, отбрасывая пустые.
// Порядок оставшихся записей совпадает с порядком источника.
func mapCosmetics(items []RawItem, markAsSale bool) []model.Cosmetic {
	if len(items) == 0 {
		return nil
	}

	res := make([]model.Cosmetic, 0, len(items))
	for _, item := range items {
		dto := mapCosmetic(item)
		if dto == nil {
			continue
		}
		if markAsSale {
			dto.IsOnSale = true
		}
		res = append(res, *dto)
	}

	return res
}

// rawGroup хранит одну категорию ленты вместе с её записями.
type rawGroup struct {
	key   string
	items []RawItem
}

// rawGroups сохраняет порядок категорий исходного JSON-объекта,
// который терялся бы при декодировании в map.
type rawGroups []rawGroup

func (g *rawGroups) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object of category groups")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var items []RawItem
		if err := dec.Decode(&items); err != nil {
			return err
		}

		*g = append(*g, rawGroup{key: key, items: items})
	}

	_, err = dec.Token()
	return err
}

// mapGroupedCosmetics нормализует записи, сгруппированные по категориям,
// в порядке следования категорий в исходном документе.
func mapGroupedCosmetics(groups rawGroups, markAsSale bool) []model.Cosmetic {
	var res []model.Cosmetic
	for _, group := range groups {
		res = append(res, mapCosmetics(group.items, markAsSale)...)
	}
	return res
}

func mapShopEntries(entries []RawItem) []model.Cosmetic {
	if len(entries) == 0 {
		return nil
	}

	res := make([]model.Cosmetic, 0, len(entries))
	for _, entry := range entries {
		if dto := mapShopEntry(entry); dto != nil {
			res = append(res, *dto)
		}
	}

	return res
}

// extractValue возвращает подполе value структурного поля,
// иначе строковое представление самого поля.
func extractValue(raw any) *string {
	if m, ok := raw.(map[string]any); ok {
		if v, ok := m["value"]; ok && v != nil {
			return stringify(v)
		}
	}
	return stringify(raw)
}

// extractImageURL предпочитает иконку icon, затем smallIcon.
func extractImageURL(images any) *string {
	m, ok := images.(map[string]any)
	if !ok {
		return nil
	}

	if icon, ok := m["icon"]; ok && icon != nil {
		return stringify(icon)
	}
	if small, ok := m["smallIcon"]; ok && small != nil {
		return stringify(small)
	}

	return nil
}

// extractPrice извлекает цену: числовое поле как есть, у структурной цены
// сначала finalPrice, затем regularPrice, иначе последняя запись shopHistory.
func extractPrice(price, shopHistory any) *int {
	if v, ok := toInt(price); ok {
		return &v
	}

	if m, ok := price.(map[string]any); ok {
		if v, ok := toInt(m["finalPrice"]); ok {
			return &v
		}
		if v, ok := toInt(m["regularPrice"]); ok {
			return &v
		}
	}

	if history, ok := shopHistory.([]any); ok && len(history) > 0 {
		if v, ok := toInt(history[len(history)-1]); ok {
			return &v
		}
	}

	return nil
}

// extractBool приводит значение к трёхзначному булеву типу:
// булево поле как есть, строки "true"/"false" без учёта регистра, иначе nil.
func extractBool(raw any) *bool {
	if b, ok := raw.(bool); ok {
		return &b
	}
	if raw == nil {
		return nil
	}

	switch strings.ToLower(fmt.Sprint(raw)) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}

	return nil
}

func stringify(raw any) *string {
	if raw == nil {
		return nil
	}
	s := fmt.Sprint(raw)
	return &s
}

func stringifyOrEmpty(raw any) string {
	if s := stringify(raw); s != nil {
		return *s
	}
	return ""
}

func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

func toIntPtr(raw any) *int {
	if v, ok := toInt(raw); ok {
		return &v
	}
	return nil
}
