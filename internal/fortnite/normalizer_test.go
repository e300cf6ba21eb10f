package fortnite

import (
	"encoding/json"
	"testing"
)

func TestMapCosmetic_EmptyItem(t *testing.T) {
	if got := mapCosmetic(nil); got != nil {
		t.Fatalf("expected nil for nil item, got %+v", got)
	}
	if got := mapCosmetic(RawItem{}); got != nil {
		t.Fatalf("expected nil for empty item, got %+v", got)
	}
}

func TestMapCosmetic_StructuredTypeAndRarity(t *testing.T) {
	c := mapCosmetic(RawItem{
		"id":     "skin-1",
		"name":   "Renegade",
		"type":   map[string]any{"value": "outfit", "displayValue": "Outfit"},
		"rarity": "rare",
	})
	if c == nil {
		t.Fatalf("expected cosmetic, got nil")
	}
	if c.Type == nil || *c.Type != "outfit" {
		t.Fatalf("type = %v, want outfit", c.Type)
	}
	if c.Rarity == nil || *c.Rarity != "rare" {
		t.Fatalf("rarity = %v, want rare", c.Rarity)
	}
}

func TestMapCosmetic_ImageURLPrefersIcon(t *testing.T) {
	c := mapCosmetic(RawItem{
		"id": "skin-1",
		"images": map[string]any{
			"icon":      "https://img.example.com/icon.png",
			"smallIcon": "https://img.example.com/small.png",
		},
	})
	if c.ImageURL == nil || *c.ImageURL != "https://img.example.com/icon.png" {
		t.Fatalf("imageUrl = %v, want icon", c.ImageURL)
	}

	c = mapCosmetic(RawItem{
		"id": "skin-2",
		"images": map[string]any{
			"smallIcon": "https://img.example.com/small.png",
		},
	})
	if c.ImageURL == nil || *c.ImageURL != "https://img.example.com/small.png" {
		t.Fatalf("imageUrl = %v, want smallIcon", c.ImageURL)
	}

	c = mapCosmetic(RawItem{"id": "skin-3"})
	if c.ImageURL != nil {
		t.Fatalf("imageUrl = %v, want nil", c.ImageURL)
	}
}

func TestMapCosmetic_PriceExtraction(t *testing.T) {
	tests := []struct {
		name string
		item RawItem
		want *int
	}{
		{
			name: "final price preferred over regular",
			item: RawItem{"id": "a", "price": map[string]any{"finalPrice": float64(800), "regularPrice": float64(1200)}},
			want: intPtr(800),
		},
		{
			name: "regular price when no final",
			item: RawItem{"id": "a", "price": map[string]any{"regularPrice": float64(1200)}},
			want: intPtr(1200),
		},
		{
			name: "bare numeric price",
			item: RawItem{"id": "a", "price": float64(500)},
			want: intPtr(500),
		},
		{
			name: "last shop history entry",
			item: RawItem{"id": "a", "shopHistory": []any{float64(1500), float64(1200), float64(900)}},
			want: intPtr(900),
		},
		{
			name: "no price information",
			item: RawItem{"id": "a"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mapCosmetic(tt.item)
			if tt.want == nil {
				if c.Price != nil {
					t.Fatalf("price = %v, want nil", *c.Price)
				}
				return
			}
			if c.Price == nil || *c.Price != *tt.want {
				t.Fatalf("price = %v, want %d", c.Price, *tt.want)
			}
		})
	}
}

func TestMapCosmetic_IsNewTriState(t *testing.T) {
	c := mapCosmetic(RawItem{"id": "a", "new": true})
	if c.IsNew == nil || !*c.IsNew {
		t.Fatalf("isNew = %v, want true", c.IsNew)
	}

	c = mapCosmetic(RawItem{"id": "a", "new": "False"})
	if c.IsNew == nil || *c.IsNew {
		t.Fatalf("isNew = %v, want false", c.IsNew)
	}

	c = mapCosmetic(RawItem{"id": "a"})
	if c.IsNew != nil {
		t.Fatalf("isNew = %v, want nil", c.IsNew)
	}

	c = mapCosmetic(RawItem{"id": "a", "new": "maybe"})
	if c.IsNew != nil {
		t.Fatalf("isNew = %v for garbage value, want nil", c.IsNew)
	}
}

func TestMapCosmetic_OfferTagImpliesSale(t *testing.T) {
	c := mapCosmetic(RawItem{"id": "a", "offerTag": map[string]any{"id": "sale"}, "isOnSale": false})
	if !c.IsOnSale {
		t.Fatalf("isOnSale = false, want true when offerTag present")
	}

	c = mapCosmetic(RawItem{"id": "a", "offerTag": nil})
	if c.IsOnSale {
		t.Fatalf("isOnSale = true for nil offerTag, want false")
	}

	c = mapCosmetic(RawItem{"id": "a", "isOnSale": "TRUE"})
	if !c.IsOnSale {
		t.Fatalf("isOnSale = false, want coerced true")
	}

	c = mapCosmetic(RawItem{"id": "a"})
	if c.IsOnSale {
		t.Fatalf("isOnSale = true for absent fields, want false")
	}
}

func TestMapCosmetics_MarkAsSaleAndOrder(t *testing.T) {
	items := []RawItem{
		{"id": "b", "name": "Beta"},
		{},
		{"id": "a", "name": "Alpha", "isOnSale": false},
	}

	res := mapCosmetics(items, true)
	if len(res) != 2 {
		t.Fatalf("len = %d, want 2 (empty record dropped)", len(res))
	}
	if res[0].ID != "b" || res[1].ID != "a" {
		t.Fatalf("source order not preserved: %+v", res)
	}
	for _, c := range res {
		if !c.IsOnSale {
			t.Fatalf("markAsSale must force isOnSale for %s", c.ID)
		}
	}
}

func TestMapGroupedCosmetics_PreservesSourceOrder(t *testing.T) {
	var groups rawGroups
	err := json.Unmarshal([]byte(`{
		"emotes": [{"id":"e1"},{"id":"e2"}],
		"bundles": [{"id":"b1"}]
	}`), &groups)
	if err != nil {
		t.Fatalf("unmarshal groups: %v", err)
	}

	res := mapGroupedCosmetics(groups, false)
	if len(res) != 3 {
		t.Fatalf("len = %d, want 3", len(res))
	}
	// Категории идут в порядке исходного документа: emotes раньше bundles,
	// хотя лексикографически ключи отсортированы наоборот.
	if res[0].ID != "e1" || res[1].ID != "e2" || res[2].ID != "b1" {
		t.Fatalf("unexpected order: %+v", res)
	}
}

func TestRawGroups_NullObject(t *testing.T) {
	var groups rawGroups
	if err := json.Unmarshal([]byte(`null`), &groups); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("groups = %+v, want empty", groups)
	}
}

func TestMapShopEntry(t *testing.T) {
	c := mapShopEntry(RawItem{
		"offerId":             "offer-1",
		"devName":             "Bundle.Season",
		"finalPrice":          float64(1800),
		"inDate":              "2026-08-01T00:00:00Z",
		"outDate":             nil,
		"newDisplayAssetPath": "/assets/offer-1.png",
	})
	if c == nil {
		t.Fatalf("expected cosmetic, got nil")
	}
	if c.ID != "offer-1" {
		t.Fatalf("id = %q, want offer-1", c.ID)
	}
	if c.Price == nil || *c.Price != 1800 {
		t.Fatalf("price = %v, want 1800", c.Price)
	}
	if c.IsNew == nil || !*c.IsNew {
		t.Fatalf("isNew = %v, want true for current entry", c.IsNew)
	}
	if !c.IsOnSale {
		t.Fatalf("shop entry must always be on sale")
	}
}

func intPtr(v int) *int {
	return &v
}
