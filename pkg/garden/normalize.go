package garden

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gardenrelay/internal/garden/memorystore"
)

// ErrMalformedPayload is returned when upstream bytes are not a JSON object.
var ErrMalformedPayload = errors.New("malformed upstream payload")

// ParsePayload decodes one upstream message. Anything other than a JSON
// object (including null) is malformed.
func ParsePayload(raw []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedPayload)
	}
	return payload, nil
}

// ValidatePayload reports whether raw is a well-formed JSON object without
// decoding it. It accepts exactly what ParsePayload accepts.
func ValidatePayload(raw []byte) error {
	if !json.Valid(raw) {
		return fmt.Errorf("%w: invalid JSON", ErrMalformedPayload)
	}
	if trimmed := bytes.TrimLeft(raw, " \t\r\n"); len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: not an object", ErrMalformedPayload)
	}
	return nil
}

// Normalize maps a parsed payload onto the internal Stock shape. It never
// fails: missing or wrong-typed values become empty lists and field defaults.
func Normalize(payload map[string]any) memorystore.Stock {
	var stock memorystore.Stock
	for _, row := range categoryTable {
		items, _ := categoryItems(payload, row.Keys)
		switch row.Category {
		case CategorySeeds:
			stock.Seeds = items
		case CategoryGear:
			stock.Gear = items
		case CategoryEggs:
			stock.Eggs = items
		case CategoryCosmetics:
			stock.Cosmetics = items
		case CategoryEvent:
			stock.Event = items
		case CategoryMerchants:
			stock.Merchants = items
		}
	}

	for _, key := range weatherKeys {
		if w, ok := payload[key]; ok {
			stock.Weather = w
			break
		}
	}
	return stock
}

// DetectShape reports the layout of the first category found in payload.
func DetectShape(payload map[string]any) Shape {
	for _, row := range categoryTable {
		if _, shape := categoryItems(payload, row.Keys); shape != ShapeUnknown {
			return shape
		}
	}
	return ShapeUnknown
}

// categoryItems returns the normalized list for one category and the layout it came from.
func categoryItems(payload map[string]any, keys CategoryKeys) ([]memorystore.Item, Shape) {
	if keys.Nested != "" {
		if obj, ok := payload[keys.Nested].(map[string]any); ok {
			if list, ok := obj[nestedItemsKey].([]any); ok {
				return NormalizeItems(list), ShapeNested
			}
		}
	}
	if keys.Flat != "" {
		if list, ok := payload[keys.Flat].([]any); ok {
			return NormalizeItems(list), ShapeFlat
		}
	}
	if keys.Legacy != "" {
		if list, ok := payload[keys.Legacy].([]any); ok {
			return NormalizeItems(list), ShapeLegacy
		}
	}
	return []memorystore.Item{}, ShapeUnknown
}

// NormalizeItems applies NormalizeItem to every element, preserving order and length.
func NormalizeItems(list []any) []memorystore.Item {
	out := make([]memorystore.Item, 0, len(list))
	for _, v := range list {
		out = append(out, NormalizeItem(v))
	}
	return out
}

// NormalizeItem converts one upstream entry. Non-object entries yield an
// all-default Item.
func NormalizeItem(v any) memorystore.Item {
	obj, _ := v.(map[string]any)
	return memorystore.Item{
		Name:     stringField(obj, nameKeys, DefaultName),
		Stock:    intField(obj, stockKeys, DefaultStock),
		Rarity:   stringField(obj, rarityKeys, DefaultRarity),
		Price:    floatField(obj, priceKeys, DefaultPrice),
		ImageURL: stringField(obj, imageURLKeys, DefaultImageURL),
	}
}

func stringField(obj map[string]any, keys []string, def string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			return s
		}
	}
	return def
}

func floatField(obj map[string]any, keys []string, def float64) float64 {
	for _, k := range keys {
		if f, ok := toFloat(obj[k]); ok {
			return f
		}
	}
	return def
}

// intField truncates fractional numbers toward zero; values outside the
// int32 range count as wrong-typed.
func intField(obj map[string]any, keys []string, def int) int {
	for _, k := range keys {
		f, ok := toFloat(obj[k])
		if !ok || f < math.MinInt32 || f > math.MaxInt32 {
			continue
		}
		return int(f)
	}
	return def
}

// toFloat accepts the numeric types json.Unmarshal and hand-built payloads produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
