package mercadolibre

import (
	"sort"
	"strconv"
	"strings"
)

type skuExtractor struct {
	name    string
	extract func(payload map[string]any) (string, bool)
}

// skuAttributeIDs are the attribute ids sellers use to carry their own SKU.
var skuAttributeIDs = map[string]bool{
	"SELLER_SKU": true,
	"SKU":        true,
	"CUSTOM_SKU": true,
}

// skuExtractors is tried in order; the order must stay fixed because stock is
// matched by SKU. New marketplace conventions are appended here.
var skuExtractors = []skuExtractor{
	{name: "seller_custom_field", extract: fieldValue("seller_custom_field")},
	{name: "seller_sku", extract: fieldValue("seller_sku")},
	{name: "attributes", extract: attributeValue("attributes")},
	{name: "attribute_combinations", extract: attributeValue("attribute_combinations")},
	{name: "any_sku_field", extract: anySKUField},
}

// ResolveSKU returns the first non-blank SKU found in an item or variation
// payload, or "" when none of the known conventions match.
func ResolveSKU(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	for _, extractor := range skuExtractors {
		if sku, ok := extractor.extract(payload); ok {
			return sku
		}
	}
	return ""
}

func fieldValue(field string) func(map[string]any) (string, bool) {
	return func(payload map[string]any) (string, bool) {
		return scalarString(payload[field])
	}
}

func attributeValue(field string) func(map[string]any) (string, bool) {
	return func(payload map[string]any) (string, bool) {
		entries, ok := payload[field].([]any)
		if !ok {
			return "", false
		}
		for _, entry := range entries {
			attr, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			id, _ := attr["id"].(string)
			if !skuAttributeIDs[strings.ToUpper(strings.TrimSpace(id))] {
				continue
			}
			if value, ok := scalarString(attr["value_name"]); ok {
				return value, true
			}
			values, _ := attr["values"].([]any)
			for _, raw := range values {
				v, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				if value, ok := scalarString(v["name"]); ok {
					return value, true
				}
			}
		}
		return "", false
	}
}

func anySKUField(payload map[string]any) (string, bool) {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		if strings.Contains(strings.ToLower(key), "sku") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		if value, ok := scalarString(payload[key]); ok {
			return value, true
		}
	}
	return "", false
}

// scalarString accepts strings and numbers; JSON numbers arrive as float64.
func scalarString(raw any) (string, bool) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
