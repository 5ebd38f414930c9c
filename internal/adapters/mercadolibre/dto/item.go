package dto

import "encoding/json"

// Item is the subset of GET /items/{id} the sync needs. Raw keeps the whole
// payload so SKU conventions can be looked up field by field.
type Item struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Status            string      `json:"status"`
	AvailableQuantity int         `json:"available_quantity"`
	SellerCustomField *string     `json:"seller_custom_field"`
	Variations        []Variation `json:"variations"`

	Raw map[string]any `json:"-"`
}

func (i *Item) UnmarshalJSON(b []byte) error {
	type plain Item
	if err := json.Unmarshal(b, (*plain)(i)); err != nil {
		return err
	}
	return json.Unmarshal(b, &i.Raw)
}

type Variation struct {
	ID                int64   `json:"id"`
	AvailableQuantity int     `json:"available_quantity"`
	SellerCustomField *string `json:"seller_custom_field"`

	Raw map[string]any `json:"-"`
}

func (v *Variation) UnmarshalJSON(b []byte) error {
	type plain Variation
	if err := json.Unmarshal(b, (*plain)(v)); err != nil {
		return err
	}
	return json.Unmarshal(b, &v.Raw)
}

type SearchResponse struct {
	SellerID string   `json:"seller_id"`
	Results  []string `json:"results"`
	Paging   struct {
		Total  int `json:"total"`
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
	} `json:"paging"`
}

type User struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}
