package dto

// StockUpdate is the PUT /items/{id} body. Exactly one of AvailableQuantity
// and Variations is set.
type StockUpdate struct {
	AvailableQuantity *int             `json:"available_quantity,omitempty"`
	Variations        []VariationStock `json:"variations,omitempty"`
}

type VariationStock struct {
	ID                int64 `json:"id"`
	AvailableQuantity int   `json:"available_quantity"`
}

type StatusUpdate struct {
	Status string `json:"status"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	UserID       int64  `json:"user_id"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type APIError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Cause   []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"cause"`
}
