package mercadolibre

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"meli-inventory-sync/internal/adapters/mercadolibre/dto"
)

// ErrUnauthorized matches any 401 the client could not recover from.
var ErrUnauthorized = errors.New("mercadolibre authorization failed")

type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("mercadolibre request failed: %s", e.Status)
	}
	return fmt.Sprintf("mercadolibre request failed: %s: %s", e.Status, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Kind is a short description suitable for grouping failures.
func (e *StatusError) Kind() string {
	return fmt.Sprintf("server responded with status %d", e.StatusCode)
}

// RemoteMessage extracts the API's message field, falling back to the body.
func (e *StatusError) RemoteMessage() string {
	var apiErr dto.APIError
	if err := json.Unmarshal([]byte(e.Body), &apiErr); err == nil {
		parts := make([]string, 0, 1+len(apiErr.Cause))
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			parts = append(parts, msg)
		}
		for _, cause := range apiErr.Cause {
			if msg := strings.TrimSpace(cause.Message); msg != "" {
				parts = append(parts, msg)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	return strings.TrimSpace(e.Body)
}

func newStatusError(statusCode int, status string, body []byte) error {
	return &StatusError{
		StatusCode: statusCode,
		Status:     status,
		Body:       strings.TrimSpace(string(body)),
	}
}

// DescribeError splits err into a groupable kind and the remote details.
func DescribeError(err error) (kind, details string) {
	if err == nil {
		return "", ""
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Kind(), statusErr.RemoteMessage()
	}
	return err.Error(), ""
}
