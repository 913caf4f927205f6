package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/lifecycle"
)

const (
	DialectREST    = "rest"
	DialectService = "service"

	DefaultTimeout = 10 * time.Second
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUnsupported    = errors.New("operation not supported by store dialect")
	ErrNotConfigured  = errors.New("store client not configured")
	ErrUnknownDialect = errors.New("unknown store dialect")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}

// TokenSource returns the bearer token for a request, or "" for none.
type TokenSource func(ctx context.Context) string

// LoginResult is what the store returns on a successful sign-in.
type LoginResult struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	Username string `json:"username"`
	Role     string `json:"role"`
	ID       int64  `json:"id"`
}

// Client is a lifecycle store that can also sign users in.
type Client interface {
	lifecycle.Store
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

// Config selects and configures a store dialect.
type Config struct {
	Dialect string
	URL     string
	Timeout time.Duration
	Token   TokenSource
}

// New builds the client for cfg.Dialect.
func New(cfg Config, logger apt.Logger) (Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("store url: %w", ErrNotConfigured)
	}

	switch strings.ToLower(cfg.Dialect) {
	case "", DialectREST:
		return NewREST(cfg.URL,
			WithTimeout(cfg.Timeout),
			WithTokenSource(cfg.Token),
			WithLogger(logger),
		), nil
	case DialectService:
		return NewService(apt.NewServiceClient(cfg.URL), cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, cfg.Dialect)
	}
}

// decodeOrders decodes each element on its own so one bad order does not
// hide the rest. Orders with an unknown status are skipped.
func decodeOrders(items []json.RawMessage, logger apt.Logger) []lifecycle.Order {
	orders := make([]lifecycle.Order, 0, len(items))
	for _, raw := range items {
		var o lifecycle.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			logger.Error("skipping undecodable order", "error", err)
			continue
		}
		orders = append(orders, o)
	}
	return orders
}

// decodeOrderList accepts a bare array or a paginated {"results": [...]} object.
func decodeOrderList(data []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var page struct {
			Results []json.RawMessage `json:"results"`
			Orders  []json.RawMessage `json:"orders"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("cannot decode order page: %w", err)
		}
		if page.Results != nil {
			return page.Results, nil
		}
		return page.Orders, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("cannot decode order list: %w", err)
	}
	return items, nil
}

func statusPayload(status string) map[string]string {
	return map[string]string{"status": status}
}
