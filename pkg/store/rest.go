package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
	"github.com/appetiteclub/pos/pkg/lifecycle"
)

const maxErrorBody = 512

// REST talks to the original order API: bare JSON resources under
// trailing-slash paths, bearer authentication.
type REST struct {
	baseURL string
	client  *http.Client
	token   TokenSource
	logger  apt.Logger
}

type RESTOption func(*REST)

func WithTimeout(d time.Duration) RESTOption {
	return func(r *REST) {
		if d > 0 {
			r.client.Timeout = d
		}
	}
}

func WithHTTPClient(c *http.Client) RESTOption {
	return func(r *REST) {
		if c != nil {
			r.client = c
		}
	}
}

func WithTokenSource(ts TokenSource) RESTOption {
	return func(r *REST) {
		r.token = ts
	}
}

func WithLogger(logger apt.Logger) RESTOption {
	return func(r *REST) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewREST(baseURL string, opts ...RESTOption) *REST {
	r := &REST{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  apt.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *REST) ListOrders(ctx context.Context) ([]lifecycle.Order, error) {
	data, err := r.do(ctx, http.MethodGet, "orders/", nil)
	if err != nil {
		return nil, err
	}

	items, err := decodeOrderList(data)
	if err != nil {
		return nil, err
	}
	return decodeOrders(items, r.logger), nil
}

func (r *REST) UpdateStatus(ctx context.Context, id lifecycle.OrderID, status orderstatus.Status) (*lifecycle.Order, error) {
	path := fmt.Sprintf("orders/%d/", id)
	data, err := r.do(ctx, http.MethodPatch, path, statusPayload(status.Code()))
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var order lifecycle.Order
	if err := json.Unmarshal(data, &order); err != nil {
		if errors.Is(err, lifecycle.ErrUnknownStatus) {
			r.logger.Error("store returned unknown status", "order_id", id, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("cannot decode updated order %d: %w", id, err)
	}
	return &order, nil
}

func (r *REST) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("login: %w", ErrUnauthorized)
	}

	payload := map[string]string{"username": username, "password": password}
	data, err := r.doWithToken(ctx, http.MethodPost, "auth/login/", payload, "")
	if err != nil {
		return nil, err
	}

	var result LoginResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("cannot decode login response: %w", err)
	}
	if result.Access == "" {
		return nil, fmt.Errorf("login response without access token: %w", ErrUnauthorized)
	}
	return &result, nil
}

func (r *REST) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	token := ""
	if r.token != nil {
		token = r.token(ctx)
	}
	return r.doWithToken(ctx, method, path, body, token)
}

func (r *REST) doWithToken(ctx context.Context, method, path string, body interface{}, token string) ([]byte, error) {
	if r == nil || r.baseURL == "" {
		return nil, ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cannot encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+"/"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("cannot build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := strings.TrimSpace(string(data))
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: excerpt}
	}

	return data, nil
}
