package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
	"github.com/appetiteclub/pos/pkg/lifecycle"
)

// Service reads orders from a service that wraps payloads in the
// {"data": ...} envelope.
type Service struct {
	client  *apt.ServiceClient
	timeout time.Duration
	logger  apt.Logger
}

func NewService(client *apt.ServiceClient, timeout time.Duration, logger apt.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Service{client: client, timeout: timeout, logger: logger}
}

func (s *Service) ListOrders(ctx context.Context) ([]lifecycle.Order, error) {
	if s == nil || s.client == nil {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.List(ctx, "orders")
	if err != nil {
		return nil, fmt.Errorf("cannot list orders: %w", err)
	}

	raw, err := successPayload(resp)
	if err != nil {
		return nil, err
	}

	items, err := decodeOrderList(raw)
	if err != nil {
		return nil, err
	}
	return decodeOrders(items, s.logger), nil
}

func (s *Service) UpdateStatus(ctx context.Context, id lifecycle.OrderID, status orderstatus.Status) (*lifecycle.Order, error) {
	if s == nil || s.client == nil {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	path := fmt.Sprintf("/orders/%d/status", id)
	resp, err := s.client.Request(ctx, http.MethodPatch, path, statusPayload(status.Code()))
	if err != nil {
		return nil, fmt.Errorf("cannot update order %d: %w", id, err)
	}
	if resp == nil || resp.Data == nil {
		return nil, nil
	}

	raw, err := successPayload(resp)
	if err != nil {
		return nil, err
	}

	var order lifecycle.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		if errors.Is(err, lifecycle.ErrUnknownStatus) {
			s.logger.Error("store returned unknown status", "order_id", id, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("cannot decode updated order %d: %w", id, err)
	}
	return &order, nil
}

// Login is handled by the authn service in this deployment.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	return nil, fmt.Errorf("login: %w", ErrUnsupported)
}

// successPayload re-encodes the dynamic envelope payload.
func successPayload(resp *apt.SuccessResponse) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("nil success response")
	}
	return json.Marshal(resp.Data)
}
