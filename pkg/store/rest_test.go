package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
	"github.com/appetiteclub/pos/pkg/enums/paymentstatus"
)

const orderListJSON = `[
	{"id": 2, "table": 5, "table_number": 5, "waiter": 1, "waiter_name": "ravi", "status": "preparing",
	 "total": "180.00", "created_at": "2026-03-14T10:05:00Z", "payment_status": "pending", "group_name": null,
	 "items": [{"id": 3, "menu_item": 4, "menu_item_name": "Samosa", "price": "30.00", "quantity": 6, "notes": ""}]},
	{"id": 1, "table": 2, "table_number": 2, "waiter": null, "waiter_name": null, "status": "served",
	 "total": 90, "created_at": "2026-03-14T10:00:00Z", "payment_status": "paid", "items": []},
	{"id": 0, "table": 1, "table_number": 1, "status": "ready",
	 "total": 12.5, "created_at": "2026-03-14T09:00:00Z", "payment_status": "refunded", "items": []}
]`

func TestRESTListOrders(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(orderListJSON))
	}))
	defer srv.Close()

	s := NewREST(srv.URL+"/api/", WithTokenSource(func(ctx context.Context) string { return "tok-1" }))

	orders, err := s.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}

	if gotPath != "/api/orders/" {
		t.Errorf("path = %q, want /api/orders/", gotPath)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", gotAuth)
	}

	if len(orders) != 2 {
		t.Fatalf("ListOrders() = %d orders, want 2 (unknown status skipped)", len(orders))
	}
	if orders[0].ID != 2 || orders[0].Status != orderstatus.Statuses.New {
		t.Errorf("orders[0] = %d/%v, want 2/new", orders[0].ID, orders[0].Status)
	}
	if orders[0].PaymentStatus != paymentstatus.Statuses.Unpaid {
		t.Errorf("pending payment not normalized: %v", orders[0].PaymentStatus)
	}
	if orders[0].Total != 18000 || orders[1].Total != 1250 {
		t.Errorf("totals = %v, %v", orders[0].Total, orders[1].Total)
	}
}

func TestRESTListOrdersPaginated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count": 1, "next": null, "results": [{"id": 8, "status": "new", "items": []}]}`))
	}))
	defer srv.Close()

	orders, err := NewREST(srv.URL).ListOrders(context.Background())
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(orders) != 1 || orders[0].ID != 8 {
		t.Errorf("ListOrders() = %+v", orders)
	}
}

func TestRESTUpdateStatus(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"id": 7, "status": "ready", "total": "40.00", "payment_status": "unpaid", "items": []}`))
	}))
	defer srv.Close()

	s := NewREST(srv.URL)
	order, err := s.UpdateStatus(context.Background(), 7, orderstatus.Statuses.Ready)
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	if gotMethod != http.MethodPatch || gotPath != "/orders/7/" {
		t.Errorf("request = %s %s, want PATCH /orders/7/", gotMethod, gotPath)
	}
	if gotBody["status"] != "ready" {
		t.Errorf("body status = %q, want ready", gotBody["status"])
	}
	if order == nil || order.ID != 7 || order.Status != orderstatus.Statuses.Ready {
		t.Errorf("UpdateStatus() = %+v", order)
	}
}

func TestRESTUpdateStatusEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	order, err := NewREST(srv.URL).UpdateStatus(context.Background(), 7, orderstatus.Statuses.Ready)
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if order != nil {
		t.Errorf("UpdateStatus() = %+v, want nil", order)
	}
}

func TestRESTErrors(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr error
	}{
		{name: "notFound", code: http.StatusNotFound, wantErr: ErrNotFound},
		{name: "unauthorized", code: http.StatusUnauthorized, wantErr: ErrUnauthorized},
		{name: "forbidden", code: http.StatusForbidden, wantErr: ErrUnauthorized},
		{name: "badRequest", code: http.StatusBadRequest},
		{name: "serverError", code: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(`{"detail": "nope"}`))
			}))
			defer srv.Close()

			_, err := NewREST(srv.URL).UpdateStatus(context.Background(), 1, orderstatus.Statuses.Ready)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("error %v is not a *StatusError", err)
			}
			if se.Code != tt.code {
				t.Errorf("Code = %d, want %d", se.Code, tt.code)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if se.Body != `{"detail": "nope"}` {
				t.Errorf("Body = %q", se.Body)
			}
		})
	}
}

func TestRESTTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s := NewREST(srv.URL, WithTimeout(20*time.Millisecond))
	if _, err := s.ListOrders(context.Background()); err == nil {
		t.Error("ListOrders() error = nil, want timeout")
	}
}

func TestRESTLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login/" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "1234" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"access": "a", "refresh": "r", "username": "` + body["username"] + `", "role": "kitchen", "id": 3}`))
	}))
	defer srv.Close()

	s := NewREST(srv.URL, WithTokenSource(func(ctx context.Context) string { return "stale" }))

	res, err := s.Login(context.Background(), "kitchen1", "1234")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Access != "a" || res.Role != "kitchen" || res.ID != 3 || res.Username != "kitchen1" {
		t.Errorf("Login() = %+v", res)
	}

	if _, err := s.Login(context.Background(), "kitchen1", "bad"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Login() bad password error = %v, want ErrUnauthorized", err)
	}
	if _, err := s.Login(context.Background(), "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Login() empty credentials error = %v, want ErrUnauthorized", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "restDefault", cfg: Config{URL: "http://localhost:8000/api"}},
		{name: "service", cfg: Config{Dialect: "service", URL: "http://localhost:8084"}},
		{name: "missingURL", cfg: Config{Dialect: "rest"}, wantErr: ErrNotConfigured},
		{name: "unknownDialect", cfg: Config{Dialect: "soap", URL: "http://x"}, wantErr: ErrUnknownDialect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && c == nil {
				t.Error("New() returned nil client")
			}
		})
	}
}
