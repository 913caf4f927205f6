package display

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
	"github.com/appetiteclub/pos/pkg/enums/role"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"github.com/appetiteclub/pos/pkg/store"
	"github.com/appetiteclub/pos/services/kitchen/internal/audit"
	"github.com/appetiteclub/pos/services/kitchen/internal/session"
	"github.com/go-chi/chi/v5"
)

const MaxBodyBytes = 1 << 20

// Controller is the order cache the display serves.
type Controller interface {
	Board(now time.Time) lifecycle.Board
	Filter(q lifecycle.Query) ([]lifecycle.Order, error)
	Summary(now time.Time) lifecycle.Summary
	Get(id lifecycle.OrderID) (lifecycle.Order, bool)
	ChangeStatus(ctx context.Context, id lifecycle.OrderID, status orderstatus.Status) error
	ChangeStatusAsync(ctx context.Context, id lifecycle.OrderID, status orderstatus.Status) <-chan error
	Refresh(ctx context.Context, silent bool) error
	Subscribe(id string) <-chan lifecycle.Change
	Unsubscribe(id string)
}

// History lists recorded mutations of an order.
type History interface {
	History(ctx context.Context, orderID lifecycle.OrderID, limit int) ([]audit.Entry, error)
}

type Config struct {
	SessionName string
	SessionTTL  time.Duration
	Money       lifecycle.MoneyFormat
}

type Handler struct {
	ctrl     Controller
	auth     session.Authenticator
	sessions session.Store
	history  History
	hub      *Hub
	cfg      Config
	logger   apt.Logger
	tlm      *telemetry.HTTP
	now      func() time.Time
}

func NewHandler(ctrl Controller, auth session.Authenticator, sessions session.Store, history History, hub *Hub, cfg Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	if cfg.SessionName == "" {
		cfg.SessionName = "pos_session"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}
	return &Handler{
		ctrl:     ctrl,
		auth:     auth,
		sessions: sessions,
		history:  history,
		hub:      hub,
		cfg:      cfg,
		logger:   logger,
		tlm:      telemetry.NewHTTP(),
		now:      time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)

		r.With(h.RequireRole(role.Roles.Kitchen, role.Roles.Supervisor)).Get("/board", h.GetBoard)
		r.With(h.RequireRole(role.Roles.Supervisor)).Get("/summary", h.GetSummary)
		r.Get("/events", h.Events)

		r.Route("/orders", func(r chi.Router) {
			r.With(h.RequireRole(role.Roles.Supervisor)).Get("/", h.ListOrders)
			r.With(h.RequireRole(role.Roles.Kitchen, role.Roles.Supervisor)).Post("/refresh", h.RefreshOrders)
			r.Get("/{id}", h.GetOrder)
			r.With(h.RequireRole(role.Roles.Kitchen, role.Roles.Supervisor)).Patch("/{id}/status", h.ChangeStatus)
			r.With(h.RequireRole(role.Roles.Supervisor)).Get("/{id}/history", h.OrderHistory)
		})
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBoard")
	defer finish()

	apt.Respond(w, http.StatusOK, h.ctrl.Board(h.now()), nil)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	q := lifecycle.Query{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("q"),
	}

	orders, err := h.ctrl.Filter(q)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	}, nil)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, found := h.ctrl.Get(id)
	if !found {
		apt.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}

	apt.Respond(w, http.StatusOK, order, nil)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ChangeStatus moves an order to a new status. With ?async=true the
// response is sent as soon as the optimistic update is visible.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ChangeStatus")
	defer finish()
	log := h.log(r)

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	var req statusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	to, err := orderstatus.Parse(req.Status)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Unknown order status")
		return
	}

	ctx := r.Context()
	if r.URL.Query().Get("async") == "true" {
		done := h.ctrl.ChangeStatusAsync(context.WithoutCancel(ctx), id, to)
		select {
		case err := <-done:
			if err != nil {
				h.respondMutationError(w, log, id, err)
				return
			}
			h.respondOrder(w, http.StatusOK, id)
		default:
			h.respondOrder(w, http.StatusAccepted, id)
		}
		return
	}

	if err := h.ctrl.ChangeStatus(ctx, id, to); err != nil {
		h.respondMutationError(w, log, id, err)
		return
	}
	h.respondOrder(w, http.StatusOK, id)
}

func (h *Handler) respondOrder(w http.ResponseWriter, code int, id lifecycle.OrderID) {
	order, found := h.ctrl.Get(id)
	if !found {
		apt.Respond(w, code, map[string]interface{}{"id": id}, nil)
		return
	}
	apt.Respond(w, code, order, nil)
}

func (h *Handler) respondMutationError(w http.ResponseWriter, log apt.Logger, id lifecycle.OrderID, err error) {
	code, msg := mutationStatus(err)
	if code >= http.StatusInternalServerError {
		log.Error("cannot change order status", "order_id", id, "error", err)
	} else {
		log.Debug("order status change rejected", "order_id", id, "error", err)
	}
	apt.RespondError(w, code, msg)
}

func mutationStatus(err error) (int, string) {
	var te *lifecycle.TransitionError
	switch {
	case errors.As(err, &te):
		return http.StatusConflict, te.Error()
	case errors.Is(err, lifecycle.ErrUnknownStatus):
		return http.StatusBadRequest, "Unknown order status"
	case errors.Is(err, lifecycle.ErrOrderNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, lifecycle.ErrClosed), errors.Is(err, lifecycle.ErrNoStore):
		return http.StatusServiceUnavailable, "Order controller unavailable"
	default:
		return http.StatusBadGateway, "Failed to update status"
	}
}

func (h *Handler) RefreshOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RefreshOrders")
	defer finish()
	log := h.log(r)

	if err := h.ctrl.Refresh(r.Context(), false); err != nil {
		log.Error("cannot refresh orders", "error", err)
		if errors.Is(err, lifecycle.ErrClosed) {
			apt.RespondError(w, http.StatusServiceUnavailable, "Order controller unavailable")
			return
		}
		apt.RespondError(w, http.StatusBadGateway, "Failed to fetch orders")
		return
	}

	apt.Respond(w, http.StatusOK, h.ctrl.Board(h.now()), nil)
}

func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.OrderHistory")
	defer finish()
	log := h.log(r)

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	if h.history == nil {
		apt.Respond(w, http.StatusOK, map[string]interface{}{"entries": []audit.Entry{}}, nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			apt.RespondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.history.History(r.Context(), id, limit)
	if err != nil {
		log.Errorf("cannot list order history: %v", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list order history")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{"entries": entries}, nil)
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetSummary")
	defer finish()

	s := h.ctrl.Summary(h.now())
	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"summary": s,
		"formatted": map[string]string{
			"today_sales":         h.cfg.Money.Format(s.TodaySales),
			"average_order_value": h.cfg.Money.Format(s.AverageOrderValue),
			"unpaid_total":        h.cfg.Money.Format(s.UnpaidTotal),
		},
	}, nil)
}

func orderID(w http.ResponseWriter, r *http.Request) (lifecycle.OrderID, bool) {
	id, err := lifecycle.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return 0, false
	}
	return id, true
}
