package lifecycle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
	"github.com/appetiteclub/pos/pkg/enums/paymentstatus"
)

// OrderID identifies an order in the store.
type OrderID int64

func (id OrderID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseOrderID parses a decimal order id.
func ParseOrderID(raw string) (OrderID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order id %q: %w", raw, err)
	}
	return OrderID(n), nil
}

// Amount is a monetary value in hundredths of the currency unit.
type Amount int64

// ParseAmount accepts decimal strings such as "12.50" or "12".
func ParseAmount(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return Amount(math.Round(f * 100)), nil
}

// Float returns the amount in currency units.
func (a Amount) Float() float64 {
	return float64(a) / 100
}

func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both JSON numbers and decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*a = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Item is one line of an order.
type Item struct {
	ID           int64  `json:"id"`
	MenuItem     int64  `json:"menu_item"`
	MenuItemName string `json:"menu_item_name"`
	Price        Amount `json:"price"`
	Quantity     int    `json:"quantity"`
	Notes        string `json:"notes,omitempty"`
}

// Order is the cached view of an order owned by the store.
type Order struct {
	ID            OrderID
	Table         int64
	TableNumber   int
	Waiter        *int64
	WaiterName    string
	Status        orderstatus.Status
	PaymentStatus paymentstatus.Status
	Total         Amount
	CreatedAt     time.Time
	GroupName     string
	Items         []Item
}

type orderJSON struct {
	ID            OrderID   `json:"id"`
	Table         int64     `json:"table"`
	TableNumber   int       `json:"table_number"`
	Waiter        *int64    `json:"waiter"`
	WaiterName    string    `json:"waiter_name"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Total         Amount    `json:"total"`
	CreatedAt     time.Time `json:"created_at"`
	GroupName     string    `json:"group_name,omitempty"`
	Items         []Item    `json:"items"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	items := o.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(orderJSON{
		ID:            o.ID,
		Table:         o.Table,
		TableNumber:   o.TableNumber,
		Waiter:        o.Waiter,
		WaiterName:    o.WaiterName,
		Status:        o.Status.Code(),
		PaymentStatus: o.PaymentStatus.Code(),
		Total:         o.Total,
		CreatedAt:     o.CreatedAt,
		GroupName:     o.GroupName,
		Items:         items,
	})
}

// UnmarshalJSON decodes the store representation. Legacy status values are
// normalized; an unknown order status is reported as ErrUnknownStatus.
func (o *Order) UnmarshalJSON(data []byte) error {
	var w orderJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	status, err := orderstatus.Parse(w.Status)
	if err != nil {
		return fmt.Errorf("order %d: %w: %q", w.ID, ErrUnknownStatus, w.Status)
	}

	payment, err := paymentstatus.Parse(w.PaymentStatus)
	if err != nil {
		return fmt.Errorf("order %d: %w", w.ID, err)
	}

	*o = Order{
		ID:            w.ID,
		Table:         w.Table,
		TableNumber:   w.TableNumber,
		Waiter:        w.Waiter,
		WaiterName:    w.WaiterName,
		Status:        status,
		PaymentStatus: payment,
		Total:         w.Total,
		CreatedAt:     w.CreatedAt,
		GroupName:     w.GroupName,
		Items:         w.Items,
	}
	return nil
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	c := o
	if o.Waiter != nil {
		w := *o.Waiter
		c.Waiter = &w
	}
	if o.Items != nil {
		c.Items = make([]Item, len(o.Items))
		copy(c.Items, o.Items)
	}
	return c
}

// Equal reports whether two snapshots carry the same data.
func (o Order) Equal(other Order) bool {
	if o.ID != other.ID ||
		o.Table != other.Table ||
		o.TableNumber != other.TableNumber ||
		o.WaiterName != other.WaiterName ||
		o.Status != other.Status ||
		o.PaymentStatus != other.PaymentStatus ||
		o.Total != other.Total ||
		o.GroupName != other.GroupName ||
		!o.CreatedAt.Equal(other.CreatedAt) {
		return false
	}
	if (o.Waiter == nil) != (other.Waiter == nil) {
		return false
	}
	if o.Waiter != nil && *o.Waiter != *other.Waiter {
		return false
	}
	if len(o.Items) != len(other.Items) {
		return false
	}
	for i := range o.Items {
		if o.Items[i] != other.Items[i] {
			return false
		}
	}
	return true
}

// ItemCount sums item quantities.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
