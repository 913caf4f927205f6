package lifecycle

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
	"github.com/appetiteclub/pos/pkg/enums/paymentstatus"
)

const recentOrders = 5

// Board is the kitchen display grouping of the cache.
type Board struct {
	New            []Order   `json:"new"`
	Ready          []Order   `json:"ready"`
	Completed      []Order   `json:"completed"`
	CompletedToday int       `json:"completed_today"`
	Loading        bool      `json:"loading"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Board groups cached orders into kitchen columns. Completed orders are sorted newest first.
func (c *Controller) Board(now time.Time) Board {
	c.mu.RLock()
	orders := c.snapshotLocked()
	loading := c.loading > 0
	c.mu.RUnlock()

	b := Board{
		New:         []Order{},
		Ready:       []Order{},
		Completed:   []Order{},
		Loading:     loading,
		GeneratedAt: now,
	}
	for _, o := range orders {
		switch o.Status {
		case orderstatus.Statuses.New:
			b.New = append(b.New, o)
		case orderstatus.Statuses.Ready:
			b.Ready = append(b.Ready, o)
		case orderstatus.Statuses.Completed:
			b.Completed = append(b.Completed, o)
			if sameDay(o.CreatedAt, now) {
				b.CompletedToday++
			}
		}
	}
	sortNewestFirst(b.Completed)
	return b
}

// Query selects orders for management views.
// Status "all" or empty matches every status.
type Query struct {
	Status string
	Search string
}

// Filter returns cached orders matching q in display order.
func (c *Controller) Filter(q Query) ([]Order, error) {
	var status *orderstatus.Status
	if s := strings.TrimSpace(q.Status); s != "" && !strings.EqualFold(s, "all") {
		parsed, err := orderstatus.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
		}
		status = &parsed
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))

	result := []Order{}
	for _, o := range c.Orders() {
		if status != nil && o.Status != *status {
			continue
		}
		if search != "" && !matches(o, search) {
			continue
		}
		result = append(result, o)
	}
	return result, nil
}

func matches(o Order, search string) bool {
	return strings.Contains(o.ID.String(), search) ||
		strings.Contains(strings.ToLower(o.WaiterName), search) ||
		strings.Contains(strconv.Itoa(o.TableNumber), search)
}

// Summary aggregates dashboard figures.
type Summary struct {
	TodayOrders       int       `json:"today_orders"`
	TodaySales        Amount    `json:"today_sales"`
	AverageOrderValue Amount    `json:"average_order_value"`
	NewCount          int       `json:"new_count"`
	ReadyCount        int       `json:"ready_count"`
	UnpaidTotal       Amount    `json:"unpaid_total"`
	Recent            []Order   `json:"recent"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Summary computes dashboard figures relative to now.
// The average is rounded to whole currency units.
func (c *Controller) Summary(now time.Time) Summary {
	orders := c.Orders()

	s := Summary{Recent: []Order{}, GeneratedAt: now}
	for i, o := range orders {
		if sameDay(o.CreatedAt, now) {
			s.TodayOrders++
			s.TodaySales += o.Total
		}
		switch o.Status {
		case orderstatus.Statuses.New:
			s.NewCount++
		case orderstatus.Statuses.Ready:
			s.ReadyCount++
		}
		if o.PaymentStatus == paymentstatus.Statuses.Unpaid {
			s.UnpaidTotal += o.Total
		}
		if i < recentOrders {
			s.Recent = append(s.Recent, o)
		}
	}

	if s.TodayOrders > 0 {
		avg := float64(s.TodaySales) / float64(s.TodayOrders) / 100
		s.AverageOrderValue = Amount(int64(avg+0.5) * 100)
	}
	return s
}

func sameDay(t, now time.Time) bool {
	if t.IsZero() {
		return false
	}
	y1, m1, d1 := t.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func sortNewestFirst(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
