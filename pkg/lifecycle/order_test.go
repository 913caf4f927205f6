package lifecycle

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/appetiteclub/pos/pkg/enums/paymentstatus"
)

func TestAmountUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Amount
		wantErr bool
	}{
		{name: "decimalString", input: `"12.50"`, want: 1250},
		{name: "integerString", input: `"300"`, want: 30000},
		{name: "number", input: `12.5`, want: 1250},
		{name: "integer", input: `7`, want: 700},
		{name: "null", input: `null`, want: 0},
		{name: "emptyString", input: `""`, want: 0},
		{name: "garbage", input: `"twelve"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			err := json.Unmarshal([]byte(tt.input), &a)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && a != tt.want {
				t.Errorf("Unmarshal(%s) = %d, want %d", tt.input, a, tt.want)
			}
		})
	}
}

func TestAmountString(t *testing.T) {
	tests := []struct {
		a    Amount
		want string
	}{
		{a: 1250, want: "12.50"},
		{a: 5, want: "0.05"},
		{a: -150, want: "-1.50"},
	}
	for _, tt := range tests {
		if got := tt.a.String(); got != tt.want {
			t.Errorf("Amount(%d).String() = %q, want %q", int64(tt.a), got, tt.want)
		}
	}
}

func TestOrderUnmarshalJSON(t *testing.T) {
	raw := `{
		"id": 42,
		"table": 3,
		"table_number": 7,
		"waiter": null,
		"waiter_name": null,
		"status": "preparing",
		"total": "240.00",
		"created_at": "2026-03-14T09:30:00Z",
		"payment_status": "pending",
		"group_name": null,
		"items": [
			{"id": 1, "menu_item": 9, "menu_item_name": "Masala Chai", "price": "40.00", "quantity": 6, "notes": null}
		]
	}`

	var o Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if o.ID != 42 || o.TableNumber != 7 || o.Waiter != nil {
		t.Errorf("identity fields = %+v", o)
	}
	if o.Status != st.New {
		t.Errorf("Status = %v, want new", o.Status)
	}
	if o.PaymentStatus != paymentstatus.Statuses.Unpaid {
		t.Errorf("PaymentStatus = %v, want unpaid", o.PaymentStatus)
	}
	if o.Total != 24000 {
		t.Errorf("Total = %v, want 240.00", o.Total)
	}
	if len(o.Items) != 1 || o.Items[0].Price != 4000 || o.ItemCount() != 6 {
		t.Errorf("Items = %+v", o.Items)
	}
}

func TestOrderUnmarshalUnknownStatus(t *testing.T) {
	var o Order
	err := json.Unmarshal([]byte(`{"id": 1, "status": "served"}`), &o)
	if !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("Unmarshal() error = %v, want ErrUnknownStatus", err)
	}
}

func TestOrderMarshalJSON(t *testing.T) {
	o := newOrder(5, st.Ready)
	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if fields["status"] != "ready" {
		t.Errorf("status = %v, want ready", fields["status"])
	}
	if fields["total"] != "12.50" {
		t.Errorf("total = %v, want \"12.50\"", fields["total"])
	}
	if fields["payment_status"] != "unpaid" {
		t.Errorf("payment_status = %v, want unpaid", fields["payment_status"])
	}
}

func TestOrderCloneAndEqual(t *testing.T) {
	waiter := int64(3)
	o := newOrder(1, st.New)
	o.Waiter = &waiter

	c := o.Clone()
	if !o.Equal(c) {
		t.Fatal("clone should equal original")
	}

	c.Items[0].Quantity = 99
	*c.Waiter = 4
	if o.Items[0].Quantity == 99 || *o.Waiter == 4 {
		t.Error("Clone() shares memory with the original")
	}
	if o.Equal(c) {
		t.Error("Equal() should detect item changes")
	}
}

func TestParseOrderID(t *testing.T) {
	if id, err := ParseOrderID(" 17 "); err != nil || id != 17 {
		t.Errorf("ParseOrderID() = %d, %v", id, err)
	}
	if _, err := ParseOrderID("abc"); err == nil {
		t.Error("ParseOrderID(abc) error = nil")
	}
}
