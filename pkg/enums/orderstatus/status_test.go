package orderstatus

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Status
		wantErr bool
	}{
		{name: "new", raw: "new", want: Statuses.New},
		{name: "ready", raw: "ready", want: Statuses.Ready},
		{name: "completed", raw: "completed", want: Statuses.Completed},
		{name: "cancelled", raw: "cancelled", want: Statuses.Cancelled},
		{name: "mixedCase", raw: " Ready ", want: Statuses.Ready},
		{name: "preparingFoldsToNew", raw: "preparing", want: Statuses.New},
		{name: "unknown", raw: "served", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	s := Statuses
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "newToReady", from: s.New, to: s.Ready, want: true},
		{name: "newToCancelled", from: s.New, to: s.Cancelled, want: true},
		{name: "newToCompleted", from: s.New, to: s.Completed, want: false},
		{name: "readyToCompleted", from: s.Ready, to: s.Completed, want: true},
		{name: "readyToCancelled", from: s.Ready, to: s.Cancelled, want: true},
		{name: "readyToNew", from: s.Ready, to: s.New, want: false},
		{name: "completedToReadyUndo", from: s.Completed, to: s.Ready, want: true},
		{name: "completedToCancelled", from: s.Completed, to: s.Cancelled, want: false},
		{name: "cancelledToNew", from: s.Cancelled, to: s.New, want: false},
		{name: "cancelledToReady", from: s.Cancelled, to: s.Ready, want: false},
		{name: "sameStatus", from: s.Ready, to: s.Ready, want: false},
		{name: "zeroFrom", from: Status{}, to: s.Ready, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		from Status
		want []Status
	}{
		{from: Statuses.New, want: []Status{Statuses.Ready, Statuses.Cancelled}},
		{from: Statuses.Ready, want: []Status{Statuses.Completed, Statuses.Cancelled}},
		{from: Statuses.Completed, want: []Status{Statuses.Ready}},
		{from: Statuses.Cancelled, want: []Status{}},
	}

	for _, tt := range tests {
		t.Run(tt.from.Code(), func(t *testing.T) {
			got := Next(tt.from)
			if len(got) != len(tt.want) {
				t.Fatalf("Next(%v) = %v, want %v", tt.from, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Next(%v)[%d] = %v, want %v", tt.from, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestIsTerminalAndUndo(t *testing.T) {
	if IsTerminal(Statuses.New) || IsTerminal(Statuses.Ready) {
		t.Error("new and ready must not be terminal")
	}
	if !IsTerminal(Statuses.Completed) || !IsTerminal(Statuses.Cancelled) {
		t.Error("completed and cancelled must be terminal")
	}
	if !IsUndo(Statuses.Completed, Statuses.Ready) {
		t.Error("completed -> ready should be an undo")
	}
	if IsUndo(Statuses.New, Statuses.Ready) {
		t.Error("new -> ready is not an undo")
	}
}

func TestLabel(t *testing.T) {
	if got := Statuses.Cancelled.Label(); got != "Cancelled" {
		t.Errorf("Label() = %q, want %q", got, "Cancelled")
	}
	if got := (Status{}).Label(); got != "" {
		t.Errorf("zero Label() = %q, want empty", got)
	}
}
