package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
		OrderStatusPaid:      {OrderStatusPreparing, OrderStatusCancelled, OrderStatusRefunded},
		OrderStatusPreparing: {OrderStatusReady},
		OrderStatusReady:     {OrderStatusCompleted},
		OrderStatusCompleted: {},
		OrderStatusCancelled: {},
		OrderStatusRefunded:  {},
	}
	for from, targets := range allowed {
		legal := map[OrderStatus]bool{}
		for _, target := range targets {
			legal[target] = true
		}
		for _, to := range validOrderStatuses {
			if got := from.CanTransitionTo(to); got != legal[to] {
				t.Fatalf("%s -> %s: got %v, want %v", from, to, got, legal[to])
			}
		}
	}
}

func TestOrderStatusNoJumps(t *testing.T) {
	if OrderStatusPending.CanTransitionTo(OrderStatusReady) {
		t.Fatalf("pending must not jump to ready")
	}
	if OrderStatusPaid.CanTransitionTo(OrderStatusCompleted) {
		t.Fatalf("paid must not jump to completed")
	}
	if OrderStatusCancelled.CanTransitionTo(OrderStatusPending) {
		t.Fatalf("terminal states must not reopen")
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusCompleted: true,
		OrderStatusCancelled: true,
		OrderStatusRefunded:  true,
	}
	for _, status := range validOrderStatuses {
		if got := status.IsTerminal(); got != terminal[status] {
			t.Fatalf("%s terminal: got %v, want %v", status, got, terminal[status])
		}
	}
	if OrderStatus("bogus").IsTerminal() {
		t.Fatalf("unknown status must not read as terminal")
	}
}

func TestOrderStatusCancellable(t *testing.T) {
	if !OrderStatusPending.Cancellable() || !OrderStatusPaid.Cancellable() {
		t.Fatalf("pending and paid orders must be cancellable")
	}
	for _, status := range []OrderStatus{OrderStatusPreparing, OrderStatusReady, OrderStatusCompleted, OrderStatusRefunded} {
		if status.Cancellable() {
			t.Fatalf("%s must not be cancellable", status)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("preparing")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if status != OrderStatusPreparing {
		t.Fatalf("unexpected status: %s", status)
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatalf("unknown value must fail to parse")
	}
}
