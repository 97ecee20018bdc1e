package orders

import (
	"strings"
	"testing"
	"time"
)

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 9, 5, 14, 30, 15, 0, time.UTC)
	number := NewOrderNumber(now)

	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		t.Fatalf("unexpected order number shape: %s", number)
	}
	if parts[0] != "AMAP" {
		t.Fatalf("unexpected prefix: %s", parts[0])
	}
	if parts[1] != "20260905143015" {
		t.Fatalf("unexpected timestamp section: %s", parts[1])
	}
	if len(parts[2]) != 6 {
		t.Fatalf("unexpected suffix length: %s", parts[2])
	}
	if parts[2] != strings.ToUpper(parts[2]) {
		t.Fatalf("suffix must be uppercase hex: %s", parts[2])
	}
}

func TestNewOrderNumberVariesWithinSecond(t *testing.T) {
	now := time.Date(2026, 9, 5, 14, 30, 15, 0, time.UTC)
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		seen[NewOrderNumber(now)] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatalf("expected random suffixes to differ within one second")
	}
}
