package orders

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// NewOrderNumber builds a human-readable, collision-resistant order number.
// The timestamp keeps numbers roughly sortable; the random suffix plus the
// unique index on order_number covers same-second creations.
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 3)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("AMAP-%s-%s",
		now.UTC().Format("20060102150405"),
		strings.ToUpper(hex.EncodeToString(suffix)),
	)
}
