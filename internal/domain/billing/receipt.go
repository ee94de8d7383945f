package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxReceiptLen is the gateway's limit on receipt identifiers.
const MaxReceiptLen = 40

// ReceiptID builds rcpt_<unix millis>_<course prefix>_<random>, capped at
// MaxReceiptLen.
func ReceiptID(now time.Time, courseID string) string {
	short := courseID
	if len(short) > 8 {
		short = short[:8]
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]

	r := fmt.Sprintf("rcpt_%d_%s_%s", now.UnixMilli(), short, suffix)
	if len(r) > MaxReceiptLen {
		r = r[:MaxReceiptLen]
	}
	return r
}
