package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns a random UUID string used as a primary key.
func New() string {
	return uuid.NewString()
}

// InvoiceNumber returns a display invoice number of the form TRX-<unix-ms>-<hex4>.
// The suffix keeps numbers unique when two sales land in the same millisecond.
func InvoiceNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("TRX-%d-%s", at.UnixMilli(), suffix)
}
