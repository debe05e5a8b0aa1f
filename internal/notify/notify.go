// Package notify delivers debt reminders to customers.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"warungpos/backend/internal/logger"
)

type Reminder struct {
	DebtID       string
	Phone        string
	CustomerName string
	StoreName    string
	Outstanding  decimal.Decimal
	DueDate      *time.Time
}

var printer = message.NewPrinter(language.Indonesian)

// FormatRupiah renders whole rupiah with Indonesian digit grouping, e.g. "Rp 50.000".
func FormatRupiah(amount decimal.Decimal) string {
	return printer.Sprintf("Rp %v", number.Decimal(amount.Round(0).IntPart()))
}

// ReminderMessage builds the WhatsApp text sent to the customer.
func ReminderMessage(r Reminder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Halo %s, ini pengingat dari %s. ", r.CustomerName, r.StoreName)
	fmt.Fprintf(&b, "Sisa piutang Anda sebesar %s", FormatRupiah(r.Outstanding))
	if r.DueDate != nil {
		fmt.Fprintf(&b, " jatuh tempo pada %s", r.DueDate.Format("02-01-2006"))
	}
	b.WriteString(". Terima kasih.")
	return b.String()
}

// WhatsAppMock logs the reminder instead of calling a messaging provider.
type WhatsAppMock struct {
	log *logger.Logger
}

func NewWhatsAppMock(log *logger.Logger) *WhatsAppMock {
	if log == nil {
		log = logger.Default()
	}
	return &WhatsAppMock{log: log.WithComponent("whatsapp-mock")}
}

func (m *WhatsAppMock) SendDebtReminder(ctx context.Context, r Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Phone) == "" {
		return fmt.Errorf("reminder for debt %s has no phone number", r.DebtID)
	}
	m.log.Infow("mock whatsapp reminder sent", "debt_id", r.DebtID, "phone", r.Phone, "message", ReminderMessage(r))
	return nil
}
