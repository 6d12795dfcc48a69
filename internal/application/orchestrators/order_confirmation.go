package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"licensedesk/internal/adapters/email"
	"licensedesk/internal/adapters/federation"
	outboxStore "licensedesk/internal/adapters/storage/outbox"
	"licensedesk/internal/domain/licensing"
	domainOutbox "licensedesk/internal/domain/outbox"
)

// ConfirmationInput describes a created batch for its confirmation email.
type ConfirmationInput struct {
	Club        federation.Club
	Order       licensing.BatchOrderResult
	LicenseType string
	Year        int
	Members     []string
}

// confirmationPayload is the outbox payload replayed by OrderConfirmationExecutor.
type confirmationPayload struct {
	To          string   `json:"to"`
	ClubName    string   `json:"club_name"`
	OrderID     int64    `json:"order_id"`
	BatchID     string   `json:"batch_id,omitempty"`
	LicenseType string   `json:"license_type"`
	Year        int      `json:"year"`
	Members     []string `json:"members"`
}

// ConfirmationQueue persists confirmation emails for the outbox processor.
type ConfirmationQueue struct {
	Store      outboxStore.Store
	GenerateID func() string
	Now        func() time.Time
}

// Enqueue stores a pending confirmation email.
// POST: Clubs without a contact address are skipped without error
func (q *ConfirmationQueue) Enqueue(ctx context.Context, in ConfirmationInput) error {
	if in.Club.ContactEmail == "" {
		slog.Info("outbox_event", "event", "confirmation_skipped", "club", in.Club.ID, "reason", "no_contact_email")
		return nil
	}
	data, err := json.Marshal(confirmationPayload{
		To:          in.Club.ContactEmail,
		ClubName:    in.Club.Name,
		OrderID:     in.Order.ID,
		BatchID:     in.Order.BatchID,
		LicenseType: in.LicenseType,
		Year:        in.Year,
		Members:     in.Members,
	})
	if err != nil {
		return fmt.Errorf("marshal confirmation: %w", err)
	}
	entry := domainOutbox.NewEntry(q.GenerateID(), domainOutbox.ActionOrderConfirmationEmail, string(data), q.Now())
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := q.Store.Save(ctx, entry); err != nil {
		return fmt.Errorf("queue confirmation: %w", err)
	}
	slog.Info("outbox_event", "event", "confirmation_queued", "entry_id", entry.ID, "order_id", in.Order.ID)
	return nil
}

// OrderConfirmationExecutor sends a queued confirmation email.
type OrderConfirmationExecutor struct {
	Sender email.Sender
}

// Execute renders and sends the confirmation.
// PRE: payload is JSON produced by ConfirmationQueue.Enqueue
// POST: Returns the provider message id
func (e *OrderConfirmationExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var p confirmationPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	body := confirmationMarkdown(p)
	html, err := email.RenderMarkdown(body)
	if err != nil {
		return "", err
	}
	res, err := e.Sender.Send(ctx, email.SendRequest{
		To:      []string{p.To},
		Subject: fmt.Sprintf("License order %d confirmed", p.OrderID),
		HTML:    html,
		Text:    body,
	})
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

func confirmationMarkdown(p confirmationPayload) string {
	pr := message.NewPrinter(language.English)
	var b strings.Builder
	fmt.Fprintf(&b, "# License order %d\n\n", p.OrderID)
	if p.ClubName != "" {
		fmt.Fprintf(&b, "Club: **%s**\n\n", p.ClubName)
	}
	fmt.Fprintf(&b, "%s %s licenses were ordered for %d.\n\n", pr.Sprintf("%d", len(p.Members)), p.LicenseType, p.Year)
	if p.BatchID != "" {
		fmt.Fprintf(&b, "Batch reference: `%s`\n\n", p.BatchID)
	}
	b.WriteString("| # | Member |\n|---|---|\n")
	for i, name := range p.Members {
		fmt.Fprintf(&b, "| %d | %s |\n", i+1, strings.ReplaceAll(name, "|", "\\|"))
	}
	return b.String()
}
