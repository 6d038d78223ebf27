package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"github.com/example/petshop-checkout/internal/domain/invoice"
	"github.com/example/petshop-checkout/internal/email"
	"github.com/example/petshop-checkout/internal/infrastructure/store"
	"go.uber.org/zap"
)

// Sender delivers one email
type Sender interface {
	Send(ctx context.Context, msg email.Message) error
}

// Handler emails the rendered invoice to the customer once it is issued
type Handler struct {
	sender Sender
	logger *zap.Logger
}

func NewHandler(sender Sender, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sender: sender, logger: logger.Named("notifier")}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Error("failed to unmarshal event", zap.Error(err))
		return err
	}
	return h.handle(ctx, event)
}

// Publish handles the event in process, for running without a broker
func (h *Handler) Publish(ctx context.Context, _ string, event any) error {
	switch e := event.(type) {
	case store.Event:
		return h.handle(ctx, e)
	case *store.Event:
		return h.handle(ctx, *e)
	}
	return fmt.Errorf("notifier: unexpected event type %T", event)
}

func (h *Handler) handle(ctx context.Context, event store.Event) error {
	if event.EventType != invoice.EventInvoiceIssued {
		return nil
	}

	var e invoice.InvoiceIssued
	if err := json.Unmarshal(event.Data, &e); err != nil {
		h.logger.Error("failed to unmarshal InvoiceIssued", zap.Error(err))
		return err
	}
	inv := e.Invoice
	if inv == nil {
		return fmt.Errorf("InvoiceIssued %s carries no invoice", event.ID)
	}

	to := inv.CustomerInfo.Email
	if to == "" {
		h.logger.Warn("invoice has no customer email", zap.String("invoice_id", inv.ID))
		return nil
	}

	doc, err := invoice.Render(inv)
	if err != nil {
		return fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}

	msg := email.Message{
		To:       to,
		Subject:  fmt.Sprintf("Your invoice %s", inv.InvoiceNumber),
		HTMLBody: confirmationBody(inv),
		Attachments: []email.Attachment{{
			Filename:    invoice.Filename(inv),
			ContentType: "text/html; charset=UTF-8",
			Data:        doc,
		}},
	}
	if err := h.sender.Send(ctx, msg); err != nil {
		return err
	}

	h.logger.Info("invoice emailed",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("order_id", inv.OrderID),
	)
	return nil
}

func confirmationBody(inv *invoice.Invoice) string {
	return fmt.Sprintf(
		"<p>Dear %s,</p><p>Thank you for your order. Your invoice <strong>%s</strong> for order %s is attached.</p>",
		html.EscapeString(inv.CustomerInfo.Name),
		html.EscapeString(inv.InvoiceNumber),
		html.EscapeString(inv.OrderID),
	)
}
