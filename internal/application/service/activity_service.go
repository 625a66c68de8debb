package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bolibooks/bolibooks/internal/application/dispatcher"
	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/internal/domain/event"
)

// ActivityService reads a company's audit trail and records events into it
type ActivityService interface {
	List(ctx context.Context, companyID int64, limit, offset int) (*PageResult[*entity.ActivityEntry], error)
	Record(ctx context.Context, evt *event.Event) error
}

type activityServiceImpl struct {
	repo   port.ActivityRepository
	logger Logger
}

// NewActivityService creates a new ActivityService
func NewActivityService(repo port.ActivityRepository, logger Logger) ActivityService {
	return &activityServiceImpl{repo: repo, logger: logger}
}

func (s *activityServiceImpl) List(ctx context.Context, companyID int64, limit, offset int) (*PageResult[*entity.ActivityEntry], error) {
	page := NormalizePage(limit, offset)
	entries, total, err := s.repo.List(ctx, companyID, page)
	if err != nil {
		s.logger.Error("Failed to list activity", "error", err, "company_id", companyID)
		return nil, err
	}
	return newPage(entries, total, page), nil
}

// Record writes one audit entry for a domain event
func (s *activityServiceImpl) Record(ctx context.Context, evt *event.Event) error {
	entry := &entity.ActivityEntry{
		CompanyID:  evt.CompanyID,
		Action:     evt.Type.String(),
		EntityType: "invoice",
		EntityID:   evt.InvoiceID,
		Details:    make(map[string]interface{}, len(evt.Payload)+1),
	}
	for k, v := range evt.Payload {
		if k == "actor_id" {
			if id := evt.GetPayloadInt(k); id != 0 {
				entry.UserID = &id
			}
			continue
		}
		entry.Details[k] = v
	}
	entry.Details["event_id"] = evt.ID

	switch evt.Type {
	case event.TypePaymentRecorded, event.TypePaymentUpdated, event.TypePaymentDeleted:
		if id := evt.GetPayloadInt("payment_id"); id != 0 {
			entry.EntityType, entry.EntityID = "payment", id
		}
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to record activity", "error", err, "event_id", evt.ID, "type", evt.Type)
		return err
	}
	return nil
}

// RegisterSubscribers wires the services into the dispatcher: confirmed
// gateway payments are booked, and payment outcomes land in the activity log.
// Collected money that no longer fits the invoice is logged as unapplied and
// acknowledged, since a provider retry cannot make it fit.
func RegisterSubscribers(d dispatcher.Dispatcher, payments PaymentService, activity ActivityService, logger Logger) {
	d.SubscribeNamed(event.TypeGatewayPaymentSucceeded, "book_gateway_payment", func(ctx context.Context, evt *event.Event) error {
		amount, err := decimal.NewFromString(evt.GetPayloadString("amount"))
		if err != nil {
			return fmt.Errorf("gateway event %s: bad amount: %w", evt.ID, err)
		}
		_, err = payments.RecordGatewayPayment(ctx, GatewayPayment{
			CompanyID: evt.CompanyID,
			InvoiceID: evt.InvoiceID,
			Provider:  evt.GetPayloadString("provider"),
			Reference: evt.GetPayloadString("external_id"),
			Amount:    amount,
			Currency:  evt.GetPayloadString("currency"),
		})
		if !errors.Is(err, ErrInvalidAmount) {
			return err
		}
		logger.Error("Gateway payment left unapplied", "error", err, "company_id", evt.CompanyID,
			"invoice_id", evt.InvoiceID, "external_id", evt.GetPayloadString("external_id"))
		payload := make(map[string]interface{}, len(evt.Payload)+1)
		for k, v := range evt.Payload {
			payload[k] = v
		}
		payload["reason"] = err.Error()
		return d.Dispatch(ctx, evt.Follow(event.TypeGatewayPaymentUnapplied, payload))
	})

	audited := []event.Type{
		event.TypePaymentRecorded,
		event.TypePaymentUpdated,
		event.TypePaymentDeleted,
		event.TypeInvoicePaid,
		event.TypeGatewayPaymentFailed,
		event.TypeGatewayPaymentUnapplied,
	}
	for _, typ := range audited {
		d.SubscribeNamed(typ, "activity_log", activity.Record)
	}

	d.SubscribeNamed(event.TypeInvoiceOverdue, "overdue_log", func(ctx context.Context, evt *event.Event) error {
		logger.Info("Invoice overdue", "company_id", evt.CompanyID, "invoice_id", evt.InvoiceID,
			"number", evt.GetPayloadString("invoice_number"), "balance", evt.GetPayloadString("balance"))
		return nil
	})
}
