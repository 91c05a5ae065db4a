package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/mailer"
	"github.com/Mithunp123/Dakshaa-sub002/internal/metrics"
	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
)

// Notifier tells admins and the user about a settled payment. It runs only
// after materialization succeeded, and its failures never undo it.
type Notifier struct {
	notifications models.NotificationRepo
	contacts      *ContactResolver
	sender        mailer.Sender
	retry         storage.RetryPolicy
	metrics       *metrics.PaymentMetrics
	logger        *slog.Logger
}

func NewNotifier(
	notifications models.NotificationRepo,
	contacts *ContactResolver,
	sender mailer.Sender,
	retry storage.RetryPolicy,
	m *metrics.PaymentMetrics,
	logger *slog.Logger,
) *Notifier {
	return &Notifier{
		notifications: notifications,
		contacts:      contacts,
		sender:        sender,
		retry:         retry,
		metrics:       m,
		logger:        logger,
	}
}

func (n *Notifier) Notify(ctx context.Context, txn *models.PaymentTransaction, res *MaterializeResult) error {
	profile, err := n.contacts.Resolve(ctx, txn.UserID)
	if err != nil {
		n.logger.Warn("Contact lookup failed for notification", "order_id", txn.OrderID, "user_id", txn.UserID, "error", err)
		profile = &models.Profile{ID: txn.UserID}
	}

	note := adminNotification(txn, res, profile)
	adminErr := n.retry.Do(ctx, func(ctx context.Context) error {
		return n.notifications.CreateNotification(ctx, note)
	})
	n.record("admin", adminErr)
	if adminErr != nil {
		n.logger.Error("Admin notification failed",
			"order_id", txn.OrderID,
			"booking_id", txn.BookingID,
			"error", adminErr,
		)
	}

	var mailErr error
	if profile.Email == "" {
		n.logger.Warn("No email on file, confirmation skipped", "order_id", txn.OrderID, "user_id", txn.UserID)
	} else {
		mailErr = n.sender.SendConfirmation(ctx, mailer.ConfirmationEmail{
			Type:        mailer.ConfirmationEventType,
			OrderID:     txn.OrderID,
			UserID:      txn.UserID,
			Email:       profile.Email,
			FullName:    profile.FullName,
			BookingType: string(txn.BookingType),
			BookingID:   txn.BookingID,
			Amount:      txn.Amount,
			Items:       res.EventNames,
			PaidAt:      time.Now().UTC(),
		})
		n.record("email", mailErr)
		if mailErr != nil {
			n.logger.Error("Confirmation email failed",
				"order_id", txn.OrderID,
				"booking_id", txn.BookingID,
				"error", mailErr,
			)
		}
	}

	return errors.Join(adminErr, mailErr)
}

func (n *Notifier) record(channel string, err error) {
	if n.metrics != nil {
		n.metrics.RecordNotification(channel, err)
	}
}

func adminNotification(txn *models.PaymentTransaction, res *MaterializeResult, profile *models.Profile) *models.AdminNotification {
	who := profile.FullName
	if who == "" {
		who = txn.UserID
	}

	data := map[string]interface{}{
		"order_id":     txn.OrderID,
		"user_id":      txn.UserID,
		"booking_id":   txn.BookingID,
		"booking_type": txn.BookingType,
		"amount":       txn.Amount,
	}

	note := &models.AdminNotification{Data: data}
	switch txn.BookingType {
	case models.BookingAccommodation:
		note.Type = models.NotifyNewAccommodation
		note.Title = "New Accommodation Booking"
		note.Message = fmt.Sprintf("%s paid ₹%.2f for accommodation", who, txn.Amount)
	case models.BookingLunch:
		note.Type = models.NotifyNewLunchBooking
		note.Title = "New Lunch Booking"
		note.Message = fmt.Sprintf("%s paid ₹%.2f for lunch", who, txn.Amount)
	case models.BookingEvent:
		note.Type = models.NotifyNewRegistration
		note.Title = "New Event Registration"
		note.Message = fmt.Sprintf("%s registered for %d event(s)", who, res.Registrations)
		data["event_count"] = res.Registrations
		data["events"] = res.EventNames
	case models.BookingCombo:
		note.Type = models.NotifyNewComboRegistration
		note.Title = "New Combo Registration"
		note.Message = fmt.Sprintf("%s purchased a combo covering %d event(s)", who, res.Registrations)
		data["event_count"] = res.Registrations
		data["events"] = res.EventNames
	case models.BookingTeam:
		note.Type = models.NotifyNewTeamRegistration
		note.Title = "New Team Registration"
		note.Message = fmt.Sprintf("%s paid for %d team member(s)", who, res.NewMembers)
		if t := txn.GatewayPayload.Team; t != nil {
			data["team_id"] = t.TeamID
			data["team_name"] = t.TeamName
			note.Message = fmt.Sprintf("%s paid for %d member(s) of team %s in %s", who, res.NewMembers, t.TeamName, t.EventName)
		}
	case models.BookingMixed:
		note.Type = models.NotifyNewRegistration
		note.Title = "New Registration"
		note.Message = fmt.Sprintf("%s registered for %s", who, strings.Join(res.EventNames, ", "))
		data["event_count"] = len(res.EventNames)
		data["events"] = res.EventNames
	}
	return note
}
