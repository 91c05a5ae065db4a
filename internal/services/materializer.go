package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/metrics"
	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
)

// MaterializeResult describes what a settlement wrote.
type MaterializeResult struct {
	BookingType    models.BookingType `json:"booking_type"`
	Status         models.TxnStatus   `json:"status"`
	PrimaryUpdated bool               `json:"primary_updated"`
	Registrations  int                `json:"registrations"`
	NewMembers     int                `json:"new_members"`
	TeamsActivated int                `json:"teams_activated"`
	EventNames     []string           `json:"event_names,omitempty"`
	FailedSteps    []string           `json:"failed_steps,omitempty"`
}

// Materializer turns a settled transaction into booking rows. Every write is
// keyed so that running it again for the same transaction changes nothing.
type Materializer struct {
	bookings models.BookingRepo
	teams    models.TeamRepo
	events   models.EventRepo
	retry    storage.RetryPolicy
	metrics  *metrics.PaymentMetrics
	logger   *slog.Logger
}

func NewMaterializer(
	bookings models.BookingRepo,
	teams models.TeamRepo,
	events models.EventRepo,
	retry storage.RetryPolicy,
	m *metrics.PaymentMetrics,
	logger *slog.Logger,
) *Materializer {
	return &Materializer{
		bookings: bookings,
		teams:    teams,
		events:   events,
		retry:    retry,
		metrics:  m,
		logger:   logger,
	}
}

// Materialize applies status (SUCCESS or FAILED) to the booking behind txn.
// Sub-step failures are logged and recorded in the result; only a failed
// primary booking write is returned as an error.
func (m *Materializer) Materialize(ctx context.Context, txn *models.PaymentTransaction, status models.TxnStatus, paymentID string) (*MaterializeResult, error) {
	if status != models.TxnSuccess && status != models.TxnFailed {
		return nil, fmt.Errorf("cannot materialize %s with status %s", txn.OrderID, status)
	}

	res := &MaterializeResult{BookingType: txn.BookingType, Status: status}
	bookingStatus := models.PaymentPaid
	if status == models.TxnFailed {
		bookingStatus = models.PaymentFailed
	}

	var err error
	switch txn.BookingType {
	case models.BookingAccommodation:
		err = m.single(ctx, txn, res, models.AccommodationTable, bookingStatus, paymentID)
	case models.BookingLunch:
		err = m.single(ctx, txn, res, models.LunchTable, bookingStatus, paymentID)
	case models.BookingEvent:
		err = m.event(ctx, txn, res, bookingStatus, paymentID)
	case models.BookingCombo:
		err = m.combo(ctx, txn, res, bookingStatus, paymentID)
	case models.BookingTeam:
		err = m.team(ctx, txn, res, bookingStatus, paymentID)
	case models.BookingMixed:
		err = m.mixed(ctx, txn, res, bookingStatus, paymentID)
	default:
		err = fmt.Errorf("unknown booking type %q", txn.BookingType)
	}

	if err != nil {
		m.logger.Error("Materialization failed, manual reconciliation required",
			"order_id", txn.OrderID,
			"booking_id", txn.BookingID,
			"booking_type", txn.BookingType,
			"error", err,
		)
		return res, err
	}

	m.logger.Info("Booking materialized",
		"order_id", txn.OrderID,
		"booking_id", txn.BookingID,
		"booking_type", txn.BookingType,
		"status", status,
		"registrations", res.Registrations,
		"failed_steps", len(res.FailedSteps),
	)
	return res, nil
}

// step runs one storage write with transient retries. A failure is logged with
// the order and booking ids and recorded on the result.
func (m *Materializer) step(ctx context.Context, txn *models.PaymentTransaction, res *MaterializeResult, name string, fn func(ctx context.Context) error) error {
	policy := m.retry
	policy.OnRetry = func(attempt int, err error) {
		m.logger.Warn("Retrying storage write",
			"order_id", txn.OrderID,
			"booking_id", txn.BookingID,
			"step", name,
			"attempt", attempt,
			"error", err,
		)
		if m.metrics != nil {
			m.metrics.RecordRetry(name)
		}
	}

	err := policy.Do(ctx, fn)
	if err == nil {
		return nil
	}

	res.FailedSteps = append(res.FailedSteps, name)
	if m.metrics != nil {
		m.metrics.RecordMaterializeFailure(string(txn.BookingType), name)
	}
	m.logger.Error("Materialization step failed",
		"order_id", txn.OrderID,
		"booking_id", txn.BookingID,
		"step", name,
		"error", err,
	)
	return err
}

func (m *Materializer) single(ctx context.Context, txn *models.PaymentTransaction, res *MaterializeResult, table string, status models.PaymentStatus, paymentID string) error {
	return m.step(ctx, txn, res, table+".payment_status", func(ctx context.Context) error {
		n, err := m.bookings.SetPaymentStatus(ctx, table, txn.BookingID, txn.UserID, status, paymentID)
		if err != nil {
			return err
		}
		if n == 0 && status == models.PaymentPaid {
			return fmt.Errorf("booking %s for user %s: %w", txn.BookingID, txn.UserID, models.ErrNotFound)
		}
		res.PrimaryUpdated = n > 0
		return nil
	})
}

// event settles either every registration sharing the batch id or the single
// registration the booking id names.
func (m *Materializer) event(ctx context.Context, txn *models.PaymentTransaction, res *MaterializeResult, status models.PaymentStatus, paymentID string) error {
	var batch []models.EventRegistration
	err := m.step(ctx, txn, res, "registrations.lookup", func(ctx context.Context) error {
		var err error
		batch, err = m.bookings.ListRegistrationsByBatch(ctx, txn.BookingID, txn.UserID)
		return err
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		return m.step(ctx, txn, res, "registrations.batch_status", func(ctx context.Context) error {
			n, err := m.bookings.SetBatchPaymentStatus(ctx, txn.BookingID, txn.UserID, status, txn.OrderID, paymentID)
			if err != nil {
				return err
			}
			res.PrimaryUpdated = n > 0
			res.Registrations = len(batch)
			for _, reg := range batch {
				res.EventNames = append(res.EventNames, reg.EventName)
			}
			return nil
		})
	}

	var reg *models.EventRegistration
	if err := m.step(ctx, txn, res, "registrations.get", func(ctx context.Context) error {
		var err error
		reg, err = m.bookings.GetRegistration(ctx, txn.BookingID, txn.UserID)
		return err
	}); err != nil {
		return err
	}

	if err := m.single(ctx, txn, res, models.RegistrationsTable, status, paymentID); err != nil {
		return err
	}
	res.Registrations = 1
	res.EventNames = append(res.EventNames, reg.EventName)
	return nil
}

func (m *Materializer) combo(ctx context.Context, txn *models.PaymentTransaction, res *MaterializeResult, status models.PaymentStatus, paymentID string) error {
	if err := m.single(ctx, txn, res, models.ComboPurchasesTable, status, paymentID); err != nil {
		return err
	}
	if status != models.PaymentPaid {
		return nil
	}

	settlement := txn.GatewayPayload.Combo
	if settlement == nil {
		purchase, err := m.bookings.GetComboPurchase(ctx, txn.BookingID)
		if err != nil {
			m.logger.Error("Combo purchase lookup failed, skipping explosion",
				"order_id", txn.OrderID,
				"booking_id", txn.BookingID,
				"error", err,
			)
			res.FailedSteps = append(res.FailedSteps, "combo.lookup")
			return nil
		}
		settlement = &models.ComboSettlement{
			PurchaseID:       purchase.ID,
			ComboID:          purchase.ComboID,
			SelectedEventIDs: purchase.SelectedEventIDs,
		}
	}

	names := m.eventNames(ctx, txn, res, settlement.SelectedEventIDs)
	now := time.Now().UTC()
	for _, eventID := range settlement.SelectedEventIDs {
		reg := &models.EventRegistration{
			UserID:          txn.UserID,
			EventID:         eventID,
			EventName:       names[eventID],
			PaymentStatus:   models.PaymentPaid,
			TransactionID:   txn.OrderID,
			PaymentID:       paymentID,
			ComboPurchaseID: settlement.PurchaseID,
			RegisteredAt:    now,
		}
		if teamID, ok := settlement.TeamIDs[eventID]; ok {
			reg.TeamID = teamID
		}
		// A registration another order already paid for is left as it is.
		paidElsewhere := false
		if err := m.step(ctx, txn, res, "combo.registration", func(ctx context.Context) error {
			existing, err := m.bookings.FindRegistration(ctx, txn.UserID, eventID)
			switch {
			case errors.Is(err, models.ErrNotFound):
			case err != nil:
				return err
			case existing.PaymentStatus == models.PaymentPaid && existing.TransactionID != txn.OrderID:
				paidElsewhere = true
				return nil
			}
			return m.bookings.UpsertRegistration(ctx, reg)
		}); err != nil {
			continue
		}
		if paidElsewhere {
			m.logger.Info("Combo event already paid, registration kept",
				"order_id", txn.OrderID,
				"event_id", eventID,
			)
			continue
		}
		res.Registrations++
		res.EventNames = append(res.EventNames, reg.EventName)
	}

	for eventID, teamID := range settlement.TeamIDs {
		teamID := teamID
		if err := m.step(ctx, txn, res, "combo.team_activate", func(ctx context.Context) error {
			return m.teams.ActivateTeam(ctx, teamID)
		}); err != nil {
			m.logger.Warn("Combo team left inactive", "order_id", txn.OrderID, "event_id", eventID, "team_id", teamID)
			continue
		}
		res.TeamsActivated++
	}
	return nil
}

func (m *Materializer) team(ctx context.Context, txn *models.PaymentTransaction, res *MaterializeResult, status models.PaymentStatus, paymentID string) error {
	settlement := txn.GatewayPayload.Team
	if settlement == nil {
		return fmt.Errorf("transaction %s carries no team settlement", txn.OrderID)
	}
	if status != models.PaymentPaid {
		m.logger.Info("Team payment failed, team stays inactive", "order_id", txn.OrderID, "team_id", settlement.TeamID)
		return nil
	}

	added, err := m.settleTeam(ctx, txn, res, settlement.TeamID, settlement.EventID, settlement.EventName, settlement.TeamName, txn.Amount, paymentID)
	if err != nil {
		return err
	}
	res.PrimaryUpdated = true
	res.Registrations += added
	res.EventNames = append(res.EventNames, settlement.EventName)
	return nil
}

// settleTeam registers every member not yet PAID for (event_id, team_name),
// stamping each with amount, then applies this order's payment to the team
// totals. The totals are keyed by order id, so a replay or a reconciliation that
// fills in a missed member never adds the amount twice.
func (m *Materializer) settleTeam(ctx context.Context, txn *models.PaymentTransaction, res *MaterializeResult, teamID, eventID, eventName, teamName string, amount float64, paymentID string) (int, error) {
	var members []models.TeamMember
	if err := m.step(ctx, txn, res, "team.members", func(ctx context.Context) error {
		var err error
		members, err = m.teams.ListTeamMembers(ctx, teamID)
		return err
	}); err != nil {
		return 0, err
	}

	var paid []models.EventRegistration
	if err := m.step(ctx, txn, res, "team.paid_registrations", func(ctx context.Context) error {
		var err error
		paid, err = m.bookings.ListPaidTeamRegistrations(ctx, eventID, teamName)
		return err
	}); err != nil {
		return 0, err
	}

	alreadyPaid := make(map[string]bool, len(paid))
	for _, reg := range paid {
		alreadyPaid[reg.UserID] = true
	}

	now := time.Now().UTC()
	added := 0
	var failed error
	for _, member := range members {
		if alreadyPaid[member.UserID] {
			continue
		}
		reg := &models.EventRegistration{
			UserID:        member.UserID,
			EventID:       eventID,
			EventName:     eventName,
			PaymentStatus: models.PaymentPaid,
			PaymentAmount: amount,
			TransactionID: txn.OrderID,
			PaymentID:     paymentID,
			TeamID:        teamID,
			TeamName:      teamName,
			RegisteredAt:  now,
		}
		if err := m.step(ctx, txn, res, "team.registration", func(ctx context.Context) error {
			return m.bookings.UpsertRegistration(ctx, reg)
		}); err != nil {
			failed = err
			continue
		}
		alreadyPaid[member.UserID] = true
		added++
	}
	if added == 0 && failed != nil {
		return 0, failed
	}
	res.NewMembers += added

	var atomic bool
	if err := m.step(ctx, txn, res, "team.totals", func(ctx context.Context) error {
		var err error
		atomic, err = m.teams.ApplyTeamPayment(ctx, teamID, txn.OrderID, amount, len(alreadyPaid))
		return err
	}); err == nil {
		res.TeamsActivated++
		if !atomic {
			m.logger.Warn("Team totals updated with read-then-write, concurrent settlements may lose updates",
				"order_id", txn.OrderID,
				"team_id", teamID,
			)
		}
	}
	return added, nil
}

func (m *Materializer) mixed(ctx context.Context, txn *models.PaymentTransaction, res *MaterializeResult, status models.PaymentStatus, paymentID string) error {
	items := txn.GatewayPayload.Mixed
	if len(items) == 0 {
		return fmt.Errorf("transaction %s carries no mixed items", txn.OrderID)
	}
	if status != models.PaymentPaid {
		m.logger.Info("Mixed registration payment failed", "order_id", txn.OrderID, "items", len(items))
		return nil
	}

	now := time.Now().UTC()
	settled := 0
	for _, item := range items {
		switch item.Kind {
		case models.MixedIndividual:
			reg := &models.EventRegistration{
				UserID:        txn.UserID,
				EventID:       item.EventID,
				EventName:     item.EventName,
				PaymentStatus: models.PaymentPaid,
				PaymentAmount: item.Amount,
				TransactionID: txn.OrderID,
				PaymentID:     paymentID,
				BatchID:       txn.BookingID,
				RegisteredAt:  now,
			}
			if err := m.step(ctx, txn, res, "mixed.registration", func(ctx context.Context) error {
				return m.bookings.UpsertRegistration(ctx, reg)
			}); err != nil {
				continue
			}
			res.Registrations++
		case models.MixedTeam:
			added, err := m.settleTeam(ctx, txn, res, item.TeamID, item.EventID, item.EventName, item.TeamName, item.Amount, paymentID)
			if err != nil {
				continue
			}
			res.Registrations += added
		default:
			m.logger.Error("Unknown mixed item kind", "order_id", txn.OrderID, "kind", item.Kind, "event_id", item.EventID)
			res.FailedSteps = append(res.FailedSteps, "mixed.unknown_kind")
			continue
		}
		settled++
		res.EventNames = append(res.EventNames, item.EventName)
	}

	if settled == 0 {
		return errors.New("no mixed registration item could be settled")
	}
	res.PrimaryUpdated = true
	return nil
}

func (m *Materializer) eventNames(ctx context.Context, txn *models.PaymentTransaction, res *MaterializeResult, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	var events []models.EventConfig
	if err := m.step(ctx, txn, res, "events.lookup", func(ctx context.Context) error {
		var err error
		events, err = m.events.ListEvents(ctx, ids)
		return err
	}); err != nil {
		return names
	}
	for _, e := range events {
		names[e.ID] = e.Name
	}
	return names
}
