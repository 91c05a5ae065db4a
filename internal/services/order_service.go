package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/metrics"
	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
)

type InitiateRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	BookingType string `json:"booking_type" validate:"required"`
	BookingID   string `json:"booking_id"`
	// Team describes a team created with this order when BookingID is empty.
	Team  *TeamOrder       `json:"team,omitempty"`
	Items []MixedOrderItem `json:"items,omitempty"`
	// ComboTeamNames maps a team event inside a combo to the team name to create.
	ComboTeamNames map[string]string `json:"combo_team_names,omitempty"`
}

type TeamOrder struct {
	EventID   string   `json:"event_id"`
	TeamName  string   `json:"team_name"`
	MemberIDs []string `json:"member_ids"`
}

type MixedOrderItem struct {
	Kind      string   `json:"kind"`
	EventID   string   `json:"event_id"`
	TeamID    string   `json:"team_id,omitempty"`
	TeamName  string   `json:"team_name,omitempty"`
	MemberIDs []string `json:"member_ids,omitempty"`
}

type OrderResult struct {
	OrderID        string             `json:"order_id"`
	BookingID      string             `json:"booking_id"`
	BookingType    models.BookingType `json:"booking_type"`
	Amount         float64            `json:"amount"`
	OriginalAmount float64            `json:"original_amount"`
	CreditUsed     float64            `json:"credit_used"`
	PaymentURL     string             `json:"payment_url"`
}

// pricedOrder is the booking side of an order before credit is applied.
type pricedOrder struct {
	bookingID string
	base      float64
	eventName string
	team      *models.TeamSettlement
	combo     *models.ComboSettlement
	mixed     []models.MixedItem
}

// pendingTeam is a team that is created only after every item was priced.
type pendingTeam struct {
	item    int
	eventID string
	name    string
	members []string
	max     int
}

type OrderService struct {
	payments   models.PaymentRepo
	bookings   models.BookingRepo
	teams      models.TeamRepo
	events     models.EventRepo
	pricing    *PricingCalculator
	ledger     *Ledger
	contacts   *ContactResolver
	ids        *IDGenerator
	retry      storage.RetryPolicy
	gatewayURL string
	metrics    *metrics.PaymentMetrics
	logger     *slog.Logger
}

func NewOrderService(
	payments models.PaymentRepo,
	bookings models.BookingRepo,
	teams models.TeamRepo,
	events models.EventRepo,
	pricing *PricingCalculator,
	ledger *Ledger,
	contacts *ContactResolver,
	ids *IDGenerator,
	retry storage.RetryPolicy,
	gatewayURL string,
	m *metrics.PaymentMetrics,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		payments:   payments,
		bookings:   bookings,
		teams:      teams,
		events:     events,
		pricing:    pricing,
		ledger:     ledger,
		contacts:   contacts,
		ids:        ids,
		retry:      retry,
		gatewayURL: gatewayURL,
		metrics:    m,
		logger:     logger,
	}
}

// Initiate prices the booking server-side, applies the user's credit and
// persists an INITIATED transaction. Nothing is written for the transaction
// unless every check passed.
func (o *OrderService) Initiate(ctx context.Context, req InitiateRequest) (*OrderResult, error) {
	if err := models.Validate.Struct(req); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	bookingType, ok := models.ParseBookingType(req.BookingType)
	if !ok {
		return nil, validationErr("booking_type", fmt.Sprintf("unsupported booking type %q", req.BookingType))
	}
	if bookingType.RequiresBookingID() && req.BookingID == "" {
		return nil, validationErr("booking_id", "is required")
	}

	profile, err := o.contacts.Resolve(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	var priced *pricedOrder
	switch bookingType {
	case models.BookingAccommodation:
		priced, err = o.priceAccommodation(ctx, req)
	case models.BookingLunch:
		priced, err = o.priceLunch(ctx, req)
	case models.BookingEvent:
		priced, err = o.priceEvent(ctx, req)
	case models.BookingCombo:
		priced, err = o.priceCombo(ctx, req, profile)
	case models.BookingTeam:
		priced, err = o.priceTeam(ctx, req)
	case models.BookingMixed:
		priced, err = o.priceMixed(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	final, used, err := o.ledger.Apply(ctx, req.UserID, priced.base)
	if err != nil {
		return nil, err
	}

	orderID := o.ids.OrderID(priced.bookingID)
	payload := models.GatewayPayload{
		DueAmount:      final,
		RegNo:          firstNonEmpty(profile.RollNumber, req.UserID),
		AppOrderID:     orderID,
		FullName:       profile.FullName,
		EmailID:        profile.Email,
		MobileNo:       profile.MobileNumber,
		College:        profile.CollegeName,
		EventName:      priced.eventName,
		OriginalAmount: priced.base,
		CreditUsed:     used,
		Team:           priced.team,
		Combo:          priced.combo,
		Mixed:          priced.mixed,
	}

	txn := &models.PaymentTransaction{
		OrderID:        orderID,
		UserID:         req.UserID,
		BookingID:      priced.bookingID,
		BookingType:    bookingType,
		Amount:         final,
		Status:         models.TxnInitiated,
		GatewayPayload: payload,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.persist(ctx, txn); err != nil {
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.RecordOrderInitiated(string(bookingType), final, used)
	}
	o.logger.Info("Payment order initiated",
		"order_id", orderID,
		"booking_id", priced.bookingID,
		"booking_type", bookingType,
		"amount", final,
		"original_amount", priced.base,
		"credit_used", used,
	)

	return &OrderResult{
		OrderID:        orderID,
		BookingID:      priced.bookingID,
		BookingType:    bookingType,
		Amount:         final,
		OriginalAmount: priced.base,
		CreditUsed:     used,
		PaymentURL:     o.paymentURL(payload),
	}, nil
}

// InitiateRemainder opens a follow-up order for what a partial payment left
// unpaid. It reuses the parent's booking and replay data; credit is not applied.
func (o *OrderService) InitiateRemainder(ctx context.Context, parent *models.PaymentTransaction, remaining float64) (*OrderResult, error) {
	if remaining <= 0 {
		return nil, validationErr("remaining", "must be positive")
	}
	remaining = roundAmount(remaining)
	orderID := o.ids.RemainderOrderID(parent.BookingID)

	payload := parent.GatewayPayload
	payload.DueAmount = remaining
	payload.AppOrderID = orderID
	payload.OriginalAmount = remaining
	payload.CreditUsed = 0
	payload.ParentOrderID = parent.OrderID

	txn := &models.PaymentTransaction{
		OrderID:        orderID,
		UserID:         parent.UserID,
		BookingID:      parent.BookingID,
		BookingType:    parent.BookingType,
		Amount:         remaining,
		Status:         models.TxnInitiated,
		GatewayPayload: payload,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.persist(ctx, txn); err != nil {
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.RecordOrderInitiated(string(parent.BookingType), remaining, 0)
	}
	o.logger.Info("Remainder order initiated",
		"order_id", orderID,
		"parent_order_id", parent.OrderID,
		"booking_id", parent.BookingID,
		"amount", remaining,
	)

	return &OrderResult{
		OrderID:        orderID,
		BookingID:      parent.BookingID,
		BookingType:    parent.BookingType,
		Amount:         remaining,
		OriginalAmount: remaining,
		PaymentURL:     o.paymentURL(payload),
	}, nil
}

func (o *OrderService) persist(ctx context.Context, txn *models.PaymentTransaction) error {
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		return o.payments.CreateTransaction(ctx, txn)
	})
	if err != nil {
		o.logger.Error("Failed to persist payment transaction",
			"order_id", txn.OrderID,
			"booking_id", txn.BookingID,
			"error", err,
		)
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}
	return nil
}

func (o *OrderService) paymentURL(p models.GatewayPayload) string {
	sep := "?"
	if strings.Contains(o.gatewayURL, "?") {
		sep = "&"
	}
	return o.gatewayURL + sep + p.Query().Encode()
}

func (o *OrderService) priceAccommodation(ctx context.Context, req InitiateRequest) (*pricedOrder, error) {
	booking, err := o.bookings.GetAccommodation(ctx, req.BookingID, req.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound("accommodation booking", req.BookingID)
	}
	if err != nil {
		return nil, err
	}
	if err := requirePending(booking.PaymentStatus, req.BookingID); err != nil {
		return nil, err
	}
	return &pricedOrder{bookingID: booking.ID, base: booking.TotalPrice, eventName: "Accommodation"}, nil
}

func (o *OrderService) priceLunch(ctx context.Context, req InitiateRequest) (*pricedOrder, error) {
	booking, err := o.bookings.GetLunch(ctx, req.BookingID, req.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound("lunch booking", req.BookingID)
	}
	if err != nil {
		return nil, err
	}
	if err := requirePending(booking.PaymentStatus, req.BookingID); err != nil {
		return nil, err
	}
	return &pricedOrder{bookingID: booking.ID, base: booking.TotalPrice, eventName: "Lunch"}, nil
}

// priceEvent accepts either a batch id or a single registration id.
func (o *OrderService) priceEvent(ctx context.Context, req InitiateRequest) (*pricedOrder, error) {
	batch, err := o.bookings.ListRegistrationsByBatch(ctx, req.BookingID, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		reg, err := o.bookings.GetRegistration(ctx, req.BookingID, req.UserID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, notFound("event registration", req.BookingID)
		}
		if err != nil {
			return nil, err
		}
		batch = []models.EventRegistration{*reg}
	}

	var total float64
	names := make([]string, 0, len(batch))
	for _, reg := range batch {
		if reg.PaymentStatus == models.PaymentPaid {
			continue
		}
		total += reg.PaymentAmount
		names = append(names, reg.EventName)
	}
	if len(names) == 0 {
		return nil, &ConflictError{Message: "registration is already paid", Code: 400}
	}
	return &pricedOrder{bookingID: req.BookingID, base: roundAmount(total), eventName: strings.Join(names, ", ")}, nil
}

// priceCombo makes sure an inactive team led by the user exists for every team
// event in the combo before payment. A team left over from an earlier, unpaid
// initiation is reused.
func (o *OrderService) priceCombo(ctx context.Context, req InitiateRequest, profile *models.Profile) (*pricedOrder, error) {
	purchase, err := o.bookings.GetComboPurchase(ctx, req.BookingID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound("combo purchase", req.BookingID)
	}
	if err != nil {
		return nil, err
	}
	if purchase.UserID != req.UserID {
		return nil, notFound("combo purchase", req.BookingID)
	}
	if err := requirePending(purchase.PaymentStatus, req.BookingID); err != nil {
		return nil, err
	}

	events, err := o.events.ListEvents(ctx, purchase.SelectedEventIDs)
	if err != nil {
		return nil, err
	}

	settlement := &models.ComboSettlement{
		PurchaseID:       purchase.ID,
		ComboID:          purchase.ComboID,
		SelectedEventIDs: purchase.SelectedEventIDs,
	}
	for _, e := range events {
		if !e.IsTeamEvent {
			continue
		}
		team, err := o.teams.FindInactiveTeam(ctx, e.ID, req.UserID)
		if errors.Is(err, models.ErrNotFound) {
			name := strings.TrimSpace(req.ComboTeamNames[e.ID])
			if name == "" {
				name = fmt.Sprintf("%s's team", firstNonEmpty(profile.FullName, req.UserID))
			}
			team, err = o.createTeam(ctx, req.UserID, e.ID, name, nil, e.MaxTeamSize)
		}
		if err != nil {
			return nil, err
		}
		if settlement.TeamIDs == nil {
			settlement.TeamIDs = make(map[string]string)
		}
		settlement.TeamIDs[e.ID] = team.ID
	}

	return &pricedOrder{
		bookingID: purchase.ID,
		base:      purchase.TotalAmount,
		eventName: firstNonEmpty(purchase.ComboName, "Combo"),
		combo:     settlement,
	}, nil
}

func (o *OrderService) priceTeam(ctx context.Context, req InitiateRequest) (*pricedOrder, error) {
	if req.BookingID != "" {
		team, err := o.teams.GetTeam(ctx, req.BookingID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, notFound("team", req.BookingID)
		}
		if err != nil {
			return nil, err
		}
		members, err := o.teams.ListTeamMembers(ctx, team.ID)
		if err != nil {
			return nil, err
		}
		quote, err := o.pricing.QuoteTeam(ctx, team.EventID, team.TeamName, len(members))
		if err != nil {
			return nil, err
		}
		return &pricedOrder{
			bookingID: team.ID,
			base:      quote.Amount,
			eventName: quote.EventName,
			team:      teamSettlement(team.ID, quote),
		}, nil
	}

	if req.Team == nil || req.Team.EventID == "" || strings.TrimSpace(req.Team.TeamName) == "" {
		return nil, validationErr("team", "event_id and team_name are required when booking_id is empty")
	}
	teamName := strings.TrimSpace(req.Team.TeamName)
	members := teamMembers(req.UserID, req.Team.MemberIDs)

	quote, err := o.pricing.QuoteTeam(ctx, req.Team.EventID, teamName, len(members)+1)
	if err != nil {
		return nil, err
	}
	event, err := o.events.GetEvent(ctx, req.Team.EventID)
	if err != nil {
		return nil, err
	}
	team, err := o.createTeam(ctx, req.UserID, req.Team.EventID, teamName, members, event.MaxTeamSize)
	if err != nil {
		return nil, err
	}

	return &pricedOrder{
		bookingID: team.ID,
		base:      quote.Amount,
		eventName: quote.EventName,
		team:      teamSettlement(team.ID, quote),
	}, nil
}

// priceMixed prices every item before creating any team, so a rejected cart
// leaves nothing behind.
func (o *OrderService) priceMixed(ctx context.Context, req InitiateRequest) (*pricedOrder, error) {
	if len(req.Items) == 0 {
		return nil, validationErr("items", "at least one item is required")
	}

	items := make([]models.MixedItem, 0, len(req.Items))
	var newTeams []pendingTeam
	names := make([]string, 0, len(req.Items))

	for i, in := range req.Items {
		if in.EventID == "" {
			return nil, validationErr(fmt.Sprintf("items[%d].event_id", i), "is required")
		}
		event, err := o.events.GetEvent(ctx, in.EventID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, notFound("event", in.EventID)
		}
		if err != nil {
			return nil, err
		}

		switch models.MixedItemKind(in.Kind) {
		case models.MixedIndividual:
			reg, err := o.bookings.FindRegistration(ctx, req.UserID, in.EventID)
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return nil, err
			}
			if reg != nil && reg.PaymentStatus == models.PaymentPaid {
				return nil, &ConflictError{Message: fmt.Sprintf("already registered for %s", event.Name), Code: 400}
			}
			items = append(items, models.MixedItem{
				Kind:      models.MixedIndividual,
				EventID:   event.ID,
				EventName: event.Name,
				Amount:    event.Price,
			})

		case models.MixedTeam:
			var (
				teamName string
				size     int
				members  []string
			)
			if in.TeamID != "" {
				team, err := o.teams.GetTeam(ctx, in.TeamID)
				if errors.Is(err, models.ErrNotFound) {
					return nil, notFound("team", in.TeamID)
				}
				if err != nil {
					return nil, err
				}
				existing, err := o.teams.ListTeamMembers(ctx, team.ID)
				if err != nil {
					return nil, err
				}
				teamName, size = team.TeamName, len(existing)
			} else {
				teamName = strings.TrimSpace(in.TeamName)
				if teamName == "" {
					return nil, validationErr(fmt.Sprintf("items[%d].team_name", i), "is required for a new team")
				}
				members = teamMembers(req.UserID, in.MemberIDs)
				size = len(members) + 1
			}

			quote, err := o.pricing.QuoteTeam(ctx, in.EventID, teamName, size)
			if err != nil {
				return nil, err
			}
			items = append(items, models.MixedItem{
				Kind:          models.MixedTeam,
				EventID:       event.ID,
				EventName:     event.Name,
				TeamID:        in.TeamID,
				TeamName:      teamName,
				Amount:        quote.Amount,
				UnpaidMembers: quote.UnpaidMembers,
			})
			if in.TeamID == "" {
				newTeams = append(newTeams, pendingTeam{
					item:    len(items) - 1,
					eventID: event.ID,
					name:    teamName,
					members: members,
					max:     event.MaxTeamSize,
				})
			}

		default:
			return nil, validationErr(fmt.Sprintf("items[%d].kind", i), fmt.Sprintf("unsupported item kind %q", in.Kind))
		}
		names = append(names, event.Name)
	}

	for _, nt := range newTeams {
		team, err := o.createTeam(ctx, req.UserID, nt.eventID, nt.name, nt.members, nt.max)
		if err != nil {
			return nil, err
		}
		items[nt.item].TeamID = team.ID
	}

	return &pricedOrder{
		bookingID: o.ids.MixedID(),
		base:      MixedDue(items),
		eventName: strings.Join(names, ", "),
		mixed:     items,
	}, nil
}

// createTeam writes an inactive team with the leader and members.
func (o *OrderService) createTeam(ctx context.Context, leaderID, eventID, name string, members []string, maxMembers int) (*models.Team, error) {
	if maxMembers <= 0 {
		maxMembers = len(members) + 1
	}
	team, err := o.teams.CreateTeam(ctx, &models.Team{
		TeamName:   name,
		EventID:    eventID,
		LeaderID:   leaderID,
		MaxMembers: maxMembers,
		IsActive:   false,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rows := []models.TeamMember{{TeamID: team.ID, UserID: leaderID, Role: models.RoleLeader, Status: "joined", JoinedAt: now}}
	for _, id := range members {
		rows = append(rows, models.TeamMember{TeamID: team.ID, UserID: id, Role: models.RoleMember, Status: "joined", JoinedAt: now})
	}
	if err := o.teams.AddTeamMembers(ctx, rows); err != nil {
		return nil, err
	}

	o.logger.Info("Team created ahead of payment",
		"team_id", team.ID,
		"event_id", eventID,
		"team_name", name,
		"members", len(rows),
	)
	return team, nil
}

func teamSettlement(teamID string, q *TeamQuote) *models.TeamSettlement {
	return &models.TeamSettlement{
		TeamID:         teamID,
		EventID:        q.EventID,
		EventName:      q.EventName,
		TeamName:       q.TeamName,
		PricePerMember: q.PricePerMember,
		UnpaidMembers:  q.UnpaidMembers,
	}
}

// teamMembers drops blanks, duplicates and the leader from ids.
func teamMembers(leaderID string, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range uniqueStrings(ids) {
		if id != leaderID {
			out = append(out, id)
		}
	}
	return out
}

func requirePending(status models.PaymentStatus, bookingID string) error {
	if status != models.PaymentPending {
		return validationErr("booking_id", fmt.Sprintf("booking %s is %s, not PENDING", bookingID, status))
	}
	return nil
}

func (o *OrderService) Get(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	txn, err := o.payments.GetTransaction(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound("transaction", orderID)
	}
	return txn, err
}

// ListStale reports INITIATED orders older than olderThan. Nothing is expired.
func (o *OrderService) ListStale(ctx context.Context, olderThan time.Duration) ([]models.PaymentTransaction, error) {
	if olderThan <= 0 {
		return nil, validationErr("older_than", "must be a positive duration")
	}
	return o.payments.ListStaleTransactions(ctx, time.Now().Add(-olderThan))
}
