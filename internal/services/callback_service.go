package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/metrics"
	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
	"github.com/google/uuid"
)

type Transport string

const (
	TransportRedirect Transport = "redirect"
	TransportWebhook  Transport = "webhook"
)

// CallbackEvent is one gateway notification, whichever transport carried it.
type CallbackEvent struct {
	OrderID      string
	Status       models.TxnStatus
	RawStatus    string
	Amount       *float64
	GatewayTxnID string
	PaymentID    string
	Error        string
	Transport    Transport
	Fields       map[string]string
}

// RedirectEvent builds the event for a browser redirect (query string only).
func RedirectEvent(query url.Values) CallbackEvent {
	return newCallbackEvent(TransportRedirect, flattenQuery(query))
}

// WebhookEvent builds the event for a server-to-server POST. Body fields win
// over query string fields of the same name.
func WebhookEvent(query url.Values, body map[string]interface{}) CallbackEvent {
	fields := flattenQuery(query)
	for k, v := range body {
		fields[k] = fieldString(v)
	}
	return newCallbackEvent(TransportWebhook, fields)
}

func newCallbackEvent(transport Transport, fields map[string]string) CallbackEvent {
	get := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(fields[k]); !absent(v) {
				return v
			}
		}
		return ""
	}

	ev := CallbackEvent{
		OrderID:      get("order_id", "apporderid"),
		RawStatus:    get("status"),
		GatewayTxnID: get("txn_id", "transaction_id"),
		PaymentID:    get("payment_id"),
		Error:        get("error"),
		Transport:    transport,
		Fields:       fields,
	}
	if ev.GatewayTxnID == "" {
		ev.GatewayTxnID = ev.PaymentID
	}

	ev.Status = NormalizeStatus(ev.RawStatus)
	if ev.RawStatus == "" && truthy(get("success")) {
		ev.Status = models.TxnSuccess
	}

	if raw := get("amount"); raw != "" {
		if amount, err := strconv.ParseFloat(raw, 64); err == nil {
			ev.Amount = &amount
		}
	}
	return ev
}

func absent(v string) bool {
	return v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "undefined")
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "y", "success":
		return true
	}
	return false
}

func flattenQuery(q url.Values) map[string]string {
	fields := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields
}

func fieldString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}

type CallbackOutcome string

const (
	// OutcomeSettled means this callback moved the order out of INITIATED.
	OutcomeSettled CallbackOutcome = "settled"
	// OutcomeAlreadyProcessed means another callback got there first.
	OutcomeAlreadyProcessed CallbackOutcome = "already_processed"
	// OutcomeUnresolved means no status was known yet and nothing was written.
	OutcomeUnresolved CallbackOutcome = "unresolved"
)

type CallbackResult struct {
	Outcome         CallbackOutcome
	Status          models.TxnStatus
	Transaction     *models.PaymentTransaction
	Verification    *Verification
	Materialization *MaterializeResult
	Remainder       *OrderResult
	Security        *SecurityError
}

// CallbackAuditor stores every normalized callback. Optional.
type CallbackAuditor interface {
	RecordCallback(ctx context.Context, rec *models.CallbackRecord) error
}

type CallbackService struct {
	payments     models.PaymentRepo
	poller       *Poller
	ledger       *Ledger
	materializer *Materializer
	notifier     *Notifier
	orders       *OrderService
	auditor      CallbackAuditor
	retry        storage.RetryPolicy
	metrics      *metrics.PaymentMetrics
	logger       *slog.Logger
}

func NewCallbackService(
	payments models.PaymentRepo,
	poller *Poller,
	ledger *Ledger,
	materializer *Materializer,
	notifier *Notifier,
	orders *OrderService,
	auditor CallbackAuditor,
	retry storage.RetryPolicy,
	m *metrics.PaymentMetrics,
	logger *slog.Logger,
) *CallbackService {
	return &CallbackService{
		payments:     payments,
		poller:       poller,
		ledger:       ledger,
		materializer: materializer,
		notifier:     notifier,
		orders:       orders,
		auditor:      auditor,
		retry:        retry,
		metrics:      m,
		logger:       logger,
	}
}

// Handle runs one callback through the state machine. A transaction leaves
// INITIATED at most once; every later callback for it is answered from the
// stored row without writing.
func (cs *CallbackService) Handle(ctx context.Context, ev CallbackEvent) (*CallbackResult, error) {
	if ev.OrderID == "" {
		return nil, validationErr("order_id", "is required")
	}
	log := cs.logger.With("order_id", ev.OrderID, "transport", ev.Transport)

	txn, err := cs.load(ctx, ev.OrderID)
	if err != nil {
		return nil, err
	}

	res, err := cs.handle(ctx, ev, txn, log)
	if err != nil {
		return nil, err
	}

	if cs.metrics != nil {
		cs.metrics.RecordCallback(string(ev.Transport), string(res.Outcome))
	}
	cs.audit(ctx, ev, res, log)
	return res, nil
}

func (cs *CallbackService) handle(ctx context.Context, ev CallbackEvent, txn *models.PaymentTransaction, log *slog.Logger) (*CallbackResult, error) {
	if txn.Status != models.TxnInitiated {
		log.Info("Transaction already processed", "status", txn.Status)
		return &CallbackResult{Outcome: OutcomeAlreadyProcessed, Status: txn.Status, Transaction: txn}, nil
	}

	if ev.Status == "" && ev.Amount == nil {
		if ev.Transport != TransportRedirect {
			log.Info("Webhook carried no status, nothing to apply")
			return &CallbackResult{Outcome: OutcomeUnresolved, Status: txn.Status, Transaction: txn}, nil
		}

		latest, err := cs.poller.Wait(ctx, ev.OrderID)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.Status != models.TxnInitiated {
			return &CallbackResult{Outcome: OutcomeAlreadyProcessed, Status: latest.Status, Transaction: latest}, nil
		}
		return &CallbackResult{Outcome: OutcomeUnresolved, Status: txn.Status, Transaction: txn}, nil
	}

	verification := VerifyAmount(txn.Amount, ev.Amount, ev.Status)
	errMsg := firstNonEmpty(verification.Message, ev.Error)

	now := time.Now().UTC()
	claim := uuid.NewString()
	update := models.TransactionUpdate{
		Status:          verification.Status,
		TransactionID:   ev.GatewayTxnID,
		GatewayResponse: rawResponse(ev, claim),
		Error:           errMsg,
	}
	if verification.Status.Settled() {
		update.CompletedAt = &now
	}

	var won bool
	err := cs.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		won, err = cs.payments.TransitionTransaction(ctx, ev.OrderID, update)
		return err
	})
	if err != nil {
		log.Error("Failed to record callback status", "booking_id", txn.BookingID, "error", err)
		return nil, err
	}
	if !won {
		latest, err := cs.load(ctx, ev.OrderID)
		if err != nil {
			return nil, err
		}
		// A retried transition finds its own earlier write when only the reply was lost.
		if claimedBy(latest, claim) {
			log.Warn("Transition reply was lost but the write landed", "status", latest.Status)
		} else {
			log.Info("Another callback settled the transaction first", "status", latest.Status)
			return &CallbackResult{Outcome: OutcomeAlreadyProcessed, Status: latest.Status, Transaction: latest}, nil
		}
	}

	txn.Status = verification.Status
	if ev.GatewayTxnID != "" {
		id := ev.GatewayTxnID
		txn.TransactionID = &id
	}
	if errMsg != "" {
		txn.Error = &errMsg
	}
	txn.GatewayResponse = update.GatewayResponse
	txn.CompletedAt = update.CompletedAt

	if cs.metrics != nil {
		cs.metrics.RecordSettlement(string(txn.BookingType), string(txn.Status))
	}
	log.Info("Transaction settled",
		"booking_id", txn.BookingID,
		"booking_type", txn.BookingType,
		"status", txn.Status,
		"verdict", verification.Verdict,
	)

	res := &CallbackResult{
		Outcome:      OutcomeSettled,
		Status:       txn.Status,
		Transaction:  txn,
		Verification: &verification,
	}

	switch verification.Status {
	case models.TxnSuccess:
		cs.isolated(ctx, log, "ledger.clear", func(ctx context.Context) error {
			return cs.ledger.Clear(ctx, txn.UserID)
		})
		res.Materialization = cs.settle(ctx, txn, models.TxnSuccess, firstNonEmpty(ev.PaymentID, ev.GatewayTxnID), log)

	case models.TxnFailed:
		if verification.Verdict == VerdictMismatch {
			res.Security = &SecurityError{OrderID: txn.OrderID, Expected: txn.Amount, Received: *ev.Amount}
			log.Error("Amount exceeds order, payment failed", "booking_id", txn.BookingID, "error", res.Security)
		}
		res.Materialization = cs.settle(ctx, txn, models.TxnFailed, "", log)

	case models.TxnPending:
		if verification.Verdict != VerdictPartial {
			log.Info("Gateway reported a non-success status, booking left pending", "raw_status", ev.RawStatus)
			break
		}
		cs.isolated(ctx, log, "ledger.add", func(ctx context.Context) error {
			_, err := cs.ledger.RecordPartial(ctx, txn.UserID, txn.OrderID, *ev.Amount)
			return err
		})
		if ev.Transport == TransportRedirect {
			remainder, err := cs.orders.InitiateRemainder(ctx, txn, verification.Remaining)
			if err != nil {
				log.Error("Failed to open remainder order", "booking_id", txn.BookingID, "remaining", verification.Remaining, "error", err)
			} else {
				res.Remainder = remainder
			}
		}
	}
	return res, nil
}

// settle materializes the booking and, on success, notifies. Failures are
// logged for manual reconciliation and never change the transaction status.
func (cs *CallbackService) settle(ctx context.Context, txn *models.PaymentTransaction, status models.TxnStatus, paymentID string, log *slog.Logger) *MaterializeResult {
	mat, err := cs.materializer.Materialize(ctx, txn, status, paymentID)
	if err != nil {
		log.Error("Booking not materialized", "booking_id", txn.BookingID, "error", err)
		return mat
	}
	if status == models.TxnSuccess && cs.notifier != nil {
		if err := cs.notifier.Notify(ctx, txn, mat); err != nil {
			log.Warn("Notification incomplete", "booking_id", txn.BookingID, "error", err)
		}
	}
	return mat
}

func (cs *CallbackService) isolated(ctx context.Context, log *slog.Logger, step string, fn func(ctx context.Context) error) {
	if err := cs.retry.Do(ctx, fn); err != nil {
		log.Error("Callback side effect failed", "step", step, "error", err)
	}
}

// Reconcile runs the materializer again for a settled transaction. Every write
// it makes is idempotent, so it only fills in steps that failed before.
func (cs *CallbackService) Reconcile(ctx context.Context, orderID string) (*MaterializeResult, error) {
	txn, err := cs.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !txn.Status.Settled() {
		return nil, validationErr("order_id", fmt.Sprintf("transaction is %s, only SUCCESS or FAILED can be reconciled", txn.Status))
	}

	paymentID := ""
	if txn.TransactionID != nil {
		paymentID = *txn.TransactionID
	}
	cs.logger.Info("Manual reconciliation", "order_id", orderID, "booking_id", txn.BookingID, "status", txn.Status)
	return cs.materializer.Materialize(ctx, txn, txn.Status, paymentID)
}

func (cs *CallbackService) load(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	var txn *models.PaymentTransaction
	err := cs.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		txn, err = cs.payments.GetTransaction(ctx, orderID)
		return err
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound("transaction", orderID)
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (cs *CallbackService) audit(ctx context.Context, ev CallbackEvent, res *CallbackResult, log *slog.Logger) {
	if cs.auditor == nil {
		return
	}
	rec := &models.CallbackRecord{
		OrderID:      ev.OrderID,
		Transport:    string(ev.Transport),
		Status:       string(res.Status),
		Amount:       ev.Amount,
		GatewayTxnID: ev.GatewayTxnID,
		Raw:          ev.Fields,
		Outcome:      string(res.Outcome),
	}
	if res.Verification != nil {
		rec.Verdict = string(res.Verification.Verdict)
	}
	if err := cs.auditor.RecordCallback(ctx, rec); err != nil {
		log.Warn("Failed to record callback audit", "error", err)
	}
}

// claimKey tags the stored gateway response with the callback that wrote it.
const claimKey = "claim_id"

func rawResponse(ev CallbackEvent, claim string) map[string]interface{} {
	out := make(map[string]interface{}, len(ev.Fields)+2)
	for k, v := range ev.Fields {
		out[k] = v
	}
	out["transport"] = string(ev.Transport)
	out[claimKey] = claim
	return out
}

func claimedBy(txn *models.PaymentTransaction, claim string) bool {
	if txn == nil || txn.GatewayResponse == nil {
		return false
	}
	got, _ := txn.GatewayResponse[claimKey].(string)
	return got == claim
}
