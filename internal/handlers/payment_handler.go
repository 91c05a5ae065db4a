package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/helpers"
	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
	"github.com/Mithunp123/Dakshaa-sub002/internal/services"
	"github.com/gin-gonic/gin"
)

// CallbackHistory lists the audited callbacks of an order.
type CallbackHistory interface {
	ListCallbacks(ctx context.Context, orderID string, limit int) ([]*models.CallbackRecord, error)
}

func InitiatePayment(o *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.InitiateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, helpers.ErrorResponse("invalid request body: "+err.Error()))
			return
		}
		if !authorized(c, req.UserID) {
			return
		}

		res, err := o.Initiate(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set("order_id", res.OrderID)
		c.JSON(http.StatusOK, helpers.SuccessResponse(res, "Payment initiated"))
	}
}

// PaymentCallback serves both gateway transports on one route. GET is the
// user's browser coming back from the gateway and is answered with a page;
// POST is the webhook and is answered with JSON.
func PaymentCallback(cs *services.CallbackService, dashboardURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost {
			webhookCallback(c, cs)
			return
		}
		redirectCallback(c, cs, dashboardURL)
	}
}

func webhookCallback(c *gin.Context, cs *services.CallbackService) {
	body := map[string]interface{}{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, helpers.ErrorResponse("invalid callback body: "+err.Error()))
			return
		}
	}

	ev := services.WebhookEvent(c.Request.URL.Query(), body)
	c.Set("order_id", ev.OrderID)

	res, err := cs.Handle(c.Request.Context(), ev)
	if err != nil {
		var nf *services.NotFoundError
		if errors.As(err, &nf) {
			c.JSON(http.StatusNotFound, gin.H{"received": false, "error": "transaction not found"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "status": res.Status})
}

func redirectCallback(c *gin.Context, cs *services.CallbackService, dashboardURL string) {
	ev := services.RedirectEvent(c.Request.URL.Query())
	c.Set("order_id", ev.OrderID)

	res, err := cs.Handle(c.Request.Context(), ev)
	if err != nil {
		status := http.StatusInternalServerError
		page := Page{
			Title:   "Something went wrong",
			Message: "We could not confirm your payment. If money was deducted, contact support with the reference below.",
			OrderID: ev.OrderID,
			Target:  dashboardTarget(dashboardURL, "error", ev.OrderID),
		}
		var ve *services.ValidationError
		var nf *services.NotFoundError
		switch {
		case errors.As(err, &ve):
			status = http.StatusBadRequest
			page.Title = "Invalid payment response"
			page.Detail = ve.Error()
		case errors.As(err, &nf):
			status = http.StatusNotFound
			page.Title = "Transaction not found"
			page.Message = "No payment was started with this reference."
			page.Detail = "received fields: " + strings.Join(fieldNames(ev.Fields), ", ")
		default:
			_ = c.Error(err)
		}
		c.HTML(status, pageError, page)
		return
	}

	orderID := ev.OrderID
	switch {
	case res.Remainder != nil:
		c.HTML(http.StatusOK, pageRemaining, Page{
			Title:      "Partial payment received",
			Message:    "We received part of the amount. Your booking is held until the rest is paid.",
			OrderID:    res.Remainder.OrderID,
			Amount:     res.Remainder.Amount,
			PaymentURL: res.Remainder.PaymentURL,
		})

	case res.Outcome == services.OutcomeUnresolved:
		c.HTML(http.StatusOK, pageChecking, Page{
			Title:   "Checking payment status",
			Message: "The gateway has not confirmed your payment yet. Your dashboard will update once it does.",
			OrderID: orderID,
			Target:  dashboardTarget(dashboardURL, "checking", orderID),
			Delay:   checkingDelay,
		})

	default:
		title, message, outcome := outcomeCopy(res)
		c.HTML(http.StatusOK, pageRedirect, Page{
			Title:   title,
			Message: message,
			OrderID: orderID,
			Target:  dashboardTarget(dashboardURL, outcome, orderID),
			Delay:   1,
		})
	}
}

func outcomeCopy(res *services.CallbackResult) (title, message, outcome string) {
	processed := res.Outcome == services.OutcomeAlreadyProcessed
	switch res.Status {
	case models.TxnSuccess:
		if processed {
			return "Payment already confirmed", "This payment was processed earlier. Redirecting to your dashboard.", "success"
		}
		return "Payment successful", "Your booking is confirmed. Redirecting to your dashboard.", "success"
	case models.TxnFailed:
		if processed {
			return "Payment already processed", "This payment was marked as failed earlier.", "failed"
		}
		return "Payment failed", "The payment could not be accepted. No booking was confirmed.", "failed"
	default:
		return "Payment pending", "Your payment is pending confirmation from the gateway.", "pending"
	}
}

type paymentStatus struct {
	Transaction *models.PaymentTransaction `json:"transaction"`
	Callbacks   []*models.CallbackRecord   `json:"callbacks,omitempty"`
}

// GetPaymentStatus returns the stored transaction. history may be nil.
func GetPaymentStatus(o *services.OrderService, history CallbackHistory) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := strings.TrimSpace(c.Param("order_id"))
		c.Set("order_id", orderID)

		txn, err := o.Get(c.Request.Context(), orderID)
		if err != nil {
			writeError(c, err)
			return
		}
		if !authorized(c, txn.UserID) {
			return
		}

		out := paymentStatus{Transaction: txn}
		if history != nil {
			calls, err := history.ListCallbacks(c.Request.Context(), orderID, 0)
			if err != nil {
				_ = c.Error(err)
			} else {
				out.Callbacks = calls
			}
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(out, ""))
	}
}

func ReconcilePayment(cs *services.CallbackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := strings.TrimSpace(c.Param("order_id"))
		c.Set("order_id", orderID)

		res, err := cs.Reconcile(c.Request.Context(), orderID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(res, "Reconciliation finished"))
	}
}

const defaultStaleAge = 15 * time.Minute

func ListStalePayments(o *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		olderThan := defaultStaleAge
		if raw := c.Query("older_than"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, helpers.ErrorResponse("invalid older_than parameter"))
				return
			}
			olderThan = d
		}

		txns, err := o.ListStale(c.Request.Context(), olderThan)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(txns, 1, len(txns), len(txns)))
	}
}

func fieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
