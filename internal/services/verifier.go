package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
)

// AmountTolerance is the largest difference in rupees still treated as paid in full.
const AmountTolerance = 0.1

// floating point slack so that 500.1 against 500 stays inside the tolerance
const toleranceEpsilon = 1e-9

type Verdict string

const (
	VerdictSuccess  Verdict = "SUCCESS"
	VerdictPartial  Verdict = "PARTIAL"
	VerdictMismatch Verdict = "MISMATCH"
	// VerdictTrusted means no amount was reported and the gateway status was used as-is.
	VerdictTrusted Verdict = "TRUSTED"
)

type Verification struct {
	Verdict   Verdict
	Status    models.TxnStatus
	Expected  float64
	Received  *float64
	Remaining float64
	Message   string
}

// NormalizeStatus maps a gateway status to a transaction status. Failure
// statuses become PENDING so the user can retry the order.
func NormalizeStatus(raw string) models.TxnStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return ""
	case "SUCCESS", "SUCCESSFUL", "PAID", "COMPLETED", "CAPTURED":
		return models.TxnSuccess
	case "FAIL", "FAILURE", "FAILED":
		return models.TxnPending
	default:
		return models.TxnPending
	}
}

// VerifyAmount classifies a callback against the stored order amount. Amounts
// are only checked when the gateway claims success or reports no status at all.
func VerifyAmount(expected float64, received *float64, status models.TxnStatus) Verification {
	v := Verification{Expected: expected, Received: received}

	if received == nil || (status != "" && status != models.TxnSuccess) {
		v.Verdict = VerdictTrusted
		v.Status = status
		return v
	}

	diff := *received - expected
	switch {
	case math.Abs(diff) <= AmountTolerance+toleranceEpsilon:
		v.Verdict = VerdictSuccess
		v.Status = models.TxnSuccess
	case diff < 0:
		v.Verdict = VerdictPartial
		v.Status = models.TxnPending
		v.Remaining = roundAmount(expected - *received)
		v.Message = fmt.Sprintf("Partial Payment: remaining %.2f", v.Remaining)
	default:
		v.Verdict = VerdictMismatch
		v.Status = models.TxnFailed
		v.Message = fmt.Sprintf("Security Alert: Amount mismatch. Received %.2f, expected %.2f", *received, expected)
	}
	return v
}
