package payment

import (
	"time"

	"github.com/sokoni/server/internal/model"
)

// Classify maps a resolution onto a terminal ledger status. A missing code
// counts as a failure.
func Classify(res *model.Resolution) model.PaymentStatus {
	if res.ResultCode == nil {
		return model.PaymentStatusFailed
	}
	return model.ResultCode(*res.ResultCode).Status()
}

// applyOutcome moves a pending entry into the terminal state described by res.
func applyOutcome(req *model.PaymentRequest, res *model.Resolution, now time.Time) {
	status := Classify(res)

	if res.ResultCode != nil {
		code := *res.ResultCode
		req.ProviderResultCode = &code
	}
	msg := res.ResultMessage
	req.ProviderResultMessage = &msg

	if status == model.PaymentStatusSuccess {
		receipt := res.Metadata[model.MetadataReceiptNumber]
		txnTime := res.Metadata[model.MetadataTransactionDate]
		req.ProviderReceiptID = &receipt
		req.ProviderTransactionTimestamp = &txnTime
	}

	req.Status = status
	req.UpdatedAt = now
}
