package reconcile

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/samber/lo"
	"gorm.io/datatypes"

	"github.com/fatflowers/momobridge/internal/models"
	"github.com/fatflowers/momobridge/internal/platform/momo"
	"github.com/fatflowers/momobridge/pkg/types"
)

// ErrNoIdentifier is the only caller-facing validation failure on the
// callback path: no reference id, external id or financial transaction id
// could be resolved.
var ErrNoIdentifier = errors.New("reconcile: callback carries no resolvable identifier")

// CallbackPayload is the webhook body shape delivered by the network.
type CallbackPayload struct {
	ReferenceID            string             `json:"referenceId"`
	ExternalID             string             `json:"externalId"`
	FinancialTransactionID string             `json:"financialTransactionId"`
	Status                 string             `json:"status"`
	Amount                 string             `json:"amount"`
	Currency               string             `json:"currency"`
	Payer                  *momo.Payer        `json:"payer"`
	Reason                 *momo.StatusReason `json:"reason"`
}

// ParseCallback builds the inbound update from a webhook delivery. The
// reference id resolution order is: header reference id, body referenceId,
// body externalId, financialTransactionId.
func ParseCallback(headerReferenceID string, body []byte, receivedAt time.Time) (*models.Transaction, error) {
	var p CallbackPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &p); err != nil {
			// An unparsable body can still be reconciled when the header
			// carries the reference id.
			p = CallbackPayload{}
		}
	}

	referenceID := headerReferenceID
	if referenceID == "" {
		referenceID = p.ReferenceID
	}
	if referenceID == "" && p.ExternalID == "" && p.FinancialTransactionID == "" {
		return nil, ErrNoIdentifier
	}

	upd := &models.Transaction{
		ReferenceID: referenceID,
		ExternalID:  p.ExternalID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      types.ParseTransactionStatus(p.Status),
	}
	if p.FinancialTransactionID != "" {
		upd.FinancialTransactionID = lo.ToPtr(p.FinancialTransactionID)
	}
	if p.Payer != nil {
		upd.PayerPhone = p.Payer.PartyID
		upd.PayerIDType = p.Payer.PartyIDType
	}
	if p.Reason != nil && upd.Status == types.TransactionStatusFailed {
		upd.FailureReason = lo.ToPtr(types.NormalizeFailureReason(p.Reason.Code))
	}
	upd.CallbackReceivedAt = lo.ToPtr(receivedAt)
	if len(body) > 0 {
		upd.RawCallbackPayload = datatypes.JSON(body)
	}
	return upd, nil
}

// UpdateFromStatus converts a poll response into the same update shape the
// callback path produces, so both flow through one merge protocol.
func UpdateFromStatus(referenceID string, st *momo.TransactionStatusResponse) *models.Transaction {
	upd := &models.Transaction{
		ReferenceID: referenceID,
		ExternalID:  st.ExternalID,
		Amount:      st.Amount,
		Currency:    st.Currency,
		PayerPhone:  st.Payer.PartyID,
		PayerIDType: st.Payer.PartyIDType,
		Status:      types.ParseTransactionStatus(st.Status),
	}
	if st.FinancialTransactionID != "" {
		upd.FinancialTransactionID = lo.ToPtr(st.FinancialTransactionID)
	}
	if st.Reason != nil && upd.Status == types.TransactionStatusFailed {
		upd.FailureReason = lo.ToPtr(types.NormalizeFailureReason(st.Reason.Code))
	}
	return upd
}
