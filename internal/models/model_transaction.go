package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/momobridge/pkg/types"
)

// Transaction is the unit of reconciliation: one collection request tracked
// from initiation through terminal state.
type Transaction struct {
	// ReferenceID correlates the request across cache, store and network.
	// Assigned exactly once at initiation, immutable afterwards.
	ReferenceID string `gorm:"column:reference_id;primary_key;type:uuid" json:"referenceId"`
	// ExternalID is the caller-supplied order identifier. Secondary lookup
	// key, not guaranteed unique across retries.
	ExternalID string `gorm:"column:external_id;type:varchar(128);index:idx_external_id" json:"externalId"`
	// FinancialTransactionID is assigned by the network only on success.
	FinancialTransactionID *string `gorm:"column:financial_transaction_id;type:varchar(128)" json:"financialTransactionId,omitempty"`
	// Amount is carried as the network's decimal string.
	Amount      string                  `gorm:"column:amount;type:varchar(32)" json:"amount"`
	Currency    string                  `gorm:"column:currency;type:varchar(8)" json:"currency"`
	PayerPhone  string                  `gorm:"column:payer_phone;type:varchar(32)" json:"payerPhone"`
	PayerIDType string                  `gorm:"column:payer_id_type;type:varchar(16)" json:"payerIdType"`
	Status      types.TransactionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	// FailureReason is set only when Status is FAILED.
	FailureReason *string `gorm:"column:failure_reason;type:varchar(64)" json:"failureReason,omitempty"`
	PayerMessage  string  `gorm:"column:payer_message;type:varchar(256)" json:"payerMessage,omitempty"`
	PayeeNote     string  `gorm:"column:payee_note;type:varchar(256)" json:"payeeNote,omitempty"`

	CallbackReceivedAt *time.Time `gorm:"column:callback_received_at" json:"callbackReceivedAt,omitempty"`
	ProcessedAt        *time.Time `gorm:"column:processed_at" json:"processedAt,omitempty"`
	// HooksFiredAt marks that terminal side-effect hooks already ran for this
	// reference id. Persisted so duplicate callbacks stay side-effect free
	// across restarts.
	HooksFiredAt *time.Time `gorm:"column:hooks_fired_at" json:"hooksFiredAt,omitempty"`
	// RawCallbackPayload keeps the last callback body verbatim for audit.
	RawCallbackPayload datatypes.JSON `gorm:"column:raw_callback_payload;type:jsonb" json:"rawCallbackPayload,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Transaction) TableName() string { return "transaction" }

func (t *Transaction) IsTerminal() bool {
	return t != nil && t.Status.IsTerminal()
}

// Clone returns a shallow copy safe for merge-then-persist without mutating
// cached state in place.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// ApplyUpdate merges inbound fields onto t. Non-empty inbound fields
// overwrite same-named fields; ReferenceID is immutable and a populated field
// is never nulled out by an absent inbound value.
func (t *Transaction) ApplyUpdate(in *Transaction) {
	if t == nil || in == nil {
		return
	}
	if t.ReferenceID == "" {
		t.ReferenceID = in.ReferenceID
	}
	if in.ExternalID != "" {
		t.ExternalID = in.ExternalID
	}
	if in.FinancialTransactionID != nil && *in.FinancialTransactionID != "" {
		t.FinancialTransactionID = in.FinancialTransactionID
	}
	if in.Amount != "" {
		t.Amount = in.Amount
	}
	if in.Currency != "" {
		t.Currency = in.Currency
	}
	if in.PayerPhone != "" {
		t.PayerPhone = in.PayerPhone
	}
	if in.PayerIDType != "" {
		t.PayerIDType = in.PayerIDType
	}
	if in.Status != "" {
		t.Status = in.Status
	}
	if in.FailureReason != nil && *in.FailureReason != "" {
		t.FailureReason = in.FailureReason
	}
	if in.PayerMessage != "" {
		t.PayerMessage = in.PayerMessage
	}
	if in.PayeeNote != "" {
		t.PayeeNote = in.PayeeNote
	}
	if in.CallbackReceivedAt != nil {
		t.CallbackReceivedAt = in.CallbackReceivedAt
	}
	if in.ProcessedAt != nil {
		t.ProcessedAt = in.ProcessedAt
	}
	if len(in.RawCallbackPayload) > 0 {
		t.RawCallbackPayload = in.RawCallbackPayload
	}
}
