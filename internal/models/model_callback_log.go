package models

import (
	"time"

	"gorm.io/datatypes"
)

type CallbackLogStatus string

const (
	CallbackLogStatusReceived     CallbackLogStatus = "received"
	CallbackLogStatusHandled      CallbackLogStatus = "handled"
	CallbackLogStatusHandleFailed CallbackLogStatus = "handle_failed"
)

// CallbackLog is the audit trail of webhook deliveries: one "received" row
// per delivery plus one "handled"/"handle_failed" row with the outcome.
type CallbackLog struct {
	ID          string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TraceID     string            `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	ReferenceID string            `gorm:"column:reference_id;type:varchar(128);index" json:"reference_id"`
	ExternalID  string            `gorm:"column:external_id;type:varchar(128)" json:"external_id"`
	ReceivedAt  time.Time         `gorm:"column:received_at" json:"received_at"`
	Payload     datatypes.JSON    `gorm:"column:payload;type:jsonb" json:"payload"`
	Result      *datatypes.JSON   `gorm:"column:result;type:jsonb" json:"result"`
	Status      CallbackLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (CallbackLog) TableName() string { return "callback_log" }
