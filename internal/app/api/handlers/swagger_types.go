package handlers

import (
	"github.com/fatflowers/momobridge/internal/app/service/store"
	"github.com/fatflowers/momobridge/internal/models"
	"github.com/fatflowers/momobridge/internal/platform/momo"
	"github.com/fatflowers/momobridge/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespTransaction wraps a transaction record in the standard envelope.
type RespTransaction struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Transaction       `json:"data"`
}

// RespScanTransactions wraps the admin scan result in the standard envelope.
type RespScanTransactions struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    store.ScanResponse       `json:"data"`
}

// RespBalance wraps the account balance in the standard envelope.
type RespBalance struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    momo.AccountBalance      `json:"data"`
}
