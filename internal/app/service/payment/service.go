package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fatflowers/momobridge/internal/app/service/reconcile"
	"github.com/fatflowers/momobridge/internal/app/service/store"
	"github.com/fatflowers/momobridge/internal/app/service/txcache"
	"github.com/fatflowers/momobridge/internal/models"
	"github.com/fatflowers/momobridge/internal/platform/momo"
	cfgpkg "github.com/fatflowers/momobridge/pkg/config"
	"github.com/fatflowers/momobridge/pkg/logctx"
	"github.com/fatflowers/momobridge/pkg/tool"
	"github.com/fatflowers/momobridge/pkg/types"
)

// ErrBadRequest marks malformed caller input on the initiate path.
var ErrBadRequest = errors.New("payment: bad request")

// ErrNotFound means no source (store, network, cache) knows the reference id.
var ErrNotFound = errors.New("payment: transaction not found")

type InitiateRequest struct {
	Phone string `json:"phone"`
	// Amount accepts both "100" and 100 from callers.
	Amount     json.Number `json:"amount"`
	Currency   string      `json:"currency"`
	ExternalID string      `json:"externalId"`
	Message    string      `json:"message"`
	Note       string      `json:"note"`
}

// collectionClient is the slice of the network client the service uses.
type collectionClient interface {
	RequestToPay(ctx context.Context, in *momo.RequestToPayInput) (string, error)
	GetTransactionStatus(ctx context.Context, referenceID string) (*momo.TransactionStatusResponse, error)
	GetAccountBalance(ctx context.Context, currency string) (*momo.AccountBalance, error)
	GetBasicUserInfo(ctx context.Context, msisdn string) (*momo.BasicUserInfo, error)
}

// Manager drives payment initiation and status resolution.
type Manager interface {
	// Initiate a request-to-pay against the payer's wallet.
	Initiate(ctx context.Context, req *InitiateRequest) (*models.Transaction, error)
	// GetStatus resolves a reference id: store first, then network poll
	// merged through the reconciliation engine, then cache fallback.
	GetStatus(ctx context.Context, referenceID string) (*models.Transaction, error)
	// GetBalance fetches the collection account balance.
	GetBalance(ctx context.Context, currency string) (*momo.AccountBalance, error)
	// GetPayerInfo looks up the account holder behind an msisdn.
	GetPayerInfo(ctx context.Context, msisdn string) (*momo.BasicUserInfo, error)
}

type Service struct {
	cfg    *cfgpkg.Config
	log    *zap.SugaredLogger
	client collectionClient
	cache  *txcache.Cache
	store  store.Store
	engine *reconcile.Engine
}

func NewService(cfg *cfgpkg.Config, log *zap.SugaredLogger, client *momo.Client, cache *txcache.Cache, st store.Store, engine *reconcile.Engine) Manager {
	return &Service{cfg: cfg, log: log, client: client, cache: cache, store: st, engine: engine}
}

func (s *Service) Initiate(ctx context.Context, req *InitiateRequest) (*models.Transaction, error) {
	if req == nil || req.Phone == "" || req.Amount.String() == "" {
		return nil, fmt.Errorf("%w: phone and amount are required", ErrBadRequest)
	}
	if v, err := req.Amount.Float64(); err != nil || v <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive number", ErrBadRequest)
	}

	msisdn, err := tool.NormalizeMSISDN(req.Phone, s.cfg.Momo.CountryCode, s.cfg.Momo.SubscriberLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	// Currency and message are caller-supplied; the configured currency only
	// fills a complete omission.
	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Momo.DefaultCurrency
	}
	externalID := req.ExternalID
	if externalID == "" {
		externalID = tool.GenerateUUIDV7()
	}

	referenceID, err := s.client.RequestToPay(ctx, &momo.RequestToPayInput{
		Amount:       req.Amount.String(),
		Currency:     currency,
		ExternalID:   externalID,
		PayerPhone:   msisdn,
		PayerMessage: req.Message,
		PayeeNote:    req.Note,
	})
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ReferenceID:  referenceID,
		ExternalID:   externalID,
		Amount:       req.Amount.String(),
		Currency:     currency,
		PayerPhone:   msisdn,
		PayerIDType:  "MSISDN",
		Status:       types.TransactionStatusPending,
		PayerMessage: req.Message,
		PayeeNote:    req.Note,
	}
	s.cache.Set(txn)
	if err := s.store.Insert(ctx, txn); err != nil && !errors.Is(err, store.ErrDisabled) {
		// Persistence failures never fail the initiation; the in-memory
		// record is enough to answer and reconcile later.
		logctx.FromCtx(ctx, s.log).Errorw("failed to persist initiated transaction",
			"reference_id", referenceID, "error", err.Error())
	}
	logctx.FromCtx(ctx, s.log).Infow("payment initiated",
		"reference_id", referenceID, "external_id", externalID, "amount", txn.Amount, "currency", currency)
	return txn, nil
}

func (s *Service) GetStatus(ctx context.Context, referenceID string) (*models.Transaction, error) {
	log := logctx.FromCtx(ctx, s.log)

	stored, err := s.store.FindByReferenceID(ctx, referenceID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Errorw("store lookup failed", "reference_id", referenceID, "error", err.Error())
	}
	if stored != nil && stored.IsTerminal() {
		return stored, nil
	}

	st, err := s.client.GetTransactionStatus(ctx, referenceID)
	if err == nil {
		return s.engine.Apply(ctx, reconcile.UpdateFromStatus(referenceID, st))
	}
	if !errors.Is(err, momo.ErrNotFound) {
		log.Warnw("network status poll failed, serving local state",
			"reference_id", referenceID, "error", err.Error())
	}

	if stored != nil {
		return stored, nil
	}
	if cached, ok := s.cache.Get(referenceID); ok {
		return cached, nil
	}
	return nil, ErrNotFound
}

func (s *Service) GetBalance(ctx context.Context, currency string) (*momo.AccountBalance, error) {
	return s.client.GetAccountBalance(ctx, currency)
}

func (s *Service) GetPayerInfo(ctx context.Context, msisdn string) (*momo.BasicUserInfo, error) {
	return s.client.GetBasicUserInfo(ctx, msisdn)
}
