package payment

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/momobridge/internal/app/service/reconcile"
	"github.com/fatflowers/momobridge/internal/app/service/store"
	"github.com/fatflowers/momobridge/internal/app/service/txcache"
	"github.com/fatflowers/momobridge/internal/models"
	"github.com/fatflowers/momobridge/internal/platform/momo"
	cfgpkg "github.com/fatflowers/momobridge/pkg/config"
	"github.com/fatflowers/momobridge/pkg/types"
)

type stubClient struct {
	requestToPayRef string
	requestToPayErr error
	lastRequest     *momo.RequestToPayInput

	status    *momo.TransactionStatusResponse
	statusErr error
}

func (s *stubClient) RequestToPay(_ context.Context, in *momo.RequestToPayInput) (string, error) {
	s.lastRequest = in
	if s.requestToPayErr != nil {
		return "", s.requestToPayErr
	}
	return s.requestToPayRef, nil
}

func (s *stubClient) GetTransactionStatus(context.Context, string) (*momo.TransactionStatusResponse, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.status, nil
}

func (s *stubClient) GetAccountBalance(context.Context, string) (*momo.AccountBalance, error) {
	return &momo.AccountBalance{AvailableBalance: "1000", Currency: "USD"}, nil
}

func (s *stubClient) GetBasicUserInfo(context.Context, string) (*momo.BasicUserInfo, error) {
	return &momo.BasicUserInfo{GivenName: "Ama"}, nil
}

func testConfig() *cfgpkg.Config {
	return &cfgpkg.Config{
		Momo: cfgpkg.MomoConfig{
			DefaultCurrency: "USD",
			CountryCode:     "231",
			SubscriberLen:   9,
		},
	}
}

func newTestService(client collectionClient, st store.Store) (*Service, *txcache.Cache) {
	log := zap.NewNop().Sugar()
	cache := txcache.New()
	engine := reconcile.New(log, cache, st, nil)
	engine.SetSuccessHooks()
	engine.SetFailureHooks()
	return &Service{
		cfg:    testConfig(),
		log:    log,
		client: client,
		cache:  cache,
		store:  st,
		engine: engine,
	}, cache
}

func TestService_Initiate(t *testing.T) {
	client := &stubClient{requestToPayRef: "ref-1"}
	svc, cache := newTestService(client, store.NewDisabled())

	txn, err := svc.Initiate(context.Background(), &InitiateRequest{
		Phone:      "0770123456",
		Amount:     json.Number("250"),
		ExternalID: "ORDER-1",
		Message:    "order 1",
	})
	require.NoError(t, err)
	require.Equal(t, "ref-1", txn.ReferenceID)
	require.Equal(t, "ORDER-1", txn.ExternalID)
	require.Equal(t, types.TransactionStatusPending, txn.Status)
	require.Equal(t, "231770123456", txn.PayerPhone)
	require.Equal(t, "USD", txn.Currency)
	require.Equal(t, "MSISDN", txn.PayerIDType)

	require.Equal(t, "231770123456", client.lastRequest.PayerPhone)
	require.Equal(t, "250", client.lastRequest.Amount)

	cached, ok := cache.Get("ref-1")
	require.True(t, ok)
	require.Equal(t, "ORDER-1", cached.ExternalID)
}

func TestService_Initiate_DefaultsExternalIDAndKeepsCallerCurrency(t *testing.T) {
	client := &stubClient{requestToPayRef: "ref-2"}
	svc, _ := newTestService(client, store.NewDisabled())

	txn, err := svc.Initiate(context.Background(), &InitiateRequest{
		Phone:    "0770123456",
		Amount:   json.Number("10"),
		Currency: "EUR",
	})
	require.NoError(t, err)
	require.Equal(t, "EUR", txn.Currency)
	require.NotEmpty(t, txn.ExternalID)
}

func TestService_Initiate_BadInput(t *testing.T) {
	svc, _ := newTestService(&stubClient{requestToPayRef: "ref-1"}, store.NewDisabled())
	ctx := context.Background()

	_, err := svc.Initiate(ctx, nil)
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Initiate(ctx, &InitiateRequest{Amount: json.Number("10")})
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Initiate(ctx, &InitiateRequest{Phone: "0770123456"})
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Initiate(ctx, &InitiateRequest{Phone: "0770123456", Amount: json.Number("-5")})
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Initiate(ctx, &InitiateRequest{Phone: "12", Amount: json.Number("5")})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestService_Initiate_NetworkErrorSurfaced(t *testing.T) {
	netErr := &momo.NetworkError{Op: "requesttopay", StatusCode: 500, Body: "boom"}
	svc, cache := newTestService(&stubClient{requestToPayErr: netErr}, store.NewDisabled())

	_, err := svc.Initiate(context.Background(), &InitiateRequest{
		Phone:  "0770123456",
		Amount: json.Number("10"),
	})
	require.Error(t, err)
	var ne *momo.NetworkError
	require.ErrorAs(t, err, &ne)
	require.Empty(t, cache.Values())
}

func TestService_GetStatus_PollMergesThroughEngine(t *testing.T) {
	client := &stubClient{
		status: &momo.TransactionStatusResponse{
			Amount:                 "10",
			Currency:               "USD",
			FinancialTransactionID: "FT1",
			ExternalID:             "ORDER-1",
			Status:                 "SUCCESSFUL",
		},
	}
	svc, cache := newTestService(client, store.NewDisabled())
	cache.Set(&models.Transaction{ReferenceID: "ref-1", ExternalID: "ORDER-1", Status: types.TransactionStatusPending})

	txn, err := svc.GetStatus(context.Background(), "ref-1")
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusSuccessful, txn.Status)
	require.Equal(t, "FT1", *txn.FinancialTransactionID)
}

func TestService_GetStatus_FallsBackToCacheWhenNetworkFails(t *testing.T) {
	client := &stubClient{statusErr: &momo.NetworkError{Op: "requesttopay status", StatusCode: 503}}
	svc, cache := newTestService(client, store.NewDisabled())
	cache.Set(&models.Transaction{ReferenceID: "ref-1", Status: types.TransactionStatusPending})

	txn, err := svc.GetStatus(context.Background(), "ref-1")
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusPending, txn.Status)
}

func TestService_GetStatus_NotFoundAnywhere(t *testing.T) {
	client := &stubClient{statusErr: momo.ErrNotFound}
	svc, _ := newTestService(client, store.NewDisabled())

	_, err := svc.GetStatus(context.Background(), "ref-missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_BalanceAndPayerInfoPassThrough(t *testing.T) {
	svc, _ := newTestService(&stubClient{}, store.NewDisabled())

	bal, err := svc.GetBalance(context.Background(), "USD")
	require.NoError(t, err)
	require.Equal(t, "1000", bal.AvailableBalance)

	info, err := svc.GetPayerInfo(context.Background(), "231770123456")
	require.NoError(t, err)
	require.Equal(t, "Ama", info.GivenName)
}
