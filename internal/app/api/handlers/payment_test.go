package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/momobridge/internal/app/service/payment"
	"github.com/fatflowers/momobridge/internal/models"
	"github.com/fatflowers/momobridge/internal/platform/momo"
	"github.com/fatflowers/momobridge/pkg/types"
)

type stubManager struct {
	initiateTxn *models.Transaction
	initiateErr error
	statusTxn   *models.Transaction
	statusErr   error
	balance     *momo.AccountBalance
	balanceErr  error
	payerInfo   *momo.BasicUserInfo
	payerErr    error
}

func (s *stubManager) Initiate(context.Context, *payment.InitiateRequest) (*models.Transaction, error) {
	return s.initiateTxn, s.initiateErr
}

func (s *stubManager) GetStatus(context.Context, string) (*models.Transaction, error) {
	return s.statusTxn, s.statusErr
}

func (s *stubManager) GetBalance(context.Context, string) (*momo.AccountBalance, error) {
	return s.balance, s.balanceErr
}

func (s *stubManager) GetPayerInfo(context.Context, string) (*momo.BasicUserInfo, error) {
	return s.payerInfo, s.payerErr
}

func newPaymentRouter(t *testing.T, mgr payment.Manager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1"), mgr, zap.NewNop().Sugar())
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestApiPay(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mgr := &stubManager{initiateTxn: &models.Transaction{
			ReferenceID: "ref-1",
			Status:      types.TransactionStatusPending,
		}}
		r := newPaymentRouter(t, mgr)

		w := doJSON(r, http.MethodPost, "/api/v1/pay", `{"phone":"0770123456","amount":"100"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		require.Equal(t, 0, env.Code)

		var txn models.Transaction
		require.NoError(t, json.Unmarshal(env.Data, &txn))
		require.Equal(t, "ref-1", txn.ReferenceID)
		require.Equal(t, types.TransactionStatusPending, txn.Status)
	})

	t.Run("malformed body", func(t *testing.T) {
		r := newPaymentRouter(t, &stubManager{})
		w := doJSON(r, http.MethodPost, "/api/v1/pay", `{"phone":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		r := newPaymentRouter(t, &stubManager{initiateErr: payment.ErrBadRequest})
		w := doJSON(r, http.MethodPost, "/api/v1/pay", `{"phone":"12","amount":"1"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upstream rejection passes the status through", func(t *testing.T) {
		r := newPaymentRouter(t, &stubManager{
			initiateErr: &momo.NetworkError{Op: "requesttopay", StatusCode: http.StatusConflict, Body: "duplicate"},
		})
		w := doJSON(r, http.MethodPost, "/api/v1/pay", `{"phone":"0770123456","amount":"1"}`)
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("auth failure is a 500", func(t *testing.T) {
		r := newPaymentRouter(t, &stubManager{
			initiateErr: &momo.AuthError{Reason: "token endpoint returned 401"},
		})
		w := doJSON(r, http.MethodPost, "/api/v1/pay", `{"phone":"0770123456","amount":"1"}`)
		require.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestApiStatus(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mgr := &stubManager{statusTxn: &models.Transaction{
			ReferenceID: "ref-1",
			Status:      types.TransactionStatusSuccessful,
		}}
		r := newPaymentRouter(t, mgr)

		w := doJSON(r, http.MethodGet, "/api/v1/status/ref-1", "")
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown reference", func(t *testing.T) {
		r := newPaymentRouter(t, &stubManager{statusErr: payment.ErrNotFound})
		w := doJSON(r, http.MethodGet, "/api/v1/status/ref-missing", "")
		require.Equal(t, http.StatusNotFound, w.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		require.Equal(t, 40400, env.Code)
	})
}

func TestApiBalance(t *testing.T) {
	r := newPaymentRouter(t, &stubManager{balance: &momo.AccountBalance{AvailableBalance: "5000", Currency: "USD"}})

	w := doJSON(r, http.MethodGet, "/api/v1/balance?currency=USD", "")
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var bal momo.AccountBalance
	require.NoError(t, json.Unmarshal(env.Data, &bal))
	require.Equal(t, "5000", bal.AvailableBalance)
}

func TestApiAccountHolder(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		r := newPaymentRouter(t, &stubManager{payerInfo: &momo.BasicUserInfo{GivenName: "Ama"}})
		w := doJSON(r, http.MethodGet, "/api/v1/accountholder/231770123456", "")
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown msisdn", func(t *testing.T) {
		r := newPaymentRouter(t, &stubManager{payerErr: momo.ErrNotFound})
		w := doJSON(r, http.MethodGet, "/api/v1/accountholder/231000000000", "")
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
