package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/momobridge/internal/app/service/payment"
	"github.com/fatflowers/momobridge/internal/platform/momo"
	"github.com/fatflowers/momobridge/pkg/logctx"
	"github.com/fatflowers/momobridge/pkg/response"
)

// upstreamStatus maps a client error onto the HTTP status surfaced to the
// synchronous caller: the upstream code is passed through where sensible,
// 500 otherwise.
func upstreamStatus(err error) int {
	var ne *momo.NetworkError
	if errors.As(err, &ne) && ne.StatusCode >= http.StatusBadRequest && ne.StatusCode < 600 {
		return ne.StatusCode
	}
	return http.StatusInternalServerError
}

// @Summary      Initiate Payment
// @Description  Starts a request-to-pay against the payer's mobile wallet and returns the pending transaction record.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body payment.InitiateRequest true "Payment initiation request"
// @Success      200  {object}  handlers.RespTransaction
// @Failure      400  {object}  handlers.RespOK
// @Router       /api/v1/pay [post]
func ApiPay(mgr payment.Manager, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.InitiateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		txn, err := mgr.Initiate(c.Request.Context(), &req)
		if err != nil {
			if errors.Is(err, payment.ErrBadRequest) {
				c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			logctx.FromGin(c, log).Errorw("initiate_payment_error", "error", err.Error())
			c.JSON(upstreamStatus(err), response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(txn))
	}
}

// @Summary      Poll Transaction Status
// @Description  Resolves a reference id against the store, the network and the cache, merging the freshest view.
// @Tags         Payment
// @Produce      json
// @Param        referenceId path string true "Transaction reference id"
// @Success      200  {object}  handlers.RespTransaction
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/status/{referenceId} [get]
func ApiStatus(mgr payment.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		txn, err := mgr.GetStatus(c.Request.Context(), c.Param("referenceId"))
		if err != nil {
			if errors.Is(err, payment.ErrNotFound) {
				c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
				return
			}
			c.JSON(upstreamStatus(err), response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(txn))
	}
}

// @Summary      Account Balance
// @Description  Fetches the collection account balance, optionally scoped to a currency via ?currency=.
// @Tags         Payment
// @Produce      json
// @Param        currency query string false "Currency code"
// @Success      200  {object}  handlers.RespBalance
// @Router       /api/v1/balance [get]
func ApiBalance(mgr payment.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		bal, err := mgr.GetBalance(c.Request.Context(), c.Query("currency"))
		if err != nil {
			c.JSON(upstreamStatus(err), response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(bal))
	}
}

// @Summary      Account Holder Lookup
// @Description  Fetches basic information about the wallet holder behind an msisdn.
// @Tags         Payment
// @Produce      json
// @Param        msisdn path string true "Subscriber number"
// @Success      200  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/accountholder/{msisdn} [get]
func ApiAccountHolder(mgr payment.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := mgr.GetPayerInfo(c.Request.Context(), c.Param("msisdn"))
		if err != nil {
			if errors.Is(err, momo.ErrNotFound) {
				c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
				return
			}
			c.JSON(upstreamStatus(err), response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(info))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, mgr payment.Manager, log *zap.SugaredLogger) {
	r.POST("/pay", ApiPay(mgr, log))
	r.GET("/status/:referenceId", ApiStatus(mgr))
	r.GET("/balance", ApiBalance(mgr))
	r.GET("/accountholder/:msisdn", ApiAccountHolder(mgr))
}
