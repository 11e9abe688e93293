package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/momobridge/internal/app/service/reconcile"
	"github.com/fatflowers/momobridge/pkg/logctx"
	"github.com/fatflowers/momobridge/pkg/response"
)

// @Summary      Payment Network Webhook
// @Description  Receives asynchronous settlement callbacks. Always answers 200 regardless of internal outcome (to avoid upstream retry storms), except when no transaction identifier can be resolved.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        X-Reference-Id header string false "Transaction reference id"
// @Success      200  {object}  handlers.RespTransaction
// @Failure      400  {object}  handlers.RespOK
// @Router       /api/v1/callback [post]
func ApiCallback(engine *reconcile.Engine, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			body = nil
		}
		headerRef := c.GetHeader("X-Reference-Id")
		logctx.FromGin(c, log).Infow("callback_received", "reference_id", headerRef, "bytes", len(body))

		txn, err := engine.HandleCallback(c.Request.Context(), headerRef, body)
		if err != nil {
			if errors.Is(err, reconcile.ErrNoIdentifier) {
				c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			// Internal failures still acknowledge with 200 so the network
			// does not retry the delivery indefinitely.
			logctx.FromGin(c, log).Errorw("callback_handle_error", "error", err.Error())
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		logctx.FromGin(c, log).Infow("callback_handled", "reference_id", txn.ReferenceID, "status", txn.Status)
		c.JSON(http.StatusOK, response.OKT(txn))
	}
}

func RegisterCallbackRoutes(r gin.IRouter, engine *reconcile.Engine, log *zap.SugaredLogger) {
	r.POST("/callback", ApiCallback(engine, log))
}
