package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/momobridge/internal/app/service/store"
	"github.com/fatflowers/momobridge/pkg/response"
)

// @Summary      Scan Transactions (Admin)
// @Description  Retrieves a paginated and filterable list of tracked transactions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body store.ScanRequest true "Scan request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespScanTransactions
// @Router       /api/v1/admin/transactions/scan [post]
func ApiScanTransactions(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req store.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := st.Scan(c.Request.Context(), &req)
		if err != nil {
			if errors.Is(err, store.ErrDisabled) {
				c.JSON(http.StatusServiceUnavailable, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
				return
			}
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, st store.Store) {
	r.POST("/transactions/scan", ApiScanTransactions(st))
}
