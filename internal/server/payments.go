package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/promoreel/promoreel/internal/payment/domain"
)

// ConfirmPayment settles a coin purchase. Safe to call repeatedly with
// the same external payment id.
func (s *Server) ConfirmPayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req paymentdomain.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.paymentSvc.Confirm(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListPlans exposes the purchasable coin bundles and the providers a
// generation request may name.
func (s *Server) ListPlans(c *gin.Context) {
	cfg := s.pricingConf.Get()
	c.JSON(http.StatusOK, gin.H{
		"coins_per_video": cfg.CoinsPerVideo,
		"plans":           cfg.Plans,
		"providers":       s.registry.Providers(),
	})
}
