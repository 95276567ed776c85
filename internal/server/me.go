package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/promoreel/promoreel/pkg/db/pagination"
)

// Me returns the authenticated user's profile and live coin balance.
func (s *Server) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	// Re-read so the balance reflects movements since authentication.
	fresh, err := s.userSvc.Get(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, fresh)
}

func (s *Server) ListMyTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	entries, info, err := s.ledgerSvc.ListEntriesPage(c.Request.Context(), userID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries, "page_info": info})
}
