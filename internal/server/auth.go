package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type signInRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// SignIn provisions the account on first use and returns a bearer token.
func (s *Server) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.userSvc.SignIn(c.Request.Context(), req.Email, req.DisplayName)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}
