package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	videodomain "github.com/promoreel/promoreel/internal/video/domain"
	"github.com/promoreel/promoreel/pkg/db/pagination"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// CreateVideo dispatches a new generation job.
func (s *Server) CreateVideo(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req videodomain.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	job, err := s.videoSvc.Generate(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

type regenerateRequest struct {
	VideoID string `json:"video_id"`
}

// RegenerateVideo re-submits an existing job's inputs as a new job.
func (s *Server) RegenerateVideo(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	jobID, err := snowflake.ParseString(strings.TrimSpace(req.VideoID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	job, err := s.videoSvc.Regenerate(c.Request.Context(), userID, jobID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// VideoStatus is the poll entry point. It reconciles the job against the
// provider before reporting, so a missed webhook still converges here.
func (s *Server) VideoStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	jobID, err := snowflake.ParseString(strings.TrimSpace(c.Query("video_id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	report, err := s.videoSvc.Reconcile(c.Request.Context(), userID, jobID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) ListVideos(c *gin.Context) {
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
	jobs, info, err := s.videoSvc.ListPage(c.Request.Context(), userID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": jobs, "page_info": info})
}

// HandleVideoWebhook ingests provider callbacks. Every delivery the
// service absorbs is acknowledged with 200 so the provider stops
// retrying; only a storage failure earns a retryable 5xx.
func (s *Server) HandleVideoWebhook(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.log.Warn("webhook body read failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
		c.Status(http.StatusBadRequest)
		return
	}

	if err := s.videoSvc.HandleCallback(c.Request.Context(), provider, payload); err != nil {
		s.log.Error("webhook processing failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
