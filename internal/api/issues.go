package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"issueInsightsTracker/internal/apperr"
	"issueInsightsTracker/internal/auth"
	"issueInsightsTracker/internal/issues"
	"issueInsightsTracker/models"
	"issueInsightsTracker/repository"
)

type issueHandler struct {
	svc *issues.Service
	log *zap.Logger
}

// createForm holds the text fields of the multipart create request.
type createForm struct {
	Title       string               `form:"title" binding:"required"`
	Description *string              `form:"description"`
	Severity    models.IssueSeverity `form:"severity" binding:"omitempty,oneof=low medium high critical"`
	Tags        *string              `form:"tags"`
}

type listQuery struct {
	Status   models.IssueStatus   `form:"status" binding:"omitempty,oneof=open triaged in_progress done"`
	Severity models.IssueSeverity `form:"severity" binding:"omitempty,oneof=low medium high critical"`
}

// updateRequest is the PUT body. Absent or null fields are left unchanged.
type updateRequest struct {
	Title       *string               `json:"title" binding:"omitnil,min=1"`
	Description *string               `json:"description"`
	Status      *models.IssueStatus   `json:"status" binding:"omitnil,oneof=open triaged in_progress done"`
	Severity    *models.IssueSeverity `json:"severity" binding:"omitnil,oneof=low medium high critical"`
	Tags        *string               `json:"tags"`
}

// Create handles multipart POST /issues/.
func (h *issueHandler) Create(c *gin.Context) {
	caller, _ := auth.CurrentUser(c)
	var form createForm
	if err := c.ShouldBindWith(&form, binding.Form); err != nil {
		abortWithError(c, h.log, bindError(err))
		return
	}
	in := issues.CreateInput{
		Title:       form.Title,
		Description: form.Description,
		Tags:        form.Tags,
		Severity:    form.Severity,
	}

	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			abortWithError(c, h.log, err)
			return
		}
		defer f.Close()
		in.File = f
		in.FileName = fh.Filename
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		abortWithError(c, h.log, apperr.Validation("invalid multipart form"))
		return
	}

	issue, err := h.svc.Create(c.Request.Context(), caller, in)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// List handles GET /issues/?status=&severity=.
func (h *issueHandler) List(c *gin.Context) {
	caller, _ := auth.CurrentUser(c)
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, h.log, bindError(err))
		return
	}
	var status *models.IssueStatus
	if q.Status != "" {
		status = &q.Status
	}
	var severity *models.IssueSeverity
	if q.Severity != "" {
		severity = &q.Severity
	}
	list, err := h.svc.List(c.Request.Context(), caller, status, severity)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *issueHandler) Get(c *gin.Context) {
	id, ok := h.issueID(c)
	if !ok {
		return
	}
	caller, _ := auth.CurrentUser(c)
	issue, err := h.svc.Get(c.Request.Context(), caller, id)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *issueHandler) Update(c *gin.Context) {
	id, ok := h.issueID(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.log, bindError(err))
		return
	}
	caller, _ := auth.CurrentUser(c)
	issue, err := h.svc.Update(c.Request.Context(), caller, id, repository.IssuePatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Severity:    req.Severity,
		Tags:        req.Tags,
	})
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *issueHandler) Delete(c *gin.Context) {
	caller, _ := auth.CurrentUser(c)
	id, ok := h.issueID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), caller, id); err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}

// Dashboard handles GET /issues/dashboard/stats.
func (h *issueHandler) Dashboard(c *gin.Context) {
	caller, _ := auth.CurrentUser(c)
	st, err := h.svc.Dashboard(c.Request.Context(), caller)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// History handles GET /issues/dashboard/history?limit=.
func (h *issueHandler) History(c *gin.Context) {
	caller, _ := auth.CurrentUser(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.svc.History(c.Request.Context(), caller, limit)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *issueHandler) issueID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, h.log, apperr.Validation("issue id must be a positive integer"))
		return 0, false
	}
	return id, true
}
