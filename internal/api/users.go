package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"issueInsightsTracker/internal/apperr"
	"issueInsightsTracker/internal/auth"
	"issueInsightsTracker/internal/users"
	"issueInsightsTracker/models"
)

type userHandler struct {
	svc *users.Service
	log *zap.Logger
}

type registerRequest struct {
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=6"`
	FullName *string     `json:"full_name"`
	Role     models.Role `json:"role" binding:"omitempty,oneof=admin maintainer reporter"`
}

// Register handles POST /users/register.
func (h *userHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.log, bindError(err))
		return
	}
	u, err := h.svc.Register(c.Request.Context(), users.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Token handles POST /users/token with a form-encoded username (the email) and password.
func (h *userHandler) Token(c *gin.Context) {
	username, okU := c.GetPostForm("username")
	password, okP := c.GetPostForm("password")
	if !okU || !okP || username == "" || password == "" {
		abortWithError(c, h.log, apperr.Validation("username and password are required"))
		return
	}
	tok, err := h.svc.Login(c.Request.Context(), username, password)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

// Me handles GET /users/me.
func (h *userHandler) Me(c *gin.Context) {
	u, _ := auth.CurrentUser(c)
	c.JSON(http.StatusOK, u)
}
