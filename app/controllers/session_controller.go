package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/address-lookup/app/requests"
	"github.com/address-lookup/app/responses"
	"github.com/address-lookup/app/services"
)

// SessionController serves the server-driven checkout form sessions.
type SessionController struct {
	sessionService *services.SessionService
	logger         *zap.Logger
}

// NewSessionController tạo mới SessionController
func NewSessionController(sessionService *services.SessionService, logger *zap.Logger) *SessionController {
	return &SessionController{sessionService: sessionService, logger: logger}
}

// Create mở session mới cho một form
func (sc *SessionController) Create(c *gin.Context) {
	var req requests.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.NewError("INVALID_REQUEST", "Invalid request: "+err.Error()))
		return
	}

	view, err := sc.sessionService.Create(c.Request.Context(), services.CreateSessionParams{
		Profile:     req.Profile,
		Fields:      req.Fields,
		Values:      req.Values,
		Postcode:    req.Postcode,
		HouseNumber: req.HouseNumber,
		Optional:    req.Optional,
	})
	if err != nil {
		writeError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Input cập nhật postcode / house number
func (sc *SessionController) Input(c *gin.Context) {
	var req requests.SessionInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.NewError("INVALID_REQUEST", "Invalid request: "+err.Error()))
		return
	}

	view, _, err := sc.sessionService.Input(c.Param("id"), req.Postcode, req.HouseNumber)
	if err != nil {
		writeError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SelectAddition chọn house number addition
func (sc *SessionController) SelectAddition(c *gin.Context) {
	var req requests.SelectAdditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.NewError("INVALID_REQUEST", "Invalid request: "+err.Error()))
		return
	}

	view, err := sc.sessionService.Select(c.Param("id"), req.Selection())
	if err != nil {
		writeError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Get lấy trạng thái session
func (sc *SessionController) Get(c *gin.Context) {
	view, err := sc.sessionService.Get(c.Param("id"))
	if err != nil {
		writeError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete đóng session
func (sc *SessionController) Delete(c *gin.Context) {
	if err := sc.sessionService.Delete(c.Param("id")); err != nil {
		writeError(c, sc.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
