package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/address-lookup/app/requests"
	"github.com/address-lookup/app/responses"
	"github.com/address-lookup/app/services"
	"github.com/address-lookup/internal/lookup"
)

// Version is reported by the health check.
const Version = "1.0.0"

// AddressController controller xử lý các request liên quan đến địa chỉ
type AddressController struct {
	addressService *services.AddressService
	cacheService   services.ICacheService
	searchLimit    int
	logger         *zap.Logger
}

// NewAddressController tạo mới AddressController
func NewAddressController(addressService *services.AddressService, cacheService services.ICacheService, searchLimit int, logger *zap.Logger) *AddressController {
	return &AddressController{
		addressService: addressService,
		cacheService:   cacheService,
		searchLimit:    searchLimit,
		logger:         logger,
	}
}

// Lookup tra cứu địa chỉ theo postcode + house number
func (ac *AddressController) Lookup(c *gin.Context) {
	start := time.Now()

	key, res, err := ac.addressService.LookupInput(c.Request.Context(), c.Param("postcode"), c.Param("houseNumber"))
	if err != nil {
		writeError(c, ac.logger, err)
		return
	}

	resp := responses.NewLookupResponse(key.String(), res, time.Since(start))
	status := http.StatusOK
	if res.Kind == lookup.ResultNotFound {
		status = http.StatusNotFound
	}
	c.JSON(status, resp)
}

// Search tìm kiếm địa chỉ tự do
func (ac *AddressController) Search(c *gin.Context) {
	var req requests.SearchAddressRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.NewError("INVALID_REQUEST", "Invalid request: "+err.Error()))
		return
	}
	if req.Limit == 0 {
		req.Limit = ac.searchLimit
	}

	start := time.Now()
	hits, err := ac.addressService.Search(c.Request.Context(), req.Query, req.Postcode, req.Limit)
	if err != nil {
		writeError(c, ac.logger, err)
		return
	}

	c.JSON(http.StatusOK, responses.SearchResponse{
		Query:  req.Query,
		Hits:   hits,
		TookMs: time.Since(start).Milliseconds(),
	})
}

// HealthCheck kiểm tra sức khỏe service
func (ac *AddressController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := map[string]string{"lookup": "ok", "search": "disabled", "cache": "ok"}
	status := "healthy"

	if ac.addressService.SearchEnabled() {
		deps["search"] = "ok"
	}
	if _, err := ac.cacheService.GetStats(ctx); err != nil {
		deps["cache"] = "error: " + err.Error()
		status = "degraded"
	}

	c.JSON(http.StatusOK, responses.HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(ac.addressService.GetStartTime()).Round(time.Second).String(),
		Version:   Version,
		Services:  deps,
	})
}

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, responses.NewError("INVALID_INPUT", err.Error()))
	case errors.Is(err, services.ErrInvalidMapping):
		c.JSON(http.StatusBadRequest, responses.NewError("INVALID_MAPPING", err.Error()))
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, responses.NewError("SESSION_NOT_FOUND", err.Error()))
	case errors.Is(err, services.ErrTooManySessions):
		c.JSON(http.StatusServiceUnavailable, responses.NewError("TOO_MANY_SESSIONS", err.Error()))
	case errors.Is(err, services.ErrSearchUnavailable):
		c.JSON(http.StatusServiceUnavailable, responses.NewError("SEARCH_UNAVAILABLE", err.Error()))
	case errors.Is(err, context.Canceled):
		c.Status(499)
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, responses.NewError("UPSTREAM_TIMEOUT", lookup.MessageTransportFailure))
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadGateway, responses.NewError("UPSTREAM_ERROR", lookup.MessageTransportFailure))
	}
}
