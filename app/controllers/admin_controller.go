package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/app/requests"
	"github.com/address-lookup/app/responses"
	"github.com/address-lookup/app/services"
	"github.com/address-lookup/internal/mapping"
)

// AdminController controller xử lý các request admin
type AdminController struct {
	adminService   *services.AdminService
	mappingService *services.MappingService
	sessionService *services.SessionService
	logger         *zap.Logger
}

// NewAdminController tạo mới AdminController
func NewAdminController(adminService *services.AdminService, mappingService *services.MappingService, sessionService *services.SessionService, logger *zap.Logger) *AdminController {
	return &AdminController{
		adminService:   adminService,
		mappingService: mappingService,
		sessionService: sessionService,
		logger:         logger,
	}
}

// GetFieldMapping lấy field mapping của profile
func (ac *AdminController) GetFieldMapping(c *gin.Context) {
	p, err := ac.mappingService.Get(c.Request.Context(), c.Param("profile"))
	if err != nil {
		writeError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusOK, fieldMappingResponse(p, false, 0))
}

// UpdateFieldMapping cập nhật field mapping
func (ac *AdminController) UpdateFieldMapping(c *gin.Context) {
	var req requests.UpdateFieldMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.NewError("INVALID_REQUEST", "Invalid request: "+err.Error()))
		return
	}

	profile := c.Param("profile")
	p, err := ac.mappingService.Update(c.Request.Context(), profile, req.FieldMapping())
	if err != nil {
		writeError(c, ac.logger, err)
		return
	}

	n := ac.sessionService.ApplyMapping(profile, p.Config.Mapping)
	c.JSON(http.StatusOK, fieldMappingResponse(p, true, n))
}

// RefreshFieldMapping đồng bộ mapping với các field hiện có của form
func (ac *AdminController) RefreshFieldMapping(c *gin.Context) {
	var req requests.RefreshFieldMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.NewError("INVALID_REQUEST", "Invalid request: "+err.Error()))
		return
	}

	profile := c.Param("profile")
	p, changed, err := ac.mappingService.Refresh(c.Request.Context(), profile, req.Fields)
	if err != nil {
		writeError(c, ac.logger, err)
		return
	}

	n := 0
	if changed {
		n = ac.sessionService.ApplyMapping(profile, p.Config.Mapping)
	}
	c.JSON(http.StatusOK, fieldMappingResponse(p, changed, n))
}

// AddressParts danh sách address parts cho màn hình admin
func (ac *AdminController) AddressParts(c *gin.Context) {
	parts := make([]responses.AddressPart, 0, len(mapping.Parts)+1)
	parts = append(parts, responses.AddressPart{Value: string(mapping.Unmapped), Label: mapping.Unmapped.Label()})
	for _, p := range mapping.Parts {
		parts = append(parts, responses.AddressPart{Value: string(p), Label: p.Label()})
	}
	c.JSON(http.StatusOK, responses.AddressPartsResponse{
		Parts:          parts,
		StandardFields: ac.mappingService.StandardFields(),
	})
}

// InvalidateCache xóa cache
func (ac *AdminController) InvalidateCache(c *gin.Context) {
	var req requests.InvalidateCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.NewError("INVALID_REQUEST", "Invalid request: "+err.Error()))
		return
	}

	if err := ac.adminService.InvalidatePostcode(c.Request.Context(), req.Postcode); err != nil {
		ac.logger.Error("cache invalidation failed", zap.Error(err), zap.String("postcode", req.Postcode))
		c.JSON(http.StatusInternalServerError, responses.NewError("CACHE_ERROR", "Cache invalidation failed: "+err.Error()))
		return
	}

	message := "Cache cleared"
	if req.Postcode != "" {
		message = "Cache invalidated for postcode " + req.Postcode
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// SeedAddresses nạp địa chỉ vào search index
func (ac *AdminController) SeedAddresses(c *gin.Context) {
	var req requests.SeedAddressesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.NewError("INVALID_REQUEST", "Invalid request: "+err.Error()))
		return
	}

	res, err := ac.adminService.SeedAddresses(req.Addresses, req.RebuildIndex)
	if err != nil {
		writeError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.SeedAddressesResponse{
		Success:          true,
		DocumentsIndexed: res.DocumentsIndexed,
		Skipped:          res.Skipped,
		ProcessingTimeMs: res.ProcessingTimeMs,
	})
}

// GetStats lấy thống kê hệ thống
func (ac *AdminController) GetStats(c *gin.Context) {
	stats, err := ac.adminService.GetSystemStats(c.Request.Context())
	if err != nil {
		ac.logger.Error("system stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, responses.NewError("STATS_ERROR", "Could not collect stats: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, stats)
}

func fieldMappingResponse(p *models.FieldMappingProfile, changed bool, sessions int) responses.FieldMappingResponse {
	resp := responses.FieldMappingResponse{
		Profile:  p.Profile,
		Mapping:  p.Config.Mapping,
		Fields:   p.Config.Fields,
		Version:  p.Version,
		Changed:  changed,
		Sessions: sessions,
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = p.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}
