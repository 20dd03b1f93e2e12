package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	evaluation "github.com/wyfcoding/solarhealth/internal/evaluation/domain"
	"github.com/wyfcoding/solarhealth/internal/facility/application"
	"github.com/wyfcoding/solarhealth/internal/facility/domain"
	refdomain "github.com/wyfcoding/solarhealth/internal/referencedata/domain"
	"github.com/wyfcoding/solarhealth/pkg/logger"
	"github.com/wyfcoding/solarhealth/pkg/utils"
)

// FacilityHandler 机构 HTTP 处理器
type FacilityHandler struct {
	app *application.FacilityService
}

// NewFacilityHandler 创建 HTTP 处理器实例
func NewFacilityHandler(app *application.FacilityService) *FacilityHandler {
	return &FacilityHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *FacilityHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/facilities", h.ListFacilities)
		api.POST("/facilities", h.RegisterFacility)
		api.GET("/facilities/:id", h.GetFacility)
		api.GET("/facilities/:id/evaluation", h.LatestEvaluation)
		api.POST("/registrations", h.RegisterComplete)
	}
}

// RegisterFacilityRequest 登记机构
type RegisterFacilityRequest struct {
	Name         string `json:"name" binding:"required"`
	Type         string `json:"type"`
	NumRooms     int    `json:"num_rooms" binding:"gte=0"`
	NumEquipment int    `json:"num_equipment" binding:"gte=0"`
	CityID       uint   `json:"city_id" binding:"required"`
}

// RegisterCompleteRequest 完整登记：机构、某月用电量
type RegisterCompleteRequest struct {
	FacilityName     string           `json:"facility_name" binding:"required"`
	FacilityType     string           `json:"facility_type"`
	NumRooms         int              `json:"num_rooms" binding:"gte=0"`
	NumEquipment     int              `json:"num_equipment" binding:"gte=0"`
	CityID           uint             `json:"city_id" binding:"required"`
	ConsumptionMonth string           `json:"consumption_month" binding:"required"`
	ConsumptionYear  int              `json:"consumption_year" binding:"required"`
	ConsumptionKWh   *decimal.Decimal `json:"consumption_kwh"`
}

// RegisterCompleteResponse 完整登记结果，失败时只有 success 与 error
type RegisterCompleteResponse struct {
	Success                   bool                   `json:"success"`
	FacilityID                uint                   `json:"facility_id,omitempty"`
	Facility                  *domain.Facility       `json:"facility,omitempty"`
	Consumption               *domain.Consumption    `json:"consumption,omitempty"`
	IrradianceKWhM2           json.Number            `json:"irradiance_kwh_m2,omitempty"`
	MonthlyEnergyGeneratedKWh json.Number            `json:"monthly_energy_generated_kwh,omitempty"`
	FinancialResults          *evaluation.Evaluation `json:"financial_results,omitempty"`
	Viable                    *bool                  `json:"viable,omitempty"`
	Error                     string                 `json:"error,omitempty"`
}

// ListFacilities 分页列出机构
func (h *FacilityHandler) ListFacilities(c *gin.Context) {
	page := utils.ParsePagination(c.Query("page"), c.Query("page_size"))
	items, err := h.app.ListFacilities(c.Request.Context(), page)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to list facilities", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"facilities": items, "pagination": page})
}

// GetFacility 获取机构
func (h *FacilityHandler) GetFacility(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	f, err := h.app.GetFacility(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// RegisterFacility 只登记机构
func (h *FacilityHandler) RegisterFacility(c *gin.Context) {
	var req RegisterFacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	f, err := h.app.RegisterFacility(c.Request.Context(), application.RegisterFacilityCommand{
		Name:         req.Name,
		Type:         req.Type,
		NumRooms:     req.NumRooms,
		NumEquipment: req.NumEquipment,
		CityID:       req.CityID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": f.ID})
}

// RegisterComplete 登记机构与用电量并返回测算结果；任何失败都整体回滚
func (h *FacilityHandler) RegisterComplete(c *gin.Context) {
	var req RegisterCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, RegisterCompleteResponse{Error: err.Error()})
		return
	}
	if req.ConsumptionKWh == nil {
		c.JSON(http.StatusBadRequest, RegisterCompleteResponse{Error: "consumption_kwh is required"})
		return
	}
	month, err := refdomain.ParseMonth(req.ConsumptionMonth)
	if err != nil {
		c.JSON(http.StatusBadRequest, RegisterCompleteResponse{Error: err.Error()})
		return
	}

	res, err := h.app.RegisterComplete(c.Request.Context(), application.RegisterCompleteCommand{
		RegisterFacilityCommand: application.RegisterFacilityCommand{
			Name:         req.FacilityName,
			Type:         req.FacilityType,
			NumRooms:     req.NumRooms,
			NumEquipment: req.NumEquipment,
			CityID:       req.CityID,
		},
		Month:          month,
		Year:           req.ConsumptionYear,
		ConsumptionKWh: *req.ConsumptionKWh,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if application.IsInvalid(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, RegisterCompleteResponse{Error: "registration failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, RegisterCompleteResponse{
		Success:                   true,
		FacilityID:                res.Facility.ID,
		Facility:                  res.Facility,
		Consumption:               res.Consumption,
		IrradianceKWhM2:           json.Number(res.IrradianceKWhM2.StringFixed(2)),
		MonthlyEnergyGeneratedKWh: json.Number(res.Evaluation.MonthlyEnergyGeneratedKWh.StringFixed(2)),
		FinancialResults:          res.Evaluation,
		Viable:                    &res.Viable,
	})
}

// LatestEvaluation 机构最近一次测算
func (h *FacilityHandler) LatestEvaluation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	snap, err := h.app.LatestEvaluation(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "facility has no evaluation yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *FacilityHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrFacilityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case application.IsInvalid(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error(c.Request.Context(), "Facility request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathID(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(n), true
}
