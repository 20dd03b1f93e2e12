package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/solarhealth/internal/referencedata/application"
	"github.com/wyfcoding/solarhealth/internal/referencedata/domain"
	"github.com/wyfcoding/solarhealth/pkg/logger"
	"github.com/wyfcoding/solarhealth/pkg/utils"
)

// ReferenceDataHandler 行政区划与辐照度 HTTP 处理器
type ReferenceDataHandler struct {
	app *application.ReferenceDataService
}

// NewReferenceDataHandler 创建 HTTP 处理器实例
func NewReferenceDataHandler(app *application.ReferenceDataService) *ReferenceDataHandler {
	return &ReferenceDataHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *ReferenceDataHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/departments", h.ListDepartments)
		api.GET("/departments/:id", h.GetDepartment)
		api.GET("/cities", h.ListCities)
		api.GET("/cities/:id", h.GetCity)
		api.GET("/cities/:id/irradiance", h.GetIrradiance)
		api.PUT("/cities/:id/irradiance", h.PutIrradiance)
	}
}

// IrradianceResponse 辐照度查询结果，Found=false 时 KWhM2 为空
type IrradianceResponse struct {
	CityID uint             `json:"city_id"`
	Month  int              `json:"month"`
	Found  bool             `json:"found"`
	KWhM2  *decimal.Decimal `json:"kwh_m2"`
}

// MonthParam 月份，JSON 中可以是数字或月份名
type MonthParam string

func (m *MonthParam) UnmarshalJSON(b []byte) error {
	*m = MonthParam(bytes.Trim(b, `"`))
	return nil
}

// PutIrradianceRequest 写入辐照度
type PutIrradianceRequest struct {
	Month MonthParam       `json:"month" binding:"required"`
	KWhM2 *decimal.Decimal `json:"kwh_m2"`
}

// ListDepartments 列出省/州
func (h *ReferenceDataHandler) ListDepartments(c *gin.Context) {
	deps, err := h.app.ListDepartments(c.Request.Context())
	if err != nil {
		h.internal(c, "Failed to list departments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": deps})
}

// GetDepartment 获取省/州
func (h *ReferenceDataHandler) GetDepartment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	dep, err := h.app.GetDepartment(c.Request.Context(), id)
	if err != nil {
		h.internal(c, "Failed to get department", err)
		return
	}
	if dep == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "department not found"})
		return
	}
	c.JSON(http.StatusOK, dep)
}

// ListCities 分页列出城市，可按 department_id 过滤
func (h *ReferenceDataHandler) ListCities(c *gin.Context) {
	var departmentID uint
	if raw := c.Query("department_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid department_id"})
			return
		}
		departmentID = uint(n)
	}
	page := utils.ParsePagination(c.Query("page"), c.Query("page_size"))

	cities, err := h.app.ListCities(c.Request.Context(), departmentID, page)
	if err != nil {
		h.internal(c, "Failed to list cities", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cities": cities, "pagination": page})
}

// GetCity 获取城市
func (h *ReferenceDataHandler) GetCity(c *gin.Context) {
	city, ok := h.city(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, city)
}

// GetIrradiance 查询某月辐照度，未指定 month 时返回全年
func (h *ReferenceDataHandler) GetIrradiance(c *gin.Context) {
	city, ok := h.city(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	raw := c.Query("month")
	if raw == "" {
		items, err := h.app.ListIrradiance(ctx, city.ID)
		if err != nil {
			h.internal(c, "Failed to list irradiance", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"city_id": city.ID, "irradiance": items})
		return
	}

	month, err := domain.ParseMonth(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	value, found, err := h.app.Irradiance(ctx, city.ID, month)
	if err != nil {
		h.internal(c, "Failed to get irradiance", err)
		return
	}
	resp := IrradianceResponse{CityID: city.ID, Month: month, Found: found}
	if found {
		resp.KWhM2 = &value
	}
	c.JSON(http.StatusOK, resp)
}

// PutIrradiance 写入或更新某月辐照度
func (h *ReferenceDataHandler) PutIrradiance(c *gin.Context) {
	city, ok := h.city(c)
	if !ok {
		return
	}
	var req PutIrradianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.KWhM2 == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kwh_m2 is required"})
		return
	}
	month, err := domain.ParseMonth(string(req.Month))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	irr, err := h.app.SetIrradiance(c.Request.Context(), city.ID, month, *req.KWhM2)
	if err != nil {
		if errors.Is(err, application.ErrNegativeIrradiance) || errors.Is(err, domain.ErrInvalidMonth) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.internal(c, "Failed to set irradiance", err)
		return
	}
	c.JSON(http.StatusOK, irr)
}

func (h *ReferenceDataHandler) city(c *gin.Context) (*domain.City, bool) {
	id, ok := pathID(c)
	if !ok {
		return nil, false
	}
	city, err := h.app.GetCity(c.Request.Context(), id)
	if err != nil {
		h.internal(c, "Failed to get city", err)
		return nil, false
	}
	if city == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "city not found"})
		return nil, false
	}
	return city, true
}

func (h *ReferenceDataHandler) internal(c *gin.Context, msg string, err error) {
	logger.Error(c.Request.Context(), msg, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func pathID(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(n), true
}
