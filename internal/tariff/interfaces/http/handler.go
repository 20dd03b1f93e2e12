package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/solarhealth/internal/tariff/application"
	"github.com/wyfcoding/solarhealth/internal/tariff/domain"
	"github.com/wyfcoding/solarhealth/pkg/logger"
)

// TariffHandler 预测 HTTP 处理器
type TariffHandler struct {
	app *application.TariffService
}

// NewTariffHandler 创建 HTTP 处理器实例
func NewTariffHandler(app *application.TariffService) *TariffHandler {
	return &TariffHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *TariffHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/predict")
	{
		api.POST("", h.PredictPoint)
		api.POST("/monthly", h.PredictMonth)
		api.POST("/peak-shaving", h.PredictPeakShaving)
	}
}

// PointRequest 单时刻预测请求
type PointRequest struct {
	Timestamp   string   `json:"timestamp" binding:"required"`
	Temperature *float64 `json:"temperature" binding:"required"`
	ClassPeriod *bool    `json:"is_class_period"`
	Holiday     bool     `json:"is_holiday"`
	Exam        bool     `json:"is_exam"`
}

// PointResponse 单时刻预测结果
type PointResponse struct {
	Timestamp      string      `json:"timestamp"`
	Weekday        string      `json:"weekday"`
	ConsumptionKWh json.Number `json:"consumption_kwh"`
	PriceKWh       json.Number `json:"price_aud_kwh"`
	Cost15Min      json.Number `json:"cost_aud_15min"`
	CostHour       json.Number `json:"cost_aud_hour"`
	Peak           bool        `json:"is_peak"`
}

// MonthRequest 月度账单请求
type MonthRequest struct {
	Month          string   `json:"month" binding:"required"`
	AvgTemperature *float64 `json:"avg_temperature" binding:"required"`
	ClassPeriod    *bool    `json:"is_class_period"`
}

// MonthResponse 月度账单
type MonthResponse struct {
	Month               string      `json:"month"`
	TotalConsumptionKWh json.Number `json:"total_consumption_kwh"`
	TotalCost           json.Number `json:"total_cost_aud"`
	PeakCost            json.Number `json:"peak_cost_aud"`
	OffPeakCost         json.Number `json:"offpeak_cost_aud"`
	PeakSharePercent    json.Number `json:"peak_share_percent"`
	DailyAverageCost    json.Number `json:"daily_average_cost_aud"`
	DailyAverageKWh     json.Number `json:"daily_average_consumption_kwh"`
	PeakIntervals       int         `json:"peak_intervals"`
	OffPeakIntervals    int         `json:"offpeak_intervals"`
}

// PeakShavingRequest 削峰分类请求
type PeakShavingRequest struct {
	Hour         *int     `json:"hour" binding:"required"`
	DayOfWeek    *int     `json:"day_of_week" binding:"required"`
	GHI          *float64 `json:"ghi" binding:"required"`
	CloudOpacity *float64 `json:"cloud_opacity" binding:"required"`
}

// PeakShavingResponse 削峰分类结果
type PeakShavingResponse struct {
	PeakShaving bool        `json:"peak_shaving"`
	Label       string      `json:"label"`
	Confidence  json.Number `json:"confidence"`
}

func fixed(d decimal.Decimal, places int32) json.Number {
	return json.Number(d.StringFixed(places))
}

// 未指定时默认处于教学期
func classPeriod(v *bool) bool {
	return v == nil || *v
}

// PredictPoint 单时刻用电量与费用
func (h *TariffHandler) PredictPoint(c *gin.Context) {
	var req PointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.app.PredictPoint(c.Request.Context(), application.PointRequest{
		Timestamp:   req.Timestamp,
		Temperature: *req.Temperature,
		ClassPeriod: classPeriod(req.ClassPeriod),
		Holiday:     req.Holiday,
		Exam:        req.Exam,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PointResponse{
		Timestamp:      p.Timestamp,
		Weekday:        p.Weekday,
		ConsumptionKWh: fixed(p.ConsumptionKWh, 2),
		PriceKWh:       fixed(p.PriceKWh, 2),
		Cost15Min:      fixed(p.Cost15Min, 4),
		CostHour:       fixed(p.CostHour, 2),
		Peak:           p.Peak,
	})
}

// PredictMonth 整月账单
func (h *TariffHandler) PredictMonth(c *gin.Context) {
	var req MonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.app.PredictMonth(c.Request.Context(), application.MonthRequest{
		Month:          req.Month,
		AvgTemperature: *req.AvgTemperature,
		ClassPeriod:    classPeriod(req.ClassPeriod),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MonthResponse{
		Month:               s.Month,
		TotalConsumptionKWh: fixed(s.TotalConsumptionKWh, 2),
		TotalCost:           fixed(s.TotalCost, 2),
		PeakCost:            fixed(s.PeakCost, 2),
		OffPeakCost:         fixed(s.OffPeakCost, 2),
		PeakSharePercent:    fixed(s.PeakSharePercent, 1),
		DailyAverageCost:    fixed(s.DailyAverageCost, 2),
		DailyAverageKWh:     fixed(s.DailyAverageKWh, 2),
		PeakIntervals:       s.PeakIntervals,
		OffPeakIntervals:    s.OffPeakIntervals,
	})
}

// PredictPeakShaving 削峰分类
func (h *TariffHandler) PredictPeakShaving(c *gin.Context) {
	var req PeakShavingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.app.PredictPeakShaving(c.Request.Context(), domain.PeakInput{
		Hour:         *req.Hour,
		DayOfWeek:    *req.DayOfWeek,
		GHI:          *req.GHI,
		CloudOpacity: *req.CloudOpacity,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PeakShavingResponse{
		PeakShaving: p.PeakShaving,
		Label:       p.Label,
		Confidence:  fixed(p.Confidence, 3),
	})
}

func (h *TariffHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Error(c.Request.Context(), "Prediction failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
