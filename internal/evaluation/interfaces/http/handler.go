package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/solarhealth/internal/evaluation/application"
	"github.com/wyfcoding/solarhealth/internal/evaluation/domain"
	"github.com/wyfcoding/solarhealth/pkg/logger"
)

// EvaluationHandler 测算 HTTP 处理器
type EvaluationHandler struct {
	app               *application.EvaluationService
	defaultIrradiance decimal.Decimal
}

// NewEvaluationHandler 未提供辐照度的请求使用 defaultIrradiance
func NewEvaluationHandler(app *application.EvaluationService, defaultIrradiance decimal.Decimal) *EvaluationHandler {
	return &EvaluationHandler{app: app, defaultIrradiance: defaultIrradiance}
}

// RegisterRoutes 注册路由
func (h *EvaluationHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/evaluations")
	{
		api.POST("", h.Evaluate)
		api.POST("/batch", h.EvaluateBatch)
	}
}

// EvaluateRequest 测算请求，小数字段可以是 JSON 数字或字符串
type EvaluateRequest struct {
	NumRooms              int              `json:"num_rooms" binding:"gte=0"`
	NumEquipment          int              `json:"num_equipment" binding:"gte=0"`
	MonthlyConsumptionKWh *decimal.Decimal `json:"monthly_consumption_kwh"`
	IrradianceKWhM2       *decimal.Decimal `json:"irradiance_kwh_m2"`
}

// EvaluateResponse 测算响应
type EvaluateResponse struct {
	Evaluation domain.Evaluation `json:"evaluation"`
	Viable     bool              `json:"viable"`
}

func (h *EvaluationHandler) command(req EvaluateRequest) (application.EvaluateCommand, error) {
	if req.MonthlyConsumptionKWh == nil {
		return application.EvaluateCommand{}, errors.New("monthly_consumption_kwh is required")
	}
	irradiance := h.defaultIrradiance
	if req.IrradianceKWhM2 != nil {
		irradiance = *req.IrradianceKWhM2
	}
	return application.EvaluateCommand{
		NumRooms:              req.NumRooms,
		NumEquipment:          req.NumEquipment,
		MonthlyConsumptionKWh: *req.MonthlyConsumptionKWh,
		IrradianceKWhM2:       irradiance,
	}, nil
}

// Evaluate 单次测算
func (h *EvaluationHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd, err := h.command(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev, err := h.app.Evaluate(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, EvaluateResponse{Evaluation: *ev, Viable: ev.Viable(cmd.MonthlyConsumptionKWh)})
}

// EvaluateBatch 批量测算
func (h *EvaluationHandler) EvaluateBatch(c *gin.Context) {
	var reqs []EvaluateRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmds := make([]application.EvaluateCommand, 0, len(reqs))
	for _, req := range reqs {
		cmd, err := h.command(req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cmds = append(cmds, cmd)
	}

	evs, err := h.app.EvaluateBatch(c.Request.Context(), cmds)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]EvaluateResponse, len(evs))
	for i, ev := range evs {
		out[i] = EvaluateResponse{Evaluation: ev, Viable: ev.Viable(cmds[i].MonthlyConsumptionKWh)}
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (h *EvaluationHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, application.ErrBatchTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	default:
		logger.Error(c.Request.Context(), "Evaluation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
