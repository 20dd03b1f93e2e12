// Package grpc 以 google.protobuf.Struct 为载荷暴露测算服务，小数以字符串传输避免精度损失
package grpc

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/solarhealth/internal/evaluation/application"
	"github.com/wyfcoding/solarhealth/internal/evaluation/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName 完整服务名
	ServiceName = "solarhealth.evaluation.v1.EvaluationService"
	// EvaluateMethod Evaluate 方法全名
	EvaluateMethod = "/" + ServiceName + "/Evaluate"
)

// EvaluationServer 服务端接口
type EvaluationServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc 手工声明的服务描述
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EvaluationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "solarhealth/evaluation/v1/evaluation.proto",
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EvaluationServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EvaluationServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Handler gRPC 处理器
type Handler struct {
	app               *application.EvaluationService
	defaultIrradiance decimal.Decimal
}

// NewHandler 创建处理器
func NewHandler(app *application.EvaluationService, defaultIrradiance decimal.Decimal) *Handler {
	return &Handler{app: app, defaultIrradiance: defaultIrradiance}
}

// Register 注册到 gRPC server
func (h *Handler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

// Evaluate 实现 EvaluationServer
func (h *Handler) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cmd, err := decodeCommand(req, h.defaultIrradiance)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ev, err := h.app.Evaluate(ctx, cmd)
	if err != nil {
		if errors.Is(err, application.ErrInvalidInput) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return encodeEvaluation(*ev, ev.Viable(cmd.MonthlyConsumptionKWh))
}

func decodeCommand(req *structpb.Struct, defaultIrradiance decimal.Decimal) (application.EvaluateCommand, error) {
	fields := req.GetFields()
	var cmd application.EvaluateCommand

	var err error
	if cmd.NumRooms, err = countValue(fields["num_rooms"]); err != nil {
		return cmd, fmt.Errorf("num_rooms: %w", err)
	}
	if cmd.NumEquipment, err = countValue(fields["num_equipment"]); err != nil {
		return cmd, fmt.Errorf("num_equipment: %w", err)
	}

	consumption, ok := fields["monthly_consumption_kwh"]
	if !ok {
		return cmd, errors.New("monthly_consumption_kwh is required")
	}
	if cmd.MonthlyConsumptionKWh, err = decimalValue(consumption); err != nil {
		return cmd, fmt.Errorf("monthly_consumption_kwh: %w", err)
	}

	cmd.IrradianceKWhM2 = defaultIrradiance
	if irr, ok := fields["irradiance_kwh_m2"]; ok {
		if cmd.IrradianceKWhM2, err = decimalValue(irr); err != nil {
			return cmd, fmt.Errorf("irradiance_kwh_m2: %w", err)
		}
	}
	return cmd, nil
}

// countValue 缺省为 0，与 HTTP 接口一致；出现时必须是整数
func countValue(v *structpb.Value) (int, error) {
	if v == nil {
		return 0, nil
	}
	k, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, errors.New("expected integer number")
	}
	n := k.NumberValue
	if !finite(n) || n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, fmt.Errorf("expected integer, got %v", n)
	}
	return int(n), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func decimalValue(v *structpb.Value) (decimal.Decimal, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return decimal.NewFromString(k.StringValue)
	case *structpb.Value_NumberValue:
		if !finite(k.NumberValue) {
			return decimal.Zero, fmt.Errorf("expected finite number, got %v", k.NumberValue)
		}
		return decimal.NewFromFloat(k.NumberValue), nil
	default:
		return decimal.Zero, errors.New("expected string or number")
	}
}

func encodeEvaluation(ev domain.Evaluation, viable bool) (*structpb.Struct, error) {
	f := func(d decimal.Decimal) any { return d.StringFixed(domain.MoneyPlaces) }
	return structpb.NewStruct(map[string]any{
		"capex":                        f(ev.Capex),
		"opex":                         f(ev.Opex),
		"npv":                          f(ev.NPV),
		"return_ratio_percent":         f(ev.ReturnRatioPercent),
		"payback_years":                f(ev.PaybackYears),
		"num_panels":                   ev.NumPanels,
		"installed_capacity_kw":        f(ev.InstalledCapacityKW),
		"area_used_m2":                 f(ev.AreaUsedM2),
		"irradiance_used":              f(ev.IrradianceUsed),
		"monthly_energy_generated_kwh": f(ev.MonthlyEnergyGeneratedKWh),
		"annual_savings":               f(ev.AnnualSavings),
		"viable":                       viable,
	})
}

// decodeEvaluation encodeEvaluation 的逆过程
func decodeEvaluation(s *structpb.Struct) (domain.Evaluation, bool, error) {
	fields := s.GetFields()
	var ev domain.Evaluation
	targets := map[string]*decimal.Decimal{
		"capex":                        &ev.Capex,
		"opex":                         &ev.Opex,
		"npv":                          &ev.NPV,
		"return_ratio_percent":         &ev.ReturnRatioPercent,
		"payback_years":                &ev.PaybackYears,
		"installed_capacity_kw":        &ev.InstalledCapacityKW,
		"area_used_m2":                 &ev.AreaUsedM2,
		"irradiance_used":              &ev.IrradianceUsed,
		"monthly_energy_generated_kwh": &ev.MonthlyEnergyGeneratedKWh,
		"annual_savings":               &ev.AnnualSavings,
	}
	for name, dst := range targets {
		d, err := decimal.NewFromString(fields[name].GetStringValue())
		if err != nil {
			return ev, false, fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
	}
	ev.NumPanels = int(fields["num_panels"].GetNumberValue())
	ev.UsableAreaM2 = ev.AreaUsedM2
	return ev, fields["viable"].GetBoolValue(), nil
}

// Client 测算服务客户端
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient 基于已建立的连接创建客户端
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Evaluate 远程测算，返回测算结果与是否可行
func (c *Client) Evaluate(ctx context.Context, cmd application.EvaluateCommand) (*domain.Evaluation, bool, error) {
	req, err := structpb.NewStruct(map[string]any{
		"num_rooms":               cmd.NumRooms,
		"num_equipment":           cmd.NumEquipment,
		"monthly_consumption_kwh": cmd.MonthlyConsumptionKWh.String(),
		"irradiance_kwh_m2":       cmd.IrradianceKWhM2.String(),
	})
	if err != nil {
		return nil, false, err
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, EvaluateMethod, req, out); err != nil {
		return nil, false, err
	}
	ev, viable, err := decodeEvaluation(out)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode evaluation: %w", err)
	}
	return &ev, viable, nil
}
