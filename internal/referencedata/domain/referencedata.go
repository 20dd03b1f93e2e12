// Package domain 参考数据：行政区划与城市月度辐照度
package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidMonth 无法识别的月份
var ErrInvalidMonth = errors.New("invalid month")

// Department 省/州
type Department struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// City 城市
type City struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	DepartmentID uint   `json:"department_id"`
}

// Irradiance 城市某月的太阳辐照度（kWh/m²/月）
type Irradiance struct {
	ID     uint            `json:"id"`
	CityID uint            `json:"city_id"`
	Month  int             `json:"month"`
	KWhM2  decimal.Decimal `json:"kwh_m2"`
}

var monthNames = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6,
	"julio": 7, "agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10, "noviembre": 11, "diciembre": 12,
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

// ParseMonth 接受 1-12、西班牙语或英语月份名（不区分大小写）
func ParseMonth(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return n, nil
		}
		return 0, fmt.Errorf("%w: %d", ErrInvalidMonth, n)
	}
	if n, ok := monthNames[s]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}

// DepartmentRepository 省/州仓储
type DepartmentRepository interface {
	List(ctx context.Context) ([]*Department, error)
	GetByID(ctx context.Context, id uint) (*Department, error)
}

// CityRepository 城市仓储，departmentID 为 0 表示不过滤
type CityRepository interface {
	List(ctx context.Context, departmentID uint, limit, offset int) ([]*City, int64, error)
	GetByID(ctx context.Context, id uint) (*City, error)
}

// IrradianceRepository 辐照度仓储，未找到时返回 (nil, nil)
type IrradianceRepository interface {
	Get(ctx context.Context, cityID uint, month int) (*Irradiance, error)
	ListByCity(ctx context.Context, cityID uint) ([]*Irradiance, error)
	Upsert(ctx context.Context, irr *Irradiance) error
}

// IrradianceLookup 缓存条目，Found=false 表示该城市该月没有实测值
type IrradianceLookup struct {
	Found bool            `json:"found"`
	Value decimal.Decimal `json:"value"`
}

// IrradianceCache 辐照度缓存，未命中返回 (nil, nil)
type IrradianceCache interface {
	Get(ctx context.Context, cityID uint, month int) (*IrradianceLookup, error)
	Set(ctx context.Context, cityID uint, month int, lookup IrradianceLookup) error
	Delete(ctx context.Context, cityID uint, month int) error
}
