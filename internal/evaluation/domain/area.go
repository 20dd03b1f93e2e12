package domain

import "github.com/shopspring/decimal"

// FacilitySize 医疗机构规模描述
type FacilitySize struct {
	NumRooms     int
	NumEquipment int
}

// UsableArea 可用面积
func (s FacilitySize) UsableArea() decimal.Decimal {
	return EstimateUsableArea(s.NumRooms, s.NumEquipment)
}

// EstimateUsableArea 按诊室 20m²、设备 5m² 估算基础面积，取 60% 作为可铺设面积.
// 负数输入属于调用方违约，这里不做校验。
func EstimateUsableArea(numRooms, numEquipment int) decimal.Decimal {
	rooms := decimal.NewFromInt(int64(numRooms)).Mul(AreaPerRoomM2)
	equipment := decimal.NewFromInt(int64(numEquipment)).Mul(AreaPerEquipmentM2)
	return rooms.Add(equipment).Mul(UsableAreaRatio)
}
