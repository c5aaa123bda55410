package common

import "fmt"

// Record 是索引中的基本单元：城市名 + 经纬度（十进制度）
// 不做范围校验，超出 [-90,90]/[-180,180] 的坐标原样保存
type Record struct {
	City string  `json:"city"`
	Lat  float64 `json:"latitude"`
	Lon  float64 `json:"longitude"`
}

// Axis 是 KD-Tree 某一层的分割轴
type Axis int

const (
	AxisLat Axis = iota
	AxisLon
)

// AxisAt 偶数层按纬度分割，奇数层按经度分割
func AxisAt(depth int) Axis {
	if depth%2 == 0 {
		return AxisLat
	}
	return AxisLon
}

func (a Axis) String() string {
	if a == AxisLat {
		return "lat"
	}
	return "lon"
}

// Coord 返回记录在指定轴上的坐标
func (r Record) Coord(axis Axis) float64 {
	if axis == AxisLat {
		return r.Lat
	}
	return r.Lon
}

// String 方便调试打印
func (r Record) String() string {
	return fmt.Sprintf("(%s, %g, %g)", r.City, r.Lat, r.Lon)
}
