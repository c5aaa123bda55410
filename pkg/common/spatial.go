package common

import (
	"errors"
	"math"
)

// EarthRadiusKm 是 haversine 使用的地球平均半径
const EarthRadiusKm = 6371.0

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Distance 返回两点间的球面距离（千米，haversine 公式）
func Distance(a, b Record) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)

	h := math.Pow(math.Sin(dLat/2), 2) + math.Pow(math.Sin(dLon/2), 2)*math.Cos(lat1)*math.Cos(lat2)
	return EarthRadiusKm * 2 * math.Asin(math.Sqrt(math.Min(h, 1)))
}

// Finite 坐标必须是有限数：NaN 会让所有距离比较失效
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckCoords 校验一对坐标，只拒绝 NaN/Inf，不做范围限制
func CheckCoords(lat, lon float64) error {
	if !Finite(lat) || !Finite(lon) {
		return ErrInvalidCoordinate
	}
	return nil
}

// LatGapKm 是纬度差对应的最短球面距离，用作可采纳的剪枝下界
func LatGapKm(dLatDeg float64) float64 {
	return EarthRadiusKm * toRadians(math.Abs(dLatDeg))
}

// Rect 是闭区间矩形 [MinLat,MaxLat] x [MinLon,MaxLon]，单位为度
type Rect struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// NewRect 由左下角和右上角构造查询矩形
func NewRect(minLat, minLon, maxLat, maxLon float64) (Rect, error) {
	if math.IsNaN(minLat) || math.IsNaN(minLon) || math.IsNaN(maxLat) || math.IsNaN(maxLon) {
		return Rect{}, errors.New("invalid bounding box: NaN coordinate")
	}
	return Rect{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}, nil
}

// Contains 判断记录是否落在闭矩形内
func (r Rect) Contains(rec Record) bool {
	return rec.Lat >= r.MinLat && rec.Lat <= r.MaxLat &&
		rec.Lon >= r.MinLon && rec.Lon <= r.MaxLon
}

// Min 返回矩形在指定轴上的下界
func (r Rect) Min(axis Axis) float64 {
	if axis == AxisLat {
		return r.MinLat
	}
	return r.MinLon
}

// Max 返回矩形在指定轴上的上界
func (r Rect) Max(axis Axis) float64 {
	if axis == AxisLat {
		return r.MaxLat
	}
	return r.MaxLon
}
