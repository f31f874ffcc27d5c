// Package geofence は現場の登録座標と打刻座標の照合を行う。
// 副作用なしの純関数のみ。
package geofence

import "math"

const earthRadiusMeters = 6371000.0

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Result struct {
	WithinGeofence bool     `json:"within_geofence"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

// Distance は2点間の大円距離（haversine）をメートルで返す。
func Distance(a, b Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Validate は観測座標がジオフェンス内かを判定する。
// observed が nil（端末が位置情報を返さなかった）の場合は圏外扱い・距離なし。
// 位置情報なしを通すかどうかの判断は呼び出し側のポリシーに委ねる。
func Validate(center Coordinate, radiusMeters float64, observed *Coordinate) Result {
	if observed == nil {
		return Result{WithinGeofence: false, DistanceMeters: nil}
	}
	d := Distance(center, *observed)
	return Result{WithinGeofence: d <= radiusMeters, DistanceMeters: &d}
}
