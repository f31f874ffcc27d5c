package registry

import "time"

type CreateSiteRequest struct {
	Name                   string  `json:"name" binding:"required"`
	Latitude               float64 `json:"latitude" binding:"required"`
	Longitude              float64 `json:"longitude" binding:"required"`
	RadiusMeters           float64 `json:"radius_meters" binding:"required"`
	StandardDailyHours     float64 `json:"standard_daily_hours"`
	MaxPlausibleDailyHours float64 `json:"max_plausible_daily_hours"`
}

type UpdateSiteRequest struct {
	Name                   *string  `json:"name,omitempty"`
	Latitude               *float64 `json:"latitude,omitempty"`
	Longitude              *float64 `json:"longitude,omitempty"`
	RadiusMeters           *float64 `json:"radius_meters,omitempty"`
	StandardDailyHours     *float64 `json:"standard_daily_hours,omitempty"`
	MaxPlausibleDailyHours *float64 `json:"max_plausible_daily_hours,omitempty"`
}

type SiteResponse struct {
	SiteULID               string    `json:"site_ulid"`
	Name                   string    `json:"name"`
	Latitude               float64   `json:"latitude"`
	Longitude              float64   `json:"longitude"`
	RadiusMeters           float64   `json:"radius_meters"`
	StandardDailyHours     float64   `json:"standard_daily_hours"`
	MaxPlausibleDailyHours float64   `json:"max_plausible_daily_hours"`
	CreatedAt              time.Time `json:"created_at"`
}

type CreateEmployeeRequest struct {
	Name       string   `json:"name" binding:"required"`
	HourlyRate *float64 `json:"hourly_rate,omitempty"`
	DeviceID   *string  `json:"device_id,omitempty"`
}

type UpdateEmployeeRequest struct {
	Name       *string  `json:"name,omitempty"`
	HourlyRate *float64 `json:"hourly_rate,omitempty"`
	DeviceID   *string  `json:"device_id,omitempty"`
	IsActive   *bool    `json:"is_active,omitempty"`
}

type EmployeeResponse struct {
	EmployeeULID string    `json:"employee_ulid"`
	Name         string    `json:"name"`
	HourlyRate   *float64  `json:"hourly_rate,omitempty"`
	DeviceID     *string   `json:"device_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Site) toDTO() SiteResponse {
	return SiteResponse{
		SiteULID:               s.SiteULID,
		Name:                   s.Name,
		Latitude:               s.Latitude,
		Longitude:              s.Longitude,
		RadiusMeters:           s.RadiusMeters,
		StandardDailyHours:     s.StandardDailyHours,
		MaxPlausibleDailyHours: s.MaxPlausibleDailyHours,
		CreatedAt:              s.CreatedAt,
	}
}

func (e *Employee) toDTO() EmployeeResponse {
	out := EmployeeResponse{
		EmployeeULID: e.EmployeeULID,
		Name:         e.Name,
		IsActive:     e.IsActive,
		CreatedAt:    e.CreatedAt,
	}
	if e.HourlyRate.Valid {
		v := e.HourlyRate.Float64
		out.HourlyRate = &v
	}
	if e.DeviceID.Valid {
		v := e.DeviceID.String
		out.DeviceID = &v
	}
	return out
}
