package attendance

import (
	"time"

	"GENBA-backend/internal/geofence"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200

	// 不正検知で参照する直近履歴の件数
	FraudHistoryLimit = 20
)

type CheckInRequest struct {
	EmployeeULID string                `json:"employee_ulid" binding:"required"`
	SiteULID     string                `json:"site_ulid" binding:"required"`
	Time         time.Time             `json:"time,omitempty"` // 未指定ならサーバ時刻。オフライン同期は採取時刻を送る。
	Coordinate   *geofence.Coordinate  `json:"coordinate,omitempty"`
	DeviceID     *string               `json:"device_id,omitempty"`
	IsOffline    bool                  `json:"is_offline"`
}

type CheckOutRequest struct {
	Time         time.Time            `json:"time,omitempty"`
	Coordinate   *geofence.Coordinate `json:"coordinate,omitempty"`
	DeviceID     *string              `json:"device_id,omitempty"`
	BreakMinutes int                  `json:"break_minutes"`
	IsOffline    bool                 `json:"is_offline"`
}

type ReviewRequest struct {
	Time   time.Time `json:"time,omitempty"`
	Reason *string   `json:"reason,omitempty"` // 却下時は必須
}

type RecordResponse struct {
	RecordULID   string `json:"record_ulid"`
	EmployeeULID string `json:"employee_ulid"`
	SiteULID     string `json:"site_ulid"`

	CheckInAt  time.Time  `json:"check_in_at"`
	CheckOutAt *time.Time `json:"check_out_at,omitempty"`

	CheckInCoordinate      *geofence.Coordinate `json:"check_in_coordinate,omitempty"`
	CheckInWithinGeofence  bool                 `json:"check_in_within_geofence"`
	CheckInDistanceM       *float64             `json:"check_in_distance_meters,omitempty"`
	CheckOutCoordinate     *geofence.Coordinate `json:"check_out_coordinate,omitempty"`
	CheckOutWithinGeofence bool                 `json:"check_out_within_geofence"`
	CheckOutDistanceM      *float64             `json:"check_out_distance_meters,omitempty"`

	CheckInDeviceID  *string `json:"check_in_device_id,omitempty"`
	CheckOutDeviceID *string `json:"check_out_device_id,omitempty"`
	IsOffline        bool    `json:"is_offline"`

	BreakMinutes  int      `json:"break_minutes"`
	TotalHours    *float64 `json:"total_hours,omitempty"`
	OvertimeHours *float64 `json:"overtime_hours,omitempty"`

	Status          Status  `json:"status"`
	IsSuspicious    bool    `json:"is_suspicious"`
	SuspicionReason *string `json:"suspicion_reason,omitempty"`

	ApproverID   *string    `json:"approver_id,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	ReviewReason *string    `json:"review_reason,omitempty"`

	ClientValidated   bool       `json:"client_validated"`
	ClientValidatedAt *time.Time `json:"client_validated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type ListQuery struct {
	EmployeeULID *string
	SiteULID     *string
	Status       *Status
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

func (r *Record) toDTO() RecordResponse {
	out := RecordResponse{
		RecordULID:             r.RecordULID,
		EmployeeULID:           r.EmployeeULID,
		SiteULID:               r.SiteULID,
		CheckInAt:              r.CheckInAt,
		CheckInWithinGeofence:  r.CheckInWithinGeofence,
		CheckOutWithinGeofence: r.CheckOutWithinGeofence,
		IsOffline:              r.IsOffline(),
		BreakMinutes:           r.BreakMinutes,
		Status:                 r.Status,
		IsSuspicious:           r.IsSuspicious,
		ClientValidated:        r.ClientValidated,
		CreatedAt:              r.CreatedAt,
	}
	if r.CheckOutAt.Valid {
		v := r.CheckOutAt.Time
		out.CheckOutAt = &v
	}
	if r.CheckInLat.Valid && r.CheckInLng.Valid {
		out.CheckInCoordinate = &geofence.Coordinate{Latitude: r.CheckInLat.Float64, Longitude: r.CheckInLng.Float64}
	}
	if r.CheckInDistanceM.Valid {
		v := r.CheckInDistanceM.Float64
		out.CheckInDistanceM = &v
	}
	if r.CheckOutLat.Valid && r.CheckOutLng.Valid {
		out.CheckOutCoordinate = &geofence.Coordinate{Latitude: r.CheckOutLat.Float64, Longitude: r.CheckOutLng.Float64}
	}
	if r.CheckOutDistanceM.Valid {
		v := r.CheckOutDistanceM.Float64
		out.CheckOutDistanceM = &v
	}
	if r.CheckInDeviceID.Valid {
		v := r.CheckInDeviceID.String
		out.CheckInDeviceID = &v
	}
	if r.CheckOutDeviceID.Valid {
		v := r.CheckOutDeviceID.String
		out.CheckOutDeviceID = &v
	}
	if r.TotalHours.Valid {
		v := r.TotalHours.Float64
		out.TotalHours = &v
	}
	if r.OvertimeHours.Valid {
		v := r.OvertimeHours.Float64
		out.OvertimeHours = &v
	}
	if r.SuspicionReason.Valid {
		v := r.SuspicionReason.String
		out.SuspicionReason = &v
	}
	if r.ApproverID.Valid {
		v := r.ApproverID.String
		out.ApproverID = &v
	}
	if r.ReviewedAt.Valid {
		v := r.ReviewedAt.Time
		out.ReviewedAt = &v
	}
	if r.ReviewReason.Valid {
		v := r.ReviewReason.String
		out.ReviewReason = &v
	}
	if r.ClientValidatedAt.Valid {
		v := r.ClientValidatedAt.Time
		out.ClientValidatedAt = &v
	}
	return out
}
