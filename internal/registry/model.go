package registry

import (
	"database/sql"
	"time"
)

// Site は現場（ジオフェンス・所定労働時間の供給元）
type Site struct {
	SiteID                 int64
	SiteULID               string
	TenantID               string
	Name                   string
	Latitude               float64
	Longitude              float64
	RadiusMeters           float64
	StandardDailyHours     float64
	MaxPlausibleDailyHours float64
	CreatedAt              time.Time
}

// Employee は従業員マスタ（時給・端末関連付けの供給元）
type Employee struct {
	EmployeeID   int64
	EmployeeULID string
	TenantID     string
	Name         string
	HourlyRate   sql.NullFloat64
	DeviceID     sql.NullString
	IsActive     bool
	CreatedAt    time.Time
}

// 休暇種別
const (
	LeaveTypeVacation = "vacation"
	LeaveTypeSick     = "sick"
	LeaveTypeUnpaid   = "unpaid"
)

// LeaveRequest は承認済み休暇（給与集計の読み取り専用入力）。
// 本コアは作成・承認を所有しない。
type LeaveRequest struct {
	LeaveID      int64
	LeaveULID    string
	TenantID     string
	EmployeeULID string
	Type         string
	StartDate    time.Time // DATE（その日の00:00 UTC）
	EndDate      time.Time // DATE（終了日を含む）
	Status       string
	IsPaid       bool
	DaysCount    float64
}
