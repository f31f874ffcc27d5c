package payroll

import (
	"database/sql"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaid:
		return true
	}
	return false
}

// 支払いは外部処理。ここでは pending → processing → paid の一方向のみ許す。
func CanTransition(from, to Status) bool {
	switch {
	case from == StatusPending && to == StatusProcessing:
		return true
	case from == StatusProcessing && to == StatusPaid:
		return true
	}
	return false
}

// PayrollRecord は従業員×給与期間ごとに1行。
// (tenant_id, employee_ulid, period_start, period_end) でユニーク。
type PayrollRecord struct {
	PayrollID    int64
	PayrollULID  string
	TenantID     string
	EmployeeULID string

	PeriodStart time.Time
	PeriodEnd   time.Time

	RegularHours  float64
	OvertimeHours float64
	NightHours    float64

	VacationDays      float64
	SickDays          float64
	UnpaidAbsenceDays float64

	TotalAmount sql.NullFloat64 // 時給未設定の従業員では NULL

	Status      Status
	AnomalyNote sql.NullString // 例: 承認済みレコード同士の時間重複

	GeneratedAt time.Time
}
