package payroll

import "time"

type GenerateRequest struct {
	EmployeeULID string    `json:"employee_ulid" binding:"required"`
	PeriodStart  time.Time `json:"period_start" binding:"required"`
	PeriodEnd    time.Time `json:"period_end" binding:"required"`
	// paid 済みの期間を作り直す場合のみ true
	Force bool `json:"force"`
}

type PayrollResponse struct {
	PayrollULID  string `json:"payroll_ulid"`
	EmployeeULID string `json:"employee_ulid"`

	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	RegularHours  float64 `json:"regular_hours"`
	OvertimeHours float64 `json:"overtime_hours"`
	NightHours    float64 `json:"night_hours"`

	VacationDays      float64 `json:"vacation_days"`
	SickDays          float64 `json:"sick_days"`
	UnpaidAbsenceDays float64 `json:"unpaid_absence_days"`

	TotalAmount *float64 `json:"total_amount,omitempty"`

	Status      Status  `json:"status"`
	AnomalyNote *string `json:"anomaly_note,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

func (p *PayrollRecord) toDTO() PayrollResponse {
	out := PayrollResponse{
		PayrollULID:       p.PayrollULID,
		EmployeeULID:      p.EmployeeULID,
		PeriodStart:       p.PeriodStart,
		PeriodEnd:         p.PeriodEnd,
		RegularHours:      p.RegularHours,
		OvertimeHours:     p.OvertimeHours,
		NightHours:        p.NightHours,
		VacationDays:      p.VacationDays,
		SickDays:          p.SickDays,
		UnpaidAbsenceDays: p.UnpaidAbsenceDays,
		Status:            p.Status,
		GeneratedAt:       p.GeneratedAt,
	}
	if p.TotalAmount.Valid {
		v := p.TotalAmount.Float64
		out.TotalAmount = &v
	}
	if p.AnomalyNote.Valid {
		v := p.AnomalyNote.String
		out.AnomalyNote = &v
	}
	return out
}
