package attendance

import (
	"database/sql"
	"time"
)

// レコード状態。文字列statusの自由記述は許さず、この5値に閉じる。
type Status string

const (
	StatusOpen      Status = "open"      // 出勤打刻のみ（退勤待ち）
	StatusPending   Status = "pending"   // 退勤済み・承認待ち
	StatusApproved  Status = "approved"  // 承認済み（給与集計の対象）
	StatusRejected  Status = "rejected"  // 却下
	StatusContested Status = "contested" // 顧客異議あり
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPending, StatusApproved, StatusRejected, StatusContested:
		return true
	}
	return false
}

// 遷移表。ここに無い組は不正遷移。
var transitions = map[Status][]Status{
	StatusOpen:      {StatusPending},
	StatusPending:   {StatusApproved, StatusRejected, StatusContested},
	StatusApproved:  {StatusContested},
	StatusContested: {StatusApproved, StatusRejected},
	StatusRejected:  {},
}

func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Record は出勤〜退勤の1サイクル。物理削除はしない（監査のため状態遷移のみ）。
type Record struct {
	RecordID     int64
	RecordULID   string
	TenantID     string
	EmployeeULID string
	SiteULID     string

	CheckInAt  time.Time
	CheckOutAt sql.NullTime

	CheckInLat             sql.NullFloat64
	CheckInLng             sql.NullFloat64
	CheckInWithinGeofence  bool
	CheckInDistanceM       sql.NullFloat64
	CheckOutLat            sql.NullFloat64
	CheckOutLng            sql.NullFloat64
	CheckOutWithinGeofence bool
	CheckOutDistanceM      sql.NullFloat64

	CheckInDeviceID  sql.NullString
	CheckOutDeviceID sql.NullString
	CheckInOffline   bool
	CheckOutOffline  bool

	BreakMinutes  int
	TotalHours    sql.NullFloat64 // 退勤時に計算。手入力不可。
	OvertimeHours sql.NullFloat64

	Status          Status
	IsSuspicious    bool
	SuspicionReason sql.NullString

	ApproverID   sql.NullString
	ReviewedAt   sql.NullTime
	ReviewReason sql.NullString // 却下理由

	ClientValidated   bool
	ClientValidatedAt sql.NullTime

	CreatedAt time.Time
}

// IsOffline: どちらかの打刻がオフライン採取なら true
func (r *Record) IsOffline() bool {
	return r.CheckInOffline || r.CheckOutOffline
}
