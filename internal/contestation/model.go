package contestation

import (
	"database/sql"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved" // 異議が認められた（レコードは却下へ）
	StatusRejected Status = "rejected" // 異議が退けられた（レコードは承認へ）
)

type Severity string

const (
	SeverityMinor       Severity = "minor"
	SeveritySignificant Severity = "significant"
)

func (s Severity) Valid() bool {
	return s == SeverityMinor || s == SeveritySignificant
}

type Outcome string

const (
	OutcomeUphold Outcome = "uphold" // 異議を認める
	OutcomeReject Outcome = "reject" // 異議を退ける
)

// Contestation は勤怠レコード1件に対する顧客異議。
// pending はレコードにつき同時に1件まで。
type Contestation struct {
	ContestationID   int64
	ContestationULID string
	TenantID         string
	RecordULID       string
	EmployeeULID     string // ロック用に記録から複製
	ClientID         string
	Reason           string
	Severity         Severity
	Status           Status
	ResolutionText   sql.NullString
	ResolverID       sql.NullString
	ResolvedAt       sql.NullTime
	CreatedAt        time.Time
}
