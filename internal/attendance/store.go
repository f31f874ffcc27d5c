package attendance

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

type DBTX interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

// RecordStore は勤怠レコードの永続化面。
// 各メソッドはそれ自体が原子的（派生値と状態遷移を同一文で書く）。
type RecordStore interface {
	Insert(ctx context.Context, rec *Record) error
	GetByULID(ctx context.Context, tenantID, ulid string) (*Record, error)
	GetOpenByEmployee(ctx context.Context, tenantID, employeeULID string) (*Record, error)
	UpdateCheckOut(ctx context.Context, rec *Record) error
	UpdateReview(ctx context.Context, rec *Record, allowedFrom []Status) error
	UpdateStatus(ctx context.Context, tenantID, ulid string, from []Status, to Status) (int64, error)
	SetClientValidated(ctx context.Context, tenantID, ulid string, at time.Time) (int64, error)
	CountPendingContestations(ctx context.Context, tenantID, recordULID string) (int, error)
	ListRecent(ctx context.Context, tenantID, employeeULID string, limit int) ([]Record, error)
	List(ctx context.Context, tenantID string, q ListQuery) ([]Record, int64, error)
}

type Store struct{ db DBTX }

func NewStore(db DBTX) *Store { return &Store{db: db} }

// RecordColumns: SELECT句の並び。ScanRecord と対で使う。
const RecordColumns = `
record_id, record_ulid, tenant_id, employee_ulid, site_ulid,
check_in_at, check_out_at,
check_in_lat, check_in_lng, check_in_within_geofence, check_in_distance_m,
check_out_lat, check_out_lng, check_out_within_geofence, check_out_distance_m,
check_in_device_id, check_out_device_id, check_in_offline, check_out_offline,
break_minutes, total_hours, overtime_hours,
status, is_suspicious, suspicion_reason,
approver_id, reviewed_at, review_reason,
client_validated, client_validated_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func ScanRecord(row rowScanner) (*Record, error) {
	var r Record
	var status string
	err := row.Scan(
		&r.RecordID, &r.RecordULID, &r.TenantID, &r.EmployeeULID, &r.SiteULID,
		&r.CheckInAt, &r.CheckOutAt,
		&r.CheckInLat, &r.CheckInLng, &r.CheckInWithinGeofence, &r.CheckInDistanceM,
		&r.CheckOutLat, &r.CheckOutLng, &r.CheckOutWithinGeofence, &r.CheckOutDistanceM,
		&r.CheckInDeviceID, &r.CheckOutDeviceID, &r.CheckInOffline, &r.CheckOutOffline,
		&r.BreakMinutes, &r.TotalHours, &r.OvertimeHours,
		&status, &r.IsSuspicious, &r.SuspicionReason,
		&r.ApproverID, &r.ReviewedAt, &r.ReviewReason,
		&r.ClientValidated, &r.ClientValidatedAt, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = Status(status)
	if !r.Status.Valid() {
		return nil, NewConsistencyError(fmt.Sprintf("record %s has invalid status %q", r.RecordULID, status))
	}
	return &r, nil
}

// Insert: 出勤打刻。open_flag 列には open 中のみ 1 が入り、
// UNIQUE (tenant_id, employee_ulid, open_flag) が「従業員につきopenは1件」の最後の砦。
// ここで重複キーに当たるのはロック抜けの整合性破れなので、大きくログに残して失敗させる。
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	const q = `
	INSERT INTO attendance_records
	(record_ulid, tenant_id, employee_ulid, site_ulid,
	 check_in_at, check_in_lat, check_in_lng, check_in_within_geofence, check_in_distance_m,
	 check_in_device_id, check_in_offline, check_out_offline,
	 break_minutes, status, open_flag,
	 is_suspicious, client_validated, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, 1, 0, 0, ?)`
	res, err := s.db.ExecContext(ctx, q,
		rec.RecordULID, rec.TenantID, rec.EmployeeULID, rec.SiteULID,
		rec.CheckInAt, rec.CheckInLat, rec.CheckInLng, rec.CheckInWithinGeofence, rec.CheckInDistanceM,
		rec.CheckInDeviceID, rec.CheckInOffline,
		string(rec.Status), rec.CreatedAt)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			log.Printf("[ERROR] consistency: duplicate open record slipped past the lock (tenant=%s employee=%s)", rec.TenantID, rec.EmployeeULID)
			return NewConsistencyError("duplicate open record detected at persistence boundary")
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.RecordID = id
	return nil
}

func (s *Store) GetByULID(ctx context.Context, tenantID, ulid string) (*Record, error) {
	q := "SELECT " + RecordColumns + " FROM attendance_records WHERE tenant_id = ? AND record_ulid = ?"
	rec, err := ScanRecord(s.db.QueryRowContext(ctx, q, tenantID, ulid))
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError("record not found")
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetOpenByEmployee: open中のレコード。無ければ (nil, nil)。
func (s *Store) GetOpenByEmployee(ctx context.Context, tenantID, employeeULID string) (*Record, error) {
	q := "SELECT " + RecordColumns + ` FROM attendance_records
	WHERE tenant_id = ? AND employee_ulid = ? AND status = 'open' LIMIT 1`
	rec, err := ScanRecord(s.db.QueryRowContext(ctx, q, tenantID, employeeULID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateCheckOut: 退勤側の観測値・派生値・状態遷移を1文で書く。
// WHERE status='open' ガードにより途中状態は残らない。
func (s *Store) UpdateCheckOut(ctx context.Context, rec *Record) error {
	const q = `
	UPDATE attendance_records SET
	 check_out_at = ?, check_out_lat = ?, check_out_lng = ?,
	 check_out_within_geofence = ?, check_out_distance_m = ?,
	 check_out_device_id = ?, check_out_offline = ?,
	 break_minutes = ?, total_hours = ?, overtime_hours = ?,
	 is_suspicious = ?, suspicion_reason = ?,
	 status = ?, open_flag = NULL
	WHERE tenant_id = ? AND record_id = ? AND status = 'open'`
	res, err := s.db.ExecContext(ctx, q,
		rec.CheckOutAt, rec.CheckOutLat, rec.CheckOutLng,
		rec.CheckOutWithinGeofence, rec.CheckOutDistanceM,
		rec.CheckOutDeviceID, rec.CheckOutOffline,
		rec.BreakMinutes, rec.TotalHours, rec.OvertimeHours,
		rec.IsSuspicious, rec.SuspicionReason,
		string(rec.Status),
		rec.TenantID, rec.RecordID)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		log.Printf("[ERROR] consistency: check-out raced a concurrent transition (record=%s)", rec.RecordULID)
		return NewConsistencyError("record left open state mid check-out")
	}
	return nil
}

// UpdateReview: 承認/却下。allowedFrom 以外からの遷移は弾く。
func (s *Store) UpdateReview(ctx context.Context, rec *Record, allowedFrom []Status) error {
	placeholders := make([]string, len(allowedFrom))
	args := []any{string(rec.Status), rec.ApproverID, rec.ReviewedAt, rec.ReviewReason, rec.TenantID, rec.RecordID}
	fromArgs := make([]any, 0, len(allowedFrom))
	for i, st := range allowedFrom {
		placeholders[i] = "?"
		fromArgs = append(fromArgs, string(st))
	}
	q := `
	UPDATE attendance_records SET
	 status = ?, approver_id = ?, reviewed_at = ?, review_reason = ?
	WHERE tenant_id = ? AND record_id = ? AND status IN (` + strings.Join(placeholders, ",") + `)`
	res, err := s.db.ExecContext(ctx, q, append(args, fromArgs...)...)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return NewConsistencyError("record state changed during review")
	}
	return nil
}

// UpdateStatus: 状態のみの遷移（異議処理から使う）。遷移できた行数を返す。
func (s *Store) UpdateStatus(ctx context.Context, tenantID, ulid string, from []Status, to Status) (int64, error) {
	placeholders := make([]string, len(from))
	args := []any{string(to), tenantID, ulid}
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	q := `UPDATE attendance_records SET status = ?
	WHERE tenant_id = ? AND record_ulid = ? AND status IN (` + strings.Join(placeholders, ",") + `)`
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) SetClientValidated(ctx context.Context, tenantID, ulid string, at time.Time) (int64, error) {
	const q = `
	UPDATE attendance_records SET client_validated = 1, client_validated_at = ?
	WHERE tenant_id = ? AND record_ulid = ? AND status IN ('pending', 'approved')`
	res, err := s.db.ExecContext(ctx, q, at, tenantID, ulid)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountPendingContestations(ctx context.Context, tenantID, recordULID string) (int, error) {
	const q = `
	SELECT COUNT(*) FROM contestations
	WHERE tenant_id = ? AND record_ulid = ? AND status = 'pending'`
	var n int
	if err := s.db.QueryRowContext(ctx, q, tenantID, recordULID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListRecent: 不正検知用の直近履歴（新しい順）
func (s *Store) ListRecent(ctx context.Context, tenantID, employeeULID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = FraudHistoryLimit
	}
	q := "SELECT " + RecordColumns + ` FROM attendance_records
	WHERE tenant_id = ? AND employee_ulid = ?
	ORDER BY check_in_at DESC, record_id DESC
	LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, tenantID, employeeULID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := ScanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// List: 条件に応じて動的WHERE + LIMIT/OFFSET
func (s *Store) List(ctx context.Context, tenantID string, q ListQuery) ([]Record, int64, error) {
	var (
		buf    bytes.Buffer
		args   []any
		wheres []string
	)

	wheres = append(wheres, "tenant_id = ?")
	args = append(args, tenantID)
	if q.EmployeeULID != nil && *q.EmployeeULID != "" {
		wheres = append(wheres, "employee_ulid = ?")
		args = append(args, *q.EmployeeULID)
	}
	if q.SiteULID != nil && *q.SiteULID != "" {
		wheres = append(wheres, "site_ulid = ?")
		args = append(args, *q.SiteULID)
	}
	if q.Status != nil {
		wheres = append(wheres, "status = ?")
		args = append(args, string(*q.Status))
	}
	if q.From != nil {
		wheres = append(wheres, "check_in_at >= ?")
		args = append(args, *q.From)
	}
	if q.To != nil {
		wheres = append(wheres, "check_in_at < ?")
		args = append(args, *q.To)
	}

	where := " WHERE " + strings.Join(wheres, " AND ")

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	buf.WriteString("SELECT " + RecordColumns + " FROM attendance_records")
	buf.WriteString(where)
	buf.WriteString(" ORDER BY check_in_at DESC, record_id DESC")
	buf.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, q.Offset))

	rows, err := s.db.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := ScanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	cnt := "SELECT COUNT(*) FROM attendance_records" + where
	if err := s.db.QueryRowContext(ctx, cnt, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
