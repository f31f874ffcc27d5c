package payroll

import (
	"context"
	"database/sql"
	"time"

	"GENBA-backend/internal/attendance"
	"GENBA-backend/internal/platform/db"
	"GENBA-backend/internal/registry"
)

// SnapshotInput: 集計に必要な入力一式。単一スナップショットTx内で読む。
type SnapshotInput struct {
	Employee *registry.Employee
	Records  []attendance.Record
	Leaves   []registry.LeaveRequest
}

type PayrollStore interface {
	SnapshotInput(ctx context.Context, tenantID, employeeULID string, start, end time.Time) (*SnapshotInput, error)
	GetByPeriod(ctx context.Context, tenantID, employeeULID string, start, end time.Time) (*PayrollRecord, error)
	Upsert(ctx context.Context, rec *PayrollRecord) error
	GetByULID(ctx context.Context, tenantID, ulid string) (*PayrollRecord, error)
	UpdateStatus(ctx context.Context, tenantID, ulid string, from, to Status) (int64, error)
	ListByPeriod(ctx context.Context, tenantID string, start, end time.Time) ([]PayrollRecord, error)
}

type Store struct{ db *sql.DB }

func NewStore(sqldb *sql.DB) *Store { return &Store{db: sqldb} }

// SnapshotInput: 承認済みレコード・承認済み休暇・従業員マスタを
// REPEATABLE READ の読み取り専用Txでまとめて読む。
// 承認処理の途中状態を観測しないための境界。
func (s *Store) SnapshotInput(ctx context.Context, tenantID, employeeULID string, start, end time.Time) (*SnapshotInput, error) {
	var out SnapshotInput
	err := db.Snapshot(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		reg := registry.NewStore(tx)
		emp, err := reg.GetEmployeeByULID(ctx, tenantID, employeeULID)
		if err != nil {
			return err
		}
		out.Employee = emp

		q := "SELECT " + attendance.RecordColumns + ` FROM attendance_records
		WHERE tenant_id = ? AND employee_ulid = ? AND status = 'approved'
		  AND check_in_at >= ? AND check_in_at < ?
		ORDER BY check_in_at, record_id`
		rows, err := tx.QueryContext(ctx, q, tenantID, employeeULID, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := attendance.ScanRecord(rows)
			if err != nil {
				return err
			}
			out.Records = append(out.Records, *rec)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		leaves, err := reg.ListApprovedLeavesOverlapping(ctx, tenantID, employeeULID, start, end)
		if err != nil {
			return err
		}
		out.Leaves = leaves
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

const columns = `
payroll_id, payroll_ulid, tenant_id, employee_ulid, period_start, period_end,
regular_hours, overtime_hours, night_hours,
vacation_days, sick_days, unpaid_absence_days,
total_amount, status, anomaly_note, generated_at`

func scanOne(row interface{ Scan(...any) error }) (*PayrollRecord, error) {
	var p PayrollRecord
	var st string
	err := row.Scan(
		&p.PayrollID, &p.PayrollULID, &p.TenantID, &p.EmployeeULID, &p.PeriodStart, &p.PeriodEnd,
		&p.RegularHours, &p.OvertimeHours, &p.NightHours,
		&p.VacationDays, &p.SickDays, &p.UnpaidAbsenceDays,
		&p.TotalAmount, &st, &p.AnomalyNote, &p.GeneratedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = Status(st)
	return &p, nil
}

// GetByPeriod: 該当期間の行。無ければ (nil, nil)。
func (s *Store) GetByPeriod(ctx context.Context, tenantID, employeeULID string, start, end time.Time) (*PayrollRecord, error) {
	q := "SELECT " + columns + ` FROM payroll_records
	WHERE tenant_id = ? AND employee_ulid = ? AND period_start = ? AND period_end = ?`
	p, err := scanOne(s.db.QueryRowContext(ctx, q, tenantID, employeeULID, start, end))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Upsert: UNIQUE (tenant_id, employee_ulid, period_start, period_end) で
// INSERT または集計値の上書き。再実行は同じ行へ収束する。
func (s *Store) Upsert(ctx context.Context, rec *PayrollRecord) error {
	const q = `
	INSERT INTO payroll_records
	(payroll_ulid, tenant_id, employee_ulid, period_start, period_end,
	 regular_hours, overtime_hours, night_hours,
	 vacation_days, sick_days, unpaid_absence_days,
	 total_amount, status, anomaly_note, generated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
	 regular_hours = VALUES(regular_hours),
	 overtime_hours = VALUES(overtime_hours),
	 night_hours = VALUES(night_hours),
	 vacation_days = VALUES(vacation_days),
	 sick_days = VALUES(sick_days),
	 unpaid_absence_days = VALUES(unpaid_absence_days),
	 total_amount = VALUES(total_amount),
	 status = VALUES(status),
	 anomaly_note = VALUES(anomaly_note),
	 generated_at = VALUES(generated_at)`
	_, err := s.db.ExecContext(ctx, q,
		rec.PayrollULID, rec.TenantID, rec.EmployeeULID, rec.PeriodStart, rec.PeriodEnd,
		rec.RegularHours, rec.OvertimeHours, rec.NightHours,
		rec.VacationDays, rec.SickDays, rec.UnpaidAbsenceDays,
		rec.TotalAmount, string(rec.Status), rec.AnomalyNote, rec.GeneratedAt)
	return err
}

func (s *Store) GetByULID(ctx context.Context, tenantID, ulid string) (*PayrollRecord, error) {
	q := "SELECT " + columns + " FROM payroll_records WHERE tenant_id = ? AND payroll_ulid = ?"
	p, err := scanOne(s.db.QueryRowContext(ctx, q, tenantID, ulid))
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError("payroll record not found")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateStatus: from からの遷移のみ許すガード付き更新
func (s *Store) UpdateStatus(ctx context.Context, tenantID, ulid string, from, to Status) (int64, error) {
	const q = `
	UPDATE payroll_records SET status = ?
	WHERE tenant_id = ? AND payroll_ulid = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, string(to), tenantID, ulid, string(from))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ListByPeriod(ctx context.Context, tenantID string, start, end time.Time) ([]PayrollRecord, error) {
	q := "SELECT " + columns + ` FROM payroll_records
	WHERE tenant_id = ? AND period_start = ? AND period_end = ?
	ORDER BY employee_ulid`
	rows, err := s.db.QueryContext(ctx, q, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PayrollRecord
	for rows.Next() {
		p, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
