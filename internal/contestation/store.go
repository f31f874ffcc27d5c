package contestation

import (
	"context"
	"database/sql"
	"errors"
	"log"

	mysql "github.com/go-sql-driver/mysql"

	"GENBA-backend/internal/attendance"
	"GENBA-backend/internal/platform/db"
)

// ContestationStore の各メソッドは業務単位で原子的。
// 異議の作成/解決とレコードの状態遷移は同一トランザクションで書く。
type ContestationStore interface {
	OpenWithRecord(ctx context.Context, c *Contestation) error
	GetByULID(ctx context.Context, tenantID, ulid string) (*Contestation, error)
	CountPendingByRecord(ctx context.Context, tenantID, recordULID string) (int, error)
	ResolveWithRecord(ctx context.Context, c *Contestation, recordTo attendance.Status) error
	ListByRecord(ctx context.Context, tenantID, recordULID string) ([]Contestation, error)
	List(ctx context.Context, tenantID string, status *Status) ([]Contestation, error)
}

type Store struct{ db *sql.DB }

func NewStore(sqldb *sql.DB) *Store { return &Store{db: sqldb} }

const columns = `
contestation_id, contestation_ulid, tenant_id, record_ulid, employee_ulid,
client_id, reason, severity, status, resolution_text, resolver_id, resolved_at, created_at`

func scanOne(row interface{ Scan(...any) error }) (*Contestation, error) {
	var c Contestation
	var sev, st string
	err := row.Scan(
		&c.ContestationID, &c.ContestationULID, &c.TenantID, &c.RecordULID, &c.EmployeeULID,
		&c.ClientID, &c.Reason, &sev, &st, &c.ResolutionText, &c.ResolverID, &c.ResolvedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Severity = Severity(sev)
	c.Status = Status(st)
	return &c, nil
}

// OpenWithRecord: 異議INSERT + レコード contested 遷移を1Txで。
// pending_flag 列には pending 中のみ 1 が入り、
// UNIQUE (tenant_id, record_ulid, pending_flag) が「openな異議は1件」の最後の砦。
func (s *Store) OpenWithRecord(ctx context.Context, c *Contestation) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		const ins = `
		INSERT INTO contestations
		(contestation_ulid, tenant_id, record_ulid, employee_ulid, client_id,
		 reason, severity, status, pending_flag, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', 1, ?)`
		res, err := tx.ExecContext(ctx, ins,
			c.ContestationULID, c.TenantID, c.RecordULID, c.EmployeeULID, c.ClientID,
			c.Reason, string(c.Severity), c.CreatedAt)
		if err != nil {
			var me *mysql.MySQLError
			if errors.As(err, &me) && me.Number == 1062 {
				log.Printf("[ERROR] consistency: duplicate pending contestation slipped past the lock (record=%s)", c.RecordULID)
				return NewConsistencyError("duplicate pending contestation detected at persistence boundary")
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		c.ContestationID = id

		const upd = `
		UPDATE attendance_records SET status = 'contested'
		WHERE tenant_id = ? AND record_ulid = ? AND status IN ('approved', 'pending')`
		r, err := tx.ExecContext(ctx, upd, c.TenantID, c.RecordULID)
		if err != nil {
			return err
		}
		if aff, _ := r.RowsAffected(); aff != 1 {
			log.Printf("[ERROR] consistency: record state moved between check and contest (record=%s)", c.RecordULID)
			return NewConsistencyError("record state changed while opening contestation")
		}
		return nil
	})
}

func (s *Store) GetByULID(ctx context.Context, tenantID, ulid string) (*Contestation, error) {
	q := "SELECT " + columns + " FROM contestations WHERE tenant_id = ? AND contestation_ulid = ?"
	c, err := scanOne(s.db.QueryRowContext(ctx, q, tenantID, ulid))
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError("contestation not found")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) CountPendingByRecord(ctx context.Context, tenantID, recordULID string) (int, error) {
	const q = `
	SELECT COUNT(*) FROM contestations
	WHERE tenant_id = ? AND record_ulid = ? AND status = 'pending'`
	var n int
	if err := s.db.QueryRowContext(ctx, q, tenantID, recordULID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ResolveWithRecord: 異議の確定とレコードの復帰遷移を1Txで。
// レコードは必ず contested から戻る。そうでなければ整合性破れ。
func (s *Store) ResolveWithRecord(ctx context.Context, c *Contestation, recordTo attendance.Status) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		const upd = `
		UPDATE contestations SET
		 status = ?, resolution_text = ?, resolver_id = ?, resolved_at = ?, pending_flag = NULL
		WHERE tenant_id = ? AND contestation_id = ? AND status = 'pending'`
		res, err := tx.ExecContext(ctx, upd,
			string(c.Status), c.ResolutionText, c.ResolverID, c.ResolvedAt,
			c.TenantID, c.ContestationID)
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			return NewNotPendingError()
		}

		const rupd = `
		UPDATE attendance_records SET status = ?
		WHERE tenant_id = ? AND record_ulid = ? AND status = 'contested'`
		r, err := tx.ExecContext(ctx, rupd, string(recordTo), c.TenantID, c.RecordULID)
		if err != nil {
			return err
		}
		if aff, _ := r.RowsAffected(); aff != 1 {
			log.Printf("[ERROR] consistency: contested record not found during resolve (record=%s)", c.RecordULID)
			return NewConsistencyError("record was not in contested state during resolution")
		}
		return nil
	})
}

// List: テナント内の異議一覧。status指定で絞り込み（未解決キューの取得に使う）。
func (s *Store) List(ctx context.Context, tenantID string, status *Status) ([]Contestation, error) {
	q := "SELECT " + columns + " FROM contestations WHERE tenant_id = ?"
	args := []any{tenantID}
	if status != nil {
		q += " AND status = ?"
		args = append(args, string(*status))
	}
	q += " ORDER BY created_at DESC, contestation_id DESC"
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contestation
	for rows.Next() {
		c, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) ListByRecord(ctx context.Context, tenantID, recordULID string) ([]Contestation, error) {
	q := "SELECT " + columns + ` FROM contestations
	WHERE tenant_id = ? AND record_ulid = ?
	ORDER BY created_at DESC, contestation_id DESC`
	rows, err := s.db.QueryContext(ctx, q, tenantID, recordULID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contestation
	for rows.Next() {
		c, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
