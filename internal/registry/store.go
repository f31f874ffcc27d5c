package registry

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type DBTX interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

type Store struct{ db DBTX }

func NewStore(db DBTX) *Store { return &Store{db: db} }

// ===== sites =====

func (s *Store) InsertSite(ctx context.Context, site *Site) error {
	const q = `
	INSERT INTO sites
	(site_ulid, tenant_id, name, latitude, longitude, radius_meters,
	 standard_daily_hours, max_plausible_daily_hours, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		site.SiteULID, site.TenantID, site.Name, site.Latitude, site.Longitude,
		site.RadiusMeters, site.StandardDailyHours, site.MaxPlausibleDailyHours, site.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	site.SiteID = id
	return nil
}

func (s *Store) GetSiteByULID(ctx context.Context, tenantID, ulid string) (*Site, error) {
	const q = `
	SELECT site_id, site_ulid, tenant_id, name, latitude, longitude, radius_meters,
	       standard_daily_hours, max_plausible_daily_hours, created_at
	FROM sites WHERE tenant_id = ? AND site_ulid = ?`
	var out Site
	err := s.db.QueryRowContext(ctx, q, tenantID, ulid).Scan(
		&out.SiteID, &out.SiteULID, &out.TenantID, &out.Name, &out.Latitude, &out.Longitude,
		&out.RadiusMeters, &out.StandardDailyHours, &out.MaxPlausibleDailyHours, &out.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError("site not found")
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpdateSiteByULID(ctx context.Context, tenantID, ulid string, in UpdateSiteRequest) (*Site, error) {
	// 動的アップデート
	sets := []string{}
	args := []any{}
	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *in.Name)
	}
	if in.Latitude != nil {
		sets = append(sets, "latitude = ?")
		args = append(args, *in.Latitude)
	}
	if in.Longitude != nil {
		sets = append(sets, "longitude = ?")
		args = append(args, *in.Longitude)
	}
	if in.RadiusMeters != nil {
		sets = append(sets, "radius_meters = ?")
		args = append(args, *in.RadiusMeters)
	}
	if in.StandardDailyHours != nil {
		sets = append(sets, "standard_daily_hours = ?")
		args = append(args, *in.StandardDailyHours)
	}
	if in.MaxPlausibleDailyHours != nil {
		sets = append(sets, "max_plausible_daily_hours = ?")
		args = append(args, *in.MaxPlausibleDailyHours)
	}
	if len(sets) == 0 {
		// 変更なしでも現行値を返す
		return s.GetSiteByULID(ctx, tenantID, ulid)
	}
	q := "UPDATE sites SET " + strings.Join(sets, ", ") + " WHERE tenant_id = ? AND site_ulid = ?"
	args = append(args, tenantID, ulid)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		// 同値更新でも affected=0 になり得るので存在確認に回す
		return s.GetSiteByULID(ctx, tenantID, ulid)
	}
	return s.GetSiteByULID(ctx, tenantID, ulid)
}

func (s *Store) ListSites(ctx context.Context, tenantID string) ([]Site, error) {
	const q = `
	SELECT site_id, site_ulid, tenant_id, name, latitude, longitude, radius_meters,
	       standard_daily_hours, max_plausible_daily_hours, created_at
	FROM sites WHERE tenant_id = ? ORDER BY site_id`
	rows, err := s.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Site
	for rows.Next() {
		var r Site
		if err := rows.Scan(&r.SiteID, &r.SiteULID, &r.TenantID, &r.Name, &r.Latitude, &r.Longitude,
			&r.RadiusMeters, &r.StandardDailyHours, &r.MaxPlausibleDailyHours, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ===== employees =====

func (s *Store) InsertEmployee(ctx context.Context, emp *Employee) error {
	const q = `
	INSERT INTO employees
	(employee_ulid, tenant_id, name, hourly_rate, device_id, is_active, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		emp.EmployeeULID, emp.TenantID, emp.Name, emp.HourlyRate, emp.DeviceID, emp.IsActive, emp.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	emp.EmployeeID = id
	return nil
}

func (s *Store) GetEmployeeByULID(ctx context.Context, tenantID, ulid string) (*Employee, error) {
	const q = `
	SELECT employee_id, employee_ulid, tenant_id, name, hourly_rate, device_id, is_active, created_at
	FROM employees WHERE tenant_id = ? AND employee_ulid = ?`
	var out Employee
	err := s.db.QueryRowContext(ctx, q, tenantID, ulid).Scan(
		&out.EmployeeID, &out.EmployeeULID, &out.TenantID, &out.Name,
		&out.HourlyRate, &out.DeviceID, &out.IsActive, &out.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError("employee not found")
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpdateEmployeeByULID(ctx context.Context, tenantID, ulid string, in UpdateEmployeeRequest) (*Employee, error) {
	sets := []string{}
	args := []any{}
	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *in.Name)
	}
	if in.HourlyRate != nil {
		sets = append(sets, "hourly_rate = ?")
		args = append(args, *in.HourlyRate)
	}
	if in.DeviceID != nil {
		sets = append(sets, "device_id = ?")
		args = append(args, *in.DeviceID)
	}
	if in.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *in.IsActive)
	}
	if len(sets) == 0 {
		return s.GetEmployeeByULID(ctx, tenantID, ulid)
	}
	q := "UPDATE employees SET " + strings.Join(sets, ", ") + " WHERE tenant_id = ? AND employee_ulid = ?"
	args = append(args, tenantID, ulid)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}
	return s.GetEmployeeByULID(ctx, tenantID, ulid)
}

func (s *Store) ListEmployees(ctx context.Context, tenantID string, activeOnly bool) ([]Employee, error) {
	q := `
	SELECT employee_id, employee_ulid, tenant_id, name, hourly_rate, device_id, is_active, created_at
	FROM employees WHERE tenant_id = ?`
	if activeOnly {
		q += " AND is_active = 1"
	}
	q += " ORDER BY employee_id"
	rows, err := s.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var r Employee
		if err := rows.Scan(&r.EmployeeID, &r.EmployeeULID, &r.TenantID, &r.Name,
			&r.HourlyRate, &r.DeviceID, &r.IsActive, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ===== leave requests（読み取り専用） =====

// ListApprovedLeavesOverlapping: 期間 [from, to) に重なる承認済み休暇
func (s *Store) ListApprovedLeavesOverlapping(ctx context.Context, tenantID, employeeULID string, from, to time.Time) ([]LeaveRequest, error) {
	const q = `
	SELECT leave_id, leave_ulid, tenant_id, employee_ulid, leave_type,
	       start_date, end_date, status, is_paid, days_count
	FROM leave_requests
	WHERE tenant_id = ? AND employee_ulid = ? AND status = 'approved'
	  AND start_date < ? AND end_date >= ?
	ORDER BY start_date, leave_id`
	rows, err := s.db.QueryContext(ctx, q, tenantID, employeeULID, to, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaveRequest
	for rows.Next() {
		var r LeaveRequest
		if err := rows.Scan(&r.LeaveID, &r.LeaveULID, &r.TenantID, &r.EmployeeULID, &r.Type,
			&r.StartDate, &r.EndDate, &r.Status, &r.IsPaid, &r.DaysCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
