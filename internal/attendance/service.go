package attendance

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"GENBA-backend/internal/geofence"
	"GENBA-backend/internal/platform/keylock"
	"GENBA-backend/internal/registry"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// 現場マスタの読み取り面（registry.Store が満たす）
type SiteRegistry interface {
	GetSiteByULID(ctx context.Context, tenantID, ulid string) (*registry.Site, error)
}

// 従業員マスタの読み取り面（registry.Store が満たす）
type EmployeeRegistry interface {
	GetEmployeeByULID(ctx context.Context, tenantID, ulid string) (*registry.Employee, error)
}

// ===== Service本体 =====

type Service struct {
	store     RecordStore
	sites     SiteRegistry
	employees EmployeeRegistry
	locks     *keylock.KeyLock
	clock     Clock
	id        IDGen
	rules     []FraudRule
}

func NewService(db *sql.DB, reg *registry.Store, locks *keylock.KeyLock) *Service {
	return &Service{
		store:     NewStore(db),
		sites:     reg,
		employees: reg,
		locks:     locks,
		clock:     realClock{},
		id:        ulidGen{},
		rules:     DefaultFraudRules(),
	}
}

// CheckIn: 出勤打刻。従業員ごとに直列化し、open重複を拒否する。
func (s *Service) CheckIn(ctx context.Context, tenantID string, req CheckInRequest) (*RecordResponse, error) {
	if req.EmployeeULID == "" || req.SiteULID == "" {
		return nil, NewInvalidArgumentError("employee_ulid and site_ulid are required")
	}

	emp, err := s.employees.GetEmployeeByULID(ctx, tenantID, req.EmployeeULID)
	if err != nil {
		if isRegistryNotFound(err) {
			return nil, NewInvalidArgumentError("unknown employee")
		}
		return nil, NewInternalError("employee registry lookup failed")
	}
	if !emp.IsActive {
		return nil, NewInvalidArgumentError("employee is not active")
	}

	site, err := s.sites.GetSiteByULID(ctx, tenantID, req.SiteULID)
	if err != nil {
		if isRegistryNotFound(err) {
			return nil, NewInvalidArgumentError("unknown site")
		}
		return nil, NewInternalError("site registry lookup failed")
	}

	at := req.Time
	if at.IsZero() {
		at = s.clock.Now()
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(lockKey(tenantID, req.EmployeeULID))
	defer unlock()

	open, err := s.store.GetOpenByEmployee(ctx, tenantID, req.EmployeeULID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, NewDuplicateOpenRecordError()
	}

	rec := &Record{
		RecordULID:     idStr,
		TenantID:       tenantID,
		EmployeeULID:   req.EmployeeULID,
		SiteULID:       req.SiteULID,
		CheckInAt:      at.UTC(),
		CheckInOffline: req.IsOffline,
		Status:         StatusOpen,
		CreatedAt:      s.clock.Now(),
	}
	stampCheckInLocation(rec, site, req.Coordinate)
	if req.DeviceID != nil && *req.DeviceID != "" {
		rec.CheckInDeviceID.String = *req.DeviceID
		rec.CheckInDeviceID.Valid = true
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, err
	}
	resp := rec.toDTO()
	return &resp, nil
}

// CheckOut: 退勤打刻。派生値計算・ジオフェンス照合・不正検知を行い pending へ。
func (s *Service) CheckOut(ctx context.Context, tenantID, recordULID string, req CheckOutRequest) (*RecordResponse, error) {
	if req.BreakMinutes < 0 {
		return nil, NewInvalidArgumentError("break_minutes must be >= 0")
	}

	rec, err := s.store.GetByULID(ctx, tenantID, recordULID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(lockKey(tenantID, rec.EmployeeULID))
	defer unlock()

	// ロック獲得後に読み直す（獲得待ちの間に状態が動いている可能性がある）
	rec, err = s.store.GetByULID(ctx, tenantID, recordULID)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusOpen {
		return nil, NewNotOpenError()
	}

	at := req.Time
	if at.IsZero() {
		at = s.clock.Now()
	}
	at = at.UTC()
	if !at.After(rec.CheckInAt) {
		return nil, NewInvalidTimeOrderError()
	}

	site, err := s.sites.GetSiteByULID(ctx, tenantID, rec.SiteULID)
	if err != nil {
		return nil, NewInternalError("site registry lookup failed")
	}

	rec.CheckOutAt.Time = at
	rec.CheckOutAt.Valid = true
	rec.CheckOutOffline = req.IsOffline
	rec.BreakMinutes = req.BreakMinutes
	stampCheckOutLocation(rec, site, req.Coordinate)
	if req.DeviceID != nil && *req.DeviceID != "" {
		rec.CheckOutDeviceID.String = *req.DeviceID
		rec.CheckOutDeviceID.Valid = true
	}

	total, overtime := computeDerivedHours(rec.CheckInAt, at, req.BreakMinutes, site.StandardDailyHours)
	rec.TotalHours = sql.NullFloat64{Float64: total, Valid: true}
	rec.OvertimeHours = sql.NullFloat64{Float64: overtime, Valid: true}

	history, err := s.store.ListRecent(ctx, tenantID, rec.EmployeeULID, FraudHistoryLimit)
	if err != nil {
		return nil, err
	}
	reason, suspicious := EvaluateFraud(FraudInput{
		Record:                 rec,
		History:                history,
		MaxPlausibleDailyHours: site.MaxPlausibleDailyHours,
	}, s.rules)
	if err := applyFraud(rec, reason, suspicious); err != nil {
		return nil, err
	}

	rec.Status = StatusPending
	if err := s.store.UpdateCheckOut(ctx, rec); err != nil {
		return nil, err
	}
	resp := rec.toDTO()
	return &resp, nil
}

// Approve: 管理者承認。未解決の異議が残っていれば拒否。
func (s *Service) Approve(ctx context.Context, tenantID, recordULID, approverID string, req ReviewRequest) (*RecordResponse, error) {
	return s.review(ctx, tenantID, recordULID, approverID, StatusApproved, req)
}

// Reject: 却下。理由必須。
func (s *Service) Reject(ctx context.Context, tenantID, recordULID, approverID string, req ReviewRequest) (*RecordResponse, error) {
	if req.Reason == nil || *req.Reason == "" {
		return nil, NewInvalidArgumentError("reason is required for rejection")
	}
	return s.review(ctx, tenantID, recordULID, approverID, StatusRejected, req)
}

func (s *Service) review(ctx context.Context, tenantID, recordULID, approverID string, to Status, req ReviewRequest) (*RecordResponse, error) {
	rec, err := s.store.GetByULID(ctx, tenantID, recordULID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(lockKey(tenantID, rec.EmployeeULID))
	defer unlock()

	rec, err = s.store.GetByULID(ctx, tenantID, recordULID)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusPending && rec.Status != StatusContested {
		return nil, NewNotPendingError()
	}
	if !CanTransition(rec.Status, to) {
		return nil, NewNotPendingError()
	}

	// 承認・却下とも未解決異議の不在が前提。
	// 異議が残っている間の決着は異議解決の側で行う。
	n, err := s.store.CountPendingContestations(ctx, tenantID, recordULID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, NewOpenContestationError()
	}

	at := req.Time
	if at.IsZero() {
		at = s.clock.Now()
	}

	rec.Status = to
	rec.ApproverID = sql.NullString{String: approverID, Valid: approverID != ""}
	rec.ReviewedAt = sql.NullTime{Time: at.UTC(), Valid: true}
	if req.Reason != nil && *req.Reason != "" {
		rec.ReviewReason = sql.NullString{String: *req.Reason, Valid: true}
	}

	if err := s.store.UpdateReview(ctx, rec, []Status{StatusPending, StatusContested}); err != nil {
		return nil, err
	}
	resp := rec.toDTO()
	return &resp, nil
}

// ClientValidate: 顧客側の確認印。approved/pending のレコードにのみ押せる。
func (s *Service) ClientValidate(ctx context.Context, tenantID, recordULID string) (*RecordResponse, error) {
	rec, err := s.store.GetByULID(ctx, tenantID, recordULID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(lockKey(tenantID, rec.EmployeeULID))
	defer unlock()

	n, err := s.store.SetClientValidated(ctx, tenantID, recordULID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, NewNotPendingError()
	}
	return s.Get(ctx, tenantID, recordULID)
}

func (s *Service) Get(ctx context.Context, tenantID, recordULID string) (*RecordResponse, error) {
	rec, err := s.store.GetByULID(ctx, tenantID, recordULID)
	if err != nil {
		return nil, err
	}
	resp := rec.toDTO()
	return &resp, nil
}

func (s *Service) List(ctx context.Context, tenantID string, q ListQuery) ([]RecordResponse, int64, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	recs, total, err := s.store.List(ctx, tenantID, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]RecordResponse, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDTO())
	}
	return out, total, nil
}

// ===== helpers =====

func lockKey(tenantID, employeeULID string) string {
	return tenantID + "/" + employeeULID
}

// isRegistryNotFound: マスタの未登録と基盤エラーを区別する
func isRegistryNotFound(err error) bool {
	var de *registry.DomainError
	return errors.As(err, &de) && de.Code == registry.ErrCodeNotFound
}

// computeDerivedHours: 実働 = (退勤 - 出勤 - 休憩)、負にはしない。
// 残業 = max(0, 実働 - 所定)。
func computeDerivedHours(checkIn, checkOut time.Time, breakMinutes int, standardDailyHours float64) (total, overtime float64) {
	worked := checkOut.Sub(checkIn) - time.Duration(breakMinutes)*time.Minute
	if worked < 0 {
		worked = 0
	}
	total = worked.Hours()
	overtime = total - standardDailyHours
	if overtime < 0 {
		overtime = 0
	}
	return total, overtime
}

func stampCheckInLocation(rec *Record, site *registry.Site, coord *geofence.Coordinate) {
	res := geofence.Validate(siteCenter(site), site.RadiusMeters, coord)
	rec.CheckInWithinGeofence = res.WithinGeofence
	if coord != nil {
		rec.CheckInLat = sql.NullFloat64{Float64: coord.Latitude, Valid: true}
		rec.CheckInLng = sql.NullFloat64{Float64: coord.Longitude, Valid: true}
	}
	if res.DistanceMeters != nil {
		rec.CheckInDistanceM = sql.NullFloat64{Float64: *res.DistanceMeters, Valid: true}
	}
}

func stampCheckOutLocation(rec *Record, site *registry.Site, coord *geofence.Coordinate) {
	res := geofence.Validate(siteCenter(site), site.RadiusMeters, coord)
	rec.CheckOutWithinGeofence = res.WithinGeofence
	if coord != nil {
		rec.CheckOutLat = sql.NullFloat64{Float64: coord.Latitude, Valid: true}
		rec.CheckOutLng = sql.NullFloat64{Float64: coord.Longitude, Valid: true}
	}
	if res.DistanceMeters != nil {
		rec.CheckOutDistanceM = sql.NullFloat64{Float64: *res.DistanceMeters, Valid: true}
	}
}

func siteCenter(site *registry.Site) geofence.Coordinate {
	return geofence.Coordinate{Latitude: site.Latitude, Longitude: site.Longitude}
}
