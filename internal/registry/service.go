package registry

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
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

// ===== Service本体 =====

const (
	DefaultStandardDailyHours     = 8.0
	DefaultMaxPlausibleDailyHours = 16.0
)

type Service struct {
	store *Store
	clock Clock
	id    IDGen
}

func NewService(db *sql.DB) *Service {
	return &Service{store: NewStore(db), clock: realClock{}, id: ulidGen{}}
}

// Registry は現場・従業員マスタの読み取り面。
// attendance / payroll からはこの面だけを見る。
func (s *Service) Registry() *Store { return s.store }

// ===== sites =====

func (s *Service) CreateSite(ctx context.Context, tenantID string, req CreateSiteRequest) (*SiteResponse, error) {
	if req.Name == "" {
		return nil, NewInvalidArgumentError("name is required")
	}
	if req.RadiusMeters <= 0 {
		return nil, NewInvalidArgumentError("radius_meters must be > 0")
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return nil, NewInvalidArgumentError("invalid coordinate")
	}
	if req.StandardDailyHours <= 0 {
		req.StandardDailyHours = DefaultStandardDailyHours
	}
	if req.MaxPlausibleDailyHours <= 0 {
		req.MaxPlausibleDailyHours = DefaultMaxPlausibleDailyHours
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, err
	}
	site := &Site{
		SiteULID:               idStr,
		TenantID:               tenantID,
		Name:                   req.Name,
		Latitude:               req.Latitude,
		Longitude:              req.Longitude,
		RadiusMeters:           req.RadiusMeters,
		StandardDailyHours:     req.StandardDailyHours,
		MaxPlausibleDailyHours: req.MaxPlausibleDailyHours,
		CreatedAt:              s.clock.Now(),
	}
	if err := s.store.InsertSite(ctx, site); err != nil {
		return nil, err
	}
	resp := site.toDTO()
	return &resp, nil
}

func (s *Service) GetSite(ctx context.Context, tenantID, ulid string) (*SiteResponse, error) {
	site, err := s.store.GetSiteByULID(ctx, tenantID, ulid)
	if err != nil {
		return nil, err
	}
	resp := site.toDTO()
	return &resp, nil
}

func (s *Service) UpdateSite(ctx context.Context, tenantID, ulid string, req UpdateSiteRequest) (*SiteResponse, error) {
	if req.RadiusMeters != nil && *req.RadiusMeters <= 0 {
		return nil, NewInvalidArgumentError("radius_meters must be > 0")
	}
	site, err := s.store.UpdateSiteByULID(ctx, tenantID, ulid, req)
	if err != nil {
		return nil, err
	}
	resp := site.toDTO()
	return &resp, nil
}

func (s *Service) ListSites(ctx context.Context, tenantID string) ([]SiteResponse, error) {
	sites, err := s.store.ListSites(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]SiteResponse, 0, len(sites))
	for i := range sites {
		out = append(out, sites[i].toDTO())
	}
	return out, nil
}

// ===== employees =====

func (s *Service) CreateEmployee(ctx context.Context, tenantID string, req CreateEmployeeRequest) (*EmployeeResponse, error) {
	if req.Name == "" {
		return nil, NewInvalidArgumentError("name is required")
	}
	if req.HourlyRate != nil && *req.HourlyRate < 0 {
		return nil, NewInvalidArgumentError("hourly_rate must be >= 0")
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, err
	}
	emp := &Employee{
		EmployeeULID: idStr,
		TenantID:     tenantID,
		Name:         req.Name,
		IsActive:     true,
		CreatedAt:    s.clock.Now(),
	}
	if req.HourlyRate != nil {
		emp.HourlyRate.Float64 = *req.HourlyRate
		emp.HourlyRate.Valid = true
	}
	if req.DeviceID != nil && *req.DeviceID != "" {
		emp.DeviceID.String = *req.DeviceID
		emp.DeviceID.Valid = true
	}
	if err := s.store.InsertEmployee(ctx, emp); err != nil {
		return nil, err
	}
	resp := emp.toDTO()
	return &resp, nil
}

func (s *Service) GetEmployee(ctx context.Context, tenantID, ulid string) (*EmployeeResponse, error) {
	emp, err := s.store.GetEmployeeByULID(ctx, tenantID, ulid)
	if err != nil {
		return nil, err
	}
	resp := emp.toDTO()
	return &resp, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, tenantID, ulid string, req UpdateEmployeeRequest) (*EmployeeResponse, error) {
	if req.HourlyRate != nil && *req.HourlyRate < 0 {
		return nil, NewInvalidArgumentError("hourly_rate must be >= 0")
	}
	emp, err := s.store.UpdateEmployeeByULID(ctx, tenantID, ulid, req)
	if err != nil {
		return nil, err
	}
	resp := emp.toDTO()
	return &resp, nil
}

func (s *Service) ListEmployees(ctx context.Context, tenantID string, activeOnly bool) ([]EmployeeResponse, error) {
	emps, err := s.store.ListEmployees(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]EmployeeResponse, 0, len(emps))
	for i := range emps {
		out = append(out, emps[i].toDTO())
	}
	return out, nil
}
