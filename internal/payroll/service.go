package payroll

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

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

// ===== Service本体 =====

type Service struct {
	store PayrollStore
	cfg   AggregateConfig
	clock Clock
	id    IDGen
}

func NewService(sqldb *sql.DB, cfg AggregateConfig) *Service {
	return &Service{
		store: NewStore(sqldb),
		cfg:   cfg,
		clock: realClock{},
		id:    ulidGen{},
	}
}

// Generate: 期間集計。同じ入力に対しては何度実行しても同じ集計値へ収束する。
// paid 済みの行は force なしでは作り直せない。
func (s *Service) Generate(ctx context.Context, tenantID string, req GenerateRequest) (*PayrollResponse, error) {
	if req.EmployeeULID == "" {
		return nil, NewInvalidArgumentError("employee_ulid is required")
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, NewInvalidArgumentError("period_end must be after period_start")
	}
	start := req.PeriodStart.UTC()
	end := req.PeriodEnd.UTC()

	existing, err := s.store.GetByPeriod(ctx, tenantID, req.EmployeeULID, start, end)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == StatusPaid && !req.Force {
		return nil, NewPeriodAlreadyPaidError()
	}

	snap, err := s.store.SnapshotInput(ctx, tenantID, req.EmployeeULID, start, end)
	if err != nil {
		// 従業員マスタの未登録のみ NOT_FOUND。読み取り自体の失敗は区別する。
		var de *registry.DomainError
		if errors.As(err, &de) && de.Code == registry.ErrCodeNotFound {
			return nil, NewNotFoundError("employee not found")
		}
		return nil, NewInternalError("failed to read aggregation input")
	}

	var rate *float64
	if snap.Employee.HourlyRate.Valid {
		v := snap.Employee.HourlyRate.Float64
		rate = &v
	}

	agg := Aggregate(AggregateInput{
		Records:     snap.Records,
		Leaves:      snap.Leaves,
		HourlyRate:  rate,
		PeriodStart: start,
		PeriodEnd:   end,
	}, s.cfg)

	rec := &PayrollRecord{
		TenantID:          tenantID,
		EmployeeULID:      req.EmployeeULID,
		PeriodStart:       start,
		PeriodEnd:         end,
		RegularHours:      agg.RegularHours,
		OvertimeHours:     agg.OvertimeHours,
		NightHours:        agg.NightHours,
		VacationDays:      agg.VacationDays,
		SickDays:          agg.SickDays,
		UnpaidAbsenceDays: agg.UnpaidAbsenceDays,
		Status:            StatusPending,
		GeneratedAt:       s.clock.Now(),
	}
	if agg.TotalAmount != nil {
		rec.TotalAmount = sql.NullFloat64{Float64: *agg.TotalAmount, Valid: true}
	}
	if agg.AnomalyNote != "" {
		rec.AnomalyNote = sql.NullString{String: agg.AnomalyNote, Valid: true}
	}

	if existing != nil {
		// 既存行に収束させる（ULIDは据え置き）。
		rec.PayrollULID = existing.PayrollULID
		if existing.Status != StatusPaid {
			// 支払い前の行は再集計しても状態を保つ
			rec.Status = existing.Status
		}
		// paid + force は pending に巻き戻して再レビューさせる
	} else {
		idStr, err := s.id.New()
		if err != nil {
			return nil, err
		}
		rec.PayrollULID = idStr
	}

	if err := s.store.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	resp := rec.toDTO()
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, tenantID, ulid string) (*PayrollResponse, error) {
	p, err := s.store.GetByULID(ctx, tenantID, ulid)
	if err != nil {
		return nil, err
	}
	resp := p.toDTO()
	return &resp, nil
}

// MarkProcessing / MarkPaid: 支払い実行系からの状態通知。
// 遷移は pending→processing→paid の一方向のみ。
func (s *Service) MarkProcessing(ctx context.Context, tenantID, ulid string) (*PayrollResponse, error) {
	return s.transition(ctx, tenantID, ulid, StatusPending, StatusProcessing)
}

func (s *Service) MarkPaid(ctx context.Context, tenantID, ulid string) (*PayrollResponse, error) {
	return s.transition(ctx, tenantID, ulid, StatusProcessing, StatusPaid)
}

func (s *Service) transition(ctx context.Context, tenantID, ulid string, from, to Status) (*PayrollResponse, error) {
	if !CanTransition(from, to) {
		return nil, NewInvalidArgumentError("invalid status transition")
	}
	n, err := s.store.UpdateStatus(ctx, tenantID, ulid, from, to)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, NewConflictError("payroll record is not in the expected state")
	}
	return s.Get(ctx, tenantID, ulid)
}

func (s *Service) ListByPeriod(ctx context.Context, tenantID string, start, end time.Time) ([]PayrollResponse, error) {
	ps, err := s.store.ListByPeriod(ctx, tenantID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	out := make([]PayrollResponse, 0, len(ps))
	for i := range ps {
		out = append(out, ps[i].toDTO())
	}
	return out, nil
}
