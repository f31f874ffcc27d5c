package contestation

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"GENBA-backend/internal/attendance"
	"GENBA-backend/internal/platform/keylock"
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

// 勤怠レコードの読み取り面（attendance.Store が満たす）
type RecordReader interface {
	GetByULID(ctx context.Context, tenantID, ulid string) (*attendance.Record, error)
}

// ===== Service本体 =====

type Service struct {
	store   ContestationStore
	records RecordReader
	locks   *keylock.KeyLock
	clock   Clock
	id      IDGen
}

func NewService(sqldb *sql.DB, locks *keylock.KeyLock) *Service {
	return &Service{
		store:   NewStore(sqldb),
		records: attendance.NewStore(sqldb),
		locks:   locks,
		clock:   realClock{},
		id:      ulidGen{},
	}
}

// Open: 顧客が異議を立てる。approved / pending のレコードにのみ可。
// レコードは contested へ遷移する。
func (s *Service) Open(ctx context.Context, tenantID, clientID string, req OpenRequest) (*ContestationResponse, error) {
	if req.Reason == "" {
		return nil, NewInvalidArgumentError("reason is required")
	}
	if !req.Severity.Valid() {
		return nil, NewInvalidArgumentError("severity must be minor or significant")
	}

	rec, err := s.records.GetByULID(ctx, tenantID, req.RecordULID)
	if err != nil {
		return nil, NewNotFoundError("record not found")
	}

	unlock := s.locks.Lock(tenantID + "/" + rec.EmployeeULID)
	defer unlock()

	// ロック下で読み直してから判定
	rec, err = s.records.GetByULID(ctx, tenantID, req.RecordULID)
	if err != nil {
		return nil, NewNotFoundError("record not found")
	}
	if rec.Status != attendance.StatusApproved && rec.Status != attendance.StatusPending {
		return nil, NewRecordNotApprovedError()
	}

	n, err := s.store.CountPendingByRecord(ctx, tenantID, req.RecordULID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, NewDuplicateContestationError()
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, err
	}
	c := &Contestation{
		ContestationULID: idStr,
		TenantID:         tenantID,
		RecordULID:       req.RecordULID,
		EmployeeULID:     rec.EmployeeULID,
		ClientID:         clientID,
		Reason:           req.Reason,
		Severity:         req.Severity,
		Status:           StatusPending,
		CreatedAt:        s.clock.Now(),
	}
	if err := s.store.OpenWithRecord(ctx, c); err != nil {
		return nil, err
	}
	resp := c.toDTO()
	return &resp, nil
}

// Resolve: 管理者が異議を確定する。
// uphold（異議を認める）→ レコード rejected、reject（異議を退ける）→ レコード approved。
func (s *Service) Resolve(ctx context.Context, tenantID, resolverID, contestationULID string, req ResolveRequest) (*ContestationResponse, error) {
	if req.Outcome != OutcomeUphold && req.Outcome != OutcomeReject {
		return nil, NewInvalidArgumentError("outcome must be uphold or reject")
	}
	if req.ResolutionText == "" {
		return nil, NewInvalidArgumentError("resolution_text is required")
	}

	c, err := s.store.GetByULID(ctx, tenantID, contestationULID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(tenantID + "/" + c.EmployeeULID)
	defer unlock()

	c, err = s.store.GetByULID(ctx, tenantID, contestationULID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusPending {
		return nil, NewNotPendingError()
	}

	at := req.Time
	if at.IsZero() {
		at = s.clock.Now()
	}

	var recordTo attendance.Status
	if req.Outcome == OutcomeUphold {
		c.Status = StatusResolved
		recordTo = attendance.StatusRejected
	} else {
		c.Status = StatusRejected
		recordTo = attendance.StatusApproved
	}
	c.ResolutionText = sql.NullString{String: req.ResolutionText, Valid: true}
	c.ResolverID = sql.NullString{String: resolverID, Valid: resolverID != ""}
	c.ResolvedAt = sql.NullTime{Time: at.UTC(), Valid: true}

	if err := s.store.ResolveWithRecord(ctx, c, recordTo); err != nil {
		return nil, err
	}
	resp := c.toDTO()
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, tenantID, ulid string) (*ContestationResponse, error) {
	c, err := s.store.GetByULID(ctx, tenantID, ulid)
	if err != nil {
		return nil, err
	}
	resp := c.toDTO()
	return &resp, nil
}

func (s *Service) List(ctx context.Context, tenantID string, status *Status) ([]ContestationResponse, error) {
	if status != nil && *status != StatusPending && *status != StatusResolved && *status != StatusRejected {
		return nil, NewInvalidArgumentError("invalid status")
	}
	cs, err := s.store.List(ctx, tenantID, status)
	if err != nil {
		return nil, err
	}
	out := make([]ContestationResponse, 0, len(cs))
	for i := range cs {
		out = append(out, cs[i].toDTO())
	}
	return out, nil
}

func (s *Service) ListByRecord(ctx context.Context, tenantID, recordULID string) ([]ContestationResponse, error) {
	cs, err := s.store.ListByRecord(ctx, tenantID, recordULID)
	if err != nil {
		return nil, err
	}
	out := make([]ContestationResponse, 0, len(cs))
	for i := range cs {
		out = append(out, cs[i].toDTO())
	}
	return out, nil
}
