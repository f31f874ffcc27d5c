package payroll

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"GENBA-backend/internal/attendance"
	"GENBA-backend/internal/registry"
)

type fakePayrollStore struct {
	mu          sync.Mutex
	employee    *registry.Employee
	records     []attendance.Record
	leaves      []registry.LeaveRequest
	rows        map[string]*PayrollRecord // payroll_ulid -> row
	snapshotErr error
}

func periodKey(emp string, start, end time.Time) string {
	return fmt.Sprintf("%s/%d/%d", emp, start.Unix(), end.Unix())
}

func (f *fakePayrollStore) SnapshotInput(ctx context.Context, tenantID, employeeULID string, start, end time.Time) (*SnapshotInput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	if f.employee == nil || f.employee.EmployeeULID != employeeULID {
		return nil, registry.NewNotFoundError("employee not found")
	}
	return &SnapshotInput{Employee: f.employee, Records: f.records, Leaves: f.leaves}, nil
}

func (f *fakePayrollStore) GetByPeriod(ctx context.Context, tenantID, employeeULID string, start, end time.Time) (*PayrollRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := periodKey(employeeULID, start, end)
	for _, p := range f.rows {
		if p.TenantID == tenantID && periodKey(p.EmployeeULID, p.PeriodStart, p.PeriodEnd) == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePayrollStore) Upsert(ctx context.Context, rec *PayrollRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	if cur, ok := f.rows[rec.PayrollULID]; ok {
		cp.PayrollID = cur.PayrollID
	} else {
		cp.PayrollID = int64(len(f.rows) + 1)
	}
	f.rows[rec.PayrollULID] = &cp
	return nil
}

func (f *fakePayrollStore) GetByULID(ctx context.Context, tenantID, ulid string) (*PayrollRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[ulid]
	if !ok || p.TenantID != tenantID {
		return nil, NewNotFoundError("payroll record not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayrollStore) UpdateStatus(ctx context.Context, tenantID, ulid string, from, to Status) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[ulid]
	if !ok || p.TenantID != tenantID || p.Status != from {
		return 0, nil
	}
	p.Status = to
	return 1, nil
}

func (f *fakePayrollStore) ListByPeriod(ctx context.Context, tenantID string, start, end time.Time) ([]PayrollRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PayrollRecord
	for _, p := range f.rows {
		if p.TenantID == tenantID && p.PeriodStart.Equal(start) && p.PeriodEnd.Equal(end) {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) New() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("01PAYROLLULID%013d", g.n), nil
}

const (
	testTenant = "tenant-a"
	testEmp    = "emp-001"
)

func newFakePayrollStore() *fakePayrollStore {
	return &fakePayrollStore{
		employee: &registry.Employee{
			EmployeeULID: testEmp,
			TenantID:     testTenant,
			Name:         "山田太郎",
			HourlyRate:   sql.NullFloat64{Float64: 2000, Valid: true},
			IsActive:     true,
		},
		records: []attendance.Record{
			approvedRecord("r1", time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), 8, 0),
			approvedRecord("r2", time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC), 10, 2),
		},
		rows: make(map[string]*PayrollRecord),
	}
}

func newTestService(store *fakePayrollStore) *Service {
	return &Service{
		store: store,
		cfg:   testConfig(),
		clock: fixedClock{t: time.Date(2025, 7, 1, 3, 0, 0, 0, time.UTC)},
		id:    &seqIDGen{},
	}
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return de.Code
}

func generateReq() GenerateRequest {
	start, end := period()
	return GenerateRequest{EmployeeULID: testEmp, PeriodStart: start, PeriodEnd: end}
}

func TestGenerate(t *testing.T) {
	svc := newTestService(newFakePayrollStore())

	got, err := svc.Generate(context.Background(), testTenant, generateReq())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}
	if got.RegularHours != 16 || got.OvertimeHours != 2 {
		t.Fatalf("hours = (%v, %v), want (16, 2)", got.RegularHours, got.OvertimeHours)
	}
	if got.TotalAmount == nil || *got.TotalAmount != 38000 {
		t.Fatalf("amount = %v, want 38000", got.TotalAmount)
	}
}

// 同じ期間を再生成しても行は増えず、ULIDも変わらない
func TestGenerateIdempotent(t *testing.T) {
	store := newFakePayrollStore()
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.Generate(ctx, testTenant, generateReq())
	if err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}
	second, err := svc.Generate(ctx, testTenant, generateReq())
	if err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}
	if second.PayrollULID != first.PayrollULID {
		t.Fatalf("ulid changed across regeneration: %s -> %s", first.PayrollULID, second.PayrollULID)
	}
	if len(store.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(store.rows))
	}
	if second.RegularHours != first.RegularHours || second.OvertimeHours != first.OvertimeHours {
		t.Fatal("regeneration changed aggregate values on identical input")
	}
}

// 入力が変われば再生成で値が更新される
func TestGenerateRecomputes(t *testing.T) {
	store := newFakePayrollStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Generate(ctx, testTenant, generateReq()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	store.mu.Lock()
	store.records = append(store.records,
		approvedRecord("r3", time.Date(2025, 6, 4, 8, 0, 0, 0, time.UTC), 8, 0))
	store.mu.Unlock()

	got, err := svc.Generate(ctx, testTenant, generateReq())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got.RegularHours != 24 {
		t.Fatalf("regular = %v, want 24 after new approval", got.RegularHours)
	}
}

func TestGeneratePaidPeriod(t *testing.T) {
	store := newFakePayrollStore()
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.Generate(ctx, testTenant, generateReq())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := svc.MarkProcessing(ctx, testTenant, first.PayrollULID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if _, err := svc.MarkPaid(ctx, testTenant, first.PayrollULID); err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}

	_, err = svc.Generate(ctx, testTenant, generateReq())
	if err == nil {
		t.Fatal("expected error for paid period")
	}
	if code := errCode(t, err); code != ErrCodePeriodAlreadyPaid {
		t.Fatalf("code = %s, want %s", code, ErrCodePeriodAlreadyPaid)
	}

	// force 指定なら作り直せる。行は pending に戻り再レビュー対象になる。
	req := generateReq()
	req.Force = true
	got, err := svc.Generate(ctx, testTenant, req)
	if err != nil {
		t.Fatalf("forced Generate failed: %v", err)
	}
	if got.PayrollULID != first.PayrollULID {
		t.Fatalf("forced regeneration must keep the ulid: %s -> %s", first.PayrollULID, got.PayrollULID)
	}
	if got.Status != StatusPending {
		t.Fatalf("status = %s, want pending after forced regeneration", got.Status)
	}
}

func TestGenerateValidation(t *testing.T) {
	svc := newTestService(newFakePayrollStore())
	start, end := period()

	cases := []GenerateRequest{
		{PeriodStart: start, PeriodEnd: end},                              // 従業員なし
		{EmployeeULID: testEmp, PeriodStart: end, PeriodEnd: start},       // 期間が逆
		{EmployeeULID: testEmp, PeriodStart: start, PeriodEnd: start},     // 空期間
	}
	for _, req := range cases {
		_, err := svc.Generate(context.Background(), testTenant, req)
		if code := errCode(t, err); code != ErrCodeInvalidArgument {
			t.Fatalf("code = %s, want %s", code, ErrCodeInvalidArgument)
		}
	}
}

func TestGenerateUnknownEmployee(t *testing.T) {
	svc := newTestService(newFakePayrollStore())
	req := generateReq()
	req.EmployeeULID = "emp-999"

	_, err := svc.Generate(context.Background(), testTenant, req)
	if code := errCode(t, err); code != ErrCodeNotFound {
		t.Fatalf("code = %s, want %s", code, ErrCodeNotFound)
	}
}

// スナップショット読み取り自体の失敗は NOT_FOUND に化けない
func TestGenerateSnapshotReadFailure(t *testing.T) {
	store := newFakePayrollStore()
	store.snapshotErr = errors.New("driver: bad connection")
	svc := newTestService(store)

	_, err := svc.Generate(context.Background(), testTenant, generateReq())
	if code := errCode(t, err); code != ErrCodeInternal {
		t.Fatalf("code = %s, want %s", code, ErrCodeInternal)
	}
}

func TestGenerateNoRate(t *testing.T) {
	store := newFakePayrollStore()
	store.employee.HourlyRate = sql.NullFloat64{}
	svc := newTestService(store)

	got, err := svc.Generate(context.Background(), testTenant, generateReq())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	// 時給未設定なら時間数のみ。金額は出さない。
	if got.TotalAmount != nil {
		t.Fatalf("amount = %v, want nil", *got.TotalAmount)
	}
	if got.RegularHours != 16 {
		t.Fatalf("regular = %v, want 16", got.RegularHours)
	}
}

func TestGenerateAnomalyNote(t *testing.T) {
	store := newFakePayrollStore()
	store.records = []attendance.Record{
		approvedRecord("r1", time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), 8, 0),
		approvedRecord("r2", time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), 8, 0),
	}
	svc := newTestService(store)

	got, err := svc.Generate(context.Background(), testTenant, generateReq())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got.AnomalyNote == nil {
		t.Fatal("expected anomaly note for overlapping records")
	}
	if got.RegularHours != 0 {
		t.Fatalf("regular = %v, want 0 (both records excluded)", got.RegularHours)
	}
}

func TestStatusTransitions(t *testing.T) {
	store := newFakePayrollStore()
	svc := newTestService(store)
	ctx := context.Background()

	got, err := svc.Generate(ctx, testTenant, generateReq())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// pending から直接 paid にはできない
	_, err = svc.MarkPaid(ctx, testTenant, got.PayrollULID)
	if code := errCode(t, err); code != ErrCodeConflict {
		t.Fatalf("code = %s, want %s", code, ErrCodeConflict)
	}

	p, err := svc.MarkProcessing(ctx, testTenant, got.PayrollULID)
	if err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if p.Status != StatusProcessing {
		t.Fatalf("status = %s, want processing", p.Status)
	}

	p, err = svc.MarkPaid(ctx, testTenant, got.PayrollULID)
	if err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	if p.Status != StatusPaid {
		t.Fatalf("status = %s, want paid", p.Status)
	}

	// paid は終端
	if _, err := svc.MarkProcessing(ctx, testTenant, got.PayrollULID); err == nil {
		t.Fatal("expected error for transition out of paid")
	}
}
