package payroll

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"GENBA-backend/internal/attendance"
	"GENBA-backend/internal/registry"
)

func testConfig() AggregateConfig {
	w, _ := ParseNightWindow("22:00", "06:00")
	return AggregateConfig{OvertimeMultiplier: 1.5, Night: w}
}

func approvedRecord(ulid string, in time.Time, hours, overtime float64) attendance.Record {
	return attendance.Record{
		RecordULID:    ulid,
		TenantID:      "tenant-a",
		EmployeeULID:  "emp-001",
		CheckInAt:     in,
		CheckOutAt:    sql.NullTime{Time: in.Add(time.Duration(hours * float64(time.Hour))), Valid: true},
		TotalHours:    sql.NullFloat64{Float64: hours, Valid: true},
		OvertimeHours: sql.NullFloat64{Float64: overtime, Valid: true},
		Status:        attendance.StatusApproved,
	}
}

func period() (time.Time, time.Time) {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
}

func TestAggregateBasic(t *testing.T) {
	start, end := period()
	rate := 2000.0
	in := AggregateInput{
		Records: []attendance.Record{
			approvedRecord("r1", time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), 8, 0),
			approvedRecord("r2", time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC), 10, 2),
		},
		HourlyRate:  &rate,
		PeriodStart: start,
		PeriodEnd:   end,
	}

	res := Aggregate(in, testConfig())
	if res.RegularHours != 16 {
		t.Fatalf("regular = %v, want 16", res.RegularHours)
	}
	if res.OvertimeHours != 2 {
		t.Fatalf("overtime = %v, want 2", res.OvertimeHours)
	}
	// 16h * 2000 + 2h * 2000 * 1.5 = 38000
	if res.TotalAmount == nil || *res.TotalAmount != 38000 {
		t.Fatalf("amount = %v, want 38000", res.TotalAmount)
	}
	if res.AnomalyNote != "" {
		t.Fatalf("unexpected anomaly note: %q", res.AnomalyNote)
	}
}

func TestAggregateNoRate(t *testing.T) {
	start, end := period()
	in := AggregateInput{
		Records:     []attendance.Record{approvedRecord("r1", time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), 8, 0)},
		PeriodStart: start,
		PeriodEnd:   end,
	}

	res := Aggregate(in, testConfig())
	if res.TotalAmount != nil {
		t.Fatalf("amount = %v, want nil without hourly rate", *res.TotalAmount)
	}
	if res.RegularHours != 8 {
		t.Fatalf("regular = %v, want 8", res.RegularHours)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	start, end := period()
	rate := 1800.0
	in := AggregateInput{
		Records: []attendance.Record{
			approvedRecord("r1", time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), 8.25, 0.25),
			approvedRecord("r2", time.Date(2025, 6, 5, 20, 0, 0, 0, time.UTC), 6, 0),
		},
		HourlyRate:  &rate,
		PeriodStart: start,
		PeriodEnd:   end,
	}

	first := Aggregate(in, testConfig())
	for i := 0; i < 5; i++ {
		got := Aggregate(in, testConfig())
		if got.RegularHours != first.RegularHours ||
			got.OvertimeHours != first.OvertimeHours ||
			got.NightHours != first.NightHours ||
			got.AnomalyNote != first.AnomalyNote ||
			*got.TotalAmount != *first.TotalAmount {
			t.Fatalf("aggregation not deterministic: %+v vs %+v", got, first)
		}
	}
}

// ===== 深夜時間 =====

func TestNightHours(t *testing.T) {
	w, err := ParseNightWindow("22:00", "06:00")
	if err != nil {
		t.Fatalf("ParseNightWindow failed: %v", err)
	}
	day := func(d, h, m int) time.Time {
		return time.Date(2025, 6, d, h, m, 0, 0, time.UTC)
	}
	cases := []struct {
		name    string
		in, out time.Time
		want    float64
	}{
		{"日中のみ", day(2, 8, 0), day(2, 17, 0), 0},
		{"夜勤（日跨ぎ）", day(2, 20, 0), day(3, 2, 0), 4},
		{"深夜帯に完全に収まる", day(2, 23, 0), day(3, 5, 0), 6},
		{"早朝側のみ", day(2, 4, 0), day(2, 9, 0), 2},
		{"開始ちょうど22時", day(2, 22, 0), day(3, 6, 0), 8},
		{"2晩にまたがる", day(2, 20, 0), day(4, 8, 0), 16},
		{"退勤が出勤以前", day(2, 8, 0), day(2, 8, 0), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := nightHours(tc.in, tc.out, w); got != tc.want {
				t.Fatalf("nightHours = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNightHoursNonWrappingWindow(t *testing.T) {
	w, err := ParseNightWindow("00:00", "05:00")
	if err != nil {
		t.Fatalf("ParseNightWindow failed: %v", err)
	}
	in := time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)
	out := time.Date(2025, 6, 3, 3, 0, 0, 0, time.UTC)
	if got := nightHours(in, out, w); got != 3 {
		t.Fatalf("nightHours = %v, want 3", got)
	}
}

func TestParseNightWindowInvalid(t *testing.T) {
	for _, v := range []string{"", "25:00", "22", "22:99"} {
		if _, err := ParseNightWindow(v, "06:00"); err == nil {
			t.Fatalf("expected error for %q", v)
		}
	}
}

// ===== 重複レコード =====

func TestAggregateOverlappingRecordsExcluded(t *testing.T) {
	start, end := period()
	rate := 2000.0
	// r1 と r2 が重複、r3 は単独
	in := AggregateInput{
		Records: []attendance.Record{
			approvedRecord("r1", time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), 8, 0),
			approvedRecord("r2", time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), 8, 0),
			approvedRecord("r3", time.Date(2025, 6, 4, 8, 0, 0, 0, time.UTC), 8, 0),
		},
		HourlyRate:  &rate,
		PeriodStart: start,
		PeriodEnd:   end,
	}

	res := Aggregate(in, testConfig())
	// 重複した2件は合算されず、正常な1件だけ残る
	if res.RegularHours != 8 {
		t.Fatalf("regular = %v, want 8 (overlapping records must be excluded)", res.RegularHours)
	}
	if !strings.HasPrefix(res.AnomalyNote, "overlapping-records: ") {
		t.Fatalf("anomaly note = %q", res.AnomalyNote)
	}
	if !strings.Contains(res.AnomalyNote, "r1") || !strings.Contains(res.AnomalyNote, "r2") {
		t.Fatalf("anomaly note must name both records: %q", res.AnomalyNote)
	}
	if strings.Contains(res.AnomalyNote, "r3") {
		t.Fatalf("clean record must not be flagged: %q", res.AnomalyNote)
	}
	if res.TotalAmount == nil || *res.TotalAmount != 16000 {
		t.Fatalf("amount = %v, want 16000", res.TotalAmount)
	}
}

// 長い1件が後続の複数件を覆うケース。直前との比較だけでは r3 を取りこぼす。
func TestAggregateOverlapCoveredByLongRecord(t *testing.T) {
	start, end := period()
	in := AggregateInput{
		Records: []attendance.Record{
			approvedRecord("r1", time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), 10, 2),
			approvedRecord("r2", time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), 1, 0),
			approvedRecord("r3", time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC), 1, 0),
		},
		PeriodStart: start,
		PeriodEnd:   end,
	}

	res := Aggregate(in, testConfig())
	for _, u := range []string{"r1", "r2", "r3"} {
		if !strings.Contains(res.AnomalyNote, u) {
			t.Fatalf("anomaly note must name %s: %q", u, res.AnomalyNote)
		}
	}
	if res.RegularHours != 0 || res.OvertimeHours != 0 {
		t.Fatalf("hours = (%v, %v), want (0, 0) with all records excluded",
			res.RegularHours, res.OvertimeHours)
	}
}

func TestAggregateAdjacentRecordsNotOverlapping(t *testing.T) {
	start, end := period()
	// r1 の退勤 == r2 の出勤。[in, out) なので重複ではない。
	in := AggregateInput{
		Records: []attendance.Record{
			approvedRecord("r1", time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), 4, 0),
			approvedRecord("r2", time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), 4, 0),
		},
		PeriodStart: start,
		PeriodEnd:   end,
	}

	res := Aggregate(in, testConfig())
	if res.AnomalyNote != "" {
		t.Fatalf("unexpected anomaly note: %q", res.AnomalyNote)
	}
	if res.RegularHours != 8 {
		t.Fatalf("regular = %v, want 8", res.RegularHours)
	}
}

// ===== 休暇按分 =====

func leave(typ string, startDay, endDay int, days float64) registry.LeaveRequest {
	return registry.LeaveRequest{
		TenantID:     "tenant-a",
		EmployeeULID: "emp-001",
		Type:         typ,
		StartDate:    time.Date(2025, 6, startDay, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 6, endDay, 0, 0, 0, 0, time.UTC),
		Status:       "approved",
		DaysCount:    days,
	}
}

func TestAggregateLeaveBuckets(t *testing.T) {
	start, end := period()
	in := AggregateInput{
		Leaves: []registry.LeaveRequest{
			leave(registry.LeaveTypeVacation, 2, 6, 5),
			leave(registry.LeaveTypeSick, 9, 9, 1),
			leave(registry.LeaveTypeUnpaid, 16, 17, 2),
		},
		PeriodStart: start,
		PeriodEnd:   end,
	}

	res := Aggregate(in, testConfig())
	if res.VacationDays != 5 {
		t.Fatalf("vacation = %v, want 5", res.VacationDays)
	}
	if res.SickDays != 1 {
		t.Fatalf("sick = %v, want 1", res.SickDays)
	}
	if res.UnpaidAbsenceDays != 2 {
		t.Fatalf("unpaid = %v, want 2", res.UnpaidAbsenceDays)
	}
}

func TestAggregateLeaveProration(t *testing.T) {
	start, end := period()
	// 5/27〜6/5 の10日休暇のうち、6月期間に入るのは 6/1〜6/5 の5日
	l := registry.LeaveRequest{
		Type:      registry.LeaveTypeVacation,
		StartDate: time.Date(2025, 5, 27, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		DaysCount: 10,
	}
	in := AggregateInput{Leaves: []registry.LeaveRequest{l}, PeriodStart: start, PeriodEnd: end}

	res := Aggregate(in, testConfig())
	if res.VacationDays != 5 {
		t.Fatalf("vacation = %v, want 5 (prorated)", res.VacationDays)
	}
}

func TestAggregateLeaveOutsidePeriod(t *testing.T) {
	start, end := period()
	l := registry.LeaveRequest{
		Type:      registry.LeaveTypeVacation,
		StartDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC),
		DaysCount: 3,
	}
	in := AggregateInput{Leaves: []registry.LeaveRequest{l}, PeriodStart: start, PeriodEnd: end}

	// 期間終端は排他的。7/1開始の休暇は6月期間に1日も入らない。
	res := Aggregate(in, testConfig())
	if res.VacationDays != 0 {
		t.Fatalf("vacation = %v, want 0", res.VacationDays)
	}
}

func TestAggregateRounding(t *testing.T) {
	start, end := period()
	rate := 1000.0
	in := AggregateInput{
		Records: []attendance.Record{
			approvedRecord("r1", time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), 8.333333, 0.333333),
		},
		HourlyRate:  &rate,
		PeriodStart: start,
		PeriodEnd:   end,
	}

	res := Aggregate(in, testConfig())
	if res.RegularHours != 8 {
		t.Fatalf("regular = %v, want 8.00", res.RegularHours)
	}
	if res.OvertimeHours != 0.33 {
		t.Fatalf("overtime = %v, want 0.33", res.OvertimeHours)
	}
}
