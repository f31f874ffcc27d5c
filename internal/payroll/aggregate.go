package payroll

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"GENBA-backend/internal/attendance"
	"GENBA-backend/internal/registry"
)

// 集計は純粋関数に寄せる。同一入力に対して常に同一の結果を返すこと。

// NightWindow は深夜帯（例 22:00〜06:00、日跨ぎ可）。分単位で保持。
type NightWindow struct {
	StartMinute int
	EndMinute   int
}

func ParseNightWindow(start, end string) (NightWindow, error) {
	s, err := parseHHMM(start)
	if err != nil {
		return NightWindow{}, err
	}
	e, err := parseHHMM(end)
	if err != nil {
		return NightWindow{}, err
	}
	return NightWindow{StartMinute: s, EndMinute: e}, nil
}

func parseHHMM(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid HH:MM value %q: %w", v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

type AggregateConfig struct {
	OvertimeMultiplier float64
	Night              NightWindow
}

type AggregateInput struct {
	// 期間内に出勤打刻のある承認済みレコードのみ
	Records []attendance.Record
	// 期間に重なる承認済み休暇
	Leaves []registry.LeaveRequest
	// 時給。未設定なら nil（金額は算出しない）
	HourlyRate *float64

	PeriodStart time.Time
	PeriodEnd   time.Time
}

type AggregateResult struct {
	RegularHours  float64
	OvertimeHours float64
	NightHours    float64

	VacationDays      float64
	SickDays          float64
	UnpaidAbsenceDays float64

	TotalAmount *float64

	// 承認済みレコード同士の時間重複など。空なら異常なし。
	AnomalyNote string
}

// Aggregate は承認済み勤怠と休暇から期間集計を行う。
// 重複区間を持つレコードは合算せず、集計から除外して異常として注記する。
// 勝手なマージはしない（人手での訂正待ち）。
func Aggregate(in AggregateInput, cfg AggregateConfig) AggregateResult {
	var res AggregateResult

	excluded := overlappingULIDs(in.Records)
	if len(excluded) > 0 {
		names := make([]string, 0, len(excluded))
		for _, r := range in.Records {
			if _, ok := excluded[r.RecordULID]; ok {
				names = append(names, r.RecordULID)
			}
		}
		res.AnomalyNote = "overlapping-records: " + strings.Join(names, ",")
	}

	for i := range in.Records {
		r := &in.Records[i]
		if _, ok := excluded[r.RecordULID]; ok {
			continue
		}
		if !r.TotalHours.Valid || !r.CheckOutAt.Valid {
			continue
		}
		total := r.TotalHours.Float64
		overtime := 0.0
		if r.OvertimeHours.Valid {
			overtime = r.OvertimeHours.Float64
		}
		res.RegularHours += total - overtime
		res.OvertimeHours += overtime
		res.NightHours += nightHours(r.CheckInAt, r.CheckOutAt.Time, cfg.Night)
	}

	for i := range in.Leaves {
		l := &in.Leaves[i]
		days := proratedLeaveDays(l, in.PeriodStart, in.PeriodEnd)
		switch l.Type {
		case registry.LeaveTypeVacation:
			res.VacationDays += days
		case registry.LeaveTypeSick:
			res.SickDays += days
		case registry.LeaveTypeUnpaid:
			res.UnpaidAbsenceDays += days
		}
	}

	res.RegularHours = round2(res.RegularHours)
	res.OvertimeHours = round2(res.OvertimeHours)
	res.NightHours = round2(res.NightHours)
	res.VacationDays = round2(res.VacationDays)
	res.SickDays = round2(res.SickDays)
	res.UnpaidAbsenceDays = round2(res.UnpaidAbsenceDays)

	if in.HourlyRate != nil {
		amount := res.RegularHours**in.HourlyRate + res.OvertimeHours**in.HourlyRate*cfg.OvertimeMultiplier
		amount = round2(amount)
		res.TotalAmount = &amount
	}
	return res
}

// overlappingULIDs: [checkIn, checkOut) が交差するレコードのULID集合
func overlappingULIDs(records []attendance.Record) map[string]struct{} {
	type span struct {
		ulid     string
		from, to time.Time
	}
	spans := make([]span, 0, len(records))
	for i := range records {
		r := &records[i]
		if !r.CheckOutAt.Valid {
			continue
		}
		spans = append(spans, span{ulid: r.RecordULID, from: r.CheckInAt, to: r.CheckOutAt.Time})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].from.Before(spans[j].from) })

	// 直前のスパンではなく走査済みの最遅終了時刻と比較する。
	// 長い1件が後続の複数件を覆うケースも取りこぼさない。
	out := make(map[string]struct{})
	var maxTo time.Time
	var maxOwner string
	for i, sp := range spans {
		if i > 0 && sp.from.Before(maxTo) {
			out[maxOwner] = struct{}{}
			out[sp.ulid] = struct{}{}
		}
		if i == 0 || sp.to.After(maxTo) {
			maxTo = sp.to
			maxOwner = sp.ulid
		}
	}
	return out
}

// nightHours: [in, out) と深夜帯の各出現との交差時間（時間単位）
func nightHours(in, out time.Time, w NightWindow) float64 {
	if !out.After(in) {
		return 0
	}

	var total time.Duration
	// 窓の出現は1日に1回。勤務開始前日から終了日までの各日についてみる。
	day := time.Date(in.Year(), in.Month(), in.Day(), 0, 0, 0, 0, in.Location()).AddDate(0, 0, -1)
	for !day.After(out) {
		ws := day.Add(time.Duration(w.StartMinute) * time.Minute)
		we := day.Add(time.Duration(w.EndMinute) * time.Minute)
		if w.EndMinute <= w.StartMinute {
			// 日跨ぎ（22:00→翌06:00）
			we = we.Add(24 * time.Hour)
		}
		from := maxTime(in, ws)
		to := minTime(out, we)
		if to.After(from) {
			total += to.Sub(from)
		}
		day = day.AddDate(0, 0, 1)
	}
	return total.Hours()
}

// proratedLeaveDays: 期間 [pStart, pEnd) と重なる日数の割合で daysCount を按分
func proratedLeaveDays(l *registry.LeaveRequest, pStart, pEnd time.Time) float64 {
	leaveDays := l.EndDate.Sub(l.StartDate).Hours()/24 + 1
	if leaveDays <= 0 {
		return 0
	}
	// 期間終端は排他的なので最終日は pEnd の前日
	from := maxTime(l.StartDate, pStart)
	to := minTime(l.EndDate, pEnd.AddDate(0, 0, -1))
	overlap := to.Sub(from).Hours()/24 + 1
	if overlap <= 0 {
		return 0
	}
	return l.DaysCount * overlap / leaveDays
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
