package payroll

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// 会計ソフト取り込み用のCSV出力。
// 取り込み先がCP932前提のため Shift_JIS で書き出す。

var exportHeader = []string{
	"従業員ID", "期間開始", "期間終了",
	"普通時間", "残業時間", "深夜時間",
	"有給日数", "病欠日数", "欠勤日数",
	"支給額", "状態", "備考",
}

// ExportCSV: 指定期間の給与行をCSV(Shift_JIS)にする。
func (s *Service) ExportCSV(ctx context.Context, tenantID string, start, end time.Time) ([]byte, error) {
	records, err := s.store.ListByPeriod(ctx, tenantID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	enc := japanese.ShiftJIS.NewEncoder()
	w := csv.NewWriter(transform.NewWriter(&b, enc))

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for i := range records {
		p := &records[i]
		amount := ""
		if p.TotalAmount.Valid {
			amount = strconv.FormatFloat(p.TotalAmount.Float64, 'f', 2, 64)
		}
		note := ""
		if p.AnomalyNote.Valid {
			note = p.AnomalyNote.String
		}
		row := []string{
			p.EmployeeULID,
			p.PeriodStart.Format("2006-01-02"),
			p.PeriodEnd.Format("2006-01-02"),
			strconv.FormatFloat(p.RegularHours, 'f', 2, 64),
			strconv.FormatFloat(p.OvertimeHours, 'f', 2, 64),
			strconv.FormatFloat(p.NightHours, 'f', 2, 64),
			strconv.FormatFloat(p.VacationDays, 'f', 2, 64),
			strconv.FormatFloat(p.SickDays, 'f', 2, 64),
			strconv.FormatFloat(p.UnpaidAbsenceDays, 'f', 2, 64),
			amount,
			string(p.Status),
			note,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
