package attendance

import "fmt"

// 不正検知は退勤時に同期評価する純粋関数。
// フラグは人手レビュー向けの注記であり、状態遷移を止めることはない。

const (
	ReasonExcessiveDuration = "excessive-duration"
	ReasonGeofenceViolation = "geofence-violation"
	ReasonDeviceMismatch    = "device-mismatch"
	ReasonOverlappingRecord = "overlapping-record"
)

type FraudInput struct {
	Record *Record
	// 同一従業員の直近レコード（評価対象自身は含めない）
	History []Record
	// 現場の妥当上限労働時間（例: 16h）
	MaxPlausibleDailyHours float64
}

type FraudRule struct {
	Reason string
	Match  func(in FraudInput) bool
}

// DefaultFraudRules: 評価順に意味がある。先に一致した理由が採用される。
// 閾値調整はルール差し替えで行い、状態機械には触れない。
func DefaultFraudRules() []FraudRule {
	return []FraudRule{
		{
			Reason: ReasonExcessiveDuration,
			Match: func(in FraudInput) bool {
				return in.Record.TotalHours.Valid &&
					in.MaxPlausibleDailyHours > 0 &&
					in.Record.TotalHours.Float64 > in.MaxPlausibleDailyHours
			},
		},
		{
			Reason: ReasonGeofenceViolation,
			Match: func(in FraudInput) bool {
				// 座標なしは圏外扱いで登録されているので、この判定にそのまま乗る
				return !in.Record.CheckInWithinGeofence || !in.Record.CheckOutWithinGeofence
			},
		},
		{
			Reason: ReasonDeviceMismatch,
			Match: func(in FraudInput) bool {
				r := in.Record
				if !r.CheckInDeviceID.Valid || !r.CheckOutDeviceID.Valid {
					return false
				}
				if r.CheckInDeviceID.String == r.CheckOutDeviceID.String {
					return false
				}
				// オフライン同期が絡む場合は端末が替わり得るので不問
				return !r.CheckInOffline && !r.CheckOutOffline
			},
		},
		{
			Reason: ReasonOverlappingRecord,
			Match: func(in FraudInput) bool {
				r := in.Record
				if !r.CheckOutAt.Valid {
					return false
				}
				for i := range in.History {
					h := &in.History[i]
					if h.RecordULID == r.RecordULID || !h.CheckOutAt.Valid {
						continue
					}
					// [checkIn, checkOut) の区間交差
					if h.CheckInAt.Before(r.CheckOutAt.Time) && h.CheckOutAt.Time.After(r.CheckInAt) {
						return true
					}
				}
				return false
			},
		},
	}
}

// EvaluateFraud は最初に一致したルールの理由を返す。一致なしなら ("", false)。
// 同一入力に対して常に同一の結果を返す。
func EvaluateFraud(in FraudInput, rules []FraudRule) (reason string, suspicious bool) {
	if in.Record == nil {
		return "", false
	}
	for _, rule := range rules {
		if rule.Match(in) {
			return rule.Reason, true
		}
	}
	return "", false
}

// applyFraud はレコードに評価結果を書き込む。疑義ありなら理由必須の不変条件を守る。
func applyFraud(r *Record, reason string, suspicious bool) error {
	if suspicious && reason == "" {
		return NewInternalError(fmt.Sprintf("suspicious record %s without reason", r.RecordULID))
	}
	r.IsSuspicious = suspicious
	r.SuspicionReason.Valid = suspicious
	r.SuspicionReason.String = reason
	return nil
}
