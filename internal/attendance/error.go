package attendance

import "fmt"

type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

const (
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeInvalidArgument       = "INVALID_ARGUMENT"
	ErrCodeDuplicateOpenRecord   = "DUPLICATE_OPEN_RECORD"
	ErrCodeNotOpen               = "NOT_OPEN"
	ErrCodeInvalidTimeOrder      = "INVALID_TIME_ORDER"
	ErrCodeNotPending            = "NOT_PENDING"
	ErrCodeOpenContestation      = "OPEN_CONTESTATION_EXISTS"
	ErrCodeConsistency           = "CONSISTENCY"
	ErrCodeInternal              = "INTERNAL"
)

func NewNotFoundError(msg string) error {
	return &DomainError{Code: ErrCodeNotFound, Message: msg}
}

func NewInvalidArgumentError(msg string) error {
	return &DomainError{Code: ErrCodeInvalidArgument, Message: msg}
}

func NewDuplicateOpenRecordError() error {
	return &DomainError{Code: ErrCodeDuplicateOpenRecord, Message: "employee already has an open record"}
}

func NewNotOpenError() error {
	return &DomainError{Code: ErrCodeNotOpen, Message: "record is not open"}
}

func NewInvalidTimeOrderError() error {
	return &DomainError{Code: ErrCodeInvalidTimeOrder, Message: "check-out time must be after check-in time"}
}

func NewNotPendingError() error {
	return &DomainError{Code: ErrCodeNotPending, Message: "record is not awaiting review"}
}

func NewOpenContestationError() error {
	return &DomainError{Code: ErrCodeOpenContestation, Message: "an unresolved contestation exists for this record"}
}

// NewConsistencyError: 永続層で不変条件の破れを検知した場合。
// 黙って整合し直すことはせず、ログに残して呼び出しを失敗させる。
func NewConsistencyError(msg string) error {
	return &DomainError{Code: ErrCodeConsistency, Message: msg}
}

func NewInternalError(msg string) error {
	return &DomainError{Code: ErrCodeInternal, Message: msg}
}
