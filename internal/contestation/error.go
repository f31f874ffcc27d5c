package contestation

import "fmt"

type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

const (
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeInvalidArgument      = "INVALID_ARGUMENT"
	ErrCodeRecordNotApproved    = "RECORD_NOT_APPROVED"
	ErrCodeDuplicateContestation = "DUPLICATE_OPEN_CONTESTATION"
	ErrCodeNotPending           = "NOT_PENDING"
	ErrCodeConsistency          = "CONSISTENCY"
	ErrCodeInternal             = "INTERNAL"
)

func NewNotFoundError(msg string) error {
	return &DomainError{Code: ErrCodeNotFound, Message: msg}
}

func NewInvalidArgumentError(msg string) error {
	return &DomainError{Code: ErrCodeInvalidArgument, Message: msg}
}

func NewRecordNotApprovedError() error {
	return &DomainError{Code: ErrCodeRecordNotApproved, Message: "record is neither approved nor pending"}
}

func NewDuplicateContestationError() error {
	return &DomainError{Code: ErrCodeDuplicateContestation, Message: "an open contestation already exists for this record"}
}

func NewNotPendingError() error {
	return &DomainError{Code: ErrCodeNotPending, Message: "contestation is not pending"}
}

func NewConsistencyError(msg string) error {
	return &DomainError{Code: ErrCodeConsistency, Message: msg}
}

func NewInternalError(msg string) error {
	return &DomainError{Code: ErrCodeInternal, Message: msg}
}
