package errs

import "net/http"

// ErrCode represents a code in the system.
type ErrCode struct {
	value int
}

// Value returns the integer value of the code.
func (ec ErrCode) Value() int {
	return ec.value
}

// String returns the string representation of the code.
func (ec ErrCode) String() string {
	return codeNames[ec.value]
}

// UnmarshalText implement the unmarshal interface for JSON conversions.
func (ec *ErrCode) UnmarshalText(data []byte) error {
	ec.value = codeNumbers[string(data)]
	return nil
}

// MarshalText implement the marshal interface for JSON conversions.
func (ec ErrCode) MarshalText() ([]byte, error) {
	return []byte(ec.String()), nil
}

// Equal provides support for the go-cmp package and testing.
func (ec ErrCode) Equal(ec2 ErrCode) bool {
	return ec.value == ec2.value
}

// Set of possible error codes.
var (
	OK                 = ErrCode{value: 0}
	Internal           = ErrCode{value: 1}
	InternalOnlyLog    = ErrCode{value: 2}
	InvalidArgument    = ErrCode{value: 3}
	Unauthenticated    = ErrCode{value: 4}
	PermissionDenied   = ErrCode{value: 5}
	NotFound           = ErrCode{value: 6}
	FailedPrecondition = ErrCode{value: 7}
	Aborted            = ErrCode{value: 8}
)

var codeNames = map[int]string{
	OK.value:                 "ok",
	Internal.value:           "internal",
	InternalOnlyLog.value:    "internal",
	InvalidArgument.value:    "invalid_argument",
	Unauthenticated.value:    "unauthenticated",
	PermissionDenied.value:   "permission_denied",
	NotFound.value:           "not_found",
	FailedPrecondition.value: "failed_precondition",
	Aborted.value:            "aborted",
}

var codeNumbers = map[string]int{
	"ok":                  OK.value,
	"internal":            Internal.value,
	"invalid_argument":    InvalidArgument.value,
	"unauthenticated":     Unauthenticated.value,
	"permission_denied":   PermissionDenied.value,
	"not_found":           NotFound.value,
	"failed_precondition": FailedPrecondition.value,
	"aborted":             Aborted.value,
}

var httpStatus = map[int]int{
	OK.value:                 http.StatusOK,
	Internal.value:           http.StatusInternalServerError,
	InternalOnlyLog.value:    http.StatusInternalServerError,
	InvalidArgument.value:    http.StatusBadRequest,
	Unauthenticated.value:    http.StatusUnauthorized,
	PermissionDenied.value:   http.StatusForbidden,
	NotFound.value:           http.StatusNotFound,
	FailedPrecondition.value: http.StatusConflict,
	Aborted.value:            http.StatusConflict,
}
