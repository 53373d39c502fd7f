// Package errs provides types and support related to web error functionality.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error represents an error in the system.
type Error struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
}

// New constructs an error based on an app error.
func New(code ErrCode, err error) *Error {
	return &Error{
		Code:    code,
		Message: err.Error(),
	}
}

// Newf constructs an error based on a error message.
func Newf(code ErrCode, format string, v ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, v...),
	}
}

// Errorf is an alias kept for call-site readability when the message is
// formatted inline.
func Errorf(code ErrCode, format string, v ...any) *Error {
	return Newf(code, format, v...)
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Encode implements the encoder interface.
func (e *Error) Encode() ([]byte, string, error) {
	type response struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}

	resp := response{
		Error:  e.Message,
		Status: e.HTTPStatus(),
	}

	if e.Code == InternalOnlyLog {
		resp.Error = "internal error"
	}

	data, err := json.Marshal(resp)
	return data, "application/json", err
}

// HTTPStatus implements the web package httpStatus interface so the web
// framework can use the correct http status.
func (e *Error) HTTPStatus() int {
	return httpStatus[e.Code.value]
}

// Equal provides support for the go-cmp package and testing.
func (e *Error) Equal(e2 *Error) bool {
	return e.Code == e2.Code && e.Message == e2.Message
}

// IsError tests the concrete error is of the Error type.
func IsError(err error) bool {
	var er *Error
	return errors.As(err, &er)
}

// GetError returns a copy of the Error pointer.
func GetError(err error) *Error {
	var er *Error
	if !errors.As(err, &er) {
		return &Error{}
	}

	return er
}
