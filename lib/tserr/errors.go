package tserr

import (
	"github.com/uol/gobol"
)

// NewErrorWithCode - creates a new error with a custom error code
func NewErrorWithCode(e error, msg, pkg, function string, httpCode int, errorCode string) gobol.Error {
	return customError{
		e,
		msg,
		pkg,
		function,
		httpCode,
		errorCode,
	}
}

// Wrap - creates a copy of the base error pointing to a new cause
func Wrap(base gobol.Error, cause error) gobol.Error {
	return customError{
		cause,
		base.Message(),
		base.Package(),
		base.Function(),
		base.StatusCode(),
		base.ErrorCode(),
	}
}

type customError struct {
	error
	msg       string
	pkg       string
	function  string
	httpCode  int
	errorCode string
}

func (e customError) Package() string {
	return e.pkg
}

func (e customError) Function() string {
	return e.function
}

func (e customError) Message() string {
	return e.msg
}

func (e customError) StatusCode() int {
	return e.httpCode
}

func (e customError) ErrorCode() string {
	return e.errorCode
}

func (e customError) Unwrap() error {
	return e.error
}
