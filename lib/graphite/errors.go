package graphite

import (
	"errors"
	"net/http"

	"github.com/uol/gobol"

	"github.com/uol/graphiteproxy/lib/constants"
	"github.com/uol/graphiteproxy/lib/tserr"
)

//
// Decoding errors of the graphite plaintext protocol.
// @author: rnojiri
//

const (
	cPackage    string = "graphite"
	cFuncParse  string = "Parse"
	cFuncDecode string = "Decode"
)

// newDecodeError - graphite error with the source error code prefix
func newDecodeError(function, message, code string) gobol.Error {
	return tserr.NewErrorWithCode(
		errors.New(message),
		message,
		cPackage,
		function,
		http.StatusBadRequest,
		constants.SourceTypeTelnetGraphite.ErrorCodePrefix+code,
	)
}

var (
	errInvalidFormat    = newDecodeError(cFuncParse, "line must have exactly three fields", "01")
	errInvalidPath      = newDecodeError(cFuncParse, "metric path must have at least three components", "02")
	errInvalidTimestamp = newDecodeError(cFuncParse, "invalid timestamp", "03")
	errInvalidValue     = newDecodeError(cFuncParse, "invalid value", "04")
	errShed             = newDecodeError(cFuncDecode, "point was not accepted for delivery", "05")
)

// dropReasons - the errors that drop the line and keep the connection open
var dropReasons = map[string]string{
	errInvalidFormat.ErrorCode(): "format",
	errInvalidPath.ErrorCode():   "path",
	errShed.ErrorCode():          "shed",
}

// fatalReasons - the errors that close the connection
var fatalReasons = map[string]string{
	errInvalidTimestamp.ErrorCode(): "timestamp",
	errInvalidValue.ErrorCode():     "value",
}

// IsDroppable - returns true if the line can be dropped keeping the connection open
func IsDroppable(gerr gobol.Error) bool {
	_, ok := dropReasons[gerr.ErrorCode()]
	return ok
}

// reason - returns a short name of the error for the statistics
func reason(gerr gobol.Error) string {

	if r, ok := dropReasons[gerr.ErrorCode()]; ok {
		return r
	}

	if r, ok := fatalReasons[gerr.ErrorCode()]; ok {
		return r
	}

	return "unknown"
}
