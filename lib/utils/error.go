package utils

import (
	"errors"
	"net"
	"strings"

	"github.com/uol/graphiteproxy/lib/constants"
)

const defaultValue string = "unknown"

// IsConnectionClosedError - checks the error to check if the connection was closed
func IsConnectionClosedError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, net.ErrClosed) {
		return true
	}

	return strings.Contains(err.Error(), "use of closed network connection")
}

// ValidateExpectedValue - validates a expected value
func ValidateExpectedValue(value string) string {
	if value == constants.StringsEmpty {
		return defaultValue
	}

	return value
}
