package telnetsrv

import (
	"github.com/uol/graphiteproxy/lib/constants"
)

//
// Specifies a telnet data handler
// author: rnojiri
//

// TelnetDataHandler - handles the data from the telnet interface
type TelnetDataHandler interface {

	// Handle - handles one line, returns false if the connection must be closed
	Handle(line, ip string) bool

	// GetSourceType - returns the source type
	GetSourceType() *constants.SourceType
}
