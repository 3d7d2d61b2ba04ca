package constants

//
// Defines all error code prefixes.
// @author: rnojiri
//

const (
	errorCodeTelnetGraphite string = "G"
)
