package constants

//
// Defines all available source types.
// @author: rnojiri
//

// SourceType - the type of the source
type SourceType struct {

	// Name - the source's name
	Name string

	// ErrorCodePrefix - the error code prefix for this error
	ErrorCodePrefix string
}

var (
	// SourceTypeTelnetGraphite - defines the source's data
	SourceTypeTelnetGraphite *SourceType = &SourceType{
		Name:            "telnet-graphite",
		ErrorCodePrefix: errorCodeTelnetGraphite,
	}
)
