package structs

import (
	"github.com/uol/funks"
	"github.com/uol/logh"
	tlmanager "github.com/uol/timelinemanager"
)

// LoggerSettings - the log configuration
type LoggerSettings struct {
	Level  logh.Level
	Format logh.Format
}

// SettingsHTTP - the admin http server configuration
type SettingsHTTP struct {
	Bind      string
	Port      int
	AllowCORS bool
}

// BackendSettings - the backend writer service configuration
type BackendSettings struct {
	Host              string
	Port              int
	DialTimeout       funks.Duration
	QueueSize         int
	AckBufferSize     int
	Compression       string
	Resubmit          bool
	ReconnectInterval funks.Duration
}

// LedgerSettings - the pending delivery ledger configuration
type LedgerSettings struct {
	Shards             int
	MaxSize            int
	TTL                funks.Duration
	ExpirationInterval funks.Duration
}

// TelnetServerConfiguration - the graphite telnet server configuration
type TelnetServerConfiguration struct {
	ServerName     string
	Host           string
	Port           int
	MaxConnections uint32
	MaxLineSize    int
	ReadTimeout    funks.Duration
	OnErrorTimeout funks.Duration
	SilenceLogs    bool
}

// Settings - all proxy settings
type Settings struct {
	Database     string
	Logs         LoggerSettings
	HTTPserver   SettingsHTTP
	Backend      BackendSettings
	Ledger       LedgerSettings
	TelnetServer TelnetServerConfiguration
	Stats        *tlmanager.Configuration
}
