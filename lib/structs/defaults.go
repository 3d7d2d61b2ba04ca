package structs

import (
	"time"

	"github.com/uol/logh"
)

const (
	// DefaultBackendHost - the default backend host
	DefaultBackendHost string = "localhost"

	// DefaultBackendPort - the default backend grpc port
	DefaultBackendPort int = 9928

	// DefaultTelnetPort - the default graphite plaintext port
	DefaultTelnetPort int = 2003

	// DefaultHTTPPort - the default admin http port
	DefaultHTTPPort int = 8787

	// DefaultMaxLineSize - the default maximum line size in bytes
	DefaultMaxLineSize int = 64 * 1024

	// DefaultQueueSize - the default outbound queue size
	DefaultQueueSize int = 10000

	// DefaultLedgerShards - the default number of ledger shards
	DefaultLedgerShards int = 32
)

// SetDefaults - fills the unset values with the defaults
func (s *Settings) SetDefaults() {

	if s.Logs.Level == "" {
		s.Logs.Level = logh.INFO
	}

	if s.Logs.Format == "" {
		s.Logs.Format = logh.JSON
	}

	if s.Backend.Host == "" {
		s.Backend.Host = DefaultBackendHost
	}

	if s.Backend.Port == 0 {
		s.Backend.Port = DefaultBackendPort
	}

	if s.Backend.DialTimeout.Duration == 0 {
		s.Backend.DialTimeout.Duration = 5 * time.Second
	}

	if s.Backend.QueueSize <= 0 {
		s.Backend.QueueSize = DefaultQueueSize
	}

	if s.Backend.AckBufferSize <= 0 {
		s.Backend.AckBufferSize = s.Backend.QueueSize
	}

	if s.Backend.ReconnectInterval.Duration == 0 {
		s.Backend.ReconnectInterval.Duration = time.Second
	}

	if s.HTTPserver.Port == 0 {
		s.HTTPserver.Port = DefaultHTTPPort
	}

	if s.Ledger.Shards <= 0 {
		s.Ledger.Shards = DefaultLedgerShards
	}

	if s.Ledger.TTL.Duration > 0 && s.Ledger.ExpirationInterval.Duration == 0 {
		s.Ledger.ExpirationInterval.Duration = s.Ledger.TTL.Duration / 2
	}

	if s.TelnetServer.ServerName == "" {
		s.TelnetServer.ServerName = "graphite"
	}

	if s.TelnetServer.Port == 0 {
		s.TelnetServer.Port = DefaultTelnetPort
	}

	if s.TelnetServer.MaxLineSize <= 0 {
		s.TelnetServer.MaxLineSize = DefaultMaxLineSize
	}

	if s.TelnetServer.OnErrorTimeout.Duration == 0 {
		s.TelnetServer.OnErrorTimeout.Duration = 100 * time.Millisecond
	}
}
