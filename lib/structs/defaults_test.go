package structs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uol/logh"
)

func TestSetDefaults(t *testing.T) {

	s := Settings{}
	s.SetDefaults()

	assert.Equal(t, logh.INFO, s.Logs.Level)
	assert.Equal(t, "localhost", s.Backend.Host)
	assert.Equal(t, 9928, s.Backend.Port)
	assert.Equal(t, 2003, s.TelnetServer.Port)
	assert.Equal(t, DefaultHTTPPort, s.HTTPserver.Port)
	assert.Equal(t, DefaultQueueSize, s.Backend.AckBufferSize)
	assert.Equal(t, DefaultLedgerShards, s.Ledger.Shards)
	assert.Equal(t, time.Duration(0), s.Ledger.ExpirationInterval.Duration, "no ttl means no expiration loop")
}

func TestSetDefaultsKeepsValues(t *testing.T) {

	s := Settings{}
	s.Backend.Host = "sidewinder"
	s.Backend.Port = 1234
	s.Ledger.TTL.Duration = time.Minute
	s.SetDefaults()

	assert.Equal(t, "sidewinder", s.Backend.Host)
	assert.Equal(t, 1234, s.Backend.Port)
	assert.Equal(t, 30*time.Second, s.Ledger.ExpirationInterval.Duration)
}
