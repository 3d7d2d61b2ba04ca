package graphite

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uol/graphiteproxy/lib/ledger"
	"github.com/uol/graphiteproxy/lib/rpc"
	"github.com/uol/graphiteproxy/lib/stats"
	"github.com/uol/graphiteproxy/lib/structs"
)

type fakeSender struct {
	mutex   sync.Mutex
	records []*rpc.SingleData
	err     error
}

func (s *fakeSender) Send(record *rpc.SingleData) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func (s *fakeSender) sent() []*rpc.SingleData {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]*rpc.SingleData{}, s.records...)
}

func newDecoder(sender Sender, settings structs.LedgerSettings) (*Decoder, *ledger.Ledger) {
	statsManager := stats.New(nil)
	l := ledger.New(&settings, statsManager)
	return New("metrics", sender, l, statsManager, false), l
}

func TestDecodeInsertsAndSends(t *testing.T) {

	sender := &fakeSender{}
	d, l := newDecoder(sender, structs.LedgerSettings{})

	require.True(t, d.Handle("servers.east.web01.cpu.load 42.5 1600000000", "127.0.0.1"))

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 1, l.Len())

	pending, ok := l.Get(sent[0].MessageID)
	require.True(t, ok)
	assert.Same(t, sent[0], pending)
	assert.Equal(t, "metrics", pending.Point.DBName)
	assert.Equal(t, []string{"servers", "web01"}, pending.Point.Tags)
}

func TestDecodeDroppedLineKeepsConnection(t *testing.T) {

	sender := &fakeSender{}
	d, l := newDecoder(sender, structs.LedgerSettings{})

	assert.True(t, d.Handle("a.b 1 100", "127.0.0.1"))
	assert.True(t, d.Handle("a.b.c 1", "127.0.0.1"))
	assert.True(t, d.Handle("", "127.0.0.1"))

	assert.Empty(t, sender.sent())
	assert.Equal(t, 0, l.Len())
}

func TestDecodeFatalLineClosesConnection(t *testing.T) {

	sender := &fakeSender{}
	d, l := newDecoder(sender, structs.LedgerSettings{})

	assert.False(t, d.Handle("a.b.c xyz 100", "127.0.0.1"))
	assert.False(t, d.Handle("a.b.c 1 yesterday", "127.0.0.1"))

	assert.Empty(t, sender.sent())
	assert.Equal(t, 0, l.Len())
}

func TestDecodeRollsBackWhenSendFails(t *testing.T) {

	sender := &fakeSender{err: errors.New("queue is full")}
	d, l := newDecoder(sender, structs.LedgerSettings{})

	gerr := d.Decode("a.b.c 1 100")
	require.NotNil(t, gerr)
	assert.Equal(t, errShed.ErrorCode(), gerr.ErrorCode())
	assert.True(t, errors.Is(gerr, sender.err))
	assert.Equal(t, 0, l.Len())

	assert.True(t, d.Handle("a.b.c 1 100", "127.0.0.1"), "shed lines keep the connection open")
}

func TestDecodeShedsWhenLedgerIsFull(t *testing.T) {

	sender := &fakeSender{}
	d, l := newDecoder(sender, structs.LedgerSettings{MaxSize: 1})

	require.Nil(t, d.Decode("a.b.c 1 100"))

	gerr := d.Decode("a.b.c 2 100")
	require.NotNil(t, gerr)
	assert.True(t, errors.Is(gerr, ledger.ErrLedgerFull))

	assert.Len(t, sender.sent(), 1)
	assert.Equal(t, 1, l.Len())
}

func TestDecodeUniqueIDs(t *testing.T) {

	sender := &fakeSender{}
	d, l := newDecoder(sender, structs.LedgerSettings{Shards: 4})

	const numGoroutines = 8
	const numLines = 250

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < numLines; j++ {
				assert.Nil(t, d.Decode("a.b.c 1 100"))
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, numGoroutines*numLines, l.Len())

	ids := map[int64]struct{}{}
	for _, r := range sender.sent() {
		ids[r.MessageID] = struct{}{}
	}
	assert.Len(t, ids, numGoroutines*numLines)
}

func TestIDGeneratorIsMonotonic(t *testing.T) {

	g := NewIDGenerator()

	first := g.Next()
	assert.Equal(t, first+1, g.Next())
}
