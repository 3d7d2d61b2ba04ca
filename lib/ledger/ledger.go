package ledger

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uol/logh"

	"github.com/uol/graphiteproxy/lib/constants"
	"github.com/uol/graphiteproxy/lib/rpc"
	"github.com/uol/graphiteproxy/lib/stats"
	"github.com/uol/graphiteproxy/lib/structs"
)

//
// Keeps the points sent to the backend and not acknowledged yet.
// Inserts come from the telnet connections and removals from the ack loop,
// so the map is striped by message id to avoid a single lock.
// @author: rnojiri
//

type entry struct {
	record   *rpc.SingleData
	inserted int64
}

type shard struct {
	sync.RWMutex
	entries map[int64]entry
}

// Ledger - the pending delivery ledger
type Ledger struct {
	shards      []*shard
	numShards   uint64
	maxSize     int64
	size        int64
	ttl         time.Duration
	interval    time.Duration
	stats       *stats.Manager
	reportMutex sync.Mutex
	logger      *logh.ContextualLogger
	terminate   chan struct{}
	stopped     chan struct{}
	started     uint32
}

// New - creates a new ledger
func New(settings *structs.LedgerSettings, statsManager *stats.Manager) *Ledger {

	numShards := settings.Shards
	if numShards <= 0 {
		numShards = structs.DefaultLedgerShards
	}

	shards := make([]*shard, numShards)
	for i := 0; i < numShards; i++ {
		shards[i] = &shard{
			entries: map[int64]entry{},
		}
	}

	return &Ledger{
		shards:    shards,
		numShards: uint64(numShards),
		maxSize:   int64(settings.MaxSize),
		ttl:       settings.TTL.Duration,
		interval:  settings.ExpirationInterval.Duration,
		stats:     statsManager,
		logger:    logh.CreateContextualLogger(constants.StringsPKG, "ledger"),
		terminate: make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// reportSize - the size is read while holding the report lock, so the last report is never stale
func (l *Ledger) reportSize(caller string) {

	l.reportMutex.Lock()
	l.stats.LedgerSize(caller, l.Len())
	l.reportMutex.Unlock()
}

func (l *Ledger) shardOf(id int64) *shard {
	return l.shards[uint64(id)%l.numShards]
}

const cFuncInsert string = "Insert"

// Insert - adds a pending record
func (l *Ledger) Insert(record *rpc.SingleData) error {

	s := l.shardOf(record.MessageID)

	s.Lock()

	if _, exists := s.entries[record.MessageID]; exists {
		s.Unlock()
		return ErrDuplicatedID
	}

	size := atomic.AddInt64(&l.size, 1)
	if l.maxSize > 0 && size > l.maxSize {
		atomic.AddInt64(&l.size, -1)
		s.Unlock()
		return ErrLedgerFull
	}

	s.entries[record.MessageID] = entry{
		record:   record,
		inserted: time.Now().UnixNano(),
	}

	s.Unlock()

	l.reportSize(cFuncInsert)

	return nil
}

const cFuncRemove string = "Remove"

// Remove - removes the record, returns false if it was not pending
func (l *Ledger) Remove(id int64) bool {

	s := l.shardOf(id)

	s.Lock()

	if _, exists := s.entries[id]; !exists {
		s.Unlock()
		return false
	}

	delete(s.entries, id)
	atomic.AddInt64(&l.size, -1)

	s.Unlock()

	l.reportSize(cFuncRemove)

	return true
}

// Get - returns the pending record
func (l *Ledger) Get(id int64) (*rpc.SingleData, bool) {

	s := l.shardOf(id)

	s.RLock()
	e, ok := s.entries[id]
	s.RUnlock()

	return e.record, ok
}

// Len - returns the number of pending records
func (l *Ledger) Len() int {
	return int(atomic.LoadInt64(&l.size))
}

// Pending - returns a snapshot of all pending records ordered by message id
func (l *Ledger) Pending() []*rpc.SingleData {

	records := make([]*rpc.SingleData, 0, l.Len())

	for _, s := range l.shards {
		s.RLock()
		for _, e := range s.entries {
			records = append(records, e.record)
		}
		s.RUnlock()
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].MessageID < records[j].MessageID
	})

	return records
}

const cFuncExpire string = "Expire"

// Expire - removes the records inserted before the given time
func (l *Ledger) Expire(before time.Time) int {

	limit := before.UnixNano()
	removed := 0

	for _, s := range l.shards {
		s.Lock()
		for id, e := range s.entries {
			if e.inserted < limit {
				delete(s.entries, id)
				removed++
			}
		}
		s.Unlock()
	}

	if removed > 0 {
		atomic.AddInt64(&l.size, -int64(removed))
		l.stats.LedgerExpired(cFuncExpire, removed)
		l.reportSize(cFuncExpire)
	}

	return removed
}

const cFuncStart string = "Start"

// Start - starts the expiration loop when a ttl is configured
func (l *Ledger) Start() {

	if l.ttl <= 0 || l.interval <= 0 {
		if logh.InfoEnabled {
			l.logger.Info().Str(constants.StringsFunc, cFuncStart).Msg("no ttl configured, pending records never expire")
		}
		return
	}

	if !atomic.CompareAndSwapUint32(&l.started, 0, 1) {
		return
	}

	if logh.InfoEnabled {
		l.logger.Info().Str(constants.StringsFunc, cFuncStart).Msgf("pending records expire after %s (checked every %s)", l.ttl, l.interval)
	}

	go l.expirationLoop()
}

func (l *Ledger) expirationLoop() {

	defer close(l.stopped)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.terminate:
			return
		case now := <-ticker.C:
			removed := l.Expire(now.Add(-l.ttl))
			if removed > 0 && logh.WarnEnabled {
				l.logger.Warn().Str(constants.StringsFunc, cFuncExpire).Msgf("%d pending records expired without acknowledgment", removed)
			}
		}
	}
}

// Shutdown - stops the expiration loop, pending records are kept
func (l *Ledger) Shutdown() {

	if !atomic.CompareAndSwapUint32(&l.started, 1, 2) {
		return
	}

	close(l.terminate)
	<-l.stopped
}
