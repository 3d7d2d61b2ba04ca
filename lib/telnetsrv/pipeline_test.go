package telnetsrv_test

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/uol/graphiteproxy/lib/graphite"
	"github.com/uol/graphiteproxy/lib/ledger"
	"github.com/uol/graphiteproxy/lib/rpc"
	"github.com/uol/graphiteproxy/lib/stats"
	"github.com/uol/graphiteproxy/lib/structs"
	"github.com/uol/graphiteproxy/lib/telnetsrv"
	"github.com/uol/graphiteproxy/lib/writer"
)

// storage - a writer service storing the points and acknowledging each one twice
type storage struct {
	mutex  sync.Mutex
	points []*rpc.SingleData
}

func (s *storage) WriteDataPointStream(stream rpc.WriteStreamServer) error {

	for {
		record, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		s.mutex.Lock()
		s.points = append(s.points, record)
		s.mutex.Unlock()

		for i := 0; i < 2; i++ {
			if err := stream.Send(&rpc.Ack{MessageID: record.MessageID}); err != nil {
				return err
			}
		}
	}
}

func (s *storage) stored() []*rpc.SingleData {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]*rpc.SingleData{}, s.points...)
}

type proxy struct {
	server  *telnetsrv.Server
	ledger  *ledger.Ledger
	storage *storage
}

func startProxy(t *testing.T) *proxy {

	lis := bufconn.Listen(1 << 20)

	st := &storage{}
	backend := grpc.NewServer()
	rpc.RegisterWriterServiceServer(backend, st)
	go backend.Serve(lis)
	t.Cleanup(backend.Stop)

	statsManager := stats.New(nil)
	pendingLedger := ledger.New(&structs.LedgerSettings{}, statsManager)

	client, err := writer.New(
		&structs.BackendSettings{Host: "passthrough:///bufnet"},
		pendingLedger,
		statsManager,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	require.NoError(t, client.Start())
	t.Cleanup(client.Close)

	decoder := graphite.New("metrics", client, pendingLedger, statsManager, true)

	server := telnetsrv.New(&structs.TelnetServerConfiguration{
		ServerName:  "graphite",
		Host:        "127.0.0.1",
		SilenceLogs: true,
	}, decoder, statsManager)
	require.NoError(t, server.Listen())
	t.Cleanup(func() { server.Shutdown() })

	return &proxy{
		server:  server,
		ledger:  pendingLedger,
		storage: st,
	}
}

func (p *proxy) dial(t *testing.T) net.Conn {

	conn, err := net.Dial("tcp", p.server.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func isClosedByPeer(conn net.Conn) bool {

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := bufio.NewReader(conn).ReadByte()

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return false
	}

	return err != nil
}

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func TestPointIsForwardedAndAcknowledged(t *testing.T) {

	p := startProxy(t)
	conn := p.dial(t)

	_, err := fmt.Fprint(conn, "servers.east.web01.cpu.load 42.5 1600000000\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(p.storage.stored()) == 1 }, waitFor, tick)

	point := p.storage.stored()[0].Point
	assert.Equal(t, "metrics", point.DBName)
	assert.Equal(t, "cpu", point.MeasurementName)
	assert.Equal(t, "load", point.ValueFieldName)
	assert.Equal(t, []string{"servers", "web01"}, point.Tags)
	assert.Equal(t, int64(1600000000000), point.Timestamp)
	assert.True(t, point.FP)
	assert.Equal(t, int64(math.Float64bits(42.5)), point.Value)

	assert.Eventually(t, func() bool { return p.ledger.Len() == 0 }, waitFor, tick, "duplicated acks evict the record once")
}

func TestShortPathIsDroppedAndConnectionStaysOpen(t *testing.T) {

	p := startProxy(t)
	conn := p.dial(t)

	_, err := fmt.Fprint(conn, "a.b 1 100\na.b.c 7 100\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(p.storage.stored()) == 1 }, waitFor, tick)

	point := p.storage.stored()[0].Point
	assert.Equal(t, "b", point.MeasurementName)
	assert.Equal(t, int64(7), point.Value)
	assert.False(t, point.FP)

	assert.Eventually(t, func() bool { return p.ledger.Len() == 0 }, waitFor, tick)
	assert.Equal(t, uint32(1), p.server.NumConnections())
}

func TestInvalidValueClosesConnection(t *testing.T) {

	p := startProxy(t)
	conn := p.dial(t)

	_, err := fmt.Fprint(conn, "a.b.c xyz 100\n")
	require.NoError(t, err)

	assert.True(t, isClosedByPeer(conn))
	assert.Empty(t, p.storage.stored())
	assert.Equal(t, 0, p.ledger.Len())

	other := p.dial(t)
	_, err = fmt.Fprint(other, "a.b.c 1 100\n")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(p.storage.stored()) == 1 }, waitFor, tick, "other connections are not affected")
}

func TestLinesOfOneConnectionKeepTheirOrder(t *testing.T) {

	p := startProxy(t)
	conn := p.dial(t)

	const numLines = 100

	for i := 0; i < numLines; i++ {
		_, err := fmt.Fprintf(conn, "servers.east.web01.cpu.load %d 1600000000\n", i)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(p.storage.stored()) == numLines }, waitFor, tick)

	for i, record := range p.storage.stored() {
		assert.Equal(t, int64(i), record.Point.Value)
	}

	assert.Eventually(t, func() bool { return p.ledger.Len() == 0 }, waitFor, tick)
}
