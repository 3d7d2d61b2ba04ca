package telnetsrv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uol/graphiteproxy/lib/constants"
	"github.com/uol/graphiteproxy/lib/stats"
	"github.com/uol/graphiteproxy/lib/structs"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

const fatalLine = "a.b.c xyz 100"

// lineCollector - stores every line and refuses the fatal one
type lineCollector struct {
	mutex sync.Mutex
	lines []string
}

func (h *lineCollector) Handle(line, ip string) bool {

	if line == fatalLine {
		return false
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.lines = append(h.lines, line)

	return true
}

func (h *lineCollector) GetSourceType() *constants.SourceType {
	return constants.SourceTypeTelnetGraphite
}

func (h *lineCollector) received() []string {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return append([]string{}, h.lines...)
}

func startServer(t *testing.T, conf structs.TelnetServerConfiguration) (*Server, *lineCollector) {

	conf.ServerName = "test"
	conf.Host = "127.0.0.1"
	conf.Port = 0
	conf.SilenceLogs = true

	handler := &lineCollector{}
	server := New(&conf, handler, stats.New(nil))
	require.NoError(t, server.Listen())

	t.Cleanup(func() { server.Shutdown() })

	return server, handler
}

func dial(t *testing.T, server *Server) net.Conn {

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })

	return conn
}

// waitClosed - returns true if the peer closed (or reset) the connection
func waitClosed(conn net.Conn) bool {
	return closedWithin(conn, waitFor)
}

func closedWithin(conn net.Conn, timeout time.Duration) bool {

	conn.SetReadDeadline(time.Now().Add(timeout))
	_, err := bufio.NewReader(conn).ReadByte()
	if err == io.EOF {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	return err != nil
}

func TestLinesAreHandledInOrder(t *testing.T) {

	server, handler := startServer(t, structs.TelnetServerConfiguration{})
	conn := dial(t, server)

	expected := make([]string, 50)
	for i := range expected {
		expected[i] = fmt.Sprintf("servers.east.web01.cpu.load %d 1600000000", i)
		_, err := fmt.Fprintf(conn, "%s\n", expected[i])
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return len(handler.received()) == len(expected) }, waitFor, tick)
	assert.Equal(t, expected, handler.received())
}

func TestDroppedLineKeepsConnectionOpen(t *testing.T) {

	server, handler := startServer(t, structs.TelnetServerConfiguration{})
	conn := dial(t, server)

	_, err := conn.Write([]byte("a.b 1 100\na.b.c 1 100\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(handler.received()) == 2 }, waitFor, tick)
	assert.Equal(t, uint32(1), server.NumConnections())
}

func TestFatalLineClosesConnection(t *testing.T) {

	server, handler := startServer(t, structs.TelnetServerConfiguration{})
	conn := dial(t, server)

	_, err := conn.Write([]byte(fatalLine + "\na.b.c 1 100\n"))
	require.NoError(t, err)

	assert.True(t, waitClosed(conn))
	assert.Empty(t, handler.received(), "lines after the fatal one are discarded")
	assert.Eventually(t, func() bool { return server.NumConnections() == 0 }, waitFor, tick)
}

func TestLineTooLongClosesConnection(t *testing.T) {

	server, _ := startServer(t, structs.TelnetServerConfiguration{MaxLineSize: 16})
	conn := dial(t, server)

	_, err := conn.Write([]byte("servers.east.web01.cpu.load 1 1600000000\n"))
	require.NoError(t, err)

	assert.True(t, waitClosed(conn))
}

func TestReadTimeoutClosesIdleConnection(t *testing.T) {

	conf := structs.TelnetServerConfiguration{}
	conf.ReadTimeout.Duration = 50 * time.Millisecond

	server, _ := startServer(t, conf)
	conn := dial(t, server)

	assert.True(t, waitClosed(conn))
	assert.Eventually(t, func() bool { return server.NumConnections() == 0 }, waitFor, tick)
}

func TestMaxConnections(t *testing.T) {

	server, _ := startServer(t, structs.TelnetServerConfiguration{MaxConnections: 1})

	dial(t, server)
	assert.Eventually(t, func() bool { return server.NumConnections() == 1 }, waitFor, tick)

	refused := dial(t, server)
	assert.True(t, waitClosed(refused))
	assert.Equal(t, uint32(1), server.NumConnections())
}

func TestMaxConnectionsOnBurst(t *testing.T) {

	const limit = 2
	const numConns = 6

	server, _ := startServer(t, structs.TelnetServerConfiguration{MaxConnections: limit})

	conns := make([]net.Conn, numConns)
	for i := range conns {
		conns[i] = dial(t, server)
	}

	var wg sync.WaitGroup
	closed := make([]bool, numConns)

	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			closed[i] = closedWithin(conns[i], 300*time.Millisecond)
		}(i)
	}

	wg.Wait()

	numClosed := 0
	for _, c := range closed {
		if c {
			numClosed++
		}
	}

	assert.Equal(t, numConns-limit, numClosed)
	assert.Equal(t, uint32(limit), server.NumConnections())
}

func TestShutdownClosesConnections(t *testing.T) {

	server, _ := startServer(t, structs.TelnetServerConfiguration{})

	first := dial(t, server)
	second := dial(t, server)
	assert.Eventually(t, func() bool { return server.NumConnections() == 2 }, waitFor, tick)

	require.NoError(t, server.Shutdown())

	assert.True(t, waitClosed(first))
	assert.True(t, waitClosed(second))
	assert.Equal(t, uint32(0), server.NumConnections())

	_, err := net.DialTimeout("tcp", server.Addr().String(), 100*time.Millisecond)
	assert.Error(t, err)
}

func TestShutdownTwice(t *testing.T) {

	server, _ := startServer(t, structs.TelnetServerConfiguration{})

	assert.NoError(t, server.Shutdown())
	assert.NoError(t, server.Shutdown())
}
