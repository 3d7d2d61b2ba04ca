package telnetsrv

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pborman/uuid"
	"github.com/uol/logh"

	"github.com/uol/graphiteproxy/lib/constants"
	"github.com/uol/graphiteproxy/lib/stats"
	"github.com/uol/graphiteproxy/lib/structs"
	"github.com/uol/graphiteproxy/lib/utils"
)

//
// Implements a line oriented telnet server, one goroutine per connection.
// author: rnojiri
//

const (
	closeReasonEOF         string = "eof"
	closeReasonTimeout     string = "timeout"
	closeReasonLineTooLong string = "line_too_long"
	closeReasonInvalidLine string = "invalid_line"
	closeReasonShutdown    string = "shutdown"
	closeReasonMaxConns    string = "max_connections"
	closeReasonError       string = "error"

	initialBufferSize int = 4096
)

// Server - the telnet server struct
type Server struct {
	configuration  *structs.TelnetServerConfiguration
	listenAddress  string
	port           string
	listener       net.Listener
	handler        TelnetDataHandler
	stats          *stats.Manager
	logger         *logh.ContextualLogger
	numConnections uint32
	connections    map[string]net.Conn
	mutex          sync.Mutex
	wg             sync.WaitGroup
	terminate      uint32
}

// New - creates a new telnet server
func New(configuration *structs.TelnetServerConfiguration, handler TelnetDataHandler, statsManager *stats.Manager) *Server {

	return &Server{
		configuration: configuration,
		listenAddress: fmt.Sprintf("%s:%d", configuration.Host, configuration.Port),
		port:          strconv.Itoa(configuration.Port),
		handler:       handler,
		stats:         statsManager,
		logger:        logh.CreateContextualLogger(constants.StringsPKG, "telnetsrv", constants.StringsSource, handler.GetSourceType().Name),
		connections:   map[string]net.Conn{},
	}
}

const cFuncListen string = "Listen"

// Listen - starts to listen and to handle the incoming connections
func (server *Server) Listen() error {

	var err error
	server.listener, err = net.Listen("tcp", server.listenAddress)
	if err != nil {
		return err
	}

	if logh.InfoEnabled {
		server.logger.Info().Str(constants.StringsFunc, cFuncListen).Msgf("listening telnet connections at %q...", server.listener.Addr())
	}

	server.wg.Add(1)
	go server.acceptConnections()

	return nil
}

const cFuncAcceptConnections string = "acceptConnections"

// acceptConnections - the accept loop
func (server *Server) acceptConnections() {

	defer server.wg.Done()

	for {
		conn, err := server.listener.Accept()
		if err != nil {

			if atomic.LoadUint32(&server.terminate) == 1 || utils.IsConnectionClosedError(err) {
				if logh.InfoEnabled {
					server.logger.Info().Str(constants.StringsFunc, cFuncAcceptConnections).Msg("listener closed, no more connections will be accepted")
				}
				return
			}

			if logh.ErrorEnabled {
				server.logger.Error().Str(constants.StringsFunc, cFuncAcceptConnections).Err(err).Send()
			}

			time.Sleep(server.configuration.OnErrorTimeout.Duration)
			continue
		}

		current, reserved := server.reserveConnection()
		if !reserved {

			if logh.WarnEnabled {
				server.logger.Warn().Str(constants.StringsFunc, cFuncAcceptConnections).Msgf("maximum number of connections reached (%d), refusing %q", server.configuration.MaxConnections, conn.RemoteAddr())
			}

			conn.Close()
			server.stats.ConnectionClose(cFuncAcceptConnections, server.port, closeReasonMaxConns, current)
			continue
		}

		server.wg.Add(1)
		go server.handleConnection(conn, current)
	}
}

// reserveConnection - counts the connection before its handler starts, false if the limit is reached
func (server *Server) reserveConnection() (uint32, bool) {

	max := server.configuration.MaxConnections

	for {
		current := atomic.LoadUint32(&server.numConnections)
		if max > 0 && current >= max {
			return current, false
		}

		if atomic.CompareAndSwapUint32(&server.numConnections, current, current+1) {
			return current + 1, true
		}
	}
}

// releaseConnection - returns the slot taken by reserveConnection
func (server *Server) releaseConnection() uint32 {
	return atomic.AddUint32(&server.numConnections, ^uint32(0))
}

// register - adds the connection to the open connections, false if the server is stopping
func (server *Server) register(id string, conn net.Conn) bool {

	server.mutex.Lock()
	defer server.mutex.Unlock()

	if atomic.LoadUint32(&server.terminate) == 1 {
		return false
	}

	server.connections[id] = conn

	return true
}

func (server *Server) unregister(id string) {

	server.mutex.Lock()
	defer server.mutex.Unlock()

	delete(server.connections, id)
}

const cFuncHandleConnection string = "handleConnection"

// handleConnection - reads the lines of one connection until it is closed
func (server *Server) handleConnection(conn net.Conn, current uint32) {

	defer server.wg.Done()

	id := uuid.New()
	ip := remoteIP(conn)

	if !server.register(id, conn) {
		conn.Close()
		server.releaseConnection()
		return
	}

	server.stats.ConnectionOpen(cFuncHandleConnection, server.port, current)

	if !server.configuration.SilenceLogs && logh.DebugEnabled {
		server.logger.Debug().Str(constants.StringsFunc, cFuncHandleConnection).Str(constants.StringsConnID, id).Str(constants.StringsIP, ip).Msg("connection opened")
	}

	reason := server.readLines(conn, ip)

	server.unregister(id)
	conn.Close()

	current = server.releaseConnection()
	server.stats.ConnectionClose(cFuncHandleConnection, server.port, reason, current)

	if !server.configuration.SilenceLogs && logh.DebugEnabled {
		server.logger.Debug().Str(constants.StringsFunc, cFuncHandleConnection).Str(constants.StringsConnID, id).Str(constants.StringsIP, ip).Msgf("connection closed: %s", reason)
	}
}

// readLines - feeds the handler line by line, returns the reason to close the connection
func (server *Server) readLines(conn net.Conn, ip string) string {

	maxLineSize := server.configuration.MaxLineSize
	if maxLineSize <= 0 {
		maxLineSize = structs.DefaultMaxLineSize
	}

	bufferSize := initialBufferSize
	if bufferSize > maxLineSize {
		bufferSize = maxLineSize
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, bufferSize), maxLineSize)

	readTimeout := server.configuration.ReadTimeout.Duration

	for {
		if readTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(readTimeout))
		}

		if !scanner.Scan() {
			return server.closeReason(scanner.Err(), ip)
		}

		if !server.handler.Handle(scanner.Text(), ip) {
			return closeReasonInvalidLine
		}
	}
}

const cFuncCloseReason string = "closeReason"

func (server *Server) closeReason(err error, ip string) string {

	if err == nil {
		return closeReasonEOF
	}

	if atomic.LoadUint32(&server.terminate) == 1 {
		return closeReasonShutdown
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return closeReasonTimeout
	}

	if errors.Is(err, bufio.ErrTooLong) {
		if !server.configuration.SilenceLogs && logh.WarnEnabled {
			server.logger.Warn().Str(constants.StringsFunc, cFuncCloseReason).Str(constants.StringsIP, ip).Msgf("line exceeds %d bytes, closing connection", server.configuration.MaxLineSize)
		}
		return closeReasonLineTooLong
	}

	if utils.IsConnectionClosedError(err) {
		return closeReasonEOF
	}

	if !server.configuration.SilenceLogs && logh.ErrorEnabled {
		server.logger.Error().Str(constants.StringsFunc, cFuncCloseReason).Str(constants.StringsIP, ip).Err(err).Msg("error reading connection")
	}

	return closeReasonError
}

func remoteIP(conn net.Conn) string {

	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}

	return utils.ValidateExpectedValue(conn.RemoteAddr().String())
}

// Addr - returns the listening address
func (server *Server) Addr() net.Addr {
	return server.listener.Addr()
}

// GetName - returns the server name
func (server *Server) GetName() string {
	return server.configuration.ServerName
}

// NumConnections - returns the number of open connections
func (server *Server) NumConnections() uint32 {
	return atomic.LoadUint32(&server.numConnections)
}

const cFuncShutdown string = "Shutdown"

// Shutdown - stops listening and closes all open connections
func (server *Server) Shutdown() error {

	if !atomic.CompareAndSwapUint32(&server.terminate, 0, 1) {
		return nil
	}

	var err error
	if server.listener != nil {
		err = server.listener.Close()
		if err != nil && logh.ErrorEnabled {
			server.logger.Error().Str(constants.StringsFunc, cFuncShutdown).Err(err).Send()
		}
	}

	server.mutex.Lock()
	numOpen := len(server.connections)
	for _, conn := range server.connections {
		conn.Close()
	}
	server.mutex.Unlock()

	server.wg.Wait()

	if logh.InfoEnabled {
		server.logger.Info().Str(constants.StringsFunc, cFuncShutdown).Msgf("telnet server %q stopped, %d connections were closed", server.configuration.ServerName, numOpen)
	}

	return err
}
