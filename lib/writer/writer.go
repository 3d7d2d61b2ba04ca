package writer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uol/logh"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	// registers the gzip compressor as an alternative to snappy
	_ "google.golang.org/grpc/encoding/gzip"

	"github.com/uol/graphiteproxy/lib/constants"
	"github.com/uol/graphiteproxy/lib/ledger"
	"github.com/uol/graphiteproxy/lib/rpc"
	"github.com/uol/graphiteproxy/lib/stats"
	"github.com/uol/graphiteproxy/lib/structs"
)

//
// Implements the streaming client of the backend writer service.
// Points go through the outbound channel to a single sender goroutine,
// acknowledgments come back through the ack channel to the ledger.
// @author: rnojiri
//

const (
	stateRunning uint32 = iota
	stateReconnecting
	stateBroken
	stateCompleted
	stateClosed
)

// Client - the backend streaming writer client
type Client struct {
	settings  *structs.BackendSettings
	conn      *grpc.ClientConn
	ledger    *ledger.Ledger
	stats     *stats.Manager
	logger    *logh.ContextualLogger
	outbound  chan *rpc.SingleData
	acks      chan int64
	callOpts  []grpc.CallOption
	ctx       context.Context
	cancel    context.CancelFunc
	state     uint32
	started   uint32
	terminate chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New - creates the client and its connection (the stream is opened by Start)
func New(settings *structs.BackendSettings, pendingLedger *ledger.Ledger, statsManager *stats.Manager, dialOptions ...grpc.DialOption) (*Client, error) {

	callOpts := []grpc.CallOption{}

	if settings.Compression != constants.StringsEmpty {
		if encoding.GetCompressor(settings.Compression) == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCompressor, settings.Compression)
		}
		callOpts = append(callOpts, grpc.UseCompressor(settings.Compression))
	}

	dialOptions = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, dialOptions...)

	conn, err := grpc.NewClient(Target(settings), dialOptions...)
	if err != nil {
		return nil, err
	}

	queueSize := settings.QueueSize
	if queueSize <= 0 {
		queueSize = structs.DefaultQueueSize
	}

	ackBufferSize := settings.AckBufferSize
	if ackBufferSize <= 0 {
		ackBufferSize = queueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		settings:  settings,
		conn:      conn,
		ledger:    pendingLedger,
		stats:     statsManager,
		logger:    logh.CreateContextualLogger(constants.StringsPKG, "writer"),
		outbound:  make(chan *rpc.SingleData, queueSize),
		acks:      make(chan int64, ackBufferSize),
		callOpts:  callOpts,
		ctx:       ctx,
		cancel:    cancel,
		state:     stateRunning,
		terminate: make(chan struct{}),
	}, nil
}

// Target - returns the grpc target of the backend
func Target(settings *structs.BackendSettings) string {

	if strings.Contains(settings.Host, "://") {
		return settings.Host
	}

	return fmt.Sprintf("%s:%d", settings.Host, settings.Port)
}

const cFuncStart string = "Start"

// Start - opens the write stream and starts the sender and ack loops
func (c *Client) Start() error {

	if !atomic.CompareAndSwapUint32(&c.started, 0, 1) {
		return ErrAlreadyStarted
	}

	stream, cancel, err := c.openStream()
	if err != nil {
		return err
	}

	c.wg.Add(2)
	go c.run(stream, cancel)
	go c.ackLoop()

	if logh.InfoEnabled {
		c.logger.Info().Str(constants.StringsFunc, cFuncStart).Msgf("write stream opened: %s", Target(c.settings))
	}

	return nil
}

func (c *Client) openStream() (rpc.WriteStreamClient, context.CancelFunc, error) {

	ctx, cancel := context.WithCancel(c.ctx)

	stream, err := rpc.NewWriteStream(ctx, c.conn, c.callOpts...)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	return stream, cancel, nil
}

const cFuncSend string = "Send"

// Send - enqueues the record to be written, never blocks
func (c *Client) Send(record *rpc.SingleData) error {

	switch atomic.LoadUint32(&c.state) {
	case stateClosed:
		return ErrClientClosed
	case stateCompleted:
		return ErrStreamCompleted
	case stateBroken:
		c.stats.PointDiscarded(cFuncSend)
		return nil
	case stateReconnecting:
		// the record is in the ledger and goes out with the resubmission
		return nil
	}

	select {
	case c.outbound <- record:
		return nil
	default:
		return ErrQueueFull
	}
}

const cFuncOnAck string = "OnAck"

// OnAck - evicts the acknowledged record from the ledger, unknown ids are ignored
func (c *Client) OnAck(messageID int64) {

	if c.ledger.Remove(messageID) {
		c.stats.Ack(cFuncOnAck)
		return
	}

	c.stats.StaleAck(cFuncOnAck)

	if logh.DebugEnabled {
		c.logger.Debug().Str(constants.StringsFunc, cFuncOnAck).Msgf("ack for unknown message id: %d", messageID)
	}
}

// run - owns the stream: only this goroutine sends
func (c *Client) run(stream rpc.WriteStreamClient, cancel context.CancelFunc) {

	defer c.wg.Done()

	var resubmitted map[int64]struct{}

	for {
		err := c.serve(stream, resubmitted)
		cancel()

		if c.isClosed() {
			return
		}

		var changed bool
		if err == nil {
			changed = c.onComplete()
		} else {
			changed = c.onError(err)
		}

		if !changed || !c.settings.Resubmit {
			return
		}

		stream, cancel, resubmitted = c.reconnect()
		if stream == nil {
			return
		}
	}
}

const cFuncServe string = "serve"

// serve - writes the outbound records until the stream ends, returns nil on a clean remote close;
// queued records already written by the resubmission are skipped
func (c *Client) serve(stream rpc.WriteStreamClient, resubmitted map[int64]struct{}) error {

	recvErr := make(chan error, 1)
	go c.receive(stream, recvErr)

	for {
		select {
		case <-c.terminate:
			c.flush(stream, resubmitted)
			if err := stream.CloseSend(); err != nil && logh.ErrorEnabled {
				c.logger.Error().Str(constants.StringsFunc, cFuncServe).Err(err).Msg("error closing the write stream")
			}
			return nil

		case err := <-recvErr:
			return err

		case record := <-c.outbound:
			if skip(resubmitted, record.MessageID) {
				continue
			}
			if err := stream.Send(record); err != nil {
				if err == io.EOF {
					return <-recvErr
				}
				return err
			}
			c.stats.PointSent(cFuncServe)
		}
	}
}

// flush - writes what is still queued before the stream is half closed
func (c *Client) flush(stream rpc.WriteStreamClient, resubmitted map[int64]struct{}) {

	for {
		select {
		case record := <-c.outbound:
			if skip(resubmitted, record.MessageID) {
				continue
			}
			if err := stream.Send(record); err != nil {
				return
			}
			c.stats.PointSent(cFuncServe)
		default:
			return
		}
	}
}

// skip - true once for each id written by the resubmission
func skip(resubmitted map[int64]struct{}, id int64) bool {

	if _, ok := resubmitted[id]; ok {
		delete(resubmitted, id)
		return true
	}

	return false
}

// receive - reads the acknowledgments and forwards them to the ack channel
func (c *Client) receive(stream rpc.WriteStreamClient, errs chan<- error) {

	for {
		ack, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				errs <- nil
			} else {
				errs <- err
			}
			return
		}

		select {
		case c.acks <- ack.MessageID:
		case <-c.terminate:
			return
		}
	}
}

// ackLoop - evicts the acknowledged records
func (c *Client) ackLoop() {

	defer c.wg.Done()

	for {
		select {
		case id := <-c.acks:
			c.OnAck(id)
		case <-c.terminate:
			for {
				select {
				case id := <-c.acks:
					c.OnAck(id)
				default:
					return
				}
			}
		}
	}
}

const cFuncOnError string = "onError"

// onError - the stream failed, returns false if the client was closed meanwhile
func (c *Client) onError(err error) bool {

	c.stats.StreamError(cFuncOnError)

	if c.settings.Resubmit {
		if !atomic.CompareAndSwapUint32(&c.state, stateRunning, stateReconnecting) {
			return false
		}
		if logh.ErrorEnabled {
			c.logger.Error().Str(constants.StringsFunc, cFuncOnError).Err(err).Msgf("write stream failed, reconnecting in %s", c.settings.ReconnectInterval.Duration)
		}
		return true
	}

	if !atomic.CompareAndSwapUint32(&c.state, stateRunning, stateBroken) {
		return false
	}

	discarded := c.discardOutbound()

	if logh.ErrorEnabled {
		c.logger.Error().Str(constants.StringsFunc, cFuncOnError).Err(err).Msgf("write stream failed, %d pending records will not be delivered", c.ledger.Len()+discarded)
	}

	return true
}

const cFuncOnComplete string = "onComplete"

// onComplete - the backend closed the stream, returns false if the client was closed meanwhile
func (c *Client) onComplete() bool {

	if c.settings.Resubmit {
		if !atomic.CompareAndSwapUint32(&c.state, stateRunning, stateReconnecting) {
			return false
		}
		if logh.WarnEnabled {
			c.logger.Warn().Str(constants.StringsFunc, cFuncOnComplete).Msg("write stream closed by the backend, reconnecting")
		}
		return true
	}

	if !atomic.CompareAndSwapUint32(&c.state, stateRunning, stateCompleted) {
		return false
	}

	c.discardOutbound()

	if logh.WarnEnabled {
		c.logger.Warn().Str(constants.StringsFunc, cFuncOnComplete).Msg("write stream closed by the backend, no more points will be sent")
	}

	return true
}

func (c *Client) discardOutbound() int {

	discarded := 0

	for {
		select {
		case <-c.outbound:
			discarded++
			c.stats.PointDiscarded(cFuncOnError)
		default:
			return discarded
		}
	}
}

// dropQueued - empties the outbound channel, every queued record is also in the ledger
func (c *Client) dropQueued() {

	for {
		select {
		case <-c.outbound:
		default:
			return
		}
	}
}

const cFuncReconnect string = "reconnect"

// reconnect - opens a new stream and sends the pending records again, returns a nil stream if closed meanwhile.
// The queue is emptied before the state goes back to running and the ledger is read after it, so every
// pending record is written once: either by the resubmission or, if queued later, by serve.
func (c *Client) reconnect() (rpc.WriteStreamClient, context.CancelFunc, map[int64]struct{}) {

	for {
		select {
		case <-c.terminate:
			return nil, nil, nil
		case <-time.After(c.settings.ReconnectInterval.Duration):
		}

		stream, cancel, err := c.openStream()
		if err != nil {
			if logh.WarnEnabled {
				c.logger.Warn().Str(constants.StringsFunc, cFuncReconnect).Err(err).Msg("error opening the write stream")
			}
			continue
		}

		c.dropQueued()

		if !atomic.CompareAndSwapUint32(&c.state, stateReconnecting, stateRunning) {
			cancel()
			return nil, nil, nil
		}

		resubmitted, err := c.resubmit(stream)
		if err != nil {
			cancel()
			c.stats.StreamError(cFuncReconnect)
			if !atomic.CompareAndSwapUint32(&c.state, stateRunning, stateReconnecting) {
				return nil, nil, nil
			}
			if logh.WarnEnabled {
				c.logger.Warn().Str(constants.StringsFunc, cFuncReconnect).Err(err).Msg("error resubmitting the pending records")
			}
			continue
		}

		if logh.InfoEnabled {
			c.logger.Info().Str(constants.StringsFunc, cFuncReconnect).Msg("write stream reopened")
		}

		return stream, cancel, resubmitted
	}
}

const cFuncResubmit string = "resubmit"

// resubmit - writes every pending record, returns their ids
func (c *Client) resubmit(stream rpc.WriteStreamClient) (map[int64]struct{}, error) {

	pending := c.ledger.Pending()
	resubmitted := make(map[int64]struct{}, len(pending))

	for _, record := range pending {
		if err := stream.Send(record); err != nil {
			return nil, err
		}
		resubmitted[record.MessageID] = struct{}{}
	}

	c.stats.PointsResubmitted(cFuncResubmit, len(pending))

	if len(pending) > 0 && logh.InfoEnabled {
		c.logger.Info().Str(constants.StringsFunc, cFuncResubmit).Msgf("%d pending records were sent again", len(pending))
	}

	return resubmitted, nil
}

// Healthy - true while the stream is open and accepting points
func (c *Client) Healthy() bool {
	return atomic.LoadUint32(&c.started) == 1 && atomic.LoadUint32(&c.state) == stateRunning
}

func (c *Client) isClosed() bool {
	return atomic.LoadUint32(&c.state) == stateClosed
}

const cFuncClose string = "Close"

// Close - half closes the stream and releases the connection, pending records are kept in the ledger
func (c *Client) Close() {

	c.closeOnce.Do(func() {

		atomic.StoreUint32(&c.state, stateClosed)
		close(c.terminate)
		c.wg.Wait()
		c.cancel()

		if err := c.conn.Close(); err != nil && logh.ErrorEnabled {
			c.logger.Error().Str(constants.StringsFunc, cFuncClose).Err(err).Msg("error closing the backend connection")
		}

		if logh.InfoEnabled {
			c.logger.Info().Str(constants.StringsFunc, cFuncClose).Msgf("writer closed with %d unacknowledged records", c.ledger.Len())
		}
	})
}
