package graphite

import (
	"github.com/uol/gobol"
	"github.com/uol/logh"

	"github.com/uol/graphiteproxy/lib/constants"
	"github.com/uol/graphiteproxy/lib/ledger"
	"github.com/uol/graphiteproxy/lib/rpc"
	"github.com/uol/graphiteproxy/lib/stats"
	"github.com/uol/graphiteproxy/lib/tserr"
)

//
// Implements the graphite telnet handler.
// @author: rnojiri
//

// Sender - sends the record to the backend without blocking
type Sender interface {
	Send(record *rpc.SingleData) error
}

// Decoder - decodes the lines and hands the points to the writer
type Decoder struct {
	database    string
	writer      Sender
	ledger      *ledger.Ledger
	ids         *IDGenerator
	stats       *stats.Manager
	logger      *logh.ContextualLogger
	silenceLogs bool
}

// New - creates a new decoder shared by all connections
func New(database string, writer Sender, pendingLedger *ledger.Ledger, statsManager *stats.Manager, silenceLogs bool) *Decoder {

	return &Decoder{
		database:    database,
		writer:      writer,
		ledger:      pendingLedger,
		ids:         NewIDGenerator(),
		stats:       statsManager,
		logger:      logh.CreateContextualLogger(constants.StringsPKG, cPackage, constants.StringsDatabase, database),
		silenceLogs: silenceLogs,
	}
}

// Decode - parses the line, registers the point in the ledger and sends it,
// either both happen or none of them
func (d *Decoder) Decode(line string) gobol.Error {

	point, gerr := Parse(d.database, line)
	if gerr != nil {
		return gerr
	}

	record := &rpc.SingleData{
		MessageID: d.ids.Next(),
		Point:     point,
	}

	if err := d.ledger.Insert(record); err != nil {
		return tserr.Wrap(errShed, err)
	}

	if err := d.writer.Send(record); err != nil {
		d.ledger.Remove(record.MessageID)
		return tserr.Wrap(errShed, err)
	}

	if !d.silenceLogs && logh.DebugEnabled {
		d.logger.Debug().Str(constants.StringsFunc, cFuncDecode).Msgf("writing graphite metric: %s,%s,%v,%d,%v (fp=%t)", point.MeasurementName, point.ValueFieldName, point.Tags, point.Timestamp, point.FloatValue(), point.FP)
	}

	return nil
}

const cFuncHandle string = "Handle"

// Handle - handles one line, returns false if the connection must be closed
func (d *Decoder) Handle(line, ip string) bool {

	d.stats.LineReceived(cFuncHandle)

	gerr := d.Decode(line)
	if gerr == nil {
		return true
	}

	d.stats.LineDropped(cFuncHandle, reason(gerr))

	if IsDroppable(gerr) {

		if gerr.ErrorCode() == errShed.ErrorCode() {
			if !d.silenceLogs && logh.WarnEnabled {
				d.logger.Warn().Str(constants.StringsFunc, cFuncHandle).Str(constants.StringsIP, ip).Err(gerr).Msgf("%s: %s", gerr.Message(), line)
			}
		} else if !d.silenceLogs && logh.DebugEnabled {
			d.logger.Debug().Str(constants.StringsFunc, cFuncHandle).Str(constants.StringsIP, ip).Msgf("ignoring bad metric: %s", line)
		}

		return true
	}

	if !d.silenceLogs && logh.ErrorEnabled {
		d.logger.Error().Str(constants.StringsFunc, cFuncHandle).Str(constants.StringsIP, ip).Err(gerr).Msgf("%s, closing connection: %s", gerr.Message(), line)
	}

	return false
}

// GetSourceType - returns the source type
func (d *Decoder) GetSourceType() *constants.SourceType {
	return constants.SourceTypeTelnetGraphite
}
