package graphite

import (
	"math"
	"strconv"
	"strings"

	"github.com/uol/gobol"

	"github.com/uol/graphiteproxy/lib/rpc"
	"github.com/uol/graphiteproxy/lib/tserr"
)

//
// Parses the graphite plaintext protocol: <metric.path> <value> <timestamp>
// http://graphite.readthedocs.io/en/latest/feeding-carbon.html#the-plaintext-protocol
// @author: rnojiri
//

const (
	minPathComponents int    = 3
	pathSeparator     string = "."
	millisPerSecond   int64  = 1000
)

// Parse - parses one line into a point
func Parse(database, line string) (*rpc.Point, gobol.Error) {

	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, errInvalidFormat
	}

	path := splitPath(fields[0])
	n := len(path)
	if n < minPathComponents {
		return nil, errInvalidPath
	}

	// path[1] never becomes a tag, this is kept for compatibility
	// with the existing series although it looks like an off by one
	tags := make([]string, 0, n-2)
	tags = append(tags, path[0])
	for i := 2; i < n-2; i++ {
		tags = append(tags, path[i])
	}

	timestamp, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, tserr.Wrap(errInvalidTimestamp, err)
	}

	point := &rpc.Point{
		DBName:          database,
		MeasurementName: path[n-2],
		ValueFieldName:  path[n-1],
		Timestamp:       timestamp * millisPerSecond,
		Tags:            tags,
	}

	if strings.Contains(fields[1], pathSeparator) {

		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, tserr.Wrap(errInvalidValue, err)
		}

		point.FP = true
		point.Value = int64(math.Float64bits(value))

	} else {

		value, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, tserr.Wrap(errInvalidValue, err)
		}

		point.Value = value
	}

	return point, nil
}

// splitPath - splits the metric path discarding the trailing empty components
func splitPath(metric string) []string {

	path := strings.Split(metric, pathSeparator)

	for len(path) > 0 && path[len(path)-1] == "" {
		path = path[:len(path)-1]
	}

	return path
}
