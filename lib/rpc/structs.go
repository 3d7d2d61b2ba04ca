package rpc

import "math"

//
// Messages exchanged with the backend writer service.
// @author: rnojiri
//

// Point - a decoded metric observation
type Point struct {
	DBName          string   `json:"dbName"`
	MeasurementName string   `json:"measurementName"`
	ValueFieldName  string   `json:"valueFieldName"`
	Timestamp       int64    `json:"timestamp"`
	Tags            []string `json:"tags"`
	Value           int64    `json:"value"`
	FP              bool     `json:"fp"`
}

// FloatValue - returns the value as float64 (bit reinterpretation when FP is set)
func (p *Point) FloatValue() float64 {
	if p.FP {
		return math.Float64frombits(uint64(p.Value))
	}

	return float64(p.Value)
}

// SingleData - one point waiting for the backend acknowledgment
type SingleData struct {
	MessageID int64  `json:"messageId"`
	Point     *Point `json:"point"`
}

// Ack - the backend acknowledgment of a single data
type Ack struct {
	MessageID int64 `json:"messageId"`
}
