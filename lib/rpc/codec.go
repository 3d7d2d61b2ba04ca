package rpc

import (
	"io"

	"github.com/golang/snappy"
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/encoding"
)

//
// Message codec and compressor registered into the grpc encoding registry.
// @author: rnojiri
//

const (
	// CodecName - the content sub type used by the writer stream
	CodecName string = "json"

	// SnappyCompressorName - the snappy compressor name
	SnappyCompressorName string = "snappy"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Codec - encodes the writer messages as json
type Codec struct{}

// Marshal - encodes the message
func (Codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal - decodes the message
func (Codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Name - returns the codec name
func (Codec) Name() string {
	return CodecName
}

type snappyCompressor struct{}

func (snappyCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

func (snappyCompressor) Decompress(r io.Reader) (io.Reader, error) {
	return snappy.NewReader(r), nil
}

func (snappyCompressor) Name() string {
	return SnappyCompressorName
}

func init() {
	encoding.RegisterCodec(Codec{})
	encoding.RegisterCompressor(snappyCompressor{})
}
