package rpc

import (
	"context"

	"google.golang.org/grpc"
)

//
// Hand written descriptor of the backend writer service.
// @author: rnojiri
//

const (
	// ServiceName - the backend service name
	ServiceName string = "rpc.WriterService"

	// StreamName - the bidirectional write method
	StreamName string = "WriteDataPointStream"

	// FullMethodWriteDataPointStream - the full method path
	FullMethodWriteDataPointStream string = "/" + ServiceName + "/" + StreamName
)

// WriterServiceServer - the server side of the writer service
type WriterServiceServer interface {
	WriteDataPointStream(WriteStreamServer) error
}

// WriteStreamServer - the server side of the write stream
type WriteStreamServer interface {
	Send(*Ack) error
	Recv() (*SingleData, error)
	grpc.ServerStream
}

// WriteStreamClient - the client side of the write stream
type WriteStreamClient interface {
	Send(*SingleData) error
	Recv() (*Ack, error)
	grpc.ClientStream
}

type writeStreamServer struct {
	grpc.ServerStream
}

func (x *writeStreamServer) Send(m *Ack) error {
	return x.ServerStream.SendMsg(m)
}

func (x *writeStreamServer) Recv() (*SingleData, error) {
	m := new(SingleData)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type writeStreamClient struct {
	grpc.ClientStream
}

func (x *writeStreamClient) Send(m *SingleData) error {
	return x.ClientStream.SendMsg(m)
}

func (x *writeStreamClient) Recv() (*Ack, error) {
	m := new(Ack)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func writeDataPointStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(WriterServiceServer).WriteDataPointStream(&writeStreamServer{stream})
}

// WriterServiceDesc - the service descriptor
var WriterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WriterServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    StreamName,
			Handler:       writeDataPointStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "writer.proto",
}

// RegisterWriterServiceServer - registers the writer service implementation
func RegisterWriterServiceServer(s grpc.ServiceRegistrar, srv WriterServiceServer) {
	s.RegisterService(&WriterServiceDesc, srv)
}

// NewWriteStream - opens a new write stream using the json codec
func NewWriteStream(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (WriteStreamClient, error) {

	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)

	stream, err := cc.NewStream(ctx, &WriterServiceDesc.Streams[0], FullMethodWriteDataPointStream, opts...)
	if err != nil {
		return nil, err
	}

	return &writeStreamClient{stream}, nil
}
