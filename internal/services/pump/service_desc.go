package pump

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName       = "hydro.PumpService"
	sendCommandMethod = "/" + ServiceName + "/SendCommand"
)

// PumpServiceServer is the server side of hydro.PumpService. The request is
// the bare status string.
type PumpServiceServer interface {
	SendCommand(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error)
}

func RegisterPumpServiceServer(s grpc.ServiceRegistrar, srv PumpServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PumpServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendCommand", Handler: sendCommandHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hydro/pump.proto",
}

func sendCommandHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PumpServiceServer).SendCommand(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendCommandMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PumpServiceServer).SendCommand(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls hydro.PumpService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) SendCommand(ctx context.Context, status string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, sendCommandMethod, wrapperspb.String(status), new(emptypb.Empty), opts...)
}
