package pump

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

// GrpcHandler implements PumpServiceServer on top of a Dispatcher.
type GrpcHandler struct {
	dispatcher *Dispatcher
}

func NewGrpcHandler(d *Dispatcher) *GrpcHandler {
	return &GrpcHandler{dispatcher: d}
}

func (h *GrpcHandler) SendCommand(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	err := h.dispatcher.SendCommand(ctx, req.GetValue())
	switch {
	case err == nil:
		return &emptypb.Empty{}, nil
	case model.IsKind(err, model.KindValidation):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrTransportUnavailable):
		return nil, status.Error(codes.Unavailable, "device unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, status.FromContextError(err).Err()
	default:
		return nil, status.Error(codes.Internal, err.Error())
	}
}
