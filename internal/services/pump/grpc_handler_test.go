package pump

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/LeonardoBeccarini/hydro_monitor/pkg/transport"
)

func startServer(t *testing.T, pub *fakePublisher) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterPumpServiceServer(srv, NewGrpcHandler(NewDispatcher(pub, nil, zerolog.Nop())))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestGrpc_SendCommand(t *testing.T) {
	pub := &fakePublisher{}
	client := startServer(t, pub)

	require.NoError(t, client.SendCommand(context.Background(), "on"))
	assert.Equal(t, []string{"ON"}, pub.sent)
}

func TestGrpc_InvalidArgument(t *testing.T) {
	client := startServer(t, &fakePublisher{})

	err := client.SendCommand(context.Background(), "AUTO")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGrpc_Unavailable(t *testing.T) {
	client := startServer(t, &fakePublisher{err: fmt.Errorf("publish: %w", transport.ErrNotConnected)})

	err := client.SendCommand(context.Background(), "OFF")
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Equal(t, "device unavailable", status.Convert(err).Message())
}
