package grpc_control

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"visits-observer/src/config"
	"visits-observer/src/logger"
)

func startBufconn(t *testing.T) (*ControlServer, healthpb.HealthClient) {
	t.Helper()

	cfg := config.Default()
	cs := NewControlServer(cfg.MConfig, logger.NewLoggerWithWriter(io.Discard, "ERROR", "grpc"))

	lis := bufconn.Listen(1 << 20)
	served := make(chan error, 1)
	go func() { served <- cs.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cs.Stop()
		assert.NoError(t, <-served)
	})
	return cs, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func TestHealthFollowsListeningState(t *testing.T) {
	cs, client := startBufconn(t)

	st, err := check(t, client, cs.Service)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	cs.SetServing(true)
	st, err = check(t, client, cs.Service)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)

	cs.Shutdown()
	st, err = check(t, client, cs.Service)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	// updates after shutdown are ignored
	cs.SetServing(true)
	st, err = check(t, client, cs.Service)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)
}

func TestHealthOverallAndUnknownService(t *testing.T) {
	_, client := startBufconn(t)

	st, err := check(t, client, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)

	_, err = check(t, client, "nope")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestEnabled(t *testing.T) {
	cfg := config.Default()
	cs := NewControlServer(cfg.MConfig, logger.NewLoggerWithWriter(io.Discard, "ERROR", "grpc"))
	assert.True(t, cs.Enabled())

	cfg.GrpcPort = 0
	assert.False(t, cs.Enabled())
}
