package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakeConsumer struct {
	started atomic.Bool
}

func (c *fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	c.started.Store(true)
	_ = handler(nil, []byte(`{}`))
	<-ctx.Done()
	return ctx.Err()
}

type fakeRunner struct {
	ran atomic.Bool
}

func (r *fakeRunner) Run(ctx context.Context) error {
	r.ran.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func TestRunTrackWeb_ServesHTTPAndGRPCHealth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type addrs struct{ grpc, http string }
	addrCh := make(chan addrs, 1)
	opts := trackWebOpts{
		grpcAddr: "127.0.0.1:0",
		httpAddr: "127.0.0.1:0",
		onListen: func(g, h string) { addrCh <- addrs{g, h} },
	}

	var handled atomic.Int32
	cons := &fakeConsumer{}
	runner := &fakeRunner{}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"status":"ok"}`)) })

	errCh := make(chan error, 1)
	go func() {
		errCh <- runTrackWeb(ctx, opts, trackWebDeps{
			handler: mux,
			consumers: []consumerBinding{{name: "t", consumer: cons, handler: func(_, _ []byte) error {
				handled.Add(1)
				return nil
			}}},
			background: []backgroundRunner{runner},
		})
	}()

	a := <-addrCh

	resp, err := http.Get("http://" + a.http + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn, err := grpc.NewClient(a.grpc, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	checkCtx, checkCancel := context.WithTimeout(ctx, 2*time.Second)
	defer checkCancel()
	hr, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, hr.GetStatus())

	require.Eventually(t, func() bool { return cons.started.Load() && runner.ran.Load() }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), handled.Load())

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting servers to stop")
	}
}

func TestRunTrackWeb_ListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	err = runTrackWeb(context.Background(), trackWebOpts{grpcAddr: "127.0.0.1:0", httpAddr: busy.Addr().String()}, trackWebDeps{})
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l := newLogger("debug", "text")
	require.True(t, l.Enabled(context.Background(), slog.LevelDebug))

	l = newLogger("", "json")
	require.False(t, l.Enabled(context.Background(), slog.LevelDebug))
	require.True(t, l.Enabled(context.Background(), slog.LevelInfo))
}

func TestSecondsOr(t *testing.T) {
	require.Equal(t, time.Minute, secondsOr(0, time.Minute))
	require.Equal(t, 5*time.Second, secondsOr(5, time.Minute))
}
