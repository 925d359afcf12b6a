package connection

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablewire/tablewire-go/pkg/transport"
	"github.com/tablewire/tablewire-go/pkg/wire"
)

func startServer(t *testing.T) *transport.Server {
	t.Helper()
	srv := transport.NewServer(transport.ServerConfig{Address: "127.0.0.1:0"})
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func TestClientConnectsAndHandshakes(t *testing.T) {
	srv := startServer(t)

	var mu sync.Mutex
	var transitions []State
	c := NewClient(ClientConfig{
		Address:    srv.Addr().String(),
		ClientName: "test-client",
		OnStateChange: func(old, new State) {
			mu.Lock()
			transitions = append(transitions, new)
			mu.Unlock()
		},
	})
	t.Cleanup(c.Close)

	conn, id, err := c.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	assert.Equal(t, "session_1", id)
	assert.Equal(t, id, c.SessionID())
	assert.Equal(t, StateConnected, c.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateConnected}, transitions)
}

func TestClientRetriesThenGivesUp(t *testing.T) {
	// A listener opened and closed again leaves a port nothing answers
	// on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := NewClient(ClientConfig{
		Address:     addr,
		MaxAttempts: 3,
		Backoff:     BackoffConfig{Initial: 5 * time.Millisecond, Jitter: 0},
	})
	t.Cleanup(c.Close)

	start := time.Now()
	_, _, err = c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	// Two backoff pauses happened between the three attempts.
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClientConnectHonorsContext(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(ClientConfig{
		Address: addr,
		Backoff: BackoffConfig{Initial: time.Hour, Jitter: 0},
	})
	t.Cleanup(c.Close)

	_, _, err = c.Connect(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientHandshakeRejectionNotRetried(t *testing.T) {
	// A server that rejects every handshake.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	accepts := make(chan struct{}, 16)
	go func() {
		for {
			nc, err := l.Accept()
			if err != nil {
				return
			}
			accepts <- struct{}{}
			go func(nc net.Conn) {
				defer nc.Close()
				conn := transport.NewConn(nc, 0, nil, "")
				if _, err := conn.ReadFrame(); err != nil {
					return
				}
				data, _ := wire.EncodeError(&wire.Error{
					ErrorCode: wire.ErrCodeIncompatibleVersion,
					Message:   "Server requires protocol version v2.0",
				})
				conn.WriteFrame(data)
			}(nc)
		}
	}()

	c := NewClient(ClientConfig{
		Address: l.Addr().String(),
		Backoff: BackoffConfig{Initial: 5 * time.Millisecond, Jitter: 0},
	})
	t.Cleanup(c.Close)

	_, _, err = c.Connect(context.Background())
	require.ErrorIs(t, err, ErrHandshakeRejected)
	assert.Len(t, accepts, 1, "rejected handshake was retried")
}

func TestClosedClientCannotConnect(t *testing.T) {
	srv := startServer(t)
	c := NewClient(ClientConfig{Address: srv.Addr().String()})
	c.Close()

	_, _, err := c.Connect(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StateClosed, c.State())
}
