package service

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodhub/production-api/internal/queue"
)

// silentBroker accepts TCP connections and never speaks AMQP.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

var resetEvent = queue.PasswordResetRequested{UserID: "u-1", To: "a@x.com", ResetLink: "https://app.example.com/reset-password?token=t"}

func TestMailPublisherBoundsHandshake(t *testing.T) {
	p := NewMailPublisher(silentBroker(t), "")
	assert.Equal(t, DefaultPublishDialTimeout, p.DialTimeout)
	p.DialTimeout = 150 * time.Millisecond

	start := time.Now()
	err := p.SendPasswordReset(context.Background(), resetEvent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq dial")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMailPublisherHonoursContextDeadline(t *testing.T) {
	p := NewMailPublisher(silentBroker(t), "")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.Error(t, p.SendPasswordReset(ctx, resetEvent))
	assert.Less(t, time.Since(start), DefaultPublishDialTimeout)
}

func TestMailPublisherCancelledContext(t *testing.T) {
	p := NewMailPublisher(silentBroker(t), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	require.Error(t, p.SendPasswordReset(ctx, resetEvent))
	assert.Less(t, time.Since(start), time.Second)
}
