package sys

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"http://localhost:8778/jolokia", true},
		{"http://127.0.0.1:8778/jolokia", true},
		{"http://[::1]:8778/jolokia", true},
		{"redis://localhost:6379/0", true},
		{"127.0.0.1:6379", true},
		{"0.0.0.0", true},
		{"LOCALHOST", true},
		{"http://example.com/jolokia", false},
		{"192.168.1.1:6379", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.url))
		})
	}
}

func TestWakeChannel(t *testing.T) {
	wake, stop := WakeChannel()
	defer stop()

	p, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, p.Signal(syscall.SIGUSR1))

	select {
	case <-wake:
	case <-time.After(2 * time.Second):
		t.Fatal("no wake after SIGUSR1")
	}
}

func TestShutdownContext(t *testing.T) {
	ctx, cancel := ShutdownContext(context.Background())
	defer cancel()
	assert.NoError(t, ctx.Err())
	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
