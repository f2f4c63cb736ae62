package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Runs.WithLabelValues(OutcomePassed).Inc()
	m.Events.WithLabelValues("source").Add(2)
	m.Watching.Set(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(OutcomePassed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Events.WithLabelValues("source")))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestNew_Unregistered(t *testing.T) {
	a := New(nil)
	b := New(nil)
	a.Reloads.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Reloads), "instances are independent")
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Reloads.Inc()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, reg) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, body, "testloop_config_reloads_total 1")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
