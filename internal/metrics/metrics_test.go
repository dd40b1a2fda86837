package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/fairtix/internal/domain"
)

func TestRecorder_CountsNotificationsAndRejections(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, domain.Notification{Type: domain.NotifyTicketMinted}))
	require.NoError(t, r.Publish(ctx, domain.Notification{Type: domain.NotifyTicketMinted}))
	r.Rejected(fmt.Errorf("op:%w", domain.ErrSoldOut))
	r.ObserveHTTP("GET", "/events/:id", 200, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.notifications.WithLabelValues("TicketMinted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues("policy_violation", "sold_out")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Rejected(domain.ErrBusy)
		r.ObserveHTTP("GET", "/", 200, time.Second)
		_ = r.Publish(context.Background(), domain.Notification{})
	})
}

func TestNew_ToleratesDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)

	second.Rejected(domain.ErrBusy)
	assert.Equal(t, 1.0, testutil.ToFloat64(first.rejections.WithLabelValues("conflict", "busy")))
}
