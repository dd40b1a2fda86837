package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/fairtix/internal/domain"
)

type failing struct{ err error }

func (f failing) Publish(context.Context, domain.Notification) error { return f.err }

func TestFanout_PublishesToAllAndJoinsErrors(t *testing.T) {
	var a, b Recorder
	boom := errors.New("boom")

	err := Fanout{&a, nil, failing{boom}, &b}.Publish(context.Background(), domain.Notification{Type: domain.NotifyEventCreated})

	require.ErrorIs(t, err, boom)
	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)
}

func TestEmit_SwallowsPublishErrors(t *testing.T) {
	hook := Emit(failing{errors.New("down")}, nil, domain.Notification{Type: domain.NotifyTicketUsed})
	assert.NotPanics(t, func() { hook(context.Background()) })

	assert.NotPanics(t, func() { Emit(nil, nil, domain.Notification{})(context.Background()) })
}

func TestRecorder_OfType(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	_ = r.Publish(ctx, domain.Notification{Type: domain.NotifyTicketMinted})
	_ = r.Publish(ctx, domain.Notification{Type: domain.NotifyTicketUsed})
	_ = r.Publish(ctx, domain.Notification{Type: domain.NotifyTicketMinted})

	assert.Len(t, r.OfType(domain.NotifyTicketMinted), 2)
	r.Reset()
	assert.Empty(t, r.All())
}
