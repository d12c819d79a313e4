package alert

import (
	"context"
	"fmt"
	"testing"
	"time"

	"price-notifications/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	failOn   map[int]bool
	calls    int
	texts    []string
	contacts []types.Contact
	deadline bool
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Send(ctx context.Context, contact types.Contact, text string) (string, error) {
	f.calls++
	f.texts = append(f.texts, text)
	f.contacts = append(f.contacts, contact)
	_, f.deadline = ctx.Deadline()
	if f.failOn[f.calls] {
		return "", fmt.Errorf("send %d refused", f.calls)
	}
	return fmt.Sprintf("SM%d", f.calls), nil
}

func events(n int) []types.AlertEvent {
	out := make([]types.AlertEvent, n)
	for i := range out {
		out[i] = types.AlertEvent{
			AssetID:   fmt.Sprintf("asset-%d", i),
			Direction: types.Above,
			Threshold: decimal.NewFromInt(int64(i)),
			Observed:  decimal.NewFromInt(int64(i + 1)),
		}
	}
	return out
}

func TestDispatch_FailureDoesNotStopLaterSends(t *testing.T) {
	transport := &fakeTransport{failOn: map[int]bool{2: true}}
	d := NewDispatcher(transport, 0)

	outcomes := d.Dispatch(context.Background(), events(4), types.Contact{From: "+1", To: "+2"})

	assert.Equal(t, 4, transport.calls)
	require.Len(t, outcomes, 4)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, "SM1", outcomes[0].MessageID)
	require.Error(t, outcomes[1].Err)
	assert.True(t, errors.Is(outcomes[1].Err, types.ErrTransportSendFailure))
	assert.NoError(t, outcomes[2].Err)
	assert.NoError(t, outcomes[3].Err)
	assert.Equal(t, 1, Failed(outcomes))
}

func TestDispatch_AllFailStillAttemptsEach(t *testing.T) {
	transport := &fakeTransport{failOn: map[int]bool{1: true, 2: true, 3: true}}
	outcomes := NewDispatcher(transport, 0).Dispatch(context.Background(), events(3), types.Contact{})

	assert.Equal(t, 3, transport.calls)
	assert.Equal(t, 3, Failed(outcomes))
}

func TestDispatch_ScenarioMessage(t *testing.T) {
	transport := &fakeTransport{}
	contact := types.Contact{From: "+100", To: "+200"}
	event := types.AlertEvent{
		AssetID:   "bitcoin",
		Direction: types.Above,
		Threshold: decimal.NewFromInt(50000),
		Observed:  decimal.NewFromInt(52000),
		Quote:     "usd",
	}

	outcomes := NewDispatcher(transport, time.Second).Dispatch(context.Background(), []types.AlertEvent{event}, contact)

	require.Len(t, outcomes, 1)
	assert.Equal(t, 1, transport.calls)
	assert.Contains(t, transport.texts[0], "bitcoin")
	assert.Contains(t, transport.texts[0], "above")
	assert.Contains(t, transport.texts[0], "50000")
	assert.Equal(t, contact, transport.contacts[0])
	assert.True(t, transport.deadline)
}

func TestDispatch_NoEvents(t *testing.T) {
	transport := &fakeTransport{}
	outcomes := NewDispatcher(transport, 0).Dispatch(context.Background(), nil, types.Contact{})
	assert.Empty(t, outcomes)
	assert.Zero(t, transport.calls)
}
