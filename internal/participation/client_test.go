package participation_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-search/internal/participation"
)

// fakeHolder records every payment-gateway call.
type fakeHolder struct {
	next     int
	held     []string
	released []string
	captured []string
	holdErr  error
}

func (f *fakeHolder) HoldSeat(ctx context.Context, amountCents int64, currency, customerID string) (string, error) {
	if f.holdErr != nil {
		return "", f.holdErr
	}
	f.next++
	id := fmt.Sprintf("hold-%d", f.next)
	f.held = append(f.held, id)
	return id, nil
}

func (f *fakeHolder) ReleaseSeat(ctx context.Context, holdID string) error {
	f.released = append(f.released, holdID)
	return nil
}

func (f *fakeHolder) CaptureSeat(ctx context.Context, holdID string) error {
	f.captured = append(f.captured, holdID)
	return nil
}

func backend(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJoinThenSettleCapturesHold(t *testing.T) {
	holder := &fakeHolder{}
	c := participation.NewClient(backend(t, http.StatusNoContent).URL, holder, nil)
	req := participation.Request{RideID: 7, UserID: "u1"}

	require.NoError(t, c.Join(context.Background(), req, 1850))
	require.Equal(t, []string{"hold-1"}, holder.held)

	require.NoError(t, c.Settle(context.Background(), req))
	assert.Equal(t, []string{"hold-1"}, holder.captured)
	assert.Empty(t, holder.released)

	// The hold is gone; settling again has nothing to capture.
	require.NoError(t, c.Settle(context.Background(), req))
	assert.Len(t, holder.captured, 1)
}

func TestJoinFailureReleasesHold(t *testing.T) {
	holder := &fakeHolder{}
	c := participation.NewClient(backend(t, http.StatusInternalServerError).URL, holder, nil)
	req := participation.Request{RideID: 7, UserID: "u1"}

	require.Error(t, c.Join(context.Background(), req, 1850))
	assert.Equal(t, []string{"hold-1"}, holder.released)
	assert.Empty(t, holder.captured)
}

func TestLeaveReleasesHold(t *testing.T) {
	holder := &fakeHolder{}
	c := participation.NewClient(backend(t, http.StatusNoContent).URL, holder, nil)
	req := participation.Request{RideID: 7, UserID: "u1"}

	require.NoError(t, c.Join(context.Background(), req, 1850))
	require.NoError(t, c.Leave(context.Background(), req))
	assert.Equal(t, []string{"hold-1"}, holder.released)

	// Nothing left to capture after the passenger backed out.
	require.NoError(t, c.Settle(context.Background(), req))
	assert.Empty(t, holder.captured)
}

func TestJoinWithoutPriceSkipsHold(t *testing.T) {
	holder := &fakeHolder{}
	c := participation.NewClient(backend(t, http.StatusNoContent).URL, holder, nil)
	req := participation.Request{RideID: 7, UserID: "u1"}

	require.NoError(t, c.Join(context.Background(), req, 0))
	assert.Empty(t, holder.held)
	require.NoError(t, c.Settle(context.Background(), req))
	assert.Empty(t, holder.captured)
}
