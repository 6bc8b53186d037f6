package evaluate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/risk-alerts/internal/interpret"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

func TestView_Lifecycle(t *testing.T) {
	v := NewView("detail")
	assert.Equal(t, StateIdle, v.Snapshot().State)

	pending := interpret.Presentation{Label: "COMPRA NORMAL", TierSource: interpret.SourceLocal}
	tk := v.Begin("1", pending)
	snap := v.Snapshot()
	assert.Equal(t, StateLoading, snap.State)
	require.NotNil(t, snap.Presentation)
	assert.Equal(t, "COMPRA NORMAL", snap.Presentation.Label)

	res := &scoring.Result{RiskScore: 0.3, Color: scoring.ColorGreen}
	require.NoError(t, v.Complete(tk, Outcome{Result: res}))
	snap = v.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, tk.Seq(), snap.Seq)

	snap.Result.RiskScore = 1
	assert.InDelta(t, 0.3, v.Snapshot().Result.RiskScore, 1e-9, "snapshot is a copy")
}

func TestView_CompleteTwiceIsStale(t *testing.T) {
	v := NewView("detail")
	tk := v.Begin("1", interpret.Presentation{})
	require.NoError(t, v.Complete(tk, Outcome{Err: errors.New("boom")}))
	assert.Equal(t, StateFailed, v.Snapshot().State)
	assert.ErrorIs(t, v.Complete(tk, Outcome{}), ErrStaleResult)
}

func TestView_SupersededTicket(t *testing.T) {
	v := NewView("detail")
	a := v.Begin("A", interpret.Presentation{})
	b := v.Begin("B", interpret.Presentation{})

	require.NoError(t, v.Complete(b, Outcome{Result: &scoring.Result{Reasons: []string{"B"}}}))
	assert.ErrorIs(t, v.Complete(a, Outcome{Result: &scoring.Result{Reasons: []string{"A"}}}), ErrStaleResult)

	snap := v.Snapshot()
	assert.Equal(t, "B", snap.TransactionID)
	assert.Equal(t, []string{"B"}, snap.Result.Reasons)
}

func TestView_CloseInvalidates(t *testing.T) {
	v := NewView("detail")
	tk := v.Begin("1", interpret.Presentation{})
	v.Close()

	assert.ErrorIs(t, v.Complete(tk, Outcome{}), ErrStaleResult)
	snap := v.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.TransactionID)
	assert.Nil(t, snap.Presentation)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("detail")
	assert.False(t, ok)

	v := r.Open("detail")
	assert.Same(t, v, r.Open("detail"))
	r.Open("sidebar")
	assert.Equal(t, []string{"detail", "sidebar"}, r.IDs())

	tk := v.Begin("1", interpret.Presentation{})
	assert.True(t, r.Close("detail"))
	assert.False(t, r.Close("detail"))
	assert.ErrorIs(t, v.Complete(tk, Outcome{}), ErrStaleResult)
	assert.Equal(t, []string{"sidebar"}, r.IDs())
}
