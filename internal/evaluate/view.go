// Package evaluate runs per-view scoring evaluations. Each view applies only
// the outcome of its most recently issued evaluation; late outcomes from
// superseded evaluations are dropped.
package evaluate

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/risk-alerts/internal/interpret"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

// ErrStaleResult is returned by Complete when the ticket was superseded by a
// later Begin or invalidated by Close.
var ErrStaleResult = eris.New("evaluate: stale result discarded")

// State is the lifecycle state of a View.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateFailed  State = "failed"
)

// Ticket identifies one issued evaluation.
type Ticket struct {
	seq           uint64
	TransactionID string
}

// Seq returns the ticket's sequence number.
func (t Ticket) Seq() uint64 { return t.seq }

// Outcome is what an evaluation produced.
type Outcome struct {
	Result       *scoring.Result
	Err          error
	Presentation interpret.Presentation
}

// Snapshot is a copy of a View's state.
type Snapshot struct {
	ID            string                  `json:"id"`
	State         State                   `json:"state"`
	Seq           uint64                  `json:"seq"`
	TransactionID string                  `json:"transaction_id,omitempty"`
	Result        *scoring.Result         `json:"result,omitempty"`
	Error         string                  `json:"error,omitempty"`
	Presentation  *interpret.Presentation `json:"presentation,omitempty"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// View holds the evaluation state of one detail view.
type View struct {
	id string

	mu           sync.Mutex
	seq          uint64
	state        State
	txID         string
	result       *scoring.Result
	err          error
	presentation *interpret.Presentation
	updatedAt    time.Time
}

// NewView creates an idle view.
func NewView(id string) *View {
	return &View{id: id, state: StateIdle, updatedAt: time.Now().UTC()}
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// Begin supersedes any in-flight evaluation and moves the view to Loading.
// pending is shown until the evaluation completes.
func (v *View) Begin(txID string, pending interpret.Presentation) Ticket {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.seq++
	v.state = StateLoading
	v.txID = txID
	v.result = nil
	v.err = nil
	v.presentation = &pending
	v.updatedAt = time.Now().UTC()
	return Ticket{seq: v.seq, TransactionID: txID}
}

// Complete applies o if t is the latest ticket. Otherwise the view is left
// untouched and ErrStaleResult is returned.
func (v *View) Complete(t Ticket, o Outcome) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if t.seq != v.seq || v.state != StateLoading {
		return ErrStaleResult
	}

	if o.Err != nil {
		v.state = StateFailed
	} else {
		v.state = StateLoaded
	}
	v.result = o.Result
	v.err = o.Err
	p := o.Presentation
	v.presentation = &p
	v.updatedAt = time.Now().UTC()
	return nil
}

// Close resets the view to Idle and invalidates every issued ticket.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.seq++
	v.state = StateIdle
	v.txID = ""
	v.result = nil
	v.err = nil
	v.presentation = nil
	v.updatedAt = time.Now().UTC()
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot{
		ID:            v.id,
		State:         v.state,
		Seq:           v.seq,
		TransactionID: v.txID,
		UpdatedAt:     v.updatedAt,
	}
	if v.result != nil {
		r := *v.result
		s.Result = &r
	}
	if v.err != nil {
		s.Error = v.err.Error()
	}
	if v.presentation != nil {
		p := *v.presentation
		s.Presentation = &p
	}
	return s
}
