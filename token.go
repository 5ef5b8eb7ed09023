package pathfinder

import "sync"

// Token tracks the lifecycle of a standing subscription transaction: it
// stays open for as long as the subscription exists on the domain side,
// closing the moment the domain drops it (unsubscribe, owning session
// close, or domain shutdown). It is the multi-response counterpart of
// the teacher library's Token (token.go), adapted from tracking one
// eventual result to tracking an open-ended stream's end.
type Token interface {
	// Done returns a channel that closes when the subscription ends.
	Done() <-chan struct{}

	// Err returns the reason the subscription ended, once Done is
	// closed. nil means a clean unsubscribe; non-nil means the domain
	// tore it down itself (e.g. domain shutdown).
	Err() error
}

type token struct {
	done chan struct{}
	err  error
	once sync.Once
}

func newToken() *token {
	return &token{done: make(chan struct{})}
}

func (t *token) Done() <-chan struct{} { return t.done }

func (t *token) Err() error { return t.err }

// complete marks the token finished with err. Only the first call has
// an effect, matching the teacher's sync.Once-guarded completion so a
// subscription can never be "finished" twice.
func (t *token) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}
