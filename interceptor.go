package pathfinder

import (
	"context"

	"github.com/gonzalop/pathfinder/internal/proto"
)

// Dispatch handles one decoded request frame for a session, producing
// its response frame(s) by writing directly to s (via s.sendAccept /
// s.sendNotify / s.sendComplete / s.sendFail). It is the extension
// point cross-cutting concerns hook
// into — grounded on the teacher's HandlerInterceptor (middleware.go),
// which wraps MessageHandler the same way Interceptor wraps Dispatch
// here.
type Dispatch func(ctx context.Context, s *Session, frame *proto.Frame) error

// Interceptor wraps a Dispatch with cross-cutting behavior (logging,
// metrics, rate limiting) and must call next to continue the chain.
type Interceptor func(next Dispatch) Dispatch

// chainInterceptors applies interceptors around base in order, so the
// first interceptor in the slice is outermost — the same composition
// order as applyHandlerInterceptors in the teacher's middleware.go.
func chainInterceptors(base Dispatch, interceptors []Interceptor) Dispatch {
	for i := len(interceptors) - 1; i >= 0; i-- {
		base = interceptors[i](base)
	}
	return base
}
