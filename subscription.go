package pathfinder

import "github.com/gonzalop/pathfinder/filter"

// SubscriptionID identifies a subscription, chosen by the client.
type SubscriptionID uint64

// matchState is what the subscription engine remembers about one
// service so it can tell appeared from modified from disappeared on the
// next publish/unpublish (spec.md §3, "Subscription" invariants).
type matchState struct {
	generation uint32
	props      Props
}

// Subscription is one session's standing predicate over the service
// catalogue. It lives exactly as long as its owning session holds it —
// there is no orphan grace period for subscriptions (spec.md §3).
type Subscription struct {
	ID     SubscriptionID
	Owner  ClientID
	Filter *filter.Filter

	// matches tracks, for every service currently considered a match,
	// the generation/props last reported to the subscriber. Absence
	// from this map means the subscriber was last told (or has never
	// been told) that the service does not match.
	matches map[ServiceID]matchState
}

func newSubscription(id SubscriptionID, owner ClientID, f *filter.Filter) *Subscription {
	return &Subscription{
		ID:      id,
		Owner:   owner,
		Filter:  f,
		matches: make(map[ServiceID]matchState),
	}
}

// wasMatching reports whether the service was considered a match as of
// the last notification sent to this subscriber.
func (s *Subscription) wasMatching(id ServiceID) (matchState, bool) {
	st, ok := s.matches[id]
	return st, ok
}

func (s *Subscription) recordMatch(id ServiceID, svc *Service) {
	s.matches[id] = matchState{generation: svc.Generation, props: svc.Props.Clone()}
}

func (s *Subscription) forget(id ServiceID) {
	delete(s.matches, id)
}
