package pathfinder

import "time"

// ServiceID uniquely identifies a service within a domain for the
// lifetime of the record (spec.md §3).
type ServiceID uint64

// ClientID uniquely identifies a session, server-assigned at hello time.
type ClientID uint64

// Service is one published service's authoritative state: the unit the
// domain catalogue stores and the subscription engine matches against.
//
// orphanSince is the zero time when the service is owned by a live
// session; it is set to a non-zero time the moment the owning session
// departs, and cleared again on re-adoption (spec.md §3, §4.2).
type Service struct {
	ID         ServiceID
	Generation uint32
	Props      Props
	TTL        time.Duration
	Owner      ClientID

	// OwnerUser is the user identity (spec.md §3's "user identity
	// string") that published this service. Re-adoption of an orphan is
	// keyed on this, not on Owner, because Owner's client-id is
	// meaningless once its session has gone — a new connection from the
	// same user gets a new ClientID every time.
	OwnerUser string

	orphanSince time.Time
}

// IsOrphan reports whether the service is currently in its TTL-bounded
// grace period (owning session departed, not yet reclaimed or timed out).
func (s *Service) IsOrphan() bool { return !s.orphanSince.IsZero() }

// OrphanSince returns the time the service became an orphan, or the zero
// Time if it is currently owned by a live session.
func (s *Service) OrphanSince() time.Time { return s.orphanSince }

// orphan marks the service as orphaned as of now, owned by whichever
// client-id last held it until reclaimed or timed out.
func (s *Service) orphan(now time.Time) { s.orphanSince = now }

// adopt clears orphan state and assigns a new owner, used on successful
// republish-while-orphaned (spec.md §4.2, outcome 1).
func (s *Service) adopt(owner ClientID, user string) {
	s.Owner = owner
	s.OwnerUser = user
	s.orphanSince = time.Time{}
}

// deadline returns the instant at which this orphan should time out, or
// the zero Time if the service is not currently an orphan.
func (s *Service) deadline() time.Time {
	if s.orphanSince.IsZero() {
		return time.Time{}
	}
	return s.orphanSince.Add(s.TTL)
}

// clone returns a copy of the service suitable for handing to a
// notification or a snapshot listing, so that later mutation of the
// catalogue's copy cannot race with a reader.
func (s *Service) clone() *Service {
	cp := *s
	cp.Props = s.Props.Clone()
	return &cp
}
