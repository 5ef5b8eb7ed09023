package pathfinder

import "time"

// callKind discriminates the nine domain commands spec.md §4.2 defines
// plus two internal calls: session teardown and the resource-usage
// snapshot behind Domain.Stats. Grounded on the teacher's
// packets.Packet interface switch in logic.go's handleIncoming, adapted
// from a decoded-wire-packet union to an in-process call union (the
// session layer decodes wire frames into these before submitting them).
type callKind uint8

const (
	callHello callKind = iota
	callPublish
	callUnpublish
	callSubscribe
	callUnsubscribe
	callServices
	callSubscriptions
	callClients
	callPing
	callSessionClosed
	callStats
)

// call is one request to the domain's event loop, built by a public
// Domain method and consumed by Domain.dispatch on the loop goroutine.
type call struct {
	kind  callKind
	reply chan callResult

	clientID   ClientID
	user       string
	remoteAddr string

	minVersion uint8
	maxVersion uint8

	serviceID  ServiceID
	generation uint32
	props      Props
	ttl        time.Duration

	subscriptionID SubscriptionID
	filterText     string
	sink           NotifySink
}

// callResult is what Domain.dispatch hands back for a call. Only the
// fields relevant to the originating callKind are populated.
type callResult struct {
	err error

	clientID ClientID
	version  uint8
	token    *token

	services      []*Service
	subscriptions []*Subscription
	clients       []ClientSummary
	stats         [resourceCount]int
}
