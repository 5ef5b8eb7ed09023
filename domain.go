package pathfinder

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gonzalop/pathfinder/filter"
)

// NotifySink receives asynchronous match notifications for one standing
// subscription. The domain's single task calls it synchronously while
// holding no lock but also no ability to wait — implementations (see
// Session) must return quickly, typically by pushing onto a buffered
// outbound queue, never by blocking on network I/O.
type NotifySink func(Notification)

// Notification is one appeared/modified/disappeared event for a single
// subscription (spec.md §4.2, "Notification computation").
type Notification struct {
	SubscriptionID SubscriptionID
	Match          MatchType
	Service        *Service
}

// ClientSummary is one row of the "clients" snapshot listing.
type ClientSummary struct {
	ClientID    ClientID
	RemoteAddr  string
	ConnectedAt time.Time
}

// clientRecord is what the domain remembers about one live session: who
// it is and what it owns, so a session close can release everything.
type clientRecord struct {
	user        string
	remoteAddr  string
	connectedAt time.Time

	services map[ServiceID]struct{}
	subs     map[SubscriptionID]struct{}
}

// Domain is the aggregate of one independently-administered service
// catalogue (spec.md §3, "Domain"): the service and subscription
// catalogues, the live session table, and the orphan-expiry timer
// wheel, all owned by a single goroutine so that every command executes
// atomically between reading its request and producing its response
// (spec.md §5).
//
// Grounded on the teacher library's Client.logicLoop (logic.go): a
// select loop over an incoming-work channel, a ticker, and a stop
// channel, with all mutable state touched only from that one
// goroutine. Domain generalizes "incoming MQTT packet" to "incoming
// domain call" and "retry ticker" to "next orphan deadline".
type Domain struct {
	Name string

	log  *log.Logger
	opts domainOptions
	acct *Accountant

	services      map[ServiceID]*Service
	subscriptions map[SubscriptionID]*Subscription
	clients       map[ClientID]*clientRecord
	subTokens     map[SubscriptionID]*token

	sinks map[SubscriptionID]NotifySink

	nextClientID ClientID

	orphans     orphanHeap
	orphanIndex map[ServiceID]*orphanEntry
	timer       *time.Timer

	calls   chan *call
	stop    chan struct{}
	stopped chan struct{}
}

// NewDomain constructs a Domain. Run must be called (typically in its
// own goroutine) before any command method will complete.
func NewDomain(name string, opts ...Option) *Domain {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Domain{
		Name:          name,
		log:           o.logger,
		opts:          o,
		acct:          NewAccountant(o.limits),
		services:      make(map[ServiceID]*Service),
		subscriptions: make(map[SubscriptionID]*Subscription),
		clients:       make(map[ClientID]*clientRecord),
		subTokens:     make(map[SubscriptionID]*token),
		sinks:         make(map[SubscriptionID]NotifySink),
		orphanIndex:   make(map[ServiceID]*orphanEntry),
		calls:         make(chan *call, o.queueDepth),
		stop:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Run drives the domain's event loop until Stop is called or ctx is
// canceled. It must be called exactly once, and every command method
// blocks until a goroutine is running it.
func (d *Domain) Run(ctx context.Context) {
	defer close(d.stopped)

	for {
		var timerC <-chan time.Time
		if d.timer != nil {
			timerC = d.timer.C
		}

		select {
		case c := <-d.calls:
			c.reply <- d.dispatch(c)

		case <-timerC:
			d.handleOrphanTimeout(time.Now())

		case <-ctx.Done():
			d.shutdown()
			return

		case <-d.stop:
			d.shutdown()
			return
		}
	}
}

// Stop requests the event loop to exit. It does not block until it has;
// callers that need that should close over d.stopped (exposed by
// Stopped).
func (d *Domain) Stop() {
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
}

// Stopped returns a channel closed once the event loop has exited.
func (d *Domain) Stopped() <-chan struct{} { return d.stopped }

func (d *Domain) shutdown() {
	for id, t := range d.subTokens {
		t.complete(ErrDomainStopped)
		delete(d.subTokens, id)
	}
	if d.timer != nil {
		d.timer.Stop()
	}
}

// submit hands a call to the loop goroutine and waits for its reply,
// respecting ctx and domain shutdown.
func (d *Domain) submit(ctx context.Context, c *call) (callResult, error) {
	select {
	case d.calls <- c:
	case <-ctx.Done():
		return callResult{}, ctx.Err()
	case <-d.stopped:
		return callResult{}, ErrDomainStopped
	}
	select {
	case res := <-c.reply:
		return res, res.err
	case <-ctx.Done():
		return callResult{}, ctx.Err()
	case <-d.stopped:
		return callResult{}, ErrDomainStopped
	}
}

func newCall(kind callKind) *call {
	return &call{kind: kind, reply: make(chan callResult, 1)}
}

// Hello negotiates a protocol version and assigns a ClientID, charging
// the clients resource against user (spec.md §4.2 "hello").
func (d *Domain) Hello(ctx context.Context, user, remoteAddr string, minVersion, maxVersion uint8) (ClientID, uint8, error) {
	c := newCall(callHello)
	c.user, c.remoteAddr = user, remoteAddr
	c.minVersion, c.maxVersion = minVersion, maxVersion
	res, err := d.submit(ctx, c)
	return res.clientID, res.version, err
}

// Publish inserts or republishes a service owned by clientID (spec.md
// §4.2 "publish").
func (d *Domain) Publish(ctx context.Context, clientID ClientID, serviceID ServiceID, generation uint32, props Props, ttl time.Duration) error {
	c := newCall(callPublish)
	c.clientID, c.serviceID, c.generation, c.props, c.ttl = clientID, serviceID, generation, props, ttl
	_, err := d.submit(ctx, c)
	return err
}

// Unpublish removes a service owned by clientID (spec.md §4.2
// "unpublish").
func (d *Domain) Unpublish(ctx context.Context, clientID ClientID, serviceID ServiceID) error {
	c := newCall(callUnpublish)
	c.clientID, c.serviceID = clientID, serviceID
	_, err := d.submit(ctx, c)
	return err
}

// Subscribe registers a standing filter for clientID. sink receives
// every appeared/modified/disappeared event for this subscription,
// including the initial appeared burst for services already matching
// at registration time. The returned Token closes when the subscription
// ends for any reason.
func (d *Domain) Subscribe(ctx context.Context, clientID ClientID, subscriptionID SubscriptionID, filterText string, sink NotifySink) (Token, error) {
	c := newCall(callSubscribe)
	c.clientID, c.subscriptionID, c.filterText, c.sink = clientID, subscriptionID, filterText, sink
	res, err := d.submit(ctx, c)
	if err != nil {
		return nil, err
	}
	return res.token, nil
}

// Unsubscribe drops a subscription owned by clientID. No disappeared
// notifications are sent (spec.md §4.2 "unsubscribe").
func (d *Domain) Unsubscribe(ctx context.Context, clientID ClientID, subscriptionID SubscriptionID) error {
	c := newCall(callUnsubscribe)
	c.clientID, c.subscriptionID = clientID, subscriptionID
	_, err := d.submit(ctx, c)
	return err
}

// Services returns a snapshot of the catalogue, optionally filtered. An
// empty filterText matches everything.
func (d *Domain) Services(ctx context.Context, filterText string) ([]*Service, error) {
	c := newCall(callServices)
	c.filterText = filterText
	res, err := d.submit(ctx, c)
	return res.services, err
}

// Subscriptions returns a snapshot of every subscription in the domain.
func (d *Domain) Subscriptions(ctx context.Context) ([]*Subscription, error) {
	res, err := d.submit(ctx, newCall(callSubscriptions))
	return res.subscriptions, err
}

// Clients returns a snapshot of every live session in the domain.
func (d *Domain) Clients(ctx context.Context) ([]ClientSummary, error) {
	res, err := d.submit(ctx, newCall(callClients))
	return res.clients, err
}

// Ping is a liveness no-op that always accepts.
func (d *Domain) Ping(ctx context.Context) error {
	_, err := d.submit(ctx, newCall(callPing))
	return err
}

// SessionClosed tears down everything clientID owned: its subscriptions
// end immediately (no disappeared notifications to their peers), and
// its services become orphans with a TTL-bounded grace period (spec.md
// §4.3 "Session close causes").
func (d *Domain) SessionClosed(ctx context.Context, clientID ClientID) error {
	c := newCall(callSessionClosed)
	c.clientID = clientID
	_, err := d.submit(ctx, c)
	return err
}

// Stats returns a point-in-time snapshot of resource usage, safe to
// call from any goroutine because it is routed through the event loop
// like every other command (this is the "asking the domain loop for
// one" that resource.go's Accountant.Snapshot doc comment refers to).
func (d *Domain) Stats(ctx context.Context) ([resourceCount]int, error) {
	res, err := d.submit(ctx, newCall(callStats))
	return res.stats, err
}

// dispatch runs on the loop goroutine only.
func (d *Domain) dispatch(c *call) callResult {
	switch c.kind {
	case callHello:
		return d.handleHello(c)
	case callPublish:
		return d.handlePublish(c)
	case callUnpublish:
		return d.handleUnpublish(c)
	case callSubscribe:
		return d.handleSubscribe(c)
	case callUnsubscribe:
		return d.handleUnsubscribe(c)
	case callServices:
		return d.handleServices(c)
	case callSubscriptions:
		return d.handleSubscriptions(c)
	case callClients:
		return d.handleClients(c)
	case callPing:
		return callResult{}
	case callSessionClosed:
		return d.handleSessionClosed(c)
	case callStats:
		return callResult{stats: d.acct.Snapshot()}
	default:
		return callResult{err: ErrUnknownCommand}
	}
}

func (d *Domain) handleHello(c *call) callResult {
	if !d.acct.Charge(ResourceClients, c.user) {
		return callResult{err: fail(ReasonInsufficientResources, "clients limit reached for %q", c.user)}
	}

	version := negotiateVersion(d.opts.minVersion, d.opts.maxVersion, c.minVersion, c.maxVersion)
	if version == 0 {
		d.acct.Release(ResourceClients, c.user, 1)
		return callResult{err: fail(ReasonUnsupportedProtocolVersion, "no common version in [%d,%d]", c.minVersion, c.maxVersion)}
	}

	d.nextClientID++
	id := d.nextClientID
	d.clients[id] = &clientRecord{
		user:        c.user,
		remoteAddr:  c.remoteAddr,
		connectedAt: time.Now(),
		services:    make(map[ServiceID]struct{}),
		subs:        make(map[SubscriptionID]struct{}),
	}
	return callResult{clientID: id, version: version}
}

// negotiateVersion returns the highest version in both [serverMin,
// serverMax] and [reqMin, reqMax], or 0 if the ranges don't overlap.
func negotiateVersion(serverMin, serverMax, reqMin, reqMax uint8) uint8 {
	lo, hi := serverMin, serverMax
	if reqMin > lo {
		lo = reqMin
	}
	if reqMax < hi {
		hi = reqMax
	}
	if lo > hi {
		return 0
	}
	return hi
}

func (d *Domain) ownsLive(svc *Service, clientID ClientID) bool {
	if svc.IsOrphan() {
		return false
	}
	return svc.Owner == clientID
}

func (d *Domain) handlePublish(c *call) callResult {
	rec, ok := d.clients[c.clientID]
	if !ok {
		return callResult{err: fail(ReasonPermissionDenied, "unknown client-id")}
	}

	svc, exists := d.services[c.serviceID]
	if !exists {
		if !d.acct.Charge(ResourceServices, rec.user) {
			return callResult{err: fail(ReasonInsufficientResources, "services limit reached for %q", rec.user)}
		}
		svc = &Service{
			ID:         c.serviceID,
			Generation: c.generation,
			Props:      c.props.Clone(),
			TTL:        c.ttl,
			Owner:      c.clientID,
			OwnerUser:  rec.user,
		}
		d.services[svc.ID] = svc
		rec.services[svc.ID] = struct{}{}
		d.notifyPublish(svc)
		return callResult{}
	}

	if svc.IsOrphan() {
		if svc.OwnerUser != rec.user {
			return callResult{err: fail(ReasonPermissionDenied, "service %d is orphaned under a different user", svc.ID)}
		}
	} else if svc.Owner != c.clientID {
		return callResult{err: fail(ReasonPermissionDenied, "service %d is live under another client", svc.ID)}
	}

	if c.generation <= svc.Generation {
		if c.generation == svc.Generation && !svc.Props.Equal(c.props) {
			return callResult{err: fail(ReasonSameGenerationButDifferent, "service %d generation %d already published with different props", svc.ID, svc.Generation)}
		}
		return callResult{err: fail(ReasonOldGeneration, "service %d generation %d is not newer than stored %d", svc.ID, c.generation, svc.Generation)}
	}

	if svc.IsOrphan() {
		d.removeOrphan(svc.ID)
		svc.adopt(c.clientID, rec.user)
		rec.services[svc.ID] = struct{}{}
	}
	svc.Generation = c.generation
	svc.Props = c.props.Clone()
	svc.TTL = c.ttl
	svc.Owner = c.clientID

	d.notifyPublish(svc)
	return callResult{}
}

func (d *Domain) handleUnpublish(c *call) callResult {
	rec, ok := d.clients[c.clientID]
	if !ok {
		return callResult{err: fail(ReasonPermissionDenied, "unknown client-id")}
	}
	svc, exists := d.services[c.serviceID]
	if !exists {
		return callResult{err: fail(ReasonNonExistentService, "service %d not found", c.serviceID)}
	}
	if !d.ownsLive(svc, c.clientID) {
		return callResult{err: fail(ReasonPermissionDenied, "service %d not owned by client %d", svc.ID, c.clientID)}
	}

	delete(d.services, svc.ID)
	delete(rec.services, svc.ID)
	d.acct.Release(ResourceServices, rec.user, 1)
	d.notifyRemoval(svc)
	return callResult{}
}

// notifyPublish walks every subscription and updates its match state
// against svc's current props, emitting appeared/modified/disappeared
// as the diff dictates (spec.md §4.2 "Notification computation").
func (d *Domain) notifyPublish(svc *Service) {
	for _, sub := range d.subscriptions {
		matchesNow := sub.Filter.Matches(svc.Props)
		prev, wasMatching := sub.wasMatching(svc.ID)

		switch {
		case matchesNow && wasMatching:
			if prev.generation != svc.Generation || !prev.props.Equal(svc.Props) {
				sub.recordMatch(svc.ID, svc)
				d.deliver(sub, MatchModified, svc)
			}
		case matchesNow && !wasMatching:
			sub.recordMatch(svc.ID, svc)
			d.deliver(sub, MatchAppeared, svc)
		case !matchesNow && wasMatching:
			sub.forget(svc.ID)
			d.deliver(sub, MatchDisappeared, svc)
		}
	}
}

// notifyRemoval emits disappeared to every subscription currently
// caching svc as a match, used for both unpublish and orphan-timeout.
func (d *Domain) notifyRemoval(svc *Service) {
	for _, sub := range d.subscriptions {
		if _, wasMatching := sub.wasMatching(svc.ID); wasMatching {
			sub.forget(svc.ID)
			d.deliver(sub, MatchDisappeared, svc)
		}
	}
}

func (d *Domain) deliver(sub *Subscription, match MatchType, svc *Service) {
	if sink, ok := d.sinks[sub.ID]; ok {
		sink(Notification{SubscriptionID: sub.ID, Match: match, Service: svc.clone()})
	}
}

func (d *Domain) handleSubscribe(c *call) callResult {
	rec, ok := d.clients[c.clientID]
	if !ok {
		return callResult{err: fail(ReasonPermissionDenied, "unknown client-id")}
	}
	if _, exists := d.subscriptions[c.subscriptionID]; exists {
		return callResult{err: fail(ReasonSubscriptionIDExists, "subscription %d already exists", c.subscriptionID)}
	}

	f, err := filter.Compile(c.filterText)
	if err != nil {
		return callResult{err: fail(ReasonInvalidFilterSyntax, "%v", err)}
	}

	if !d.acct.Charge(ResourceSubscriptions, rec.user) {
		return callResult{err: fail(ReasonInsufficientResources, "subscriptions limit reached for %q", rec.user)}
	}
	if !d.acct.ChargeN(ResourceFilterNodes, rec.user, f.NodeCount()) {
		d.acct.Release(ResourceSubscriptions, rec.user, 1)
		return callResult{err: fail(ReasonInsufficientResources, "subscription_filter_nodes limit reached for %q", rec.user)}
	}

	sub := newSubscription(c.subscriptionID, c.clientID, f)
	d.subscriptions[sub.ID] = sub
	rec.subs[sub.ID] = struct{}{}
	d.sinks[sub.ID] = c.sink

	tok := newToken()
	d.subTokens[sub.ID] = tok

	ids := make([]ServiceID, 0, len(d.services))
	for id := range d.services {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		svc := d.services[id]
		if sub.Filter.Matches(svc.Props) {
			sub.recordMatch(svc.ID, svc)
			c.sink(Notification{SubscriptionID: sub.ID, Match: MatchAppeared, Service: svc.clone()})
		}
	}

	return callResult{token: tok}
}

func (d *Domain) handleUnsubscribe(c *call) callResult {
	rec, ok := d.clients[c.clientID]
	if !ok {
		return callResult{err: fail(ReasonPermissionDenied, "unknown client-id")}
	}
	sub, exists := d.subscriptions[c.subscriptionID]
	if !exists {
		return callResult{err: fail(ReasonNonExistentSubscription, "subscription %d not found", c.subscriptionID)}
	}
	if sub.Owner != c.clientID {
		return callResult{err: fail(ReasonPermissionDenied, "subscription %d not owned by client %d", sub.ID, c.clientID)}
	}

	d.dropSubscription(sub, rec, nil)
	return callResult{}
}

// dropSubscription removes sub's bookkeeping entirely: no disappeared
// notifications, completing its token with cause (nil for a clean
// client-requested unsubscribe).
func (d *Domain) dropSubscription(sub *Subscription, rec *clientRecord, cause error) {
	d.acct.Release(ResourceSubscriptions, rec.user, 1)
	d.acct.Release(ResourceFilterNodes, rec.user, sub.Filter.NodeCount())
	delete(d.subscriptions, sub.ID)
	delete(rec.subs, sub.ID)
	delete(d.sinks, sub.ID)
	if tok, ok := d.subTokens[sub.ID]; ok {
		tok.complete(cause)
		delete(d.subTokens, sub.ID)
	}
}

func (d *Domain) handleServices(c *call) callResult {
	f, err := filter.Compile(c.filterText)
	if err != nil {
		return callResult{err: fail(ReasonInvalidFilterSyntax, "%v", err)}
	}
	ids := make([]ServiceID, 0, len(d.services))
	for id := range d.services {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Service, 0, len(ids))
	for _, id := range ids {
		svc := d.services[id]
		if f.Matches(svc.Props) {
			out = append(out, svc.clone())
		}
	}
	return callResult{services: out}
}

func (d *Domain) handleSubscriptions(c *call) callResult {
	ids := make([]SubscriptionID, 0, len(d.subscriptions))
	for id := range d.subscriptions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Subscription, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.subscriptions[id])
	}
	return callResult{subscriptions: out}
}

func (d *Domain) handleClients(c *call) callResult {
	ids := make([]ClientID, 0, len(d.clients))
	for id := range d.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]ClientSummary, 0, len(ids))
	for _, id := range ids {
		rec := d.clients[id]
		out = append(out, ClientSummary{ClientID: id, RemoteAddr: rec.remoteAddr, ConnectedAt: rec.connectedAt})
	}
	return callResult{clients: out}
}

func (d *Domain) handleSessionClosed(c *call) callResult {
	rec, ok := d.clients[c.clientID]
	if !ok {
		return callResult{}
	}

	for id := range rec.subs {
		if sub, exists := d.subscriptions[id]; exists {
			d.dropSubscription(sub, rec, ErrSessionClosed)
		}
	}

	now := time.Now()
	for id := range rec.services {
		if svc, exists := d.services[id]; exists {
			svc.orphan(now)
			d.addOrphan(svc)
		}
	}

	d.acct.Release(ResourceClients, rec.user, 1)
	delete(d.clients, c.clientID)
	return callResult{}
}
