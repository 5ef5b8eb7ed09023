package pathfinder

import (
	"context"
	"testing"
	"time"
)

func newTestDomain(t *testing.T, opts ...Option) (*Domain, context.Context) {
	t.Helper()
	d := NewDomain("test", opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-d.Stopped()
	})
	return d, ctx
}

func collector() (NotifySink, func() []Notification) {
	var got []Notification
	return func(n Notification) { got = append(got, n) }, func() []Notification { return got }
}

func helloOrFatal(t *testing.T, ctx context.Context, d *Domain, user string) ClientID {
	t.Helper()
	id, _, err := d.Hello(ctx, user, user+":0", 1, 1)
	if err != nil {
		t.Fatalf("hello(%s): %v", user, err)
	}
	return id
}

// scenario 1: basic discovery.
func TestBasicDiscovery(t *testing.T) {
	d, ctx := newTestDomain(t)
	a := helloOrFatal(t, ctx, d, "a")
	b := helloOrFatal(t, ctx, d, "b")

	if err := d.Publish(ctx, a, 0x4711, 0, Props{"name": {StringValue("foo")}}, time.Minute); err != nil {
		t.Fatalf("publish: %v", err)
	}

	sink, notifications := collector()
	if _, err := d.Subscribe(ctx, b, 1, "(name=foo)", sink); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	got := notifications()
	if len(got) != 1 || got[0].Match != MatchAppeared || got[0].Service.ID != 0x4711 {
		t.Fatalf("expected one appeared for 0x4711, got %+v", got)
	}
}

// scenario 2: republish semantics.
func TestRepublishOldGenerationRejected(t *testing.T) {
	d, ctx := newTestDomain(t)
	a := helloOrFatal(t, ctx, d, "a")
	b := helloOrFatal(t, ctx, d, "b")

	sink, notifications := collector()
	if _, err := d.Subscribe(ctx, b, 1, "(color=*)", sink); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := d.Publish(ctx, a, 0x4711, 0, Props{"color": {StringValue("green")}}, time.Minute); err != nil {
		t.Fatalf("publish green: %v", err)
	}
	err := d.Publish(ctx, a, 0x4711, 0, Props{"color": {StringValue("blue")}}, time.Minute)
	if !IsReason(err, ReasonSameGenerationButDifferent) {
		t.Fatalf("expected same-generation-but-different, got %v", err)
	}

	got := notifications()
	if len(got) != 1 || got[0].Match != MatchAppeared {
		t.Fatalf("want exactly one appeared, got %+v", got)
	}
	if got[0].Service.Props["color"][0].Str != "green" {
		t.Fatalf("subscriber should only ever see green, got %+v", got[0].Service.Props)
	}
}

// scenario 3: orphan re-adoption.
func TestOrphanReAdoption(t *testing.T) {
	d, ctx := newTestDomain(t)
	a := helloOrFatal(t, ctx, d, "alice")
	c := helloOrFatal(t, ctx, d, "watcher")

	sink, notifications := collector()
	if _, err := d.Subscribe(ctx, c, 9, "(name=svc)", sink); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := d.Publish(ctx, a, 0x10, 0, Props{"name": {StringValue("svc")}}, 5*time.Second); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := d.SessionClosed(ctx, a); err != nil {
		t.Fatalf("session closed: %v", err)
	}

	a2 := helloOrFatal(t, ctx, d, "alice")
	if err := d.Publish(ctx, a2, 0x10, 1, Props{"name": {StringValue("svc")}}, 5*time.Second); err != nil {
		t.Fatalf("republish: %v", err)
	}

	got := notifications()
	if len(got) != 2 {
		t.Fatalf("want appeared+modified, got %+v", got)
	}
	if got[0].Match != MatchAppeared || got[1].Match != MatchModified {
		t.Fatalf("want appeared then modified, got %v then %v", got[0].Match, got[1].Match)
	}
}

// scenario 4: orphan timeout.
func TestOrphanTimeout(t *testing.T) {
	d, ctx := newTestDomain(t)
	a := helloOrFatal(t, ctx, d, "alice")
	c := helloOrFatal(t, ctx, d, "watcher")

	sink, notifications := collector()
	if _, err := d.Subscribe(ctx, c, 9, "(name=svc)", sink); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := d.Publish(ctx, a, 0x10, 0, Props{"name": {StringValue("svc")}}, 30*time.Millisecond); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := d.SessionClosed(ctx, a); err != nil {
		t.Fatalf("session closed: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		if len(notifications()) == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for disappeared, got %+v", notifications())
		case <-time.After(5 * time.Millisecond):
		}
	}
	got := notifications()
	if got[0].Match != MatchAppeared || got[1].Match != MatchDisappeared {
		t.Fatalf("want appeared then disappeared, got %v then %v", got[0].Match, got[1].Match)
	}
}

// scenario 5: filter rejection.
func TestSubscribeInvalidFilterSyntax(t *testing.T) {
	d, ctx := newTestDomain(t)
	a := helloOrFatal(t, ctx, d, "a")

	_, err := d.Subscribe(ctx, a, 9, "(&(name=x)", nil)
	if !IsReason(err, ReasonInvalidFilterSyntax) {
		t.Fatalf("expected invalid-filter-syntax, got %v", err)
	}
}

// scenario 6: resource denial.
func TestResourceDenialPreservesFirstPublish(t *testing.T) {
	var limits ResourceLimits
	limits[ResourceServices] = Limits{PerUser: 1}

	d, ctx := newTestDomain(t, WithResourceLimits(limits))
	a := helloOrFatal(t, ctx, d, "a")

	if err := d.Publish(ctx, a, 1, 0, Props{"name": {StringValue("one")}}, time.Minute); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	err := d.Publish(ctx, a, 2, 0, Props{"name": {StringValue("two")}}, time.Minute)
	if !IsReason(err, ReasonInsufficientResources) {
		t.Fatalf("expected insufficient-resources, got %v", err)
	}

	services, err := d.Services(ctx, "")
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	if len(services) != 1 || services[0].ID != 1 {
		t.Fatalf("expected only service 1 to survive, got %+v", services)
	}
}

func TestUnsubscribeEmitsNoDisappeared(t *testing.T) {
	d, ctx := newTestDomain(t)
	a := helloOrFatal(t, ctx, d, "a")
	b := helloOrFatal(t, ctx, d, "b")

	if err := d.Publish(ctx, a, 1, 0, Props{"name": {StringValue("x")}}, time.Minute); err != nil {
		t.Fatalf("publish: %v", err)
	}
	sink, notifications := collector()
	tok, err := d.Subscribe(ctx, b, 5, "(name=x)", sink)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := d.Unsubscribe(ctx, b, 5); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	select {
	case <-tok.Done():
	case <-time.After(time.Second):
		t.Fatal("token never completed after unsubscribe")
	}
	if tok.Err() != nil {
		t.Fatalf("clean unsubscribe should complete with nil, got %v", tok.Err())
	}
	if len(notifications()) != 1 {
		t.Fatalf("want only the initial appeared, got %+v", notifications())
	}
}

func TestHelloRejectsUnsupportedVersion(t *testing.T) {
	d, ctx := newTestDomain(t, WithProtocolVersions(2, 2))
	_, _, err := d.Hello(ctx, "a", "a:0", 1, 1)
	if !IsReason(err, ReasonUnsupportedProtocolVersion) {
		t.Fatalf("expected unsupported-protocol-version, got %v", err)
	}
}

func TestPublishPermissionDeniedAcrossLiveClients(t *testing.T) {
	d, ctx := newTestDomain(t)
	a := helloOrFatal(t, ctx, d, "a")
	b := helloOrFatal(t, ctx, d, "b")

	if err := d.Publish(ctx, a, 1, 0, Props{"name": {StringValue("x")}}, time.Minute); err != nil {
		t.Fatalf("publish: %v", err)
	}
	err := d.Publish(ctx, b, 1, 1, Props{"name": {StringValue("y")}}, time.Minute)
	if !IsReason(err, ReasonPermissionDenied) {
		t.Fatalf("expected permission-denied, got %v", err)
	}
}
