// Package pathfinder implements a service-discovery rendezvous server:
// services publish their presence as a generation-versioned bag of typed
// properties, and clients subscribe to an LDAP-like filter predicate
// over that catalogue to receive appeared/modified/disappeared
// notifications as the catalogue changes.
//
// # Domains
//
// A Domain is one independently-administered catalogue of services and
// subscriptions. All of its state is owned by a single goroutine
// (started with Run), so every command runs atomically between reading
// its request and producing its response — there is no locking to
// reason about when reading the rest of this package.
//
//	domain := pathfinder.NewDomain("default", pathfinder.WithResourceLimits(limits))
//	go domain.Run(ctx)
//
//	clientID, _, err := domain.Hello(ctx, "alice", "10.0.0.4:51000", 1, 1)
//	err = domain.Publish(ctx, clientID, 0x4711, 0,
//	    pathfinder.Props{"name": {pathfinder.StringValue("printer")}}, time.Minute)
//
// # Subscriptions
//
// Subscribe compiles a filter and streams appeared/modified/disappeared
// notifications to a NotifySink for as long as the returned Token stays
// open:
//
//	sink := func(n pathfinder.Notification) { fmt.Println(n.Match, n.Service.ID) }
//	tok, err := domain.Subscribe(ctx, clientID, 1, "(name=printer*)", sink)
//	<-tok.Done() // closes on unsubscribe, owning session close, or domain shutdown
//
// # Orphaning
//
// A service's owning session can disconnect without unpublishing it.
// SessionClosed marks every service that session owned as orphaned
// rather than deleting it immediately; a republish from the same user
// identity with a strictly greater generation, before the service's TTL
// elapses, reclaims it in place. Otherwise the domain deletes it and
// notifies subscribers once the TTL expires.
//
// # Sessions and transports
//
// Session drives the wire protocol for one accepted connection: it
// decodes request frames (internal/proto), dispatches them to a Domain,
// and encodes responses and notifications back onto the connection
// through a non-blocking outbound queue. Server accepts connections
// from one or more transport.Listener implementations (TCP, WebSocket)
// and spawns a Session per connection.
//
//	srv := pathfinder.NewServer(domain)
//	ln, _ := transport.ListenTCP(":7420")
//	err := srv.Serve(ctx, ln)
package pathfinder
