package proto

// Kind identifies the shape of a frame's body. The low half of the byte
// space (1-15) is requests, the high half (16-31) is responses — kept in
// one namespace, like the teacher keeps PUBLISH/SUBSCRIBE/etc and their
// acks as one PacketType enum in internal/packets.
type Kind uint8

const (
	KindHello Kind = iota + 1
	KindPublish
	KindUnpublish
	KindSubscribe
	KindUnsubscribe
	KindServices
	KindSubscriptions
	KindClients
	KindPing
)

const (
	KindAccept Kind = iota + 16
	KindNotify
	KindComplete
	KindFail
)

func (k Kind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindPublish:
		return "publish"
	case KindUnpublish:
		return "unpublish"
	case KindSubscribe:
		return "subscribe"
	case KindUnsubscribe:
		return "unsubscribe"
	case KindServices:
		return "services"
	case KindSubscriptions:
		return "subscriptions"
	case KindClients:
		return "clients"
	case KindPing:
		return "ping"
	case KindAccept:
		return "accept"
	case KindNotify:
		return "notify"
	case KindComplete:
		return "complete"
	case KindFail:
		return "fail"
	default:
		return "unknown"
	}
}

// IsRequest reports whether k names a client-to-server request frame.
func (k Kind) IsRequest() bool { return k >= KindHello && k <= KindPing }

// Header is a decoded frame header: the kind byte and the length of
// everything that follows it.
type Header struct {
	Kind      Kind
	Remaining int
}
