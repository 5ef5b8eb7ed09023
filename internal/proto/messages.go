package proto

import (
	"bytes"
	"fmt"
)

// Request bodies. Each has Encode (producing the bytes that go in
// Frame.Body) and a matching Decode function.

type HelloRequest struct {
	MinVersion uint8
	MaxVersion uint8
}

func (m HelloRequest) Encode() []byte {
	buf := getBuffer()
	defer putBuffer(buf)
	writeUint8(buf, m.MinVersion)
	writeUint8(buf, m.MaxVersion)
	return append([]byte(nil), buf.Bytes()...)
}

func DecodeHelloRequest(body []byte) (HelloRequest, error) {
	r := bytes.NewReader(body)
	min, err := readUint8(r)
	if err != nil {
		return HelloRequest{}, err
	}
	max, err := readUint8(r)
	if err != nil {
		return HelloRequest{}, err
	}
	return HelloRequest{MinVersion: min, MaxVersion: max}, nil
}

type PublishRequest struct {
	ServiceID  uint64
	Generation uint32
	Props      PropList
	TTLSeconds uint32
}

func (m PublishRequest) Encode() []byte {
	buf := getBuffer()
	defer putBuffer(buf)
	writeUint64(buf, m.ServiceID)
	writeUint32(buf, m.Generation)
	writeProps(buf, m.Props)
	writeUint32(buf, m.TTLSeconds)
	return append([]byte(nil), buf.Bytes()...)
}

func DecodePublishRequest(body []byte) (PublishRequest, error) {
	r := bytes.NewReader(body)
	id, err := readUint64(r)
	if err != nil {
		return PublishRequest{}, err
	}
	gen, err := readUint32(r)
	if err != nil {
		return PublishRequest{}, err
	}
	props, err := readProps(r)
	if err != nil {
		return PublishRequest{}, err
	}
	ttl, err := readUint32(r)
	if err != nil {
		return PublishRequest{}, err
	}
	return PublishRequest{ServiceID: id, Generation: gen, Props: props, TTLSeconds: ttl}, nil
}

type UnpublishRequest struct{ ServiceID uint64 }

func (m UnpublishRequest) Encode() []byte {
	buf := getBuffer()
	defer putBuffer(buf)
	writeUint64(buf, m.ServiceID)
	return append([]byte(nil), buf.Bytes()...)
}

func DecodeUnpublishRequest(body []byte) (UnpublishRequest, error) {
	r := bytes.NewReader(body)
	id, err := readUint64(r)
	if err != nil {
		return UnpublishRequest{}, err
	}
	return UnpublishRequest{ServiceID: id}, nil
}

type SubscribeRequest struct {
	SubscriptionID uint64
	FilterText     string
}

func (m SubscribeRequest) Encode() []byte {
	buf := getBuffer()
	defer putBuffer(buf)
	writeUint64(buf, m.SubscriptionID)
	writeString(buf, m.FilterText)
	return append([]byte(nil), buf.Bytes()...)
}

func DecodeSubscribeRequest(body []byte) (SubscribeRequest, error) {
	r := bytes.NewReader(body)
	id, err := readUint64(r)
	if err != nil {
		return SubscribeRequest{}, err
	}
	text, err := readString(r)
	if err != nil {
		return SubscribeRequest{}, err
	}
	return SubscribeRequest{SubscriptionID: id, FilterText: text}, nil
}

type UnsubscribeRequest struct{ SubscriptionID uint64 }

func (m UnsubscribeRequest) Encode() []byte {
	buf := getBuffer()
	defer putBuffer(buf)
	writeUint64(buf, m.SubscriptionID)
	return append([]byte(nil), buf.Bytes()...)
}

func DecodeUnsubscribeRequest(body []byte) (UnsubscribeRequest, error) {
	r := bytes.NewReader(body)
	id, err := readUint64(r)
	if err != nil {
		return UnsubscribeRequest{}, err
	}
	return UnsubscribeRequest{SubscriptionID: id}, nil
}

// ServicesRequest lists the catalogue, optionally filtered. An empty
// FilterText matches every service (filter.Compile treats "" specially).
type ServicesRequest struct{ FilterText string }

func (m ServicesRequest) Encode() []byte {
	buf := getBuffer()
	defer putBuffer(buf)
	writeString(buf, m.FilterText)
	return append([]byte(nil), buf.Bytes()...)
}

func DecodeServicesRequest(body []byte) (ServicesRequest, error) {
	r := bytes.NewReader(body)
	text, err := readString(r)
	if err != nil {
		return ServicesRequest{}, err
	}
	return ServicesRequest{FilterText: text}, nil
}

// SubscriptionsRequest, ClientsRequest and PingRequest carry no fields;
// Encode/Decode exist for symmetry with the rest of the catalogue.
type SubscriptionsRequest struct{}

func (SubscriptionsRequest) Encode() []byte                             { return nil }
func DecodeSubscriptionsRequest([]byte) (SubscriptionsRequest, error)    { return SubscriptionsRequest{}, nil }

type ClientsRequest struct{}

func (ClientsRequest) Encode() []byte                    { return nil }
func DecodeClientsRequest([]byte) (ClientsRequest, error) { return ClientsRequest{}, nil }

type PingRequest struct{}

func (PingRequest) Encode() []byte                  { return nil }
func DecodePingRequest([]byte) (PingRequest, error) { return PingRequest{}, nil }

// Response bodies.

// AcceptBody is the body of a MsgAccept frame. HasHello distinguishes a
// hello's accept (which negotiates a version and assigns a client id)
// from every other command's accept (which carries nothing).
type AcceptBody struct {
	HasHello bool
	Version  uint8
	ClientID uint64
}

func (m AcceptBody) Encode() []byte {
	buf := getBuffer()
	defer putBuffer(buf)
	if m.HasHello {
		writeUint8(buf, 1)
		writeUint8(buf, m.Version)
		writeUint64(buf, m.ClientID)
	} else {
		writeUint8(buf, 0)
	}
	return append([]byte(nil), buf.Bytes()...)
}

func DecodeAcceptBody(body []byte) (AcceptBody, error) {
	r := bytes.NewReader(body)
	flag, err := readUint8(r)
	if err != nil {
		return AcceptBody{}, err
	}
	if flag == 0 {
		return AcceptBody{}, nil
	}
	version, err := readUint8(r)
	if err != nil {
		return AcceptBody{}, err
	}
	clientID, err := readUint64(r)
	if err != nil {
		return AcceptBody{}, err
	}
	return AcceptBody{HasHello: true, Version: version, ClientID: clientID}, nil
}

// NotifyKind discriminates the shapes a notify frame can carry: a
// subscription match event, or one row of a services/subscriptions/
// clients snapshot listing.
type NotifyKind uint8

const (
	NotifyMatch NotifyKind = iota + 1
	NotifyServiceEntry
	NotifySubscriptionEntry
	NotifyClientEntry
)

// NotifyBody is the body of a MsgNotify frame. Only the fields relevant
// to NotifyKind are populated; the rest are zero.
type NotifyBody struct {
	NotifyKind NotifyKind

	// NotifyMatch / NotifyServiceEntry
	MatchType      uint8
	ServiceID      uint64
	Generation     uint32
	Props          PropList
	TTLSeconds     uint32
	Owner          uint64
	IsOrphan       bool
	OrphanUnixNano int64

	// NotifySubscriptionEntry
	SubscriptionID uint64
	FilterText     string

	// NotifyClientEntry
	ClientID          uint64
	RemoteAddr        string
	ConnectedUnixNano int64
}

func (m NotifyBody) Encode() []byte {
	buf := getBuffer()
	defer putBuffer(buf)
	writeUint8(buf, uint8(m.NotifyKind))

	switch m.NotifyKind {
	case NotifyMatch:
		writeUint8(buf, m.MatchType)
		writeUint64(buf, m.ServiceID)
		writeUint32(buf, m.Generation)
		writeProps(buf, m.Props)
		writeUint32(buf, m.TTLSeconds)
		writeUint64(buf, m.Owner)
		writeOrphan(buf, m.IsOrphan, m.OrphanUnixNano)
	case NotifyServiceEntry:
		writeUint64(buf, m.ServiceID)
		writeUint32(buf, m.Generation)
		writeProps(buf, m.Props)
		writeUint32(buf, m.TTLSeconds)
		writeUint64(buf, m.Owner)
		writeOrphan(buf, m.IsOrphan, m.OrphanUnixNano)
	case NotifySubscriptionEntry:
		writeUint64(buf, m.SubscriptionID)
		writeString(buf, m.FilterText)
	case NotifyClientEntry:
		writeUint64(buf, m.ClientID)
		writeString(buf, m.RemoteAddr)
		var b [8]byte
		putInt64(b[:], m.ConnectedUnixNano)
		buf.Write(b[:])
	}
	return append([]byte(nil), buf.Bytes()...)
}

func writeOrphan(buf *bytes.Buffer, isOrphan bool, unixNano int64) {
	if isOrphan {
		writeUint8(buf, 1)
		var b [8]byte
		putInt64(b[:], unixNano)
		buf.Write(b[:])
	} else {
		writeUint8(buf, 0)
	}
}

func readOrphan(r *bytes.Reader) (bool, int64, error) {
	flag, err := readUint8(r)
	if err != nil {
		return false, 0, err
	}
	if flag == 0 {
		return false, 0, nil
	}
	var b [8]byte
	if _, err := readFull(r, b[:]); err != nil {
		return false, 0, err
	}
	return true, getInt64(b[:]), nil
}

func DecodeNotifyBody(body []byte) (NotifyBody, error) {
	r := bytes.NewReader(body)
	kindByte, err := readUint8(r)
	if err != nil {
		return NotifyBody{}, err
	}
	m := NotifyBody{NotifyKind: NotifyKind(kindByte)}

	switch m.NotifyKind {
	case NotifyMatch:
		if m.MatchType, err = readUint8(r); err != nil {
			return NotifyBody{}, err
		}
		if m.ServiceID, err = readUint64(r); err != nil {
			return NotifyBody{}, err
		}
		if m.Generation, err = readUint32(r); err != nil {
			return NotifyBody{}, err
		}
		if m.Props, err = readProps(r); err != nil {
			return NotifyBody{}, err
		}
		if m.TTLSeconds, err = readUint32(r); err != nil {
			return NotifyBody{}, err
		}
		if m.Owner, err = readUint64(r); err != nil {
			return NotifyBody{}, err
		}
		if m.IsOrphan, m.OrphanUnixNano, err = readOrphan(r); err != nil {
			return NotifyBody{}, err
		}
	case NotifyServiceEntry:
		if m.ServiceID, err = readUint64(r); err != nil {
			return NotifyBody{}, err
		}
		if m.Generation, err = readUint32(r); err != nil {
			return NotifyBody{}, err
		}
		if m.Props, err = readProps(r); err != nil {
			return NotifyBody{}, err
		}
		if m.TTLSeconds, err = readUint32(r); err != nil {
			return NotifyBody{}, err
		}
		if m.Owner, err = readUint64(r); err != nil {
			return NotifyBody{}, err
		}
		if m.IsOrphan, m.OrphanUnixNano, err = readOrphan(r); err != nil {
			return NotifyBody{}, err
		}
	case NotifySubscriptionEntry:
		if m.SubscriptionID, err = readUint64(r); err != nil {
			return NotifyBody{}, err
		}
		if m.FilterText, err = readString(r); err != nil {
			return NotifyBody{}, err
		}
	case NotifyClientEntry:
		if m.ClientID, err = readUint64(r); err != nil {
			return NotifyBody{}, err
		}
		if m.RemoteAddr, err = readString(r); err != nil {
			return NotifyBody{}, err
		}
		var b [8]byte
		if _, err := readFull(r, b[:]); err != nil {
			return NotifyBody{}, err
		}
		m.ConnectedUnixNano = getInt64(b[:])
	default:
		return NotifyBody{}, fmt.Errorf("proto: unknown notify kind %d", kindByte)
	}
	return m, nil
}

// CompleteBody is the (empty) body of a MsgComplete frame.
type CompleteBody struct{}

func (CompleteBody) Encode() []byte                     { return nil }
func DecodeCompleteBody([]byte) (CompleteBody, error)   { return CompleteBody{}, nil }

// FailBody is the body of a MsgFail frame.
type FailBody struct {
	Reason  uint8
	Message string
}

func (m FailBody) Encode() []byte {
	buf := getBuffer()
	defer putBuffer(buf)
	writeUint8(buf, m.Reason)
	writeString(buf, m.Message)
	return append([]byte(nil), buf.Bytes()...)
}

func DecodeFailBody(body []byte) (FailBody, error) {
	r := bytes.NewReader(body)
	reason, err := readUint8(r)
	if err != nil {
		return FailBody{}, err
	}
	message, err := readString(r)
	if err != nil {
		return FailBody{}, err
	}
	return FailBody{Reason: reason, Message: message}, nil
}
