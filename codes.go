package pathfinder

// Command identifies the request side of a transaction (spec.md §6,
// "cmd"). One constant per operation the session protocol defines.
type Command uint8

const (
	CmdHello Command = iota + 1
	CmdPublish
	CmdUnpublish
	CmdSubscribe
	CmdUnsubscribe
	CmdServices
	CmdSubscriptions
	CmdClients
	CmdPing
)

func (c Command) String() string {
	switch c {
	case CmdHello:
		return "hello"
	case CmdPublish:
		return "publish"
	case CmdUnpublish:
		return "unpublish"
	case CmdSubscribe:
		return "subscribe"
	case CmdUnsubscribe:
		return "unsubscribe"
	case CmdServices:
		return "services"
	case CmdSubscriptions:
		return "subscriptions"
	case CmdClients:
		return "clients"
	case CmdPing:
		return "ping"
	default:
		return "unknown"
	}
}

// MsgType identifies the response side of a transaction (spec.md §6,
// "msg-type").
type MsgType uint8

const (
	MsgAccept MsgType = iota + 1
	MsgNotify
	MsgComplete
	MsgFail
)

func (m MsgType) String() string {
	switch m {
	case MsgAccept:
		return "accept"
	case MsgNotify:
		return "notify"
	case MsgComplete:
		return "complete"
	case MsgFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MatchType identifies how a notification relates a service to a
// subscription (spec.md §4.2, "Notification computation").
type MatchType uint8

const (
	MatchAppeared MatchType = iota + 1
	MatchModified
	MatchDisappeared
)

func (m MatchType) String() string {
	switch m {
	case MatchAppeared:
		return "appeared"
	case MatchModified:
		return "modified"
	case MatchDisappeared:
		return "disappeared"
	default:
		return "unknown"
	}
}

// FailReason is the closed set of machine-readable reasons a transaction
// may fail with (spec.md §6, "fail-reason").
type FailReason uint8

const (
	ReasonNoHello FailReason = iota + 1
	ReasonClientIDExists
	ReasonInvalidFilterSyntax
	ReasonSubscriptionIDExists
	ReasonNonExistentSubscription
	ReasonNonExistentService
	ReasonUnsupportedProtocolVersion
	ReasonPermissionDenied
	ReasonOldGeneration
	ReasonSameGenerationButDifferent
	ReasonInsufficientResources
)

func (r FailReason) String() string {
	switch r {
	case ReasonNoHello:
		return "no-hello"
	case ReasonClientIDExists:
		return "client-id-exists"
	case ReasonInvalidFilterSyntax:
		return "invalid-filter-syntax"
	case ReasonSubscriptionIDExists:
		return "subscription-id-exists"
	case ReasonNonExistentSubscription:
		return "non-existent-subscription"
	case ReasonNonExistentService:
		return "non-existent-service"
	case ReasonUnsupportedProtocolVersion:
		return "unsupported-protocol-version"
	case ReasonPermissionDenied:
		return "permission-denied"
	case ReasonOldGeneration:
		return "old-generation"
	case ReasonSameGenerationButDifferent:
		return "same-generation-but-different"
	case ReasonInsufficientResources:
		return "insufficient-resources"
	default:
		return "unknown"
	}
}
