package pathfinder

import (
	"time"

	"github.com/gonzalop/pathfinder/internal/proto"
)

// toWireProps converts a domain Props multimap to its wire form.
func toWireProps(p Props) proto.PropList {
	if len(p) == 0 {
		return nil
	}
	out := make(proto.PropList, 0, len(p))
	for key, values := range p {
		wv := make([]proto.PropValue, len(values))
		for i, v := range values {
			switch v.Kind {
			case KindInt:
				wv[i] = proto.PropValue{Kind: proto.PropInt, Int: v.Int}
			default:
				wv[i] = proto.PropValue{Kind: proto.PropString, Str: v.Str}
			}
		}
		out = append(out, proto.PropEntry{Key: key, Values: wv})
	}
	return out
}

// fromWireProps converts a wire PropList back to a domain Props.
func fromWireProps(pl proto.PropList) Props {
	if len(pl) == 0 {
		return Props{}
	}
	out := make(Props, len(pl))
	for _, entry := range pl {
		values := make([]Value, len(entry.Values))
		for i, v := range entry.Values {
			switch v.Kind {
			case proto.PropInt:
				values[i] = IntValue(v.Int)
			default:
				values[i] = StringValue(v.Str)
			}
		}
		out[entry.Key] = values
	}
	return out
}

func wireReason(r FailReason) uint8 { return uint8(r) }

func wireMatchType(m MatchType) uint8 { return uint8(m) }

func ttlToSeconds(ttl time.Duration) uint32 { return uint32(ttl / time.Second) }

func secondsToTTL(s uint32) time.Duration { return time.Duration(s) * time.Second }
