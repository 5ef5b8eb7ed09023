package pathfinder

import "github.com/gonzalop/pathfinder/filter"

// ValueKind distinguishes the two typed values a property may hold.
type ValueKind = filter.ValueKind

const (
	KindString = filter.KindString
	KindInt    = filter.KindInt
)

// Value is a single typed property value (an integer or a string).
type Value = filter.Value

func StringValue(s string) Value { return filter.StringValue(s) }
func IntValue(n int64) Value     { return filter.IntValue(n) }

// Props is a multimap from string keys to sets of typed values: the unit
// of service payload and the thing subscription filters match against
// (spec.md §3, "Props").
type Props map[string][]Value

// Values implements filter.Props so a Props can be evaluated directly
// against a compiled Filter.
func (p Props) Values(key string) []Value {
	if p == nil {
		return nil
	}
	return p[key]
}

// Add appends a value to key's value set.
func (p Props) Add(key string, v Value) {
	p[key] = append(p[key], v)
}

// Clone returns a deep copy, safe to retain independently of the
// original (used whenever a Service's props are handed to a subscriber
// notification or stored in a match cache).
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	for k, vs := range p {
		cp := make([]Value, len(vs))
		copy(cp, vs)
		out[k] = cp
	}
	return out
}

// Equal reports whether p and other hold the same keys, each mapped to
// the same multiset of values. Value order within a key does not matter.
func (p Props) Equal(other Props) bool {
	if len(p) != len(other) {
		return false
	}
	for k, vs := range p {
		ovs, ok := other[k]
		if !ok || len(vs) != len(ovs) {
			return false
		}
		if !sameMultiset(vs, ovs) {
			return false
		}
	}
	return true
}

func sameMultiset(a, b []Value) bool {
	used := make([]bool, len(b))
	for _, av := range a {
		found := false
		for i, bv := range b {
			if used[i] {
				continue
			}
			if av == bv {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
