package filter

import "testing"

type testProps map[string][]Value

func (p testProps) Values(key string) []Value { return p[key] }

func TestCompileEquality(t *testing.T) {
	f, err := Compile("(name=foo)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !f.Matches(testProps{"name": {StringValue("foo")}}) {
		t.Error("expected match on exact equality")
	}
	if f.Matches(testProps{"name": {StringValue("bar")}}) {
		t.Error("expected no match on differing value")
	}
}

func TestCompileGlob(t *testing.T) {
	f, err := Compile("(addr=192.168.*)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !f.Matches(testProps{"addr": {StringValue("192.168.1.5")}}) {
		t.Error("expected glob match")
	}
	if f.Matches(testProps{"addr": {StringValue("10.0.0.1")}}) {
		t.Error("expected no glob match")
	}
}

func TestCompilePresence(t *testing.T) {
	f, err := Compile("(color=*)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !f.Matches(testProps{"color": {StringValue("green")}}) {
		t.Error("expected presence match")
	}
	if f.Matches(testProps{}) {
		t.Error("expected no presence match on empty props")
	}
}

func TestCompileComparison(t *testing.T) {
	f, err := Compile("(port>=1024)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !f.Matches(testProps{"port": {IntValue(8080)}}) {
		t.Error("expected 8080 >= 1024 to match")
	}
	if f.Matches(testProps{"port": {IntValue(80)}}) {
		t.Error("expected 80 >= 1024 to not match")
	}
	// type mismatch: string candidate against integer comparison fails the node.
	if f.Matches(testProps{"port": {StringValue("8080")}}) {
		t.Error("expected string value to fail integer comparison")
	}
}

func TestCompileAndOrNot(t *testing.T) {
	f, err := Compile("(&(name=foo)(!(color=red)))")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !f.Matches(testProps{"name": {StringValue("foo")}, "color": {StringValue("green")}}) {
		t.Error("expected AND/NOT match")
	}
	if f.Matches(testProps{"name": {StringValue("foo")}, "color": {StringValue("red")}}) {
		t.Error("expected AND/NOT to reject red")
	}

	f2, err := Compile("(|(name=foo)(name=bar))")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !f2.Matches(testProps{"name": {StringValue("bar")}}) {
		t.Error("expected OR match on second branch")
	}
}

func TestCompileSyntaxError(t *testing.T) {
	cases := []string{
		"(&(name=x)",
		"",
		"name=x",
		"(name)",
		"(port<abc)",
	}
	for _, c := range cases {
		if c == "" {
			// An empty filter is valid (matches everything), not a syntax error.
			if _, err := Compile(c); err != nil {
				t.Errorf("Compile(%q) unexpected error: %v", c, err)
			}
			continue
		}
		if _, err := Compile(c); err == nil {
			t.Errorf("Compile(%q) expected a syntax error", c)
		}
	}
}

func TestNodeCount(t *testing.T) {
	f, err := Compile("(&(name=x)(port>1))")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// and + 2 leaves = 3 nodes
	if f.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", f.NodeCount())
	}
}

func TestMultipleValuesAnyMatch(t *testing.T) {
	f, err := Compile("(tag=blue)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	props := testProps{"tag": {StringValue("red"), StringValue("blue"), StringValue("green")}}
	if !f.Matches(props) {
		t.Error("expected match when any value in the multi-value set satisfies the leaf")
	}
}

func TestGlobMatchHelper(t *testing.T) {
	cases := []struct {
		pattern, value string
		want           bool
	}{
		{"*", "anything", true},
		{"foo*", "foobar", true},
		{"*bar", "foobar", true},
		{"foo*bar", "foo-x-bar", true},
		{"foo*bar", "foobar", true},
		{"foo", "foobar", false},
		{"*x*y*", "axbyc", true},
		{"*x*y*", "ayxb", false},
	}
	for _, c := range cases {
		if got := globMatch(c.pattern, c.value); got != c.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", c.pattern, c.value, got, c.want)
		}
	}
}
