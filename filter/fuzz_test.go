package filter

import "testing"

// FuzzCompile exercises the parser's resilience against garbage filter
// text: it must never panic, and any filter it does accept must compile
// a tree that evaluates without panicking either.
func FuzzCompile(f *testing.F) {
	f.Add("(name=foo)")
	f.Add("(&(name=foo)(color=*))")
	f.Add("(|(name=foo)(!(name=bar)))")
	f.Add("(port>=1024)")
	f.Add("(addr=192.168.*)")
	f.Add("(&(name=x)")
	f.Add("")
	f.Add("(())")
	f.Add("(=)")
	f.Add("(a<>b)")

	f.Fuzz(func(t *testing.T, text string) {
		flt, err := Compile(text)
		if err != nil {
			return
		}
		props := testProps{
			"name":  {StringValue("foo")},
			"color": {StringValue("red"), StringValue("blue")},
			"port":  {IntValue(8080)},
			"addr":  {StringValue("192.168.1.1")},
		}
		_ = flt.Matches(props)
		_ = flt.String()
		_ = flt.NodeCount()
	})
}
