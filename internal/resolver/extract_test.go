package resolver

import "testing"

func TestRegexExtractor(t *testing.T) {
	e := NewRegexExtractor()
	text := `token: "Wrapped ETH", amount 2.5, chain_id:1 "destination_address": "0xabc", token_in=ignored`
	got := e.Extract(text, []string{"token", "amount", "chain_id", "destination_address", "token_in", "missing"})
	want := map[string]string{
		"token":               "Wrapped ETH",
		"amount":              "2.5",
		"chain_id":            "1",
		"destination_address": "0xabc",
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected extraction: %+v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestRegexExtractorRequiresNameBoundary(t *testing.T) {
	e := NewRegexExtractor()
	got := e.Extract("token_address: 0x1 mytoken: BAD", []string{"token"})
	if _, ok := got["token"]; ok {
		t.Fatalf("did not expect token to match a longer name: %+v", got)
	}
}

func TestRegexExtractorBareValuesStopAtJSONPunctuation(t *testing.T) {
	e := NewRegexExtractor()
	got := e.Extract(`{"amount":5,"chain_id":8453}, token: [USDC] protocol:Aave:v3`, []string{"amount", "chain_id", "token", "protocol"})
	want := map[string]string{"amount": "5", "chain_id": "8453", "protocol": "Aave"}
	if len(got) != len(want) {
		t.Fatalf("unexpected extraction: %+v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %q, want %q", k, got[k], v)
		}
	}
}
