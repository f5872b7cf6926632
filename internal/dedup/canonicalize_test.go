package dedup

import (
	"bytes"
	"testing"
)

func TestCanonicalize_KeyOrderIndependent(t *testing.T) {
	a := []byte(`{"model":"gpt-4.1","messages":[{"role":"user","content":"hi"}]}`)
	b := []byte(`{"messages":[{"content":"hi","role":"user"}],"model":"gpt-4.1"}`)

	if !bytes.Equal(Canonicalize(a), Canonicalize(b)) {
		t.Errorf("expected identical canonical forms, got %s vs %s", Canonicalize(a), Canonicalize(b))
	}
}

func TestCanonicalize_StripsTimestampPrefix(t *testing.T) {
	a := []byte(`{"messages":[{"content":"[Mon 2026-08-02 10:15 UTC] hello"}]}`)
	b := []byte(`{"messages":[{"content":"hello"}]}`)

	if !bytes.Equal(Canonicalize(a), Canonicalize(b)) {
		t.Errorf("expected timestamp-stripped forms to match, got %s vs %s", Canonicalize(a), Canonicalize(b))
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	body := []byte(`{"b":1,"a":{"z":1,"y":2},"c":[3,1,2]}`)
	once := Canonicalize(body)
	twice := Canonicalize(once)
	if !bytes.Equal(once, twice) {
		t.Errorf("canonicalize not idempotent: %s != %s", once, twice)
	}
}

func TestCanonicalize_FallsBackOnInvalidJSON(t *testing.T) {
	body := []byte(`not json at all`)
	if !bytes.Equal(Canonicalize(body), body) {
		t.Error("expected raw bytes fallback for invalid JSON")
	}
}

func TestCanonicalize_OnlyStripsUnderContentKey(t *testing.T) {
	a := []byte(`{"role":"[Mon 2026-08-02 10:15 UTC] user"}`)
	out := Canonicalize(a)
	if !bytes.Contains(out, []byte("[Mon 2026-08-02 10:15 UTC] user")) {
		t.Errorf("expected non-content field left untouched, got %s", out)
	}
}
