package internal

import (
	"testing"
)

// FuzzFingerprintMatches checks that a token always matches its own
// fingerprint and never matches a revocation marker.
func FuzzFingerprintMatches(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMDAxIn0.sig")
	f.Add("!!!not-a-token!!!")

	marker := NewRevocationMarker()

	f.Fuzz(func(t *testing.T, token string) {
		if !FingerprintMatches(Fingerprint(token), token) {
			t.Fatalf("token %q did not match its own fingerprint", token)
		}
		if FingerprintMatches(marker, token) {
			t.Fatalf("token %q matched a revocation marker", token)
		}
	})
}
