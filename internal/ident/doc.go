// Package ident computes content-addressed identity for runs.
//
// A RunID is "<UTC timestamp>-<hash prefix>" where the hash is SHA-256 over
// the canonical JSON of the resolved run configuration, with domain
// separation. Two submissions of the same configuration within the same
// second produce the same RunID and therefore share a run directory.
//
// Canonical JSON here follows RFC 8785 where it matters for hashing:
//   - Object keys sorted by UTF-16 code units
//   - Strings NFC normalized, no HTML escaping
//   - Numbers rendered in shortest round-trip form
package ident
