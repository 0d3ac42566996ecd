package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DomainRunConfig separates run-config hashes from any other content hash.
const DomainRunConfig = "arcplan/run-config/v1"

// TimestampLayout is the wall-clock prefix of a RunID.
const TimestampLayout = "20060102T150405"

// hashPrefixLen is the number of hex characters of the config hash kept in a RunID.
const hashPrefixLen = 12

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigHash returns the full hex SHA-256 of the canonical config.
func ConfigHash(cfg any) (string, error) {
	canonical, err := MarshalCanonical(cfg)
	if err != nil {
		return "", fmt.Errorf("ConfigHash: %w", err)
	}
	return hashWithDomain(DomainRunConfig, canonical), nil
}

// RunID derives the run identifier from the submission time and config.
// Collisions are not defended against beyond the hash prefix width.
func RunID(now time.Time, cfg any) (string, error) {
	h, err := ConfigHash(cfg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", now.UTC().Format(TimestampLayout), h[:hashPrefixLen]), nil
}

// MustRunID is like RunID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRunID(now time.Time, cfg any) string {
	id, err := RunID(now, cfg)
	if err != nil {
		panic(err)
	}
	return id
}
