package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainCadence = "cadence/period-rule/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CadenceFingerprint identifies the period rule (cadence plus period-start
// preference) that partitions time into windows. Two standards with equal
// fingerprints produce identical windows for every instant.
//
// A nil preference and an explicit default preference hash identically.
func CadenceFingerprint(c Cadence, pref *PeriodStartPreference) (string, error) {
	interval := c.Interval
	if interval < 1 {
		interval = 1
	}
	obj := map[string]any{
		"interval": interval,
		"unit":     string(c.Unit),
		"mode":     string(PeriodStartDefault),
	}
	if pref != nil && pref.Mode == PeriodStartWeekDay && c.Unit == CadenceWeek {
		obj["mode"] = string(PeriodStartWeekDay)
		obj["week_day"] = int(pref.WeekDay)
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CadenceFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCadence, canonical), nil
}

// Fingerprint returns the period-rule fingerprint of the standard.
func (s Standard) Fingerprint() (string, error) {
	return CadenceFingerprint(s.Cadence, s.PeriodStartPreference)
}

// Fingerprint returns the period-rule fingerprint captured in the snapshot.
func (s StandardSnapshot) Fingerprint() (string, error) {
	return CadenceFingerprint(s.Cadence, s.PeriodStartPreference)
}
