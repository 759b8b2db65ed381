package retention

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// ComputeIntegrityHash returns the SHA-256 hash of the process's critical
// fields, hex-encoded. It is recomputed on every mutation and checked on
// load so silent row edits outside the engine are detectable.
func ComputeIntegrityHash(p *RetentionProcess) string {
	fields := []string{
		p.ID,
		string(p.Record.Kind),
		p.Record.ID,
		p.Rule.RuleID,
		strconv.Itoa(p.Rule.ManagementYears),
		strconv.Itoa(p.Rule.CentralYears),
		string(p.Rule.Action),
		canonicalTime(p.OriginDate),
		canonicalTime(p.ManagementExpiry),
		canonicalTimePtr(p.CentralExpiry),
		canonicalTime(p.AlertLeadDate),
		string(p.State),
		string(p.Action),
		strconv.FormatBool(p.Deferred),
		canonicalTimePtr(p.DeferredUntil),
		strconv.FormatBool(p.LockedForDeletion),
	}

	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

// VerifyIntegrityHash reports whether the stored hash matches the process's
// current critical fields.
func VerifyIntegrityHash(p *RetentionProcess) bool {
	return p.IntegrityHash == ComputeIntegrityHash(p)
}

func canonicalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func canonicalTimePtr(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return canonicalTime(*t)
}
