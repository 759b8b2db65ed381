package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"mercator-hq/saturn/pkg/retention"
)

// GenesisHash is the fixed previous-hash value of the first entry in every
// process's chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Canonicalize serializes the hash-covered fields of an entry in a fixed
// order with an unambiguous separator. The entry hash and the id are
// excluded: the id is storage identity, and the hash cannot cover itself.
func Canonicalize(e *retention.AuditEntry) string {
	fields := []string{
		e.ProcessID,
		strconv.FormatInt(e.Seq, 10),
		string(e.Action),
		string(e.PriorState),
		string(e.NextState),
		e.Description,
		e.Actor,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	return strings.Join(fields, "\x1f")
}

// EntryHash computes SHA-256 over the previous entry's hash concatenated
// with this entry's canonical serialization, hex-encoded.
func EntryHash(prevHash string, e *retention.AuditEntry) string {
	sum := sha256.Sum256([]byte(prevHash + Canonicalize(e)))
	return hex.EncodeToString(sum[:])
}
