package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/oklog/ulid/v2"
)

// NewEventID returns a new lexicographically sortable event ID
func NewEventID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at.UTC()), rand.Reader).String()
}

// SignalDedupID derives the deterministic dedup key for a signal:
// one signal of a given type per company, source, and UTC day.
func SignalDedupID(companyID string, t SignalType, source SourceCategory, at time.Time) string {
	return canonicalHash(map[string]string{
		"company_id": companyID,
		"type":       string(t),
		"source":     string(source),
		"day":        at.UTC().Format("2006-01-02"),
	})
}

// EventDedupHash derives the deterministic dedup key for a movement event:
// one event of a given type per contact and UTC day.
func EventDedupHash(contactID string, t EventType, at time.Time) string {
	return canonicalHash(map[string]string{
		"contact_id": contactID,
		"type":       string(t),
		"day":        at.UTC().Format("2006-01-02"),
	})
}

// canonicalHash hashes a JCS-canonicalized JSON encoding of the fields so
// the key is stable regardless of map iteration or encoder quirks
func canonicalHash(fields map[string]string) string {
	raw, err := json.Marshal(fields)
	if err != nil {
		// Marshaling a map[string]string cannot fail
		panic(err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		canonical = raw
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
