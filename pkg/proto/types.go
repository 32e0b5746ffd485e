// Package proto defines the wire-level types shared across the autonomy
// engine: discovery events, audit ledger entries, and the small set of
// enums that both reference.
package proto

import (
	"crypto/sha1" //nolint:gosec // used for content-addressed ids, not security
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventSource identifies who originated a discovery event.
type EventSource string

const (
	SourceCron     EventSource = "cron"
	SourceWebhook  EventSource = "webhook"
	SourceEmail    EventSource = "email"
	SourceSubagent EventSource = "subagent"
	SourceManual   EventSource = "manual"
)

// Event is one inbound signal admitted into an agent's queue.
type Event struct {
	ID        string         `json:"id"`
	Source    EventSource    `json:"source"`
	Type      string         `json:"type"`
	Ts        int64          `json:"ts"`
	DedupeKey string         `json:"dedupeKey,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// EffectiveDedupeKey returns the key used for admission deduplication:
// explicit DedupeKey, else the event id, else "source:type".
func (e *Event) EffectiveDedupeKey() string {
	if e.DedupeKey != "" {
		return e.DedupeKey
	}
	if e.ID != "" {
		return e.ID
	}
	return string(e.Source) + ":" + e.Type
}

// LedgerEventType enumerates the kinds of audit entries the core appends.
type LedgerEventType string

const (
	LedgerPhaseEnter       LedgerEventType = "phase_enter"
	LedgerPhaseExit        LedgerEventType = "phase_exit"
	LedgerPolicyDenied     LedgerEventType = "policy_denied"
	LedgerDiscoveryUpdate  LedgerEventType = "discovery_update"
	LedgerCandidateUpdate  LedgerEventType = "candidate_update"
	LedgerPromotion        LedgerEventType = "promotion"
	LedgerRollback         LedgerEventType = "rollback"
)

// LedgerEntry is one immutable line in an agent's append-only audit trail.
// PrevHash/Hash form a per-file tamper-evident chain: Hash covers PrevHash,
// AgentID, Ts, CorrelationID, EventType, Stage, Actor and Summary, so
// altering one of those fields or reordering a past line invalidates every
// hash after it. ID and Evidence are not covered by the hash.
type LedgerEntry struct {
	ID            string          `json:"id"`
	AgentID       string          `json:"agentId"`
	Ts            int64           `json:"ts"`
	CorrelationID string          `json:"correlationId"`
	EventType     LedgerEventType `json:"eventType"`
	Stage         string          `json:"stage"`
	Actor         string          `json:"actor"`
	Summary       string          `json:"summary"`
	Evidence      map[string]any  `json:"evidence,omitempty"`
	PrevHash      string          `json:"prevHash"`
	Hash          string          `json:"hash"`
}

// NewID returns a fresh UUID string, used for event and ledger entry ids.
func NewID() string {
	return uuid.NewString()
}

// ShortHash returns the 16-hex-character prefix of the SHA-1 digest of key,
// used for gap ids and signal ids derived from a dedupe/content key.
func ShortHash(key string) string {
	sum := sha1.Sum([]byte(key)) //nolint:gosec // content-addressing only
	return hex.EncodeToString(sum[:])[:16]
}

// NowMillis returns t truncated to integer Unix milliseconds, the unit
// used for every timestamp field the core persists.
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// TrimmedOrEmpty trims surrounding whitespace; every ingress string field
// is passed through this before being persisted.
func TrimmedOrEmpty(s string) string {
	return strings.TrimSpace(s)
}

// ToJSON serializes v as compact JSON followed by no trailing newline.
func ToJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
