// Package ledger adds a per-file tamper-evident hash chain on top of the
// store's append-only JSONL ledger.
package ledger

import (
	"crypto/sha1" //nolint:gosec // content-chaining, not a security primitive
	"encoding/hex"
	"fmt"
	"time"

	"autonomy/pkg/proto"
	"autonomy/pkg/state"
)

// appender is the subset of *store.Store that ledger needs, kept narrow so
// tests can fake it without pulling in the filesystem.
type appender interface {
	AppendLedger(agentId string, entry proto.LedgerEntry, now time.Time) (proto.LedgerEntry, error)
	ReadLedger(agentId string, limit, offset int) ([]proto.LedgerEntry, error)
}

// mirror is the subset of *readindex.Index that ledger needs to keep the
// optional secondary read index in sync with every appended entry.
type mirror interface {
	MirrorLedgerEntry(entry proto.LedgerEntry)
}

// Ledger appends hash-chained entries for one agent through an underlying store.
type Ledger struct {
	store   appender
	agentId string
	mirror  mirror
}

// New returns a Ledger for agentId backed by s.
func New(s appender, agentId string) *Ledger {
	return &Ledger{store: s, agentId: agentId}
}

// WithMirror attaches an optional secondary read index that receives a
// best-effort copy of every entry this Ledger appends. m may be a nil
// *readindex.Index (its methods are nil-receiver safe); passing nil here
// disables mirroring.
func (l *Ledger) WithMirror(m mirror) *Ledger {
	l.mirror = m
	return l
}

// Append chains entry onto the last known entry (read from the tail of the
// existing ledger) and appends it through the store. Ts and CorrelationID
// are stamped here, before hashing, so the persisted entry's hash is always
// reproducible from its own persisted fields — store.AppendLedger must not
// be the one assigning them for entries that already carry a hash.
func (l *Ledger) Append(entry proto.LedgerEntry, now time.Time) (proto.LedgerEntry, error) {
	prevHash := ""
	if tail, err := l.store.ReadLedger(l.agentId, 1, 0); err == nil && len(tail) > 0 {
		prevHash = tail[0].Hash
	}
	entry.PrevHash = prevHash
	entry.AgentID = l.agentId
	if entry.Ts == 0 {
		entry.Ts = now.UnixMilli()
	}
	if entry.CorrelationID == "" {
		entry.CorrelationID = proto.NewID()
	}
	entry.Hash = hashEntry(entry)
	persisted, err := l.store.AppendLedger(l.agentId, entry, now)
	if err == nil && l.mirror != nil {
		l.mirror.MirrorLedgerEntry(persisted)
	}
	return persisted, err
}

// Entries returns the page of entries described by limit/offset.
func (l *Ledger) Entries(limit, offset int) ([]proto.LedgerEntry, error) {
	return l.store.ReadLedger(l.agentId, limit, offset)
}

// hashEntry computes the chained SHA-1 hash over PrevHash, AgentID, Ts,
// CorrelationID, EventType, Stage, Actor and Summary; ID, Evidence and Hash
// itself are not included.
func hashEntry(e proto.LedgerEntry) string {
	h := sha1.New() //nolint:gosec
	fmt.Fprintf(h, "%s|%s|%d|%s|%s|%s|%s|%s", e.PrevHash, e.AgentID, e.Ts, e.CorrelationID, e.EventType, e.Stage, e.Actor, e.Summary)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChain reports whether entries (ordered oldest-first) form an unbroken
// hash chain, and the index of the first break if not.
func VerifyChain(entries []proto.LedgerEntry) (ok bool, brokenAt int) {
	prev := ""
	for i, e := range entries {
		want := hashEntry(proto.LedgerEntry{
			PrevHash: prev, AgentID: e.AgentID, Ts: e.Ts, CorrelationID: e.CorrelationID,
			EventType: e.EventType, Stage: e.Stage, Actor: e.Actor, Summary: e.Summary,
		})
		if e.Hash != want || e.PrevHash != prev {
			return false, i
		}
		prev = e.Hash
	}
	return true, -1
}

// PhaseEnterEntry builds a phase_enter ledger entry for stage.
func PhaseEnterEntry(stage state.Stage, actor, summary string) proto.LedgerEntry {
	return proto.LedgerEntry{EventType: proto.LedgerPhaseEnter, Stage: string(stage), Actor: actor, Summary: summary}
}

// PhaseExitEntry builds a phase_exit ledger entry for stage.
func PhaseExitEntry(stage state.Stage, actor, summary string) proto.LedgerEntry {
	return proto.LedgerEntry{EventType: proto.LedgerPhaseExit, Stage: string(stage), Actor: actor, Summary: summary}
}

// PolicyDeniedEntry builds a policy_denied ledger entry.
func PolicyDeniedEntry(stage state.Stage, reason string) proto.LedgerEntry {
	return proto.LedgerEntry{EventType: proto.LedgerPolicyDenied, Stage: string(stage), Actor: "policy", Summary: reason}
}

// PromotionEntry builds a promotion ledger entry.
func PromotionEntry(summary string) proto.LedgerEntry {
	return proto.LedgerEntry{EventType: proto.LedgerPromotion, Stage: string(state.StageCanary), Actor: "canary", Summary: summary}
}

// RollbackEntry builds a rollback ledger entry.
func RollbackEntry(summary string) proto.LedgerEntry {
	return proto.LedgerEntry{EventType: proto.LedgerRollback, Stage: string(state.StageCanary), Actor: "canary", Summary: summary}
}
