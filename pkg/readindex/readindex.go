// Package readindex maintains an optional SQLite mirror of ledger entries
// and per-cycle metrics for fast operator queries, adapted from the
// teacher's pkg/persistence. The JSONL ledger remains the canonical,
// tamper-evident audit trail; mirror writes are best-effort: they run
// synchronously on the caller's goroutine, and their errors are logged,
// never returned, so they never fail a cycle.
package readindex

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"autonomy/pkg/logx"
	"autonomy/pkg/proto"
)

var log = logx.NewLogger("readindex").WithDomain("readindex")

const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	ts INTEGER NOT NULL,
	correlation_id TEXT,
	event_type TEXT,
	stage TEXT,
	actor TEXT,
	summary TEXT
);
CREATE INDEX IF NOT EXISTS idx_ledger_agent_ts ON ledger_entries(agent_id, ts DESC);

CREATE TABLE IF NOT EXISTS cycle_records (
	agent_id TEXT NOT NULL,
	ts INTEGER NOT NULL,
	status TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cycle_agent_ts ON cycle_records(agent_id, ts DESC);
`

// Index is the optional secondary read index. A nil *Index is valid and
// every method on it is a no-op, so callers can leave the mirror disabled
// without branching at every call site.
type Index struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite mirror at path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("readindex: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("readindex: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("readindex: schema: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Index{db: db}, nil
}

// Close closes the underlying connection.
func (idx *Index) Close() error {
	if idx == nil || idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

// MirrorLedgerEntry best-effort mirrors entry; failures are logged, never
// returned, since the mirror must never fail a cycle.
func (idx *Index) MirrorLedgerEntry(entry proto.LedgerEntry) {
	if idx == nil || idx.db == nil {
		return
	}
	_, err := idx.db.Exec(
		`INSERT OR REPLACE INTO ledger_entries(id, agent_id, ts, correlation_id, event_type, stage, actor, summary) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AgentID, entry.Ts, entry.CorrelationID, string(entry.EventType), entry.Stage, entry.Actor, entry.Summary,
	)
	if err != nil {
		log.Warn("mirror ledger entry %s failed: %v", entry.ID, err)
	}
}

// MirrorCycle best-effort mirrors one cycle outcome.
func (idx *Index) MirrorCycle(agentId string, ts int64, status string, durationMs int64) {
	if idx == nil || idx.db == nil {
		return
	}
	_, err := idx.db.Exec(
		`INSERT INTO cycle_records(agent_id, ts, status, duration_ms) VALUES (?, ?, ?, ?)`,
		agentId, ts, status, durationMs,
	)
	if err != nil {
		log.Warn("mirror cycle for %s failed: %v", agentId, err)
	}
}

// RecentLedgerEntries queries the mirror for operator lookups; returns an
// empty slice (not an error) when the mirror is disabled.
func (idx *Index) RecentLedgerEntries(agentId string, limit int) ([]proto.LedgerEntry, error) {
	if idx == nil || idx.db == nil {
		return []proto.LedgerEntry{}, nil
	}
	rows, err := idx.db.Query(
		`SELECT id, agent_id, ts, correlation_id, event_type, stage, actor, summary FROM ledger_entries WHERE agent_id = ? ORDER BY ts DESC LIMIT ?`,
		agentId, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("readindex: query: %w", err)
	}
	defer rows.Close()

	var out []proto.LedgerEntry
	for rows.Next() {
		var e proto.LedgerEntry
		var eventType string
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Ts, &e.CorrelationID, &eventType, &e.Stage, &e.Actor, &e.Summary); err != nil {
			return nil, fmt.Errorf("readindex: scan: %w", err)
		}
		e.EventType = proto.LedgerEventType(eventType)
		out = append(out, e)
	}
	return out, rows.Err()
}
