// Package store owns the on-disk representation of one agent: its state
// document, event queue, audit ledger, and run-lock, plus the per-path write
// serialization and run-lock discipline that makes concurrent invocations
// and crashes safe.
package store

import (
	"bufio"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"autonomy/pkg/logx"
	"autonomy/pkg/proto"
	"autonomy/pkg/state"
)

const maxEventQueueLines = 5000

var log = logx.NewLogger("store").WithDomain("store")

// Store owns the state root directory under which every agent's files live.
type Store struct {
	root   string
	wq     *writeQueue
	locks  *runLocks
	loadMu sync.Mutex // serializes load-or-create races for a brand new agent
}

// New returns a Store rooted at root. root is created on first write.
func New(root string) *Store {
	return &Store{root: root, wq: newWriteQueue(), locks: newRunLocks()}
}

func (s *Store) agentDir(agentId string) string {
	return filepath.Join(s.root, "autonomy", normalizeAgentId(agentId))
}

func normalizeAgentId(id string) string {
	id = strings.TrimSpace(strings.ToLower(id))
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

func (s *Store) statePath(agentId string) string  { return filepath.Join(s.agentDir(agentId), "state.json") }
func (s *Store) backupPath(agentId string) string { return filepath.Join(s.agentDir(agentId), "state.backup.json") }
func (s *Store) eventsPath(agentId string) string { return filepath.Join(s.agentDir(agentId), "events.jsonl") }
func (s *Store) ledgerPath(agentId string) string {
	return filepath.Join(s.agentDir(agentId), "augmentation-ledger.jsonl")
}
func (s *Store) lockPath(agentId string) string { return filepath.Join(s.agentDir(agentId), "run.lock") }

// HasState reports whether agentId already has a persisted state document.
func (s *Store) HasState(agentId string) bool {
	_, err := os.Stat(s.statePath(agentId))
	return err == nil
}

// LoadState reads the primary state file, falling back to the backup, and
// finally to a fresh default document built from defaults. It never returns
// a partial or uninitialized state: unknown/invalid fields are coerced to
// defaults, bounded collections are truncated to their caps, the dedupe map
// is pruned, and the budget window is refreshed to now's UTC day.
func (s *Store) LoadState(agentId string, defaults state.Defaults, now time.Time) (state.AgentState, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	dir := s.agentDir(agentId)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return state.AgentState{}, fmt.Errorf("store: mkdir agent dir: %w", err)
	}

	nowMs := now.UnixMilli()
	dayKey := state.DayKey(now)

	if st, err := readStateFile(s.statePath(agentId)); err == nil {
		state.Normalize(&st, nowMs, dayKey)
		return st, nil
	}
	if st, err := readStateFile(s.backupPath(agentId)); err == nil {
		log.Warn("agent %s: primary state unreadable, recovered from backup", agentId)
		state.Normalize(&st, nowMs, dayKey)
		if err := s.SaveState(agentId, st); err != nil {
			return state.AgentState{}, err
		}
		return st, nil
	}

	fresh := state.New(agentId, defaults, nowMs, dayKey)
	if err := s.SaveState(agentId, fresh); err != nil {
		return state.AgentState{}, err
	}
	return fresh, nil
}

func readStateFile(path string) (state.AgentState, error) {
	var st state.AgentState
	b, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return st, fmt.Errorf("store: empty state file")
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, fmt.Errorf("store: corrupt state file: %w", err)
	}
	if st.AgentID == "" {
		return st, fmt.Errorf("store: state file missing agentId")
	}
	return st, nil
}

// SaveState serializes st as pretty JSON, writes it to a per-process unique
// temp file, atomically renames it over the primary, then overwrites the
// backup. The backup may lag the primary by at most one successful save but
// never precedes it. Writes to a given path are serialized in-process.
func (s *Store) SaveState(agentId string, st state.AgentState) error {
	dir := s.agentDir(agentId)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir agent dir: %w", err)
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}

	primary := s.statePath(agentId)
	if err := s.wq.submit(primary, func() error { return atomicWrite(primary, b) }); err != nil {
		return fmt.Errorf("store: save primary state: %w", err)
	}
	backup := s.backupPath(agentId)
	if err := s.wq.submit(backup, func() error { return atomicWrite(backup, b) }); err != nil {
		log.Warn("agent %s: backup write failed: %v", agentId, err)
	}
	return nil
}

func atomicWrite(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), randSuffix()))
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func randSuffix() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("%x", buf)
}

// EnqueueEvent appends one JSON line to the agent's event queue, assigning a
// UUID id and ts if absent, and returns the materialized event.
func (s *Store) EnqueueEvent(agentId string, ev proto.Event, now time.Time) (proto.Event, error) {
	if ev.ID == "" {
		ev.ID = proto.NewID()
	}
	if ev.Ts == 0 {
		ev.Ts = now.UnixMilli()
	}
	ev.Type = proto.TrimmedOrEmpty(ev.Type)

	dir := s.agentDir(agentId)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ev, fmt.Errorf("store: mkdir agent dir: %w", err)
	}
	line, err := proto.ToJSON(ev)
	if err != nil {
		return ev, fmt.Errorf("store: marshal event: %w", err)
	}
	path := s.eventsPath(agentId)
	err = s.wq.submit(path, func() error {
		f, ferr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		_, werr := f.Write(append(line, '\n'))
		return werr
	})
	return ev, err
}

// DrainResult is the outcome of draining an agent's event queue.
type DrainResult struct {
	Events            []proto.Event
	DroppedDuplicates int
	DroppedInvalid    int
	DroppedOverflow   int
	Remaining         int
}

// DrainEvents reads the queue, drops overflow beyond maxEventQueueLines
// (keeping the most recent), drops malformed lines, admits up to maxEvents
// items not seen within st.DedupeWindowMs, updates st.Dedupe, and writes the
// residual queue back.
func (s *Store) DrainEvents(agentId string, st *state.AgentState, maxEvents int, now time.Time) (DrainResult, error) {
	path := s.eventsPath(agentId)
	var result DrainResult

	err := s.wq.submit(path, func() error {
		lines, err := readLines(path)
		if err != nil {
			return err
		}

		if len(lines) > maxEventQueueLines {
			result.DroppedOverflow = len(lines) - maxEventQueueLines
			lines = lines[len(lines)-maxEventQueueLines:]
		}

		var parsed []proto.Event
		for _, ln := range lines {
			ln = strings.TrimSpace(ln)
			if ln == "" {
				continue
			}
			var ev proto.Event
			if err := json.Unmarshal([]byte(ln), &ev); err != nil {
				result.DroppedInvalid++
				continue
			}
			parsed = append(parsed, ev)
		}

		nowMs := now.UnixMilli()
		var residual []proto.Event
		for _, ev := range parsed {
			if len(result.Events) >= maxEvents {
				residual = append(residual, ev)
				continue
			}
			key := ev.EffectiveDedupeKey()
			if last, seen := st.Dedupe[key]; seen && nowMs-last < int64(st.DedupeWindowMs) {
				result.DroppedDuplicates++
				continue
			}
			st.Dedupe[key] = nowMs
			result.Events = append(result.Events, ev)
		}
		result.Remaining = len(residual)

		var b strings.Builder
		for _, ev := range residual {
			line, merr := proto.ToJSON(ev)
			if merr != nil {
				continue
			}
			b.Write(line)
			b.WriteByte('\n')
		}
		return atomicWrite(path, []byte(b.String()))
	})
	return result, err
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// AppendLedger appends one JSON line to the agent's ledger, assigning
// id/ts/correlationId if absent.
func (s *Store) AppendLedger(agentId string, entry proto.LedgerEntry, now time.Time) (proto.LedgerEntry, error) {
	if entry.ID == "" {
		entry.ID = proto.NewID()
	}
	if entry.Ts == 0 {
		entry.Ts = now.UnixMilli()
	}
	if entry.CorrelationID == "" {
		entry.CorrelationID = proto.NewID()
	}
	entry.AgentID = agentId

	dir := s.agentDir(agentId)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return entry, fmt.Errorf("store: mkdir agent dir: %w", err)
	}
	line, err := proto.ToJSON(entry)
	if err != nil {
		return entry, fmt.Errorf("store: marshal ledger entry: %w", err)
	}
	path := s.ledgerPath(agentId)
	err = s.wq.submit(path, func() error {
		f, ferr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		_, werr := f.Write(append(line, '\n'))
		return werr
	})
	return entry, err
}

// ReadLedger parses the ledger, drops malformed entries, sorts by
// descending ts (entries sharing a ts come most recently appended first),
// and returns the page described by limit/offset.
func (s *Store) ReadLedger(agentId string, limit, offset int) ([]proto.LedgerEntry, error) {
	lines, err := readLines(s.ledgerPath(agentId))
	if err != nil {
		return nil, fmt.Errorf("store: read ledger: %w", err)
	}
	var entries []proto.LedgerEntry
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		var e proto.LedgerEntry
		if err := json.Unmarshal([]byte(ln), &e); err != nil {
			continue // malformed trailing or corrupt line, skip
		}
		entries = append(entries, e)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Ts > entries[j].Ts })

	if offset >= len(entries) {
		return []proto.LedgerEntry{}, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// ResetRuntime deletes the agent's entire directory. Operator action only.
func (s *Store) ResetRuntime(agentId string) error {
	return os.RemoveAll(s.agentDir(agentId))
}

// AcquireLock claims the run-lock for agentId, retrying internally per the
// concurrency model. Returns a token to pass to ReleaseLock.
func (s *Store) AcquireLock(agentId string, now time.Time) (string, error) {
	dir := s.agentDir(agentId)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: mkdir agent dir: %w", err)
	}
	return s.locks.Acquire(agentId, s.lockPath(agentId), now)
}

// ReleaseLock releases the run-lock for agentId iff token matches.
func (s *Store) ReleaseLock(agentId, token string) {
	s.locks.Release(agentId, s.lockPath(agentId), token)
}

// WorkspacePath joins workspaceDir with a workspace-relative file reference,
// or returns the reference unchanged if it's already absolute.
func WorkspacePath(workspaceDir, ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(workspaceDir, ref)
}

// EnsureWorkspaceFile creates path with a template if it does not exist.
func EnsureWorkspaceFile(path, template string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(template), 0o644)
}

// AppendWorkspaceLog appends block to the workspace log file at path,
// serialized per path like every other core write.
func (s *Store) AppendWorkspaceLog(path, block string) error {
	return s.wq.submit(path, func() error {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = f.WriteString(block)
		return err
	})
}
