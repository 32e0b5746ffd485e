package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const lockTTL = 6 * time.Hour

// lockFile is the on-disk shape of run.lock.
type lockFile struct {
	Token     string `json:"token"`
	AcquiredAt int64 `json:"acquiredAt"`
	ExpiresAt  int64 `json:"expiresAt"`
}

// runLocks is the in-memory half of the per-agent run-lock; it must agree
// with the on-disk lock file before a cycle is allowed to mutate state.
type runLocks struct {
	mu    sync.Mutex
	live  map[string]string // agentId -> token
}

func newRunLocks() *runLocks {
	return &runLocks{live: make(map[string]string)}
}

// Acquire attempts to claim the run-lock for agentId at path, retrying the
// exclusive file create up to 3 times. Returns the claimed token or an error
// describing contention.
func (r *runLocks) Acquire(agentId, path string, now time.Time) (string, error) {
	r.mu.Lock()
	if _, busy := r.live[agentId]; busy {
		r.mu.Unlock()
		return "", fmt.Errorf("run-lock: already-in-progress")
	}
	r.live[agentId] = "" // claim the in-memory slot before touching disk
	r.mu.Unlock()

	token := uuid.NewString()
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if existing, err := readLockFile(path); err == nil {
			if existing.ExpiresAt > now.UnixMilli() {
				r.release(agentId)
				return "", fmt.Errorf("run-lock: already-in-progress")
			}
			_ = os.Remove(path) // stale, best-effort reclaim
		}
		lf := lockFile{Token: token, AcquiredAt: now.UnixMilli(), ExpiresAt: now.Add(lockTTL).UnixMilli()}
		if err := writeLockFileExclusive(path, lf); err != nil {
			lastErr = err
			continue
		}
		r.mu.Lock()
		r.live[agentId] = token
		r.mu.Unlock()
		return token, nil
	}
	r.release(agentId)
	if lastErr == nil {
		lastErr = fmt.Errorf("run-lock: already-in-progress")
	}
	return "", lastErr
}

// Release deletes the lock file iff token matches and clears the in-memory slot.
func (r *runLocks) Release(agentId, path, token string) {
	if existing, err := readLockFile(path); err == nil && existing.Token == token {
		_ = os.Remove(path)
	}
	r.release(agentId)
}

func (r *runLocks) release(agentId string) {
	r.mu.Lock()
	delete(r.live, agentId)
	r.mu.Unlock()
}

func readLockFile(path string) (lockFile, error) {
	var lf lockFile
	b, err := os.ReadFile(path)
	if err != nil {
		return lf, err
	}
	if err := json.Unmarshal(b, &lf); err != nil {
		return lf, err
	}
	return lf, nil
}

func writeLockFileExclusive(path string, lf lockFile) error {
	b, err := json.Marshal(lf)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(b)
	return err
}
