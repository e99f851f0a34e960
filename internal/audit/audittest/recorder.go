// Package audittest はテスト用の監査レコーダーを提供する。
package audittest

import (
	"context"
	"sync"

	"github.com/hitoshi/agora/internal/model"
)

// Recorder は記録された監査エントリを保持する同期レコーダー。
type Recorder struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

// Record はエントリを保持する。
func (r *Recorder) Record(_ context.Context, entry model.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Entries は記録されたエントリのコピーを返す。
func (r *Recorder) Entries() []model.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Last は最後に記録されたエントリを返す。記録がない場合はfalseを返す。
func (r *Recorder) Last() (model.AuditEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return model.AuditEntry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// Reset は記録を消去する。
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
