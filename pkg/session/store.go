package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"cc-intelligence-be/internal/model"
	"cc-intelligence-be/internal/pkg/logger"
	"cc-intelligence-be/internal/repository/contract"
)

// ConsentAuxKey is the auxiliary record key for the research consent flag.
const ConsentAuxKey = "research_consent"

// persistedSession is the wire form of a session. Transcript and ledger
// entries are kept as raw messages so a single corrupted entry can be
// dropped on load instead of aborting the whole session.
type persistedSession struct {
	Company    string            `json:"company"`
	Transcript []json.RawMessage `json:"transcript"`
	Ledger     []json.RawMessage `json:"ledger"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Store is the durable, quota-aware persistence layer for sessions. Every
// operation is best-effort: failures are logged and the in-memory session
// stays authoritative, so nothing here ever propagates an error to the
// orchestrator.
//
// Writes are debounced: rapid mutations coalesce into a single write per
// quiescent window. A write rejected for capacity is retried once with the
// transcript truncated to the most recent entries, then dropped silently.
type Store struct {
	repo            contract.ISessionRepository
	logger          logger.ILogger
	debounce        time.Duration
	truncateEntries int

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]*Session
}

func NewStore(repo contract.ISessionRepository, log logger.ILogger, debounce time.Duration, truncateEntries int) *Store {
	return &Store{
		repo:            repo,
		logger:          log,
		debounce:        debounce,
		truncateEntries: truncateEntries,
		timers:          make(map[string]*time.Timer),
		pending:         make(map[string]*Session),
	}
}

// Load retrieves the persisted session for a company, or nil when none
// exists or the read fails. Entries that fail to deserialize are dropped.
func (st *Store) Load(ctx context.Context, company string) *Session {
	record, err := st.repo.Load(ctx, company)
	if err != nil {
		st.logger.Error("SessionStore", "Failed to load session, continuing without persisted state", map[string]interface{}{
			"company": company,
			"error":   err.Error(),
		})
		return nil
	}
	if record == nil {
		return nil
	}

	var persisted persistedSession
	if err := json.Unmarshal(record.Payload, &persisted); err != nil {
		st.logger.Error("SessionStore", "Persisted session is corrupt, discarding", map[string]interface{}{
			"company": company,
			"error":   err.Error(),
		})
		return nil
	}

	sess := &Session{
		Company:   persisted.Company,
		UpdatedAt: persisted.UpdatedAt,
	}
	if sess.Company == "" {
		sess.Company = company
	}

	dropped := 0
	for _, raw := range persisted.Transcript {
		var entry TranscriptEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			dropped++
			continue
		}
		sess.Transcript = append(sess.Transcript, entry)
	}
	for _, raw := range persisted.Ledger {
		var entry LedgerEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			dropped++
			continue
		}
		sess.Ledger = append(sess.Ledger, entry)
	}
	if dropped > 0 {
		st.logger.Warn("SessionStore", "Dropped undeserializable session entries", map[string]interface{}{
			"company": company,
			"dropped": dropped,
		})
	}
	sess.restoreCounter()

	return sess
}

// Save schedules a debounced write of the session snapshot. The most recent
// snapshot per company wins within one window.
func (st *Store) Save(session *Session) {
	snapshot := session.Clone()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.pending[snapshot.Company] = snapshot
	if timer, ok := st.timers[snapshot.Company]; ok {
		timer.Reset(st.debounce)
		return
	}
	company := snapshot.Company
	st.timers[company] = time.AfterFunc(st.debounce, func() {
		st.flushCompany(company)
	})
}

// Flush forces any pending write for the company to disk now. Called on
// company switch and shutdown.
func (st *Store) Flush(company string) {
	st.mu.Lock()
	if timer, ok := st.timers[company]; ok {
		timer.Stop()
	}
	st.mu.Unlock()
	st.flushCompany(company)
}

func (st *Store) flushCompany(company string) {
	st.mu.Lock()
	snapshot := st.pending[company]
	delete(st.pending, company)
	delete(st.timers, company)
	st.mu.Unlock()

	if snapshot == nil {
		return
	}
	st.write(snapshot)
}

// write persists one snapshot, retrying once with a truncated transcript if
// storage rejects it for capacity.
func (st *Store) write(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := st.writeOnce(ctx, sess)
	if err == nil {
		return
	}

	if errors.Is(err, contract.ErrCapacityExceeded) && len(sess.Transcript) > st.truncateEntries {
		truncated := sess.Clone()
		truncated.Transcript = truncated.Transcript[len(truncated.Transcript)-st.truncateEntries:]
		if retryErr := st.writeOnce(ctx, truncated); retryErr == nil {
			st.logger.Warn("SessionStore", "Session persisted with truncated transcript", map[string]interface{}{
				"company": sess.Company,
				"kept":    st.truncateEntries,
			})
			return
		}
	}

	st.logger.Error("SessionStore", "Failed to persist session, in-memory state remains authoritative", map[string]interface{}{
		"company": sess.Company,
		"error":   err.Error(),
	})
}

func (st *Store) writeOnce(ctx context.Context, sess *Session) error {
	persisted := persistedSession{
		Company:   sess.Company,
		UpdatedAt: sess.UpdatedAt,
	}
	for _, entry := range sess.Transcript {
		raw, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		persisted.Transcript = append(persisted.Transcript, raw)
	}
	for _, entry := range sess.Ledger {
		raw, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		persisted.Ledger = append(persisted.Ledger, raw)
	}

	payload, err := json.Marshal(persisted)
	if err != nil {
		return err
	}

	return st.repo.Save(ctx, &model.ResearchSessionRecord{
		Company:   sess.Company,
		Payload:   payload,
		UpdatedAt: sess.UpdatedAt,
	})
}

// Clear removes persisted state for one company.
func (st *Store) Clear(ctx context.Context, company string) {
	st.mu.Lock()
	if timer, ok := st.timers[company]; ok {
		timer.Stop()
		delete(st.timers, company)
	}
	delete(st.pending, company)
	st.mu.Unlock()

	if err := st.repo.Delete(ctx, company); err != nil {
		st.logger.Error("SessionStore", "Failed to clear session", map[string]interface{}{
			"company": company,
			"error":   err.Error(),
		})
	}
	if err := st.repo.DeleteAux(ctx, company); err != nil {
		st.logger.Error("SessionStore", "Failed to clear session aux state", map[string]interface{}{
			"company": company,
			"error":   err.Error(),
		})
	}
}

// ClearAll removes every persisted session plus session-scoped auxiliary
// state. Used for a full reset.
func (st *Store) ClearAll(ctx context.Context) {
	st.mu.Lock()
	for company, timer := range st.timers {
		timer.Stop()
		delete(st.timers, company)
	}
	st.pending = make(map[string]*Session)
	st.mu.Unlock()

	if err := st.repo.DeleteAll(ctx); err != nil {
		st.logger.Error("SessionStore", "Failed to clear all sessions", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// SetConsent stores the per-company research consent flag.
func (st *Store) SetConsent(ctx context.Context, company string, granted bool) {
	value, _ := json.Marshal(granted)
	err := st.repo.SaveAux(ctx, &model.SessionAuxRecord{
		Company:   company,
		AuxKey:    ConsentAuxKey,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		st.logger.Error("SessionStore", "Failed to persist consent flag", map[string]interface{}{
			"company": company,
			"error":   err.Error(),
		})
	}
}

// Consent reads the per-company research consent flag; absent means false.
func (st *Store) Consent(ctx context.Context, company string) bool {
	record, err := st.repo.LoadAux(ctx, company, ConsentAuxKey)
	if err != nil || record == nil {
		return false
	}
	var granted bool
	if json.Unmarshal(record.Value, &granted) != nil {
		return false
	}
	return granted
}
