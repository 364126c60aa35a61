package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"cc-intelligence-be/internal/model"
	"cc-intelligence-be/internal/pkg/logger"
	"cc-intelligence-be/internal/repository/contract"
	"cc-intelligence-be/internal/repository/memory"
	"cc-intelligence-be/pkg/research"

	"github.com/stretchr/testify/assert"
)

func storeLogger() logger.ILogger {
	return logger.NewIsolatedLogger("logs/test_store.log")
}

// recordingRepo wraps the in-memory repository and counts writes, optionally
// failing the first N of them.
type recordingRepo struct {
	*memory.SessionRepository

	mu        sync.Mutex
	saves     int
	failFirst int
	failWith  error
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{SessionRepository: memory.NewSessionRepository(0)}
}

func (r *recordingRepo) Save(ctx context.Context, record *model.ResearchSessionRecord) error {
	r.mu.Lock()
	r.saves++
	n := r.saves
	r.mu.Unlock()

	if n <= r.failFirst {
		return r.failWith
	}
	return r.SessionRepository.Save(ctx, record)
}

func (r *recordingRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func TestStoreRoundTrip(t *testing.T) {
	repo := newRecordingRepo()
	store := NewStore(repo, storeLogger(), 10*time.Millisecond, 50)

	sess := New("Acme Corp")
	sess.Append(TranscriptEntry{Role: RoleUser, Text: "hello"})
	sess.Append(TranscriptEntry{
		Role: RoleAssistant,
		Text: "done",
		Finding: &research.Finding{
			AreaID: research.AreaTechStack,
			Title:  "Acme Corp — Tech Stack",
		},
	})
	sess.UpsertLedger(LedgerEntry{
		AreaID: research.AreaTechStack,
		Title:  "Tech Stack",
		Finding: research.Finding{
			AreaID: research.AreaTechStack,
			Title:  "Acme Corp — Tech Stack",
		},
	})

	store.Save(sess)
	store.Flush("Acme Corp")

	got := store.Load(context.Background(), "Acme Corp")
	assert.NotNil(t, got)
	assert.Equal(t, "Acme Corp", got.Company)
	assert.Equal(t, 2, len(got.Transcript))
	assert.Equal(t, "hello", got.Transcript[0].Text)
	assert.Equal(t, 1, len(got.Ledger))
	assert.Equal(t, research.AreaTechStack, got.Ledger[0].AreaID)

	// Entry IDs keep climbing after a reload.
	maxID := got.Transcript[len(got.Transcript)-1].ID
	newID := got.Append(TranscriptEntry{Role: RoleUser, Text: "again"})
	assert.Greater(t, newID, maxID)
}

func TestStoreDebounceCoalesces(t *testing.T) {
	repo := newRecordingRepo()
	store := NewStore(repo, storeLogger(), 40*time.Millisecond, 50)

	sess := New("Acme")
	for i := 0; i < 5; i++ {
		sess.Append(TranscriptEntry{Role: RoleUser, Text: fmt.Sprintf("msg %d", i)})
		store.Save(sess)
	}

	// Nothing written inside the quiet window.
	assert.Equal(t, 0, repo.saveCount())

	assert.Eventually(t, func() bool {
		return repo.saveCount() == 1
	}, time.Second, 10*time.Millisecond)

	// Latest snapshot won.
	got := store.Load(context.Background(), "Acme")
	assert.NotNil(t, got)
	assert.Equal(t, 5, len(got.Transcript))
}

func TestStoreFlushWritesImmediately(t *testing.T) {
	repo := newRecordingRepo()
	store := NewStore(repo, storeLogger(), time.Hour, 50)

	sess := New("Acme")
	sess.Append(TranscriptEntry{Role: RoleUser, Text: "hi"})
	store.Save(sess)

	store.Flush("Acme")
	assert.Equal(t, 1, repo.saveCount())

	// A second flush with nothing pending writes nothing.
	store.Flush("Acme")
	assert.Equal(t, 1, repo.saveCount())
}

func TestStoreCapacityRetryTruncates(t *testing.T) {
	repo := newRecordingRepo()
	repo.failFirst = 1
	repo.failWith = fmt.Errorf("payload too large: %w", contract.ErrCapacityExceeded)

	store := NewStore(repo, storeLogger(), 10*time.Millisecond, 3)

	sess := New("Acme")
	for i := 0; i < 10; i++ {
		sess.Append(TranscriptEntry{Role: RoleUser, Text: fmt.Sprintf("msg %d", i)})
	}
	store.Save(sess)
	store.Flush("Acme")

	// First write rejected, retry landed with the most recent entries only.
	assert.Equal(t, 2, repo.saveCount())

	got := store.Load(context.Background(), "Acme")
	assert.NotNil(t, got)
	assert.Equal(t, 3, len(got.Transcript))
	assert.Equal(t, "msg 7", got.Transcript[0].Text)
	assert.Equal(t, "msg 9", got.Transcript[2].Text)
}

func TestStoreCapacityFailureIsSilent(t *testing.T) {
	repo := newRecordingRepo()
	repo.failFirst = 2
	repo.failWith = fmt.Errorf("payload too large: %w", contract.ErrCapacityExceeded)

	store := NewStore(repo, storeLogger(), 10*time.Millisecond, 3)

	sess := New("Acme")
	for i := 0; i < 10; i++ {
		sess.Append(TranscriptEntry{Role: RoleUser, Text: fmt.Sprintf("msg %d", i)})
	}
	store.Save(sess)

	// Both attempts fail; the store gives up without panicking or surfacing.
	store.Flush("Acme")
	assert.Equal(t, 2, repo.saveCount())
	assert.Nil(t, store.Load(context.Background(), "Acme"))
}

func TestStoreLoadDropsBadEntries(t *testing.T) {
	repo := newRecordingRepo()
	store := NewStore(repo, storeLogger(), 10*time.Millisecond, 50)

	good, _ := json.Marshal(TranscriptEntry{ID: 1, Role: RoleUser, Text: "keep me"})
	persisted := persistedSession{
		Company:    "Acme",
		Transcript: []json.RawMessage{good, json.RawMessage(`"not an entry"`)},
		Ledger:     []json.RawMessage{json.RawMessage(`12345`)},
		UpdatedAt:  time.Now().UTC(),
	}
	payload, _ := json.Marshal(persisted)
	err := repo.Save(context.Background(), &model.ResearchSessionRecord{
		Company: "Acme",
		Payload: payload,
	})
	assert.NoError(t, err)

	got := store.Load(context.Background(), "Acme")
	assert.NotNil(t, got)
	assert.Equal(t, 1, len(got.Transcript))
	assert.Equal(t, "keep me", got.Transcript[0].Text)
	assert.Empty(t, got.Ledger)
}

func TestStoreLoadCorruptPayload(t *testing.T) {
	repo := newRecordingRepo()
	store := NewStore(repo, storeLogger(), 10*time.Millisecond, 50)

	err := repo.Save(context.Background(), &model.ResearchSessionRecord{
		Company: "Acme",
		Payload: []byte("definitely not json"),
	})
	assert.NoError(t, err)

	assert.Nil(t, store.Load(context.Background(), "Acme"))
}

func TestStoreClear(t *testing.T) {
	repo := newRecordingRepo()
	store := NewStore(repo, storeLogger(), 10*time.Millisecond, 50)
	ctx := context.Background()

	sess := New("Acme")
	sess.Append(TranscriptEntry{Role: RoleUser, Text: "hi"})
	store.Save(sess)
	store.Flush("Acme")
	store.SetConsent(ctx, "Acme", true)

	store.Clear(ctx, "Acme")

	assert.Nil(t, store.Load(ctx, "Acme"))
	assert.False(t, store.Consent(ctx, "Acme"))
}

func TestStoreClearAll(t *testing.T) {
	repo := newRecordingRepo()
	store := NewStore(repo, storeLogger(), 10*time.Millisecond, 50)
	ctx := context.Background()

	for _, company := range []string{"Acme", "Globex"} {
		sess := New(company)
		sess.Append(TranscriptEntry{Role: RoleUser, Text: "hi"})
		store.Save(sess)
		store.Flush(company)
	}

	store.ClearAll(ctx)

	assert.Nil(t, store.Load(ctx, "Acme"))
	assert.Nil(t, store.Load(ctx, "Globex"))
}

func TestStoreConsent(t *testing.T) {
	repo := newRecordingRepo()
	store := NewStore(repo, storeLogger(), 10*time.Millisecond, 50)
	ctx := context.Background()

	// Absent means false.
	assert.False(t, store.Consent(ctx, "Acme"))

	store.SetConsent(ctx, "Acme", true)
	assert.True(t, store.Consent(ctx, "Acme"))

	store.SetConsent(ctx, "Acme", false)
	assert.False(t, store.Consent(ctx, "Acme"))
}
