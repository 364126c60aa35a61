package memory

import (
	"context"
	"fmt"

	"cc-intelligence-be/internal/model"
	"cc-intelligence-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// SessionRepository is the in-memory implementation of the session
// repository, backed by go-cache. Used when no database is configured and by
// the simulation command. Entries never expire; a restart is an accepted
// loss for this backend.
type SessionRepository struct {
	sessions        *cache.Cache
	aux             *cache.Cache
	maxPayloadBytes int
}

func NewSessionRepository(maxPayloadBytes int) *SessionRepository {
	return &SessionRepository{
		sessions:        cache.New(cache.NoExpiration, 0),
		aux:             cache.New(cache.NoExpiration, 0),
		maxPayloadBytes: maxPayloadBytes,
	}
}

func (r *SessionRepository) Load(_ context.Context, company string) (*model.ResearchSessionRecord, error) {
	if x, found := r.sessions.Get(company); found {
		record := x.(model.ResearchSessionRecord)
		return &record, nil
	}
	return nil, nil
}

func (r *SessionRepository) Save(_ context.Context, record *model.ResearchSessionRecord) error {
	if r.maxPayloadBytes > 0 && len(record.Payload) > r.maxPayloadBytes {
		return fmt.Errorf("payload is %d bytes: %w", len(record.Payload), contract.ErrCapacityExceeded)
	}
	r.sessions.Set(record.Company, *record, cache.NoExpiration)
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, company string) error {
	r.sessions.Delete(company)
	return nil
}

func (r *SessionRepository) DeleteAll(_ context.Context) error {
	r.sessions.Flush()
	r.aux.Flush()
	return nil
}

func auxKey(company, key string) string {
	return company + "\x00" + key
}

func (r *SessionRepository) SaveAux(_ context.Context, record *model.SessionAuxRecord) error {
	r.aux.Set(auxKey(record.Company, record.AuxKey), *record, cache.NoExpiration)
	return nil
}

func (r *SessionRepository) LoadAux(_ context.Context, company, key string) (*model.SessionAuxRecord, error) {
	if x, found := r.aux.Get(auxKey(company, key)); found {
		record := x.(model.SessionAuxRecord)
		return &record, nil
	}
	return nil, nil
}

func (r *SessionRepository) DeleteAux(_ context.Context, company string) error {
	for key := range r.aux.Items() {
		if len(key) > len(company) && key[:len(company)] == company && key[len(company)] == '\x00' {
			r.aux.Delete(key)
		}
	}
	return nil
}
