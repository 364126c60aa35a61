package contract

import (
	"context"
	"errors"

	"cc-intelligence-be/internal/model"
)

// ErrCapacityExceeded is returned when a session payload is rejected because
// it is too large for the underlying storage. Callers may retry with a
// truncated payload.
var ErrCapacityExceeded = errors.New("session payload exceeds storage capacity")

// ISessionRepository is the key-value persistence surface for sessions,
// keyed by company name. Absence is not an error: Load returns (nil, nil)
// for a first-time company.
type ISessionRepository interface {
	Load(ctx context.Context, company string) (*model.ResearchSessionRecord, error)
	Save(ctx context.Context, record *model.ResearchSessionRecord) error
	Delete(ctx context.Context, company string) error
	DeleteAll(ctx context.Context) error

	// Auxiliary session-scoped state, wiped together with sessions on DeleteAll.
	SaveAux(ctx context.Context, record *model.SessionAuxRecord) error
	LoadAux(ctx context.Context, company, key string) (*model.SessionAuxRecord, error)
	DeleteAux(ctx context.Context, company string) error
}
