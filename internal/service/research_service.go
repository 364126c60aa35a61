package service

import (
	"context"

	"cc-intelligence-be/internal/dto"
	"cc-intelligence-be/internal/orchestrator"
	"cc-intelligence-be/internal/pkg/logger"
	"cc-intelligence-be/pkg/research"
	"cc-intelligence-be/pkg/session"
)

// IResearchService is the imperative surface exposed to the presentation
// layer. Every mutating call returns the resulting session snapshot.
type IResearchService interface {
	SendUtterance(ctx context.Context, request *dto.SendUtteranceRequest) (*session.Session, error)
	SelectArea(ctx context.Context, request *dto.SelectAreaRequest) (*session.Session, error)
	SelectFollowUp(ctx context.Context, request *dto.SelectFollowUpRequest) (*session.Session, error)
	SwitchCompany(ctx context.Context, request *dto.SwitchCompanyRequest) (*session.Session, error)
	Retry(ctx context.Context, request *dto.RetryRequest) (*session.Session, error)
	GetSession(ctx context.Context) (*session.Session, error)
	GetAreas(ctx context.Context) []*dto.AreaResponse
	SetConsent(ctx context.Context, request *dto.ConsentRequest) error
	ClearSession(ctx context.Context, company string) error
	ClearAllSessions(ctx context.Context) error
}

type researchService struct {
	orch     *orchestrator.Orchestrator
	store    *session.Store
	registry *research.Registry
	logger   logger.ILogger
}

func NewResearchService(
	orch *orchestrator.Orchestrator,
	store *session.Store,
	registry *research.Registry,
	log logger.ILogger,
) IResearchService {
	return &researchService{
		orch:     orch,
		store:    store,
		registry: registry,
		logger:   log,
	}
}

func (s *researchService) SendUtterance(ctx context.Context, request *dto.SendUtteranceRequest) (*session.Session, error) {
	if err := s.orch.SendUtterance(ctx, request.Utterance); err != nil {
		return nil, err
	}
	return s.orch.Snapshot(), nil
}

func (s *researchService) SelectArea(_ context.Context, request *dto.SelectAreaRequest) (*session.Session, error) {
	if err := s.orch.SelectArea(research.AreaID(request.AreaId)); err != nil {
		return nil, err
	}
	return s.orch.Snapshot(), nil
}

func (s *researchService) SelectFollowUp(_ context.Context, request *dto.SelectFollowUpRequest) (*session.Session, error) {
	if err := s.orch.SelectFollowUp(request.OptionId); err != nil {
		return nil, err
	}
	return s.orch.Snapshot(), nil
}

func (s *researchService) SwitchCompany(_ context.Context, request *dto.SwitchCompanyRequest) (*session.Session, error) {
	if err := s.orch.SwitchCompany(request.Company); err != nil {
		return nil, err
	}
	return s.orch.Snapshot(), nil
}

func (s *researchService) Retry(_ context.Context, request *dto.RetryRequest) (*session.Session, error) {
	if err := s.orch.Retry(research.AreaID(request.AreaId)); err != nil {
		return nil, err
	}
	return s.orch.Snapshot(), nil
}

func (s *researchService) GetSession(_ context.Context) (*session.Session, error) {
	return s.orch.Snapshot(), nil
}

func (s *researchService) GetAreas(_ context.Context) []*dto.AreaResponse {
	areas := s.registry.Areas()
	out := make([]*dto.AreaResponse, 0, len(areas))
	for _, area := range areas {
		out = append(out, &dto.AreaResponse{
			Id:    string(area.ID),
			Title: area.Title,
			Steps: append([]string(nil), area.Steps...),
		})
	}
	return out
}

func (s *researchService) SetConsent(ctx context.Context, request *dto.ConsentRequest) error {
	s.store.SetConsent(ctx, request.Company, request.Granted)
	return nil
}

func (s *researchService) ClearSession(ctx context.Context, company string) error {
	s.store.Clear(ctx, company)
	return nil
}

func (s *researchService) ClearAllSessions(ctx context.Context) error {
	s.store.ClearAll(ctx)
	return nil
}
