package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/careops/valuemed/internal/clock"
	"github.com/careops/valuemed/internal/workflow/domain"
	"github.com/careops/valuemed/pkg/db/option"
	"github.com/careops/valuemed/pkg/repository"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	workflowRepo repository.Repository[domain.CalculationWorkflow]
	stepRepo     repository.Repository[domain.CalculationStep]
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("workflow.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		workflowRepo: repository.ProvideStore[domain.CalculationWorkflow](p.DB),
		stepRepo:     repository.ProvideStore[domain.CalculationStep](p.DB),
	}
}

func (s *Service) CreateWorkflow(ctx context.Context, req domain.CreateWorkflowRequest) (*domain.CalculationWorkflow, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	workflow := &domain.CalculationWorkflow{
		ID:          s.genID.Generate(),
		HospitalID:  req.HospitalID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.workflowRepo.Create(ctx, workflow); err != nil {
		return nil, err
	}
	return workflow, nil
}

func (s *Service) ListWorkflows(ctx context.Context, hospitalID snowflake.ID) ([]*domain.CalculationWorkflow, error) {
	return s.workflowRepo.Find(ctx, &domain.CalculationWorkflow{HospitalID: hospitalID})
}

func (s *Service) GetWorkflow(ctx context.Context, hospitalID, workflowID snowflake.ID) (*domain.CalculationWorkflow, error) {
	workflow, err := s.workflowRepo.FindOne(ctx, &domain.CalculationWorkflow{ID: workflowID, HospitalID: hospitalID})
	if err != nil {
		return nil, err
	}
	if workflow == nil {
		return nil, domain.ErrWorkflowNotFound
	}
	return workflow, nil
}

func (s *Service) CreateStep(ctx context.Context, req domain.CreateStepRequest) (*domain.CalculationStep, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, domain.ErrEmptyContent
	}

	workflow, err := s.workflowRepo.FindOne(ctx, &domain.CalculationWorkflow{ID: req.WorkflowID})
	if err != nil {
		return nil, err
	}
	if workflow == nil {
		return nil, domain.ErrWorkflowNotFound
	}

	now := s.clock.Now()
	step := &domain.CalculationStep{
		ID:         s.genID.Generate(),
		WorkflowID: req.WorkflowID,
		Name:       name,
		StepOrder:  req.StepOrder,
		Content:    req.Content,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.stepRepo.Create(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

// ActiveSteps returns the workflow's active steps in execution order.
func (s *Service) ActiveSteps(ctx context.Context, workflowID snowflake.ID) ([]*domain.CalculationStep, error) {
	steps, err := s.stepRepo.Find(ctx,
		&domain.CalculationStep{WorkflowID: workflowID, IsActive: true},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "step_order",
			OrderBy: "asc",
			Allow:   map[string]bool{"step_order": true},
		}),
	)
	if err != nil {
		return nil, err
	}
	return steps, nil
}
