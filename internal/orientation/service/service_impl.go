package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/careops/valuemed/internal/clock"
	"github.com/careops/valuemed/internal/orientation/domain"
	"github.com/careops/valuemed/pkg/db/option"
	"github.com/careops/valuemed/pkg/repository"
)

// copySuffix marks a duplicated rule's name, mirroring how operators label
// copies in the configuration UI.
const copySuffix = "（副本）"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	ruleRepo   repository.Repository[domain.OrientationRule]
	ladderRepo repository.Repository[domain.OrientationLadder]
	valueRepo  repository.Repository[domain.OrientationValue]
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("orientation.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		ruleRepo:   repository.ProvideStore[domain.OrientationRule](p.DB),
		ladderRepo: repository.ProvideStore[domain.OrientationLadder](p.DB),
		valueRepo:  repository.ProvideStore[domain.OrientationValue](p.DB),
	}
}

func (s *Service) CreateRule(ctx context.Context, req domain.CreateRuleRequest) (*domain.OrientationRule, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	switch req.Category {
	case domain.CategoryBenchmarkLadder, domain.CategoryDirectLadder, domain.CategoryOther:
	default:
		return nil, domain.ErrInvalidCategory
	}

	now := s.clock.Now()
	rule := &domain.OrientationRule{
		ID:          s.genID.Generate(),
		HospitalID:  req.HospitalID,
		Name:        name,
		Category:    req.Category,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	rungs := make([]*domain.OrientationLadder, 0, len(req.Ladders))
	for i, rng := range req.Ladders {
		rungs = append(rungs, &domain.OrientationLadder{
			ID:                  s.genID.Generate(),
			RuleID:              rule.ID,
			LadderOrder:         i + 1,
			LowerLimit:          rng.LowerLimit,
			UpperLimit:          rng.UpperLimit,
			AdjustmentIntensity: rng.AdjustmentIntensity,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}
	if len(rungs) > 0 {
		if err := domain.NewLadder(rungs).Validate(); err != nil {
			s.log.Warn("rejected ladder configuration", zap.String("rule", name), zap.Error(err))
			return nil, domain.ErrInvalidLadder
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ruleRepo.WithTrx(tx).Create(ctx, rule); err != nil {
			return err
		}
		return s.ladderRepo.WithTrx(tx).BatchCreate(ctx, rungs)
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// CopyRule duplicates a rule and its ladder under a new id.
func (s *Service) CopyRule(ctx context.Context, hospitalID, ruleID snowflake.ID) (*domain.OrientationRule, error) {
	source, err := s.GetRule(ctx, hospitalID, ruleID)
	if err != nil {
		return nil, err
	}
	rungs, err := s.ladderRepo.Find(ctx, &domain.OrientationLadder{RuleID: ruleID})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	duplicate := &domain.OrientationRule{
		ID:          s.genID.Generate(),
		HospitalID:  source.HospitalID,
		Name:        source.Name + copySuffix,
		Category:    source.Category,
		Description: source.Description,
		IsActive:    source.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	copied := make([]*domain.OrientationLadder, 0, len(rungs))
	for _, rung := range rungs {
		copied = append(copied, &domain.OrientationLadder{
			ID:                  s.genID.Generate(),
			RuleID:              duplicate.ID,
			LadderOrder:         rung.LadderOrder,
			LowerLimit:          rung.LowerLimit,
			UpperLimit:          rung.UpperLimit,
			AdjustmentIntensity: rung.AdjustmentIntensity,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ruleRepo.WithTrx(tx).Create(ctx, duplicate); err != nil {
			return err
		}
		return s.ladderRepo.WithTrx(tx).BatchCreate(ctx, copied)
	})
	if err != nil {
		return nil, err
	}
	return duplicate, nil
}

func (s *Service) ListRules(ctx context.Context, hospitalID snowflake.ID) ([]*domain.OrientationRule, error) {
	return s.ruleRepo.Find(ctx, &domain.OrientationRule{HospitalID: hospitalID})
}

func (s *Service) GetRule(ctx context.Context, hospitalID, ruleID snowflake.ID) (*domain.OrientationRule, error) {
	rule, err := s.ruleRepo.FindOne(ctx, &domain.OrientationRule{ID: ruleID, HospitalID: hospitalID})
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrRuleNotFound
	}
	return rule, nil
}

func (s *Service) GetLadder(ctx context.Context, ruleID snowflake.ID) (domain.Ladder, error) {
	rungs, err := s.ladderRepo.Find(ctx, &domain.OrientationLadder{RuleID: ruleID})
	if err != nil {
		return nil, err
	}
	return domain.NewLadder(rungs), nil
}

func (s *Service) UpsertValue(ctx context.Context, req domain.UpsertValueRequest) (*domain.OrientationValue, error) {
	period := strings.TrimSpace(req.YearMonth)
	if _, err := time.Parse("2006-01", period); err != nil {
		return nil, domain.ErrInvalidPeriod
	}

	now := s.clock.Now()
	value := &domain.OrientationValue{
		ID:             s.genID.Generate(),
		HospitalID:     req.HospitalID,
		RuleID:         req.RuleID,
		YearMonth:      period,
		DepartmentCode: strings.TrimSpace(req.DepartmentCode),
		ActualValue:    req.ActualValue,
		BenchmarkValue: req.BenchmarkValue,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO orientation_values (id, hospital_id, rule_id, year_month, department_code, actual_value, benchmark_value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (hospital_id, rule_id, year_month, department_code)
		 DO UPDATE SET actual_value = EXCLUDED.actual_value,
		               benchmark_value = EXCLUDED.benchmark_value,
		               updated_at = EXCLUDED.updated_at`,
		value.ID,
		value.HospitalID,
		value.RuleID,
		value.YearMonth,
		value.DepartmentCode,
		value.ActualValue,
		value.BenchmarkValue,
		value.CreatedAt,
		value.UpdatedAt,
	).Error
	if err != nil {
		return nil, err
	}
	return value, nil
}

// GetInputs returns the stored (actual, benchmark) pair for the rule,
// department and period. For benchmark-ladder rules a missing per-department
// benchmark falls back to the rule-level benchmark when one exists.
func (s *Service) GetInputs(ctx context.Context, hospitalID, ruleID snowflake.ID, departmentCode, period string) (domain.Inputs, error) {
	value, err := s.valueRepo.FindOne(ctx, &domain.OrientationValue{
		HospitalID:     hospitalID,
		RuleID:         ruleID,
		YearMonth:      period,
		DepartmentCode: departmentCode,
	})
	if err != nil {
		return domain.Inputs{}, err
	}
	if value == nil {
		return domain.Inputs{}, nil
	}

	inputs := domain.Inputs{
		Actual:    &value.ActualValue,
		Benchmark: value.BenchmarkValue,
	}
	if inputs.Benchmark == nil {
		var benchmark domain.OrientationBenchmark
		stmt := s.db.WithContext(ctx).
			Where("rule_id = ?", ruleID).
			Order("updated_at desc")
		err := option.WithLimit(1).Apply(stmt).Find(&benchmark).Error
		if err != nil {
			return domain.Inputs{}, err
		}
		if benchmark.ID != 0 {
			inputs.Benchmark = &benchmark.BenchmarkValue
		}
	}
	return inputs, nil
}
