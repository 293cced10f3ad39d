package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/careops/valuemed/internal/calculation/aggregate"
	"github.com/careops/valuemed/internal/calculation/domain"
	"github.com/careops/valuemed/internal/calculation/step"
	"github.com/careops/valuemed/internal/clock"
	"github.com/careops/valuemed/internal/config"
	deptdomain "github.com/careops/valuemed/internal/department/domain"
	treedomain "github.com/careops/valuemed/internal/modeltree/domain"
	obsmetrics "github.com/careops/valuemed/internal/observability/metrics"
	"github.com/careops/valuemed/internal/orientation/adjust"
	orientdomain "github.com/careops/valuemed/internal/orientation/domain"
	wfdomain "github.com/careops/valuemed/internal/workflow/domain"
	"github.com/careops/valuemed/pkg/db/pagination"
	"github.com/careops/valuemed/pkg/repository"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	CalcConfig  *config.CalcConfigHolder
	Repo        domain.Repository
	Executor    *step.Executor
	ModelTree   treedomain.Service
	Departments deptdomain.Service
	Workflows   wfdomain.Service
	Orientation orientdomain.Service
}

type service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         config.Config
	calcCfg     *config.CalcConfigHolder
	repo        domain.Repository
	executor    *step.Executor
	modelTree   treedomain.Service
	departments deptdomain.Service
	workflows   wfdomain.Service
	orientation orientdomain.Service
	detailStore repository.Repository[orientdomain.OrientationAdjustmentDetail]
}

func New(p Params) domain.Service {
	return &service{
		db:          p.DB,
		log:         p.Log.Named("calculation.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Config,
		calcCfg:     p.CalcConfig,
		repo:        p.Repo,
		executor:    p.Executor,
		modelTree:   p.ModelTree,
		departments: p.Departments,
		workflows:   p.Workflows,
		orientation: p.Orientation,
		detailStore: repository.ProvideStore[orientdomain.OrientationAdjustmentDetail](p.DB),
	}
}

func (s *service) CreateTask(ctx context.Context, req domain.CreateTaskRequest) (*domain.CalculationTask, error) {
	if _, err := domain.ParsePeriod(req.Period); err != nil {
		return nil, err
	}

	versionID := req.VersionID
	if versionID == 0 {
		active, err := s.modelTree.ActiveVersion(ctx, req.HospitalID)
		if err != nil {
			return nil, err
		}
		versionID = active.ID
	} else if _, err := s.modelTree.GetVersion(ctx, versionID); err != nil {
		return nil, err
	}

	// A malformed tree fails the create, not the run.
	if _, err := s.modelTree.GetTree(ctx, versionID); err != nil {
		return nil, err
	}

	departments, err := s.departments.Resolve(ctx, req.HospitalID, req.DepartmentIDs)
	if err != nil {
		return nil, err
	}
	if len(departments) == 0 {
		return nil, domain.ErrNoDepartments
	}

	if req.WorkflowID != nil {
		if _, err := s.workflows.GetWorkflow(ctx, req.HospitalID, *req.WorkflowID); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	task := &domain.CalculationTask{
		ID:         uuid.NewString(),
		HospitalID: req.HospitalID,
		VersionID:  versionID,
		WorkflowID: req.WorkflowID,
		Period:     req.Period,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.BatchID != "" {
		batchID := req.BatchID
		task.BatchID = &batchID
	}
	for _, id := range req.DepartmentIDs {
		task.DepartmentIDs = append(task.DepartmentIDs, int64(id))
	}

	if err := s.repo.InsertTask(ctx, s.db, task); err != nil {
		return nil, err
	}

	s.log.Info("task created",
		zap.String("task_id", task.ID),
		zap.Int64("hospital_id", int64(task.HospitalID)),
		zap.String("period", task.Period),
	)
	return task, nil
}

// CreateBatch creates three tasks under one batch id: the requested period,
// the month before it, and the same month one year earlier.
func (s *service) CreateBatch(ctx context.Context, req domain.CreateBatchRequest) ([]*domain.CalculationTask, error) {
	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	periods := []domain.Period{period, period.PrevMonth(), period.PrevYear()}

	tasks := make([]*domain.CalculationTask, 0, len(periods))
	for _, p := range periods {
		task, err := s.CreateTask(ctx, domain.CreateTaskRequest{
			HospitalID:    req.HospitalID,
			VersionID:     req.VersionID,
			WorkflowID:    req.WorkflowID,
			Period:        p.String(),
			DepartmentIDs: req.DepartmentIDs,
			BatchID:       batchID,
		})
		if err != nil {
			return nil, fmt.Errorf("period %s: %w", p, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *service) Cancel(ctx context.Context, hospitalID snowflake.ID, taskID string) error {
	task, err := s.findOwnedTask(ctx, hospitalID, taskID)
	if err != nil {
		return err
	}

	switch task.Status {
	case domain.StatusPending, domain.StatusRunning:
	default:
		return domain.ErrTaskTerminal
	}

	ok, err := s.repo.MarkCancelled(ctx, s.db, taskID, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		// The task reached a terminal state between the read and the update.
		return domain.ErrTaskTerminal
	}

	s.log.Info("task cancelled", zap.String("task_id", taskID))
	return nil
}

func (s *service) Status(ctx context.Context, hospitalID snowflake.ID, taskID string) (*domain.CalculationTask, error) {
	return s.findOwnedTask(ctx, hospitalID, taskID)
}

func (s *service) List(ctx context.Context, hospitalID snowflake.ID, period string, page pagination.Pagination) ([]*domain.CalculationTask, *pagination.PageInfo, error) {
	return s.repo.FindTasks(ctx, s.db, hospitalID, period, page)
}

func (s *service) findOwnedTask(ctx context.Context, hospitalID snowflake.ID, taskID string) (*domain.CalculationTask, error) {
	task, err := s.repo.FindTask(ctx, s.db, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.HospitalID != hospitalID {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// Run executes one task end to end. The pending-to-running transition is a
// conditional update, so when two runners race over the same task exactly
// one of them proceeds.
func (s *service) Run(ctx context.Context, taskID string) error {
	task, err := s.repo.FindTask(ctx, s.db, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return domain.ErrTaskNotFound
	}

	won, err := s.repo.MarkRunning(ctx, s.db, taskID, s.clock.Now())
	if err != nil {
		return err
	}
	if !won {
		// The pre-claim read is stale once the update loses, so classify
		// off the current row.
		current, ferr := s.repo.FindTask(ctx, s.db, taskID)
		if ferr != nil {
			return ferr
		}
		if current != nil && current.Status == domain.StatusCancelled {
			return domain.ErrTaskCancelled
		}
		return domain.ErrTaskNotPending
	}

	if err := s.execute(ctx, task); err != nil {
		s.log.Error("task failed",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		if markErr := s.repo.MarkTerminal(ctx, s.db, task.ID, domain.StatusFailed, err.Error(), s.clock.Now()); markErr != nil {
			s.log.Error("failed to mark task failed", zap.String("task_id", task.ID), zap.Error(markErr))
		}
		return err
	}

	if err := s.repo.MarkTerminal(ctx, s.db, task.ID, domain.StatusCompleted, "", s.clock.Now()); err != nil {
		return err
	}
	s.log.Info("task completed", zap.String("task_id", task.ID))
	return nil
}

func (s *service) execute(ctx context.Context, task *domain.CalculationTask) error {
	tree, err := s.modelTree.GetTree(ctx, task.VersionID)
	if err != nil {
		return err
	}

	var scope []snowflake.ID
	for _, id := range task.DepartmentIDs {
		scope = append(scope, snowflake.ID(id))
	}
	departments, err := s.departments.Resolve(ctx, task.HospitalID, scope)
	if err != nil {
		return err
	}
	if len(departments) == 0 {
		return domain.ErrNoDepartments
	}

	if task.WorkflowID != nil {
		steps, err := s.workflows.ActiveSteps(ctx, *task.WorkflowID)
		if err != nil {
			return err
		}
		if err := s.executor.Run(ctx, task, departments, steps); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStepFailed, err)
		}
	}
	if err := s.repo.UpdateProgress(ctx, s.db, task.ID, 50, s.clock.Now()); err != nil {
		return err
	}

	if err := s.aggregateDepartments(ctx, task, tree, departments); err != nil {
		return err
	}

	return s.repo.UpdateProgress(ctx, s.db, task.ID, 100, s.clock.Now())
}

// aggregateDepartments rolls up and adjusts every department. Departments
// are independent of each other, so they run in a bounded pool.
func (s *service) aggregateDepartments(ctx context.Context, task *domain.CalculationTask, tree *treedomain.Tree, departments []*deptdomain.Department) error {
	parallel := s.cfg.Worker.DeptParallel
	if parallel < 1 {
		parallel = 1
	}

	sem := make(chan struct{}, parallel)
	errs := make([]error, len(departments))
	var wg sync.WaitGroup

	for i, dept := range departments {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, dept *deptdomain.Department) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = s.aggregateDepartment(ctx, task, tree, dept)
		}(i, dept)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("department %s: %w", departments[i].Code, err)
		}
	}
	return nil
}

func (s *service) aggregateDepartment(ctx context.Context, task *domain.CalculationTask, tree *treedomain.Tree, dept *deptdomain.Department) error {
	leafRows, err := s.repo.FindLeafResults(ctx, s.db, task.ID, dept.ID)
	if err != nil {
		return err
	}

	// Workload comes from the step output; weight comes from the model
	// unless the step set one explicitly.
	leaves := make(map[snowflake.ID]aggregate.LeafInput, len(leafRows))
	for _, row := range leafRows {
		node := tree.Node(row.NodeID)
		if node == nil || !node.IsLeaf {
			continue
		}
		weight := node.Weight
		if row.Weight != 0 {
			weight = row.Weight
		}
		leaves[row.NodeID] = aggregate.LeafInput{
			Workload: row.Workload,
			Weight:   weight,
		}
	}
	for _, leaf := range tree.Leaves() {
		if _, ok := leaves[leaf.ID]; !ok {
			leaves[leaf.ID] = aggregate.LeafInput{Weight: leaf.Weight}
		}
	}

	results := aggregate.Rollup(tree, leaves)

	details, adjusted, err := s.adjustLeaves(ctx, task, tree, dept, leaves)
	if err != nil {
		return err
	}
	if adjusted {
		results = aggregate.Rollup(tree, leaves)
	}

	now := s.clock.Now()
	rows := make([]*domain.CalculationResult, 0, len(results))
	tree.PostOrder(func(node *treedomain.ModelNode) {
		result := results[node.ID]
		rows = append(rows, &domain.CalculationResult{
			ID:           s.genID.Generate(),
			TaskID:       task.ID,
			HospitalID:   task.HospitalID,
			DepartmentID: dept.ID,
			NodeID:       node.ID,
			NodeName:     node.Name,
			NodeCode:     node.Code,
			NodeType:     node.NodeType,
			ParentID:     node.ParentID,
			Workload:     result.Workload,
			Weight:       result.Weight,
			Value:        result.Value,
			Ratio:        result.Ratio,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	})

	if err := s.repo.ReplaceDepartmentResults(ctx, s.db, task.ID, dept.ID, rows); err != nil {
		return err
	}
	if len(details) > 0 {
		if err := s.detailStore.BatchCreate(ctx, details); err != nil {
			return err
		}
	}
	return s.writeSummary(ctx, task, tree, dept, results)
}

// adjustLeaves evaluates every rule-bound leaf against its orientation
// inputs and ladder, mutates the leaf weights in place for the rerun, and
// returns one audit detail per evaluation.
func (s *service) adjustLeaves(ctx context.Context, task *domain.CalculationTask, tree *treedomain.Tree, dept *deptdomain.Department, leaves map[snowflake.ID]aggregate.LeafInput) ([]*orientdomain.OrientationAdjustmentDetail, bool, error) {
	var details []*orientdomain.OrientationAdjustmentDetail
	adjusted := false
	now := s.clock.Now()

	for _, leaf := range tree.Leaves() {
		if leaf.OrientationRuleID == nil {
			continue
		}
		ruleID := *leaf.OrientationRuleID

		ladder, err := s.orientation.GetLadder(ctx, ruleID)
		if err != nil {
			return nil, false, err
		}
		inputs, err := s.orientation.GetInputs(ctx, task.HospitalID, ruleID, dept.Code, task.Period)
		if err != nil {
			return nil, false, err
		}

		input := leaves[leaf.ID]
		outcome := adjust.Evaluate(adjust.Input{
			Weight:    input.Weight,
			Workload:  input.Workload,
			Actual:    inputs.Actual,
			Benchmark: inputs.Benchmark,
			Ladder:    ladder,
		})

		detail := &orientdomain.OrientationAdjustmentDetail{
			ID:               s.genID.Generate(),
			TaskID:           task.ID,
			DepartmentID:     dept.ID,
			NodeID:           leaf.ID,
			RuleID:           ruleID,
			ActualValue:      inputs.Actual,
			BenchmarkValue:   inputs.Benchmark,
			OrientationRatio: outcome.Ratio,
			OriginalWeight:   input.Weight,
			AdjustedWeight:   outcome.AdjustedWeight,
			IsAdjusted:       outcome.IsAdjusted,
			AdjustmentReason: outcome.Reason,
			CreatedAt:        now,
		}
		if outcome.Matched != nil {
			ladderID := outcome.Matched.ID
			detail.LadderID = &ladderID
			detail.LowerLimit = outcome.Matched.LowerLimit
			detail.UpperLimit = outcome.Matched.UpperLimit
			detail.AdjustmentIntensity = outcome.Intensity
		}
		details = append(details, detail)
		obsmetrics.Worker().IncAdjustment(outcome.Reason)

		if outcome.IsAdjusted {
			input.Weight = outcome.AdjustedWeight
			leaves[leaf.ID] = input
			adjusted = true
		}
	}
	return details, adjusted, nil
}

// writeSummary classifies every root sequence into a staffing category by
// name keyword and upserts the per-department summary row.
func (s *service) writeSummary(ctx context.Context, task *domain.CalculationTask, tree *treedomain.Tree, dept *deptdomain.Department, results map[snowflake.ID]*aggregate.NodeResult) error {
	categories := s.calcCfg.Get().SummaryCategories

	values := make(map[string]float64, len(categories))
	var total float64
	for _, root := range tree.Roots() {
		result, ok := results[root.ID]
		if !ok {
			continue
		}
		total += result.Value
		if key := classify(root.Name, categories); key != "" {
			values[key] = aggregate.Round4(values[key] + result.Value)
		}
	}

	ratio := func(v float64) float64 {
		if total == 0 {
			return 0
		}
		return aggregate.Round2(v / total * 100)
	}

	now := s.clock.Now()
	return s.repo.UpsertSummary(ctx, s.db, &domain.CalculationSummary{
		ID:             s.genID.Generate(),
		TaskID:         task.ID,
		DepartmentID:   dept.ID,
		ClinicianValue: values["clinician"],
		ClinicianRatio: ratio(values["clinician"]),
		NursingValue:   values["nursing"],
		NursingRatio:   ratio(values["nursing"]),
		TechnicalValue: values["technical"],
		TechnicalRatio: ratio(values["technical"]),
		TotalValue:     aggregate.Round4(total),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

func classify(name string, categories []config.SummaryCategory) string {
	lower := strings.ToLower(name)
	for _, cat := range categories {
		for _, keyword := range cat.Keywords {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				return cat.Key
			}
		}
	}
	return ""
}
