package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	deptdomain "github.com/careops/valuemed/internal/department/domain"
	treedomain "github.com/careops/valuemed/internal/modeltree/domain"
	orientdomain "github.com/careops/valuemed/internal/orientation/domain"
	wfdomain "github.com/careops/valuemed/internal/workflow/domain"
)

const (
	demoHospitalCode = "DEMO"
	demoHospitalName = "Demo General Hospital"
)

// EnsureDemoHospital seeds a small but complete hospital for local
// development: departments, an active model version with one sequence per
// summary category, a workflow, and a ladder rule with benchmark values.
// Idempotent; keyed on the hospital code.
func EnsureDemoHospital(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hospital, created, err := ensureHospital(ctx, tx, node)
		if err != nil || !created {
			return err
		}

		if err := seedDepartments(ctx, tx, node, hospital.ID); err != nil {
			return err
		}
		ruleID, err := seedOrientationRule(ctx, tx, node, hospital.ID)
		if err != nil {
			return err
		}
		if err := seedModelTree(ctx, tx, node, hospital.ID, ruleID); err != nil {
			return err
		}
		return seedWorkflow(ctx, tx, node, hospital.ID)
	})
}

func ensureHospital(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (*deptdomain.Hospital, bool, error) {
	var existing deptdomain.Hospital
	err := tx.WithContext(ctx).Where("code = ?", demoHospitalCode).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	hospital := &deptdomain.Hospital{
		ID:   node.Generate(),
		Code: demoHospitalCode,
		Name: demoHospitalName,
	}
	if err := tx.WithContext(ctx).Create(hospital).Error; err != nil {
		return nil, false, err
	}
	return hospital, true, nil
}

func seedDepartments(ctx context.Context, tx *gorm.DB, node *snowflake.Node, hospitalID snowflake.ID) error {
	departments := []*deptdomain.Department{
		{Code: "CARD", Name: "Cardiology Ward", AccountingUnitCode: "U-CARD", AccountingUnitName: "Cardiology", SortOrder: 1},
		{Code: "CARD-ICU", Name: "Cardiology ICU", AccountingUnitCode: "U-CARD", AccountingUnitName: "Cardiology", SortOrder: 2},
		{Code: "GS", Name: "General Surgery", AccountingUnitCode: "U-GS", AccountingUnitName: "General Surgery", SortOrder: 3},
		{Code: "LAB", Name: "Clinical Laboratory", SortOrder: 4},
	}
	for _, d := range departments {
		d.ID = node.Generate()
		d.HospitalID = hospitalID
		d.IsActive = true
	}
	return tx.WithContext(ctx).Create(&departments).Error
}

func seedOrientationRule(ctx context.Context, tx *gorm.DB, node *snowflake.Node, hospitalID snowflake.ID) (snowflake.ID, error) {
	rule := &orientdomain.OrientationRule{
		ID:         node.Generate(),
		HospitalID: hospitalID,
		Name:       "Surgery volume vs benchmark",
		Category:   orientdomain.CategoryBenchmarkLadder,
		IsActive:   true,
	}
	if err := tx.WithContext(ctx).Create(rule).Error; err != nil {
		return 0, err
	}

	ladders := []*orientdomain.OrientationLadder{
		{LadderOrder: 0, UpperLimit: f(0.8), AdjustmentIntensity: 0.8},
		{LadderOrder: 1, LowerLimit: f(0.8), UpperLimit: f(1.2), AdjustmentIntensity: 1.0},
		{LadderOrder: 2, LowerLimit: f(1.2), AdjustmentIntensity: 1.1},
	}
	for _, l := range ladders {
		l.ID = node.Generate()
		l.RuleID = rule.ID
	}
	if err := tx.WithContext(ctx).Create(&ladders).Error; err != nil {
		return 0, err
	}

	values := []*orientdomain.OrientationValue{
		{YearMonth: "2025-01", DepartmentCode: "CARD", ActualValue: 96, BenchmarkValue: f(120)},
		{YearMonth: "2025-01", DepartmentCode: "GS", ActualValue: 150, BenchmarkValue: f(120)},
	}
	for _, v := range values {
		v.ID = node.Generate()
		v.HospitalID = hospitalID
		v.RuleID = rule.ID
	}
	if err := tx.WithContext(ctx).Create(&values).Error; err != nil {
		return 0, err
	}
	return rule.ID, nil
}

func seedModelTree(ctx context.Context, tx *gorm.DB, node *snowflake.Node, hospitalID, ruleID snowflake.ID) error {
	version := &treedomain.ModelVersion{
		ID:         node.Generate(),
		HospitalID: hospitalID,
		Name:       "2025 baseline",
		Status:     treedomain.VersionStatusActive,
	}
	if err := tx.WithContext(ctx).Create(version).Error; err != nil {
		return err
	}

	type nodeSpec struct {
		name     string
		code     string
		parent   string
		nodeType string
		isLeaf   bool
		weight   float64
		unit     string
		rule     bool
	}
	specs := []nodeSpec{
		{name: "Clinician Services", code: "CLIN", nodeType: treedomain.NodeTypeSequence},
		{name: "Surgery", code: "CLIN-SURG", parent: "CLIN", nodeType: treedomain.NodeTypeDimension},
		{name: "Level 4 Surgery", code: "CLIN-SURG-L4", parent: "CLIN-SURG", nodeType: treedomain.NodeTypeDimension, isLeaf: true, weight: 8, unit: "case", rule: true},
		{name: "Level 3 Surgery", code: "CLIN-SURG-L3", parent: "CLIN-SURG", nodeType: treedomain.NodeTypeDimension, isLeaf: true, weight: 4, unit: "case"},
		{name: "Outpatient Visits", code: "CLIN-OPD", parent: "CLIN", nodeType: treedomain.NodeTypeDimension, isLeaf: true, weight: 0.5, unit: "visit"},
		{name: "Nursing Services", code: "NURS", nodeType: treedomain.NodeTypeSequence},
		{name: "Bed Days", code: "NURS-BED", parent: "NURS", nodeType: treedomain.NodeTypeDimension, isLeaf: true, weight: 1, unit: "day"},
		{name: "Technical Services", code: "TECH", nodeType: treedomain.NodeTypeSequence},
		{name: "Lab Tests", code: "TECH-LAB", parent: "TECH", nodeType: treedomain.NodeTypeDimension, isLeaf: true, weight: 0.2, unit: "test"},
	}

	ids := make(map[string]snowflake.ID, len(specs))
	nodes := make([]*treedomain.ModelNode, 0, len(specs))
	for i, spec := range specs {
		id := node.Generate()
		ids[spec.code] = id
		n := &treedomain.ModelNode{
			ID:        id,
			VersionID: version.ID,
			Name:      spec.name,
			Code:      spec.code,
			NodeType:  spec.nodeType,
			IsLeaf:    spec.isLeaf,
			Weight:    spec.weight,
			Unit:      spec.unit,
			SortOrder: i,
		}
		if spec.isLeaf {
			n.CalcType = treedomain.CalcTypeStatistical
		}
		if spec.parent != "" {
			parentID := ids[spec.parent]
			n.ParentID = &parentID
		}
		if spec.rule {
			rid := ruleID
			n.OrientationRuleID = &rid
		}
		nodes = append(nodes, n)
	}
	return tx.WithContext(ctx).Create(&nodes).Error
}

func seedWorkflow(ctx context.Context, tx *gorm.DB, node *snowflake.Node, hospitalID snowflake.ID) error {
	workflow := &wfdomain.CalculationWorkflow{
		ID:         node.Generate(),
		HospitalID: hospitalID,
		Name:       "Monthly workload rollup",
		IsActive:   true,
	}
	if err := tx.WithContext(ctx).Create(workflow).Error; err != nil {
		return err
	}

	step := &wfdomain.CalculationStep{
		ID:         node.Generate(),
		WorkflowID: workflow.ID,
		Name:       "Load staged workload",
		StepOrder:  1,
		IsActive:   true,
		Content: `-- Copies staged workload counts into leaf results for the period.
INSERT INTO calculation_results
    (id, task_id, hospital_id, department_id, node_id, node_name, node_type,
     workload, weight, value, ratio, created_at, updated_at)
SELECT w.row_id, '{task_id}', {hospital_id}, {department_id}, w.node_id,
       w.node_name, 'dimension', w.workload, 0, 0, 0,
       CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
FROM staging_workload w
WHERE w.department_id = {department_id}
  AND w.period >= '{start_date}'
  AND w.period <= '{end_date}';`,
	}
	return tx.WithContext(ctx).Create(step).Error
}

func f(v float64) *float64 { return &v }
