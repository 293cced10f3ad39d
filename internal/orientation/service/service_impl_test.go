package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/careops/valuemed/internal/clock"
	"github.com/careops/valuemed/internal/orientation/domain"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.OrientationRule{},
		&domain.OrientationBenchmark{},
		&domain.OrientationLadder{},
		&domain.OrientationValue{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
	})
	return svc, db
}

func f(v float64) *float64 { return &v }

func createRule(t *testing.T, svc domain.Service, hospitalID snowflake.ID) *domain.OrientationRule {
	t.Helper()
	rule, err := svc.CreateRule(context.Background(), domain.CreateRuleRequest{
		HospitalID: hospitalID,
		Name:       "surgery volume",
		Category:   domain.CategoryBenchmarkLadder,
		Ladders: []domain.LadderRangeRequest{
			{UpperLimit: f(1.0), AdjustmentIntensity: 0.8},
			{LowerLimit: f(1.0), AdjustmentIntensity: 1.0},
		},
	})
	require.NoError(t, err)
	return rule
}

func TestCreateRuleRejectsOverlappingLadder(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateRule(context.Background(), domain.CreateRuleRequest{
		HospitalID: 1,
		Name:       "bad ladder",
		Category:   domain.CategoryBenchmarkLadder,
		Ladders: []domain.LadderRangeRequest{
			{UpperLimit: f(1.0), AdjustmentIntensity: 0.8},
			{LowerLimit: f(0.5), AdjustmentIntensity: 1.0},
		},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidLadder)
}

func TestCreateRuleRejectsUnknownCategory(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateRule(context.Background(), domain.CreateRuleRequest{
		HospitalID: 1,
		Name:       "rule",
		Category:   "weighted_average",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
}

func TestCopyRuleDuplicatesLadder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rule := createRule(t, svc, 1)

	copied, err := svc.CopyRule(ctx, 1, rule.ID)
	require.NoError(t, err)
	assert.NotEqual(t, rule.ID, copied.ID)
	assert.Equal(t, rule.Name+"（副本）", copied.Name)

	ladder, err := svc.GetLadder(ctx, copied.ID)
	require.NoError(t, err)
	require.Len(t, ladder, 2)
	assert.Equal(t, 0.8, ladder[0].AdjustmentIntensity)

	original, err := svc.GetLadder(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, original, 2)
	assert.NotEqual(t, original[0].ID, ladder[0].ID)
}

func TestCopyRuleOtherHospitalNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	rule := createRule(t, svc, 1)

	_, err := svc.CopyRule(context.Background(), 2, rule.ID)
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
}

func TestUpsertValueReplacesExistingPeriodRow(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	rule := createRule(t, svc, 1)

	_, err := svc.UpsertValue(ctx, domain.UpsertValueRequest{
		HospitalID: 1, RuleID: rule.ID, YearMonth: "2025-03",
		DepartmentCode: "CARD", ActualValue: 90, BenchmarkValue: f(120),
	})
	require.NoError(t, err)

	_, err = svc.UpsertValue(ctx, domain.UpsertValueRequest{
		HospitalID: 1, RuleID: rule.ID, YearMonth: "2025-03",
		DepartmentCode: "CARD", ActualValue: 110, BenchmarkValue: f(100),
	})
	require.NoError(t, err)

	var rows []domain.OrientationValue
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 110.0, rows[0].ActualValue)
	assert.Equal(t, 100.0, *rows[0].BenchmarkValue)
}

func TestUpsertValueRejectsBadPeriod(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpsertValue(context.Background(), domain.UpsertValueRequest{
		HospitalID: 1, RuleID: 1, YearMonth: "2025/03", DepartmentCode: "CARD",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestGetInputsFallsBackToRuleBenchmark(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	rule := createRule(t, svc, 1)

	_, err := svc.UpsertValue(ctx, domain.UpsertValueRequest{
		HospitalID: 1, RuleID: rule.ID, YearMonth: "2025-03",
		DepartmentCode: "CARD", ActualValue: 90,
	})
	require.NoError(t, err)

	require.NoError(t, db.Create(&domain.OrientationBenchmark{
		ID: 99, RuleID: rule.ID, Name: "rule default", BenchmarkValue: 120,
	}).Error)

	inputs, err := svc.GetInputs(ctx, 1, rule.ID, "CARD", "2025-03")
	require.NoError(t, err)
	require.NotNil(t, inputs.Actual)
	require.NotNil(t, inputs.Benchmark)
	assert.Equal(t, 90.0, *inputs.Actual)
	assert.Equal(t, 120.0, *inputs.Benchmark)
}

func TestGetInputsMissingValueRow(t *testing.T) {
	svc, _ := newTestService(t)

	rule := createRule(t, svc, 1)

	inputs, err := svc.GetInputs(context.Background(), 1, rule.ID, "LAB", "2025-03")
	require.NoError(t, err)
	assert.Nil(t, inputs.Actual)
	assert.Nil(t, inputs.Benchmark)
}
