package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/careops/valuemed/internal/calculation/domain"
	deptdomain "github.com/careops/valuemed/internal/department/domain"
	"github.com/careops/valuemed/pkg/db/pagination"
)

func newTestDB(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.CalculationTask{},
		&domain.CalculationResult{},
		&domain.CalculationSummary{},
		&domain.CalculationStepLog{},
		&deptdomain.Department{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, node
}

func newTask(t *testing.T, db *gorm.DB, node *snowflake.Node, id string) *domain.CalculationTask {
	t.Helper()
	task := &domain.CalculationTask{
		ID:         id,
		HospitalID: 1,
		VersionID:  node.Generate(),
		Period:     "2025-03",
		Status:     domain.StatusPending,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func taskAt(t *testing.T, db *gorm.DB, node *snowflake.Node, id, period string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&domain.CalculationTask{
		ID:         id,
		HospitalID: 1,
		VersionID:  node.Generate(),
		Period:     period,
		Status:     domain.StatusPending,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}).Error)
}

func TestFindTasks_CursorPagination(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		taskAt(t, db, node, fmt.Sprintf("task-%d", i), "2025-03", base.Add(time.Duration(i)*time.Hour))
	}

	first, info, err := repo.FindTasks(ctx, db, 1, "", pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "task-4", first[0].ID)
	assert.Equal(t, "task-3", first[1].ID)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextPageToken)

	second, info, err := repo.FindTasks(ctx, db, 1, "", pagination.Pagination{PageSize: 2, PageToken: info.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "task-2", second[0].ID)
	assert.Equal(t, "task-1", second[1].ID)
	require.True(t, info.HasMore)

	last, info, err := repo.FindTasks(ctx, db, 1, "", pagination.Pagination{PageSize: 2, PageToken: info.NextPageToken})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "task-0", last[0].ID)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestFindTasks_PageBreaksOnIDWhenTimestampsTie(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"task-a", "task-b", "task-c"} {
		taskAt(t, db, node, id, "2025-03", at)
	}

	var seen []string
	page := pagination.Pagination{PageSize: 1}
	for {
		tasks, info, err := repo.FindTasks(ctx, db, 1, "", page)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		seen = append(seen, tasks[0].ID)
		if !info.HasMore {
			break
		}
		page.PageToken = info.NextPageToken
	}

	assert.Equal(t, []string{"task-c", "task-b", "task-a"}, seen)
}

func TestFindTasks_PeriodFilter(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	taskAt(t, db, node, "task-march", "2025-03", at)
	taskAt(t, db, node, "task-april", "2025-04", at.Add(time.Hour))

	tasks, info, err := repo.FindTasks(ctx, db, 1, "2025-04", pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "task-april", tasks[0].ID)
	assert.False(t, info.HasMore)
}

func TestMarkRunning_WinsExactlyOnce(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	newTask(t, db, node, "task-cas")
	now := time.Now().UTC()

	first, err := repo.MarkRunning(ctx, db, "task-cas", now)
	require.NoError(t, err)
	second, err := repo.MarkRunning(ctx, db, "task-cas", now)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)

	task, err := repo.FindTask(ctx, db, "task-cas")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, task.Status)
	assert.NotNil(t, task.StartedAt)
}

func TestMarkCancelled_OnlyFromPendingOrRunning(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	newTask(t, db, node, "task-cancel")
	ok, err := repo.MarkCancelled(ctx, db, "task-cancel", now)
	require.NoError(t, err)
	assert.True(t, ok)

	// Already cancelled, a second cancel does nothing.
	ok, err = repo.MarkCancelled(ctx, db, "task-cancel", now)
	require.NoError(t, err)
	assert.False(t, ok)

	// Running tasks can still be cancelled.
	newTask(t, db, node, "task-running")
	_, err = repo.MarkRunning(ctx, db, "task-running", now)
	require.NoError(t, err)
	ok, err = repo.MarkCancelled(ctx, db, "task-running", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReplaceDepartmentResults_RecomputeKeepsOtherTasks(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	deptID := node.Generate()
	nodeID := node.Generate()

	oldTask := newTask(t, db, node, "task-old")
	newRun := newTask(t, db, node, "task-new")

	row := func(taskID string, value float64) *domain.CalculationResult {
		return &domain.CalculationResult{
			ID:           node.Generate(),
			TaskID:       taskID,
			HospitalID:   1,
			DepartmentID: deptID,
			NodeID:       nodeID,
			NodeName:     "surgery count",
			NodeType:     "dimension",
			Value:        value,
		}
	}

	require.NoError(t, repo.ReplaceDepartmentResults(ctx, db, oldTask.ID, deptID, []*domain.CalculationResult{row(oldTask.ID, 100)}))
	require.NoError(t, repo.ReplaceDepartmentResults(ctx, db, newRun.ID, deptID, []*domain.CalculationResult{row(newRun.ID, 250)}))

	// Replacing the new task's rows again leaves the old task untouched.
	require.NoError(t, repo.ReplaceDepartmentResults(ctx, db, newRun.ID, deptID, []*domain.CalculationResult{row(newRun.ID, 300)}))

	oldRows, err := repo.FindResults(ctx, db, oldTask.ID, nil)
	require.NoError(t, err)
	require.Len(t, oldRows, 1)
	assert.Equal(t, 100.0, oldRows[0].Value)

	newRows, err := repo.FindResults(ctx, db, newRun.ID, nil)
	require.NoError(t, err)
	require.Len(t, newRows, 1)
	assert.Equal(t, 300.0, newRows[0].Value)
}

func TestUpsertSummary_SecondWriteUpdates(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	task := newTask(t, db, node, "task-summary")
	deptID := node.Generate()
	now := time.Now().UTC()

	summary := &domain.CalculationSummary{
		ID:             node.Generate(),
		TaskID:         task.ID,
		DepartmentID:   deptID,
		ClinicianValue: 100,
		TotalValue:     100,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.UpsertSummary(ctx, db, summary))

	summary.ID = node.Generate()
	summary.ClinicianValue = 150
	summary.NursingValue = 50
	summary.TotalValue = 200
	require.NoError(t, repo.UpsertSummary(ctx, db, summary))

	summaries, err := repo.FindSummaries(ctx, db, task.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 150.0, summaries[0].ClinicianValue)
	assert.Equal(t, 50.0, summaries[0].NursingValue)
	assert.Equal(t, 200.0, summaries[0].TotalValue)
}

func TestNodePath_WalksParentChainRootFirst(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	task := newTask(t, db, node, "task-path")
	deptID := node.Generate()

	rootID := node.Generate()
	midID := node.Generate()
	leafID := node.Generate()

	rows := []*domain.CalculationResult{
		{ID: node.Generate(), TaskID: task.ID, HospitalID: 1, DepartmentID: deptID, NodeID: rootID, NodeName: "医生服务", NodeType: "sequence"},
		{ID: node.Generate(), TaskID: task.ID, HospitalID: 1, DepartmentID: deptID, NodeID: midID, NodeName: "手术", NodeType: "dimension", ParentID: &rootID},
		{ID: node.Generate(), TaskID: task.ID, HospitalID: 1, DepartmentID: deptID, NodeID: leafID, NodeName: "四级手术", NodeType: "dimension", ParentID: &midID},
	}
	require.NoError(t, repo.ReplaceDepartmentResults(ctx, db, task.ID, deptID, rows))

	path, err := repo.NodePath(ctx, db, task.ID, deptID, leafID, "/")
	require.NoError(t, err)
	assert.Equal(t, "医生服务/手术/四级手术", path)

	_, err = repo.NodePath(ctx, db, task.ID, deptID, node.Generate(), "/")
	assert.ErrorIs(t, err, domain.ErrResultsNotFound)
}

func TestCompareByUnit_GroupsByAccountingUnit(t *testing.T) {
	db, node := newTestDB(t)
	repo := Provide()
	ctx := context.Background()

	current := newTask(t, db, node, "task-current")
	previous := newTask(t, db, node, "task-previous")

	// Two departments share one accounting unit; a third stands alone with
	// no unit code and falls back to its own department code.
	deptA := &deptdomain.Department{ID: node.Generate(), HospitalID: 1, Code: "CARD1", Name: "Cardiology Ward 1", AccountingUnitCode: "CARD", AccountingUnitName: "Cardiology"}
	deptB := &deptdomain.Department{ID: node.Generate(), HospitalID: 1, Code: "CARD2", Name: "Cardiology Ward 2", AccountingUnitCode: "CARD", AccountingUnitName: "Cardiology"}
	deptC := &deptdomain.Department{ID: node.Generate(), HospitalID: 1, Code: "LAB", Name: "Laboratory"}
	require.NoError(t, db.Create([]*deptdomain.Department{deptA, deptB, deptC}).Error)

	nodeID := node.Generate()
	insert := func(taskID string, deptID snowflake.ID, value float64) {
		require.NoError(t, db.Create(&domain.CalculationResult{
			ID:           node.Generate(),
			TaskID:       taskID,
			HospitalID:   1,
			DepartmentID: deptID,
			NodeID:       nodeID,
			NodeName:     "surgery",
			NodeType:     "dimension",
			Value:        value,
		}).Error)
	}

	insert(current.ID, deptA.ID, 100)
	insert(current.ID, deptB.ID, 50)
	insert(current.ID, deptC.ID, 30)
	insert(previous.ID, deptA.ID, 80)
	insert(previous.ID, deptC.ID, 40)

	rows, err := repo.CompareByUnit(ctx, db, current.ID, previous.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "CARD", rows[0].AccountingUnitCode)
	assert.Equal(t, "Cardiology", rows[0].AccountingUnitName)
	assert.Equal(t, 150.0, rows[0].CurrentValue)
	assert.Equal(t, 80.0, rows[0].PreviousValue)

	assert.Equal(t, "LAB", rows[1].AccountingUnitCode)
	assert.Equal(t, "Laboratory", rows[1].AccountingUnitName)
	assert.Equal(t, 30.0, rows[1].CurrentValue)
	assert.Equal(t, 40.0, rows[1].PreviousValue)
}
