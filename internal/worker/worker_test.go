package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	calcdomain "github.com/careops/valuemed/internal/calculation/domain"
	"github.com/careops/valuemed/internal/clock"
	"github.com/careops/valuemed/internal/config"
	"github.com/careops/valuemed/pkg/db/pagination"
)

type calcStub struct {
	mu      sync.Mutex
	runs    []string
	results map[string]error
}

func (s *calcStub) Run(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, taskID)
	return s.results[taskID]
}

func (s *calcStub) CreateTask(context.Context, calcdomain.CreateTaskRequest) (*calcdomain.CalculationTask, error) {
	return nil, nil
}

func (s *calcStub) CreateBatch(context.Context, calcdomain.CreateBatchRequest) ([]*calcdomain.CalculationTask, error) {
	return nil, nil
}

func (s *calcStub) Cancel(context.Context, snowflake.ID, string) error { return nil }

func (s *calcStub) Status(context.Context, snowflake.ID, string) (*calcdomain.CalculationTask, error) {
	return nil, nil
}

func (s *calcStub) List(context.Context, snowflake.ID, string, pagination.Pagination) ([]*calcdomain.CalculationTask, *pagination.PageInfo, error) {
	return nil, nil, nil
}

func newWorkerDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	// sqlite has no row locks; strip the locking clause so the claim
	// query still parses.
	stripLock := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripLock))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripLock))

	require.NoError(t, db.AutoMigrate(&calcdomain.CalculationTask{}))
	return db
}

func seedTask(t *testing.T, db *gorm.DB, id, status string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&calcdomain.CalculationTask{
		ID:         id,
		HospitalID: 1,
		VersionID:  1,
		Period:     "2025-03",
		Status:     status,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}).Error)
}

func newWorker(db *gorm.DB, calc calcdomain.Service) *Worker {
	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)),
		Config: config.Config{
			Worker: config.WorkerConfig{
				PollInterval: time.Second,
				TaskTimeout:  time.Minute,
				ClaimBatch:   2,
			},
		},
		Calc: calc,
	})
}

func TestRunOnce_ClaimsOldestPendingFirst(t *testing.T) {
	db := newWorkerDB(t)
	base := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	seedTask(t, db, "task-new", calcdomain.StatusPending, base.Add(2*time.Hour))
	seedTask(t, db, "task-old", calcdomain.StatusPending, base)
	seedTask(t, db, "task-mid", calcdomain.StatusPending, base.Add(time.Hour))
	seedTask(t, db, "task-done", calcdomain.StatusCompleted, base)

	stub := &calcStub{results: map[string]error{}}
	w := newWorker(db, stub)

	require.NoError(t, w.RunOnce(context.Background()))

	// ClaimBatch is 2, oldest first; the newest pending waits for the
	// next sweep.
	assert.Equal(t, []string{"task-old", "task-mid"}, stub.runs)

	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, []string{"task-old", "task-mid", "task-new"}, stub.runs)
}

func TestRunOnce_LostClaimAndCancelAreNotErrors(t *testing.T) {
	db := newWorkerDB(t)
	base := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	seedTask(t, db, "task-raced", calcdomain.StatusPending, base)
	seedTask(t, db, "task-cancelled", calcdomain.StatusPending, base.Add(time.Minute))

	stub := &calcStub{results: map[string]error{
		"task-raced":     calcdomain.ErrTaskNotPending,
		"task-cancelled": calcdomain.ErrTaskCancelled,
	}}
	w := newWorker(db, stub)

	assert.NoError(t, w.RunOnce(context.Background()))
	assert.Len(t, stub.runs, 2)
}

func TestRunOnce_FailureSurfacesButDoesNotStopTheBatch(t *testing.T) {
	db := newWorkerDB(t)
	base := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	seedTask(t, db, "task-bad", calcdomain.StatusPending, base)
	seedTask(t, db, "task-good", calcdomain.StatusPending, base.Add(time.Minute))

	bad := errors.New("step blew up")
	stub := &calcStub{results: map[string]error{"task-bad": bad}}
	w := newWorker(db, stub)

	err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, []string{"task-bad", "task-good"}, stub.runs)
}

// casCalc performs the real pending-to-running transition so overlapping
// sweeps race on the status guard the way the service does.
type casCalc struct {
	calcStub
	db   *gorm.DB
	runs map[string]int
}

func (s *casCalc) Run(ctx context.Context, taskID string) error {
	res := s.db.WithContext(ctx).
		Model(&calcdomain.CalculationTask{}).
		Where("id = ? AND status = ?", taskID, calcdomain.StatusPending).
		Update("status", calcdomain.StatusRunning)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return calcdomain.ErrTaskNotPending
	}

	s.mu.Lock()
	s.runs[taskID]++
	s.mu.Unlock()

	return s.db.WithContext(ctx).
		Model(&calcdomain.CalculationTask{}).
		Where("id = ?", taskID).
		Update("status", calcdomain.StatusCompleted).Error
}

func TestRunOnce_OverlappingSweepsRunEachTaskOnce(t *testing.T) {
	db := newWorkerDB(t)
	base := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	seedTask(t, db, "task-a", calcdomain.StatusPending, base)
	seedTask(t, db, "task-b", calcdomain.StatusPending, base.Add(time.Minute))

	calc := &casCalc{db: db, runs: map[string]int{}}
	first := newWorker(db, calc)
	second := newWorker(db, calc)

	// The first sweep claims a batch but stalls before running it, so the
	// second sweep sees the same pending rows.
	stale, err := first.claimPending(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, stale, 2)

	require.NoError(t, second.RunOnce(context.Background()))

	// Replaying the stale batch hits the status guard and is swallowed as
	// a lost claim rather than a second run.
	for _, id := range stale {
		require.NoError(t, first.runTask(context.Background(), id))
	}

	assert.Equal(t, map[string]int{"task-a": 1, "task-b": 1}, calc.runs)
}

func TestRunOnce_EmptySweep(t *testing.T) {
	db := newWorkerDB(t)
	stub := &calcStub{results: map[string]error{}}
	w := newWorker(db, stub)

	assert.NoError(t, w.RunOnce(context.Background()))
	assert.Empty(t, stub.runs)
}
