package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	calcdomain "github.com/careops/valuemed/internal/calculation/domain"
	calcrepo "github.com/careops/valuemed/internal/calculation/repository"
	calcsvc "github.com/careops/valuemed/internal/calculation/service"
	"github.com/careops/valuemed/internal/calculation/step"
	"github.com/careops/valuemed/internal/clock"
	"github.com/careops/valuemed/internal/config"
	deptdomain "github.com/careops/valuemed/internal/department/domain"
	deptrepo "github.com/careops/valuemed/internal/department/repository"
	deptsvc "github.com/careops/valuemed/internal/department/service"
	treedomain "github.com/careops/valuemed/internal/modeltree/domain"
	treerepo "github.com/careops/valuemed/internal/modeltree/repository"
	treesvc "github.com/careops/valuemed/internal/modeltree/service"
	orientdomain "github.com/careops/valuemed/internal/orientation/domain"
	orientsvc "github.com/careops/valuemed/internal/orientation/service"
	wfdomain "github.com/careops/valuemed/internal/workflow/domain"
	wfsvc "github.com/careops/valuemed/internal/workflow/service"
	"github.com/careops/valuemed/pkg/telemetry"
)

type apiFixture struct {
	engine *gin.Engine
	db     *gorm.DB
	node   *snowflake.Node

	hospitalID snowflake.ID
	deptID     snowflake.ID
	versionID  snowflake.ID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&deptdomain.Hospital{},
		&deptdomain.Department{},
		&treedomain.ModelVersion{},
		&treedomain.ModelNode{},
		&wfdomain.CalculationWorkflow{},
		&wfdomain.CalculationStep{},
		&orientdomain.OrientationRule{},
		&orientdomain.OrientationLadder{},
		&orientdomain.OrientationBenchmark{},
		&orientdomain.OrientationValue{},
		&orientdomain.OrientationAdjustmentDetail{},
		&calcdomain.CalculationTask{},
		&calcdomain.CalculationResult{},
		&calcdomain.CalculationSummary{},
		&calcdomain.CalculationStepLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC))

	trees := treesvc.New(treesvc.Params{DB: db, Log: log, Repo: treerepo.Provide()})
	depts := deptsvc.New(deptsvc.Params{DB: db, Log: log, Repo: deptrepo.Provide()})
	workflows := wfsvc.New(wfsvc.Params{DB: db, Log: log, GenID: node, Clock: clk})
	orientation := orientsvc.New(orientsvc.Params{DB: db, Log: log, GenID: node, Clock: clk})

	repo := calcrepo.Provide()
	executor := step.NewExecutor(step.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: repo})
	calc := calcsvc.New(calcsvc.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Config:      config.Config{Worker: config.WorkerConfig{DeptParallel: 1}},
		CalcConfig:  config.NewStaticCalcHolder(config.DefaultCalcConfig()),
		Repo:        repo,
		Executor:    executor,
		ModelTree:   trees,
		Departments: depts,
		Workflows:   workflows,
		Orientation: orientation,
	})

	engine := NewEngine(telemetry.NewMetrics())
	NewServer(ServerParams{
		Gin:            engine,
		Cfg:            config.Config{},
		DB:             db,
		GenID:          node,
		CalcSvc:        calc,
		CalcRepo:       repo,
		DepartmentSvc:  depts,
		ModelTreeSvc:   trees,
		WorkflowSvc:    workflows,
		OrientationSvc: orientation,
	})

	f := &apiFixture{engine: engine, db: db, node: node}
	f.seed(t, clk.Now())
	return f
}

func (f *apiFixture) seed(t *testing.T, now time.Time) {
	t.Helper()

	f.hospitalID = f.node.Generate()
	require.NoError(t, f.db.Create(&deptdomain.Hospital{
		ID: f.hospitalID, Code: "H001", Name: "General", CreatedAt: now, UpdatedAt: now,
	}).Error)

	f.deptID = f.node.Generate()
	require.NoError(t, f.db.Create(&deptdomain.Department{
		ID: f.deptID, HospitalID: f.hospitalID, Code: "CARD", Name: "Cardiology",
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}).Error)

	f.versionID = f.node.Generate()
	require.NoError(t, f.db.Create(&treedomain.ModelVersion{
		ID: f.versionID, HospitalID: f.hospitalID, Name: "v1",
		Status: treedomain.VersionStatusActive, CreatedAt: now, UpdatedAt: now,
	}).Error)

	rootID := f.node.Generate()
	require.NoError(t, f.db.Create(&treedomain.ModelNode{
		ID: rootID, VersionID: f.versionID, Name: "Clinician Services",
		NodeType: treedomain.NodeTypeSequence, CreatedAt: now, UpdatedAt: now,
	}).Error)
	leafID := f.node.Generate()
	require.NoError(t, f.db.Create(&treedomain.ModelNode{
		ID: leafID, VersionID: f.versionID, ParentID: &rootID, Name: "Outpatient Visits",
		NodeType: treedomain.NodeTypeDimension, IsLeaf: true, Weight: 1,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
}

func (f *apiFixture) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) hospitalPath(suffix string) string {
	return fmt.Sprintf("/api/v1/hospitals/%d%s", f.hospitalID, suffix)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateTaskAndFetchStatus(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, f.hospitalPath("/tasks"), gin.H{"period": "2025-03"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode(t, rec)
	taskID, _ := created["id"].(string)
	require.NotEmpty(t, taskID)
	assert.Equal(t, calcdomain.StatusPending, created["status"])

	rec = f.request(t, http.MethodGet, f.hospitalPath("/tasks/"+taskID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-03", decode(t, rec)["period"])
}

func TestCreateTaskRejectsBadPeriod(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, f.hospitalPath("/tasks"), gin.H{"period": "March 2025"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestListTasksPaginates(t *testing.T) {
	f := newAPIFixture(t)

	for _, period := range []string{"2025-01", "2025-02", "2025-03"} {
		rec := f.request(t, http.MethodPost, f.hospitalPath("/tasks"), gin.H{"period": period})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	type listResponse struct {
		Tasks []struct {
			ID string `json:"id"`
		} `json:"tasks"`
		PageInfo struct {
			NextPageToken string `json:"next_page_token"`
			HasMore       bool   `json:"has_more"`
		} `json:"page_info"`
	}

	rec := f.request(t, http.MethodGet, f.hospitalPath("/tasks?page_size=2"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var first listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Len(t, first.Tasks, 2)
	require.True(t, first.PageInfo.HasMore)
	require.NotEmpty(t, first.PageInfo.NextPageToken)

	rec = f.request(t, http.MethodGet,
		f.hospitalPath("/tasks?page_size=2&page_token="+first.PageInfo.NextPageToken), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var second listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Len(t, second.Tasks, 1)
	assert.False(t, second.PageInfo.HasMore)

	seen := map[string]bool{}
	for _, task := range append(first.Tasks, second.Tasks...) {
		seen[task.ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestListTasksFiltersByPeriod(t *testing.T) {
	f := newAPIFixture(t)

	for _, period := range []string{"2025-01", "2025-02"} {
		rec := f.request(t, http.MethodPost, f.hospitalPath("/tasks"), gin.H{"period": period})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := f.request(t, http.MethodGet, f.hospitalPath("/tasks?period=2025-02"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Tasks []*calcdomain.CalculationTask `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, "2025-02", out.Tasks[0].Period)
}

func TestGetTaskUnknownIDReturns404(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodGet, f.hospitalPath("/tasks/no-such-task"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestCancelTwiceConflicts(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, f.hospitalPath("/tasks"), gin.H{"period": "2025-03"})
	require.Equal(t, http.StatusCreated, rec.Code)
	taskID := decode(t, rec)["id"].(string)

	rec = f.request(t, http.MethodPost, f.hospitalPath("/tasks/"+taskID+"/cancel"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.request(t, http.MethodPost, f.hospitalPath("/tasks/"+taskID+"/cancel"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestWorkflowLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, f.hospitalPath("/workflows"), gin.H{"name": "monthly rollup"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created wfdomain.CalculationWorkflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.request(t, http.MethodPost,
		f.hospitalPath(fmt.Sprintf("/workflows/%d/steps", created.ID)),
		gin.H{"name": "load workload", "step_order": 1, "content": "SELECT 1;"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.request(t, http.MethodGet,
		f.hospitalPath(fmt.Sprintf("/workflows/%d/steps", created.ID)), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var steps struct {
		Steps []*wfdomain.CalculationStep `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &steps))
	require.Len(t, steps.Steps, 1)
	assert.Equal(t, "load workload", steps.Steps[0].Name)
}

func TestCreateWorkflowEmptyNameRejected(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, f.hospitalPath("/workflows"), gin.H{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestValidateLadder(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/orientation-ladders/validate", gin.H{
		"ladders": []gin.H{
			{"upper_limit": 1.0, "adjustment_intensity": 0.8},
			{"lower_limit": 1.0, "adjustment_intensity": 1.0},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["valid"])

	rec = f.request(t, http.MethodPost, "/api/v1/orientation-ladders/validate", gin.H{
		"ladders": []gin.H{
			{"upper_limit": 1.0, "adjustment_intensity": 0.8},
			{"lower_limit": 0.5, "adjustment_intensity": 1.0},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, false, out["valid"])
	assert.NotEmpty(t, out["reason"])
}

func TestListDepartments(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodGet, f.hospitalPath("/departments"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Departments []*deptdomain.Department `json:"departments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Departments, 1)
	assert.Equal(t, "CARD", out.Departments[0].Code)
}

func TestHospitalIDMustBeNumeric(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/hospitals/abc/departments", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
