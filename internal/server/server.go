package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	calcdomain "github.com/careops/valuemed/internal/calculation/domain"
	"github.com/careops/valuemed/internal/config"
	deptdomain "github.com/careops/valuemed/internal/department/domain"
	"github.com/careops/valuemed/internal/logger"
	treedomain "github.com/careops/valuemed/internal/modeltree/domain"
	orientdomain "github.com/careops/valuemed/internal/orientation/domain"
	wfdomain "github.com/careops/valuemed/internal/workflow/domain"
	"github.com/careops/valuemed/pkg/telemetry"
)

var Module = fx.Module("http.server",
	fx.Provide(telemetry.NewMetrics),
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(metrics *telemetry.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware())
	r.Use(metricsMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(metrics *telemetry.Metrics) *gin.Engine {
	return NewEngine(metrics)
}

func metricsMiddleware(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveAPIRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	genID          *snowflake.Node
	calcSvc        calcdomain.Service
	calcRepo       calcdomain.Repository
	departmentSvc  deptdomain.Service
	modelTreeSvc   treedomain.Service
	workflowSvc    wfdomain.Service
	orientationSvc orientdomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	GenID          *snowflake.Node
	CalcSvc        calcdomain.Service
	CalcRepo       calcdomain.Repository
	DepartmentSvc  deptdomain.Service
	ModelTreeSvc   treedomain.Service
	WorkflowSvc    wfdomain.Service
	OrientationSvc orientdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		genID:          p.GenID,
		calcSvc:        p.CalcSvc,
		calcRepo:       p.CalcRepo,
		departmentSvc:  p.DepartmentSvc,
		modelTreeSvc:   p.ModelTreeSvc,
		workflowSvc:    p.WorkflowSvc,
		orientationSvc: p.OrientationSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	hospitals := api.Group("/hospitals/:hospital_id")
	{
		hospitals.GET("/departments", s.ListDepartments)
		hospitals.GET("/accounting-units", s.ListAccountingUnits)

		hospitals.GET("/model-versions", s.ListModelVersions)
		hospitals.GET("/model-versions/active", s.GetActiveModelVersion)

		hospitals.POST("/tasks", s.CreateTask)
		hospitals.POST("/tasks/batch", s.CreateBatch)
		hospitals.GET("/tasks", s.ListTasks)
		hospitals.GET("/tasks/:task_id", s.GetTask)
		hospitals.POST("/tasks/:task_id/cancel", s.CancelTask)
		hospitals.GET("/tasks/:task_id/results", s.ListResults)
		hospitals.GET("/tasks/:task_id/results/path", s.GetNodePath)
		hospitals.GET("/tasks/:task_id/summaries", s.ListSummaries)
		hospitals.GET("/tasks/:task_id/step-logs", s.ListStepLogs)

		hospitals.GET("/comparison", s.CompareByUnit)

		hospitals.POST("/workflows", s.CreateWorkflow)
		hospitals.GET("/workflows", s.ListWorkflows)
		hospitals.GET("/workflows/:workflow_id", s.GetWorkflow)
		hospitals.POST("/workflows/:workflow_id/steps", s.CreateStep)
		hospitals.GET("/workflows/:workflow_id/steps", s.ListSteps)

		hospitals.POST("/orientation-rules", s.CreateRule)
		hospitals.GET("/orientation-rules", s.ListRules)
		hospitals.GET("/orientation-rules/:rule_id", s.GetRule)
		hospitals.POST("/orientation-rules/:rule_id/copy", s.CopyRule)
		hospitals.GET("/orientation-rules/:rule_id/ladder", s.GetLadder)
		hospitals.PUT("/orientation-rules/:rule_id/values", s.UpsertValue)
	}

	api.GET("/model-versions/:version_id/nodes", s.ListModelNodes)
	api.POST("/orientation-ladders/validate", s.ValidateLadder)
}

func parseSnowflakeParam(c *gin.Context, name string) (snowflake.ID, error) {
	raw := c.Param(name)
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError(name, "invalid_id", "must be a numeric id")
	}
	return id, nil
}

func parseSnowflakeQuery(c *gin.Context, name string) (*snowflake.ID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil, newValidationError(name, "invalid_id", "must be a numeric id")
	}
	return &id, nil
}
