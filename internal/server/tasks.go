package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	calcdomain "github.com/careops/valuemed/internal/calculation/domain"
	"github.com/careops/valuemed/pkg/db/pagination"
)

type createTaskRequest struct {
	VersionID     snowflake.ID   `json:"version_id"`
	WorkflowID    *snowflake.ID  `json:"workflow_id"`
	Period        string         `json:"period" binding:"required"`
	DepartmentIDs []snowflake.ID `json:"department_ids"`
}

func (s *Server) CreateTask(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	task, err := s.calcSvc.CreateTask(c.Request.Context(), calcdomain.CreateTaskRequest{
		HospitalID:    hospitalID,
		VersionID:     req.VersionID,
		WorkflowID:    req.WorkflowID,
		Period:        strings.TrimSpace(req.Period),
		DepartmentIDs: req.DepartmentIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (s *Server) CreateBatch(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	tasks, err := s.calcSvc.CreateBatch(c.Request.Context(), calcdomain.CreateBatchRequest{
		HospitalID:    hospitalID,
		VersionID:     req.VersionID,
		WorkflowID:    req.WorkflowID,
		Period:        strings.TrimSpace(req.Period),
		DepartmentIDs: req.DepartmentIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"tasks": tasks})
}

func (s *Server) ListTasks(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page", "invalid_page", "invalid pagination parameters"))
		return
	}

	tasks, pageInfo, err := s.calcSvc.List(c.Request.Context(), hospitalID, c.Query("period"), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "page_info": pageInfo})
}

func (s *Server) GetTask(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	task, err := s.calcSvc.Status(c.Request.Context(), hospitalID, c.Param("task_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (s *Server) CancelTask(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.calcSvc.Cancel(c.Request.Context(), hospitalID, c.Param("task_id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": calcdomain.StatusCancelled})
}
