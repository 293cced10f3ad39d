package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	wfdomain "github.com/careops/valuemed/internal/workflow/domain"
)

type createWorkflowRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) CreateWorkflow(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	workflow, err := s.workflowSvc.CreateWorkflow(c.Request.Context(), wfdomain.CreateWorkflowRequest{
		HospitalID:  hospitalID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, workflow)
}

func (s *Server) ListWorkflows(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	workflows, err := s.workflowSvc.ListWorkflows(c.Request.Context(), hospitalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workflows": workflows})
}

func (s *Server) GetWorkflow(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	workflowID, err := parseSnowflakeParam(c, "workflow_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	workflow, err := s.workflowSvc.GetWorkflow(c.Request.Context(), hospitalID, workflowID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, workflow)
}

type createStepRequest struct {
	Name      string `json:"name" binding:"required"`
	StepOrder int    `json:"step_order"`
	Content   string `json:"content" binding:"required"`
}

func (s *Server) CreateStep(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	workflowID, err := parseSnowflakeParam(c, "workflow_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if _, err := s.workflowSvc.GetWorkflow(c.Request.Context(), hospitalID, workflowID); err != nil {
		AbortWithError(c, err)
		return
	}

	var req createStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	step, err := s.workflowSvc.CreateStep(c.Request.Context(), wfdomain.CreateStepRequest{
		WorkflowID: workflowID,
		Name:       strings.TrimSpace(req.Name),
		StepOrder:  req.StepOrder,
		Content:    req.Content,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, step)
}

func (s *Server) ListSteps(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	workflowID, err := parseSnowflakeParam(c, "workflow_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if _, err := s.workflowSvc.GetWorkflow(c.Request.Context(), hospitalID, workflowID); err != nil {
		AbortWithError(c, err)
		return
	}

	steps, err := s.workflowSvc.ActiveSteps(c.Request.Context(), workflowID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"steps": steps})
}
