package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListResults(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	taskID := c.Param("task_id")

	// Ownership check before touching result rows.
	if _, err := s.calcSvc.Status(c.Request.Context(), hospitalID, taskID); err != nil {
		AbortWithError(c, err)
		return
	}

	departmentID, err := parseSnowflakeQuery(c, "department_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	results, err := s.calcRepo.FindResults(c.Request.Context(), s.db, taskID, departmentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) GetNodePath(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	taskID := c.Param("task_id")

	if _, err := s.calcSvc.Status(c.Request.Context(), hospitalID, taskID); err != nil {
		AbortWithError(c, err)
		return
	}

	departmentID, err := parseSnowflakeQuery(c, "department_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	nodeID, err := parseSnowflakeQuery(c, "node_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if departmentID == nil || nodeID == nil {
		AbortWithError(c, newValidationError("query", "missing_parameter", "department_id and node_id are required"))
		return
	}

	separator := c.DefaultQuery("separator", "/")
	path, err := s.calcRepo.NodePath(c.Request.Context(), s.db, taskID, *departmentID, *nodeID, separator)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (s *Server) ListSummaries(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	taskID := c.Param("task_id")

	if _, err := s.calcSvc.Status(c.Request.Context(), hospitalID, taskID); err != nil {
		AbortWithError(c, err)
		return
	}

	summaries, err := s.calcRepo.FindSummaries(c.Request.Context(), s.db, taskID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

func (s *Server) ListStepLogs(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	taskID := c.Param("task_id")

	if _, err := s.calcSvc.Status(c.Request.Context(), hospitalID, taskID); err != nil {
		AbortWithError(c, err)
		return
	}

	logs, err := s.calcRepo.FindStepLogs(c.Request.Context(), s.db, taskID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"step_logs": logs})
}

// CompareByUnit sums two tasks' node values per accounting unit, usually one
// batch's current and prior period.
func (s *Server) CompareByUnit(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	currentID := c.Query("current_task_id")
	previousID := c.Query("previous_task_id")
	if currentID == "" || previousID == "" {
		AbortWithError(c, newValidationError("query", "missing_parameter", "current_task_id and previous_task_id are required"))
		return
	}

	for _, taskID := range []string{currentID, previousID} {
		if _, err := s.calcSvc.Status(c.Request.Context(), hospitalID, taskID); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	rows, err := s.calcRepo.CompareByUnit(c.Request.Context(), s.db, currentID, previousID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comparison": rows})
}
