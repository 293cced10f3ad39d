package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	orientdomain "github.com/careops/valuemed/internal/orientation/domain"
)

type ladderRangeRequest struct {
	LowerLimit          *float64 `json:"lower_limit"`
	UpperLimit          *float64 `json:"upper_limit"`
	AdjustmentIntensity float64  `json:"adjustment_intensity"`
}

type createRuleRequest struct {
	Name        string               `json:"name" binding:"required"`
	Category    string               `json:"category" binding:"required"`
	Description string               `json:"description"`
	Ladders     []ladderRangeRequest `json:"ladders" binding:"required"`
}

func (s *Server) CreateRule(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	ladders := make([]orientdomain.LadderRangeRequest, 0, len(req.Ladders))
	for _, r := range req.Ladders {
		ladders = append(ladders, orientdomain.LadderRangeRequest{
			LowerLimit:          r.LowerLimit,
			UpperLimit:          r.UpperLimit,
			AdjustmentIntensity: r.AdjustmentIntensity,
		})
	}

	rule, err := s.orientationSvc.CreateRule(c.Request.Context(), orientdomain.CreateRuleRequest{
		HospitalID:  hospitalID,
		Name:        strings.TrimSpace(req.Name),
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Ladders:     ladders,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (s *Server) ListRules(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rules, err := s.orientationSvc.ListRules(c.Request.Context(), hospitalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (s *Server) GetRule(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ruleID, err := parseSnowflakeParam(c, "rule_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rule, err := s.orientationSvc.GetRule(c.Request.Context(), hospitalID, ruleID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (s *Server) CopyRule(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ruleID, err := parseSnowflakeParam(c, "rule_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rule, err := s.orientationSvc.CopyRule(c.Request.Context(), hospitalID, ruleID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (s *Server) GetLadder(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ruleID, err := parseSnowflakeParam(c, "rule_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if _, err := s.orientationSvc.GetRule(c.Request.Context(), hospitalID, ruleID); err != nil {
		AbortWithError(c, err)
		return
	}

	ladder, err := s.orientationSvc.GetLadder(c.Request.Context(), ruleID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ladders": ladder})
}

type upsertValueRequest struct {
	YearMonth      string   `json:"year_month" binding:"required"`
	DepartmentCode string   `json:"department_code" binding:"required"`
	ActualValue    float64  `json:"actual_value"`
	BenchmarkValue *float64 `json:"benchmark_value"`
}

func (s *Server) UpsertValue(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ruleID, err := parseSnowflakeParam(c, "rule_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req upsertValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	value, err := s.orientationSvc.UpsertValue(c.Request.Context(), orientdomain.UpsertValueRequest{
		HospitalID:     hospitalID,
		RuleID:         ruleID,
		YearMonth:      req.YearMonth,
		DepartmentCode: req.DepartmentCode,
		ActualValue:    req.ActualValue,
		BenchmarkValue: req.BenchmarkValue,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, value)
}

type validateLadderRequest struct {
	Ladders []ladderRangeRequest `json:"ladders" binding:"required"`
}

// ValidateLadder dry-runs ladder validation so editors can check a draft
// without saving a rule.
func (s *Server) ValidateLadder(c *gin.Context) {
	var req validateLadderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	rungs := make([]*orientdomain.OrientationLadder, 0, len(req.Ladders))
	for i, r := range req.Ladders {
		rungs = append(rungs, &orientdomain.OrientationLadder{
			LadderOrder:         i,
			LowerLimit:          r.LowerLimit,
			UpperLimit:          r.UpperLimit,
			AdjustmentIntensity: r.AdjustmentIntensity,
		})
	}

	if err := orientdomain.NewLadder(rungs).Validate(); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}
