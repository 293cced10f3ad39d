package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListDepartments(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	departments, err := s.departmentSvc.List(c.Request.Context(), hospitalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"departments": departments})
}

func (s *Server) ListAccountingUnits(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	units, err := s.departmentSvc.AccountingUnits(c.Request.Context(), hospitalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounting_units": units})
}
