package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListModelVersions(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	versions, err := s.modelTreeSvc.ListVersions(c.Request.Context(), hospitalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (s *Server) GetActiveModelVersion(c *gin.Context) {
	hospitalID, err := parseSnowflakeParam(c, "hospital_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	version, err := s.modelTreeSvc.ActiveVersion(c.Request.Context(), hospitalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, version)
}

func (s *Server) ListModelNodes(c *gin.Context) {
	versionID, err := parseSnowflakeParam(c, "version_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	nodes, err := s.modelTreeSvc.GetNodes(c.Request.Context(), versionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}
