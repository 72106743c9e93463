package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/observability"
	"github.com/kbukum/justconveyor/version"
)

const (
	healthPath    = "/health"
	versionPath   = "/version"
	snapshotPath  = "/conveyor/snapshot"
	contextsPath  = "/conveyor/contexts"
	pipelinesPath = "/conveyor/pipelines"
)

// dataResponse is the success envelope.
type dataResponse struct {
	Data any `json:"data"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dataResponse{Data: data})
}

func respondError(c *gin.Context, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, errors.Internal(err).ToResponse())
}

func (s *Server) routes() {
	s.engine.GET(healthPath, s.health)
	s.engine.GET(versionPath, s.version)
	s.engine.GET(snapshotPath, s.snapshot)
	s.engine.GET(pipelinesPath, s.pipelines)
	s.engine.GET(pipelinesPath+"/:name", s.pipeline)
	s.engine.GET(contextsPath, s.contexts)
	s.engine.GET(contextsPath+"/:id", s.context)
	s.engine.GET(streamPath, s.stream)
}

func (s *Server) health(c *gin.Context) {
	sh := observability.NewServiceHealth(s.service, version.Get().String())
	if s.checker != nil {
		for _, h := range s.checker(c.Request.Context()) {
			sh.AddComponent(h)
		}
	}
	status := http.StatusOK
	if !sh.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, sh)
}

func (s *Server) version(c *gin.Context) {
	respondOK(c, version.Get())
}

func (s *Server) snapshot(c *gin.Context) {
	respondOK(c, s.source.Snapshot())
}

func (s *Server) pipelines(c *gin.Context) {
	respondOK(c, s.source.Snapshot().Pipelines)
}

func (s *Server) pipeline(c *gin.Context) {
	name := c.Param("name")
	for _, p := range s.source.Snapshot().Pipelines {
		if p.Name == name {
			respondOK(c, p)
			return
		}
	}
	respondError(c, errors.BlueprintNotRegistered(name))
}

func (s *Server) contexts(c *gin.Context) {
	respondOK(c, s.source.InProgress())
}

func (s *Server) context(c *gin.Context) {
	id := c.Param("id")
	for _, tc := range s.source.InProgress() {
		if tc.ID == id {
			respondOK(c, tc)
			return
		}
	}
	respondError(c, errors.NotFound("context", id))
}
