package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rileyhilliard/pxd/internal/api"
	"github.com/rileyhilliard/pxd/internal/cache"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/suggest"
	"github.com/rileyhilliard/pxd/internal/target"
)

func (s *Server) routes(g *gin.RouterGroup) {
	g.GET("/overview/system", s.systemOverview)
	g.GET("/overview/maintenance", s.maintenanceOverview)
	g.GET("/host", s.hostInfo)
	g.GET("/performance", s.performance)

	g.GET("/targets/status", s.targetStatus)
	g.POST("/targets/control", s.controlTarget)

	g.GET("/services/:name", s.serviceStatus)
	g.POST("/services/:name/:action", s.controlService)
	g.GET("/binaries/:name", s.checkBinary)

	g.GET("/configs", s.checkConfig)
	g.GET("/configs/content", s.readConfig)
	g.PUT("/configs/content", s.writeConfig)

	g.GET("/scripts", s.listScripts)
	g.POST("/scripts/:id", s.runScript)
	g.POST("/suggestions", s.suggestions)

	g.GET("/ws/overview", s.overviewSocket)
}

// respond writes data or err in the envelope.
func respond(c *gin.Context, data interface{}, err error) {
	if err != nil {
		env := api.Failure(err)
		c.JSON(api.StatusFor(env.Error.Code), env)
		return
	}
	c.JSON(http.StatusOK, api.Success(data))
}

// refresh drops keys when the request asks for fresh data.
func (s *Server) refresh(c *gin.Context, keys ...string) {
	if v, _ := strconv.ParseBool(c.Query("refresh")); v {
		s.agg.Invalidate(keys...)
	}
}

// optionalID reads an optional uint32 query parameter.
func optionalID(c *gin.Context, name string) (*uint32, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, errors.NewInvalidInput(name + " must be a non-negative integer, got " + strconv.Quote(raw))
	}
	v := uint32(id)
	return &v, nil
}

// queryTarget builds the target from container_id / vm_id. Neither is the host.
func queryTarget(c *gin.Context) (target.Target, error) {
	ct, err := optionalID(c, "container_id")
	if err != nil {
		return target.Target{}, err
	}
	vm, err := optionalID(c, "vm_id")
	if err != nil {
		return target.Target{}, err
	}
	return target.FromIDs(ct, vm)
}

// bind decodes a JSON body, reporting problems as INPUT errors.
func bind(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return errors.WrapWithCode(err, errors.ErrInput, "Invalid request body", "Send JSON matching the endpoint's fields.")
	}
	return nil
}

func (s *Server) systemOverview(c *gin.Context) {
	s.refresh(c, cache.KeySystemOverview)
	ov, err := s.agg.SystemOverview(c.Request.Context())
	respond(c, ov, err)
}

func (s *Server) maintenanceOverview(c *gin.Context) {
	s.refresh(c, cache.KeyMaintenance, cache.KeyHostInfo)
	ov, err := s.agg.MaintenanceOverview(c.Request.Context())
	respond(c, ov, err)
}

func (s *Server) hostInfo(c *gin.Context) {
	s.refresh(c, cache.KeyHostInfo)
	respond(c, s.agg.HostInfo(c.Request.Context()), nil)
}

func (s *Server) performance(c *gin.Context) {
	s.refresh(c, cache.KeyPerformance)
	perf, err := s.agg.Performance(c.Request.Context())
	respond(c, perf, err)
}

func (s *Server) targetStatus(c *gin.Context) {
	t, err := queryTarget(c)
	if err != nil {
		respond(c, nil, err)
		return
	}
	if !t.IsHost() {
		s.refresh(c, t.CacheKey())
	}
	rec, err := s.agg.TargetStatus(c.Request.Context(), t)
	respond(c, rec, err)
}

type controlRequest struct {
	ContainerID *uint32 `json:"container_id"`
	VMID        *uint32 `json:"vm_id"`
	Action      string  `json:"action" binding:"required"`
}

func (s *Server) controlTarget(c *gin.Context) {
	var req controlRequest
	if err := bind(c, &req); err != nil {
		respond(c, nil, err)
		return
	}
	t, err := target.FromIDs(req.ContainerID, req.VMID)
	if err != nil {
		respond(c, nil, err)
		return
	}
	if t.IsHost() {
		respond(c, nil, errors.NewInvalidInput("control needs a container_id or vm_id"))
		return
	}
	op, err := remote.ParseAction(req.Action)
	if err != nil {
		respond(c, nil, err)
		return
	}
	res, err := s.agg.ControlTarget(c.Request.Context(), t, op)
	respond(c, res, err)
}

func (s *Server) serviceStatus(c *gin.Context) {
	t, err := queryTarget(c)
	if err != nil {
		respond(c, nil, err)
		return
	}
	rec, err := s.agg.ServiceStatus(c.Request.Context(), t, c.Param("name"))
	respond(c, rec, err)
}

func (s *Server) controlService(c *gin.Context) {
	t, err := queryTarget(c)
	if err != nil {
		respond(c, nil, err)
		return
	}
	msg, err := s.agg.ControlService(c.Request.Context(), t, c.Param("name"), c.Param("action"))
	respond(c, gin.H{"message": msg}, err)
}

func (s *Server) checkBinary(c *gin.Context) {
	t, err := queryTarget(c)
	if err != nil {
		respond(c, nil, err)
		return
	}
	rec, err := s.agg.CheckBinary(c.Request.Context(), t, c.Param("name"))
	respond(c, rec, err)
}

func (s *Server) checkConfig(c *gin.Context) {
	t, err := queryTarget(c)
	if err != nil {
		respond(c, nil, err)
		return
	}
	rec, err := s.agg.CheckConfig(c.Request.Context(), t, c.Query("path"))
	respond(c, rec, err)
}

func (s *Server) readConfig(c *gin.Context) {
	t, err := queryTarget(c)
	if err != nil {
		respond(c, nil, err)
		return
	}
	path := c.Query("path")
	content, err := s.agg.ReadConfig(c.Request.Context(), t, path)
	respond(c, gin.H{"path": path, "target": t, "content": content}, err)
}

type writeConfigRequest struct {
	ContainerID *uint32 `json:"container_id"`
	VMID        *uint32 `json:"vm_id"`
	Path        string  `json:"path" binding:"required"`
	Content     string  `json:"content"`
}

func (s *Server) writeConfig(c *gin.Context) {
	var req writeConfigRequest
	if err := bind(c, &req); err != nil {
		respond(c, nil, err)
		return
	}
	t, err := target.FromIDs(req.ContainerID, req.VMID)
	if err != nil {
		respond(c, nil, err)
		return
	}
	res, err := s.agg.WriteConfig(c.Request.Context(), t, req.Path, req.Content)
	respond(c, res, err)
}

func (s *Server) listScripts(c *gin.Context) {
	respond(c, s.scripts.List(), nil)
}

func (s *Server) runScript(c *gin.Context) {
	res, err := s.scripts.Run(c.Request.Context(), c.Param("id"))
	respond(c, res, err)
}

func (s *Server) suggestions(c *gin.Context) {
	var req suggest.Request
	if err := bind(c, &req); err != nil {
		respond(c, nil, err)
		return
	}
	res, err := s.suggest.Suggest(c.Request.Context(), req)
	respond(c, res, err)
}
