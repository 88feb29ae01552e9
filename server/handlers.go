package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/milk9111/gravnav/navsys"
	"github.com/milk9111/gravnav/pathfind"
	"github.com/milk9111/gravnav/scene"
	"github.com/milk9111/gravnav/scenes"
	"github.com/milk9111/gravnav/volume"
)

type Handlers struct {
	sys    *navsys.System
	logger *slog.Logger
}

func NewHandlers(sys *navsys.System, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{sys: sys, logger: logger}
}

// HandleBuild handles POST /v1/build.
//
//	200 OK: BuildResponse
//	400 Bad Request: neither or both of scene and spec, or an invalid scene
//	422 Unprocessable Entity: the volume could not be built
func (h *Handlers) HandleBuild(c *gin.Context) {
	var req BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	var (
		sc  *scene.Scene
		err error
	)
	switch {
	case req.Scene != "" && req.Spec == nil:
		sc, err = scene.LoadEmbedded(req.Scene)
	case req.Spec != nil && req.Scene == "":
		sc, err = scene.FromSpec(*req.Spec, scenes.LoadScript)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "set exactly one of scene or spec", Code: "INVALID_REQUEST"})
		return
	}
	if err != nil {
		h.logger.Warn("server: scene rejected", "scene", req.Scene, "err", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_SCENE"})
		return
	}

	vol, err := h.sys.Build(c.Request.Context(), sc)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}
	resp := BuildResponse{
		Scene:       sc.Name,
		Fingerprint: vol.Fingerprint(),
		Stats:       vol.Stats(),
	}
	if snap := h.sys.Snapshot(); snap != nil {
		resp.Version = snap.Version
	}
	c.JSON(http.StatusOK, resp)
}

// HandleFindPath handles POST /v1/paths. Synchronous requests answer with
// the result; async ones answer 202 with the request id.
func (h *Handlers) HandleFindPath(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	if req.Async {
		t, err := h.sys.RequestPath(req.Request)
		if err != nil {
			status, body := errorResponse(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusAccepted, PathResponse{ID: t.ID, State: t.State().String()})
		return
	}

	res, err := h.sys.FindPath(c.Request.Context(), req.Request)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, PathResponse{ID: res.RequestID, State: navsys.Done.String(), Result: res})
}

// HandleGetPath handles GET /v1/paths/:id. A finished request is released
// once it has been read.
func (h *Handlers) HandleGetPath(c *gin.Context) {
	id := c.Param("id")
	t, err := h.sys.Ticket(id)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	state, out := t.Poll()
	resp := PathResponse{ID: id, State: state.String()}
	switch state {
	case navsys.Pending, navsys.Running:
		c.JSON(http.StatusAccepted, resp)
		return
	case navsys.Done:
		if out.Err != nil {
			_, body := errorResponse(out.Err)
			resp.Error = &body
		}
		resp.Result = out.Result
	}
	h.sys.Release(id)
	c.JSON(http.StatusOK, resp)
}

// HandleCancelPath handles DELETE /v1/paths/:id.
func (h *Handlers) HandleCancelPath(c *gin.Context) {
	id := c.Param("id")
	if err := h.sys.Cancel(id); err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.sys.Stats())
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if snap := h.sys.Snapshot(); snap != nil {
		resp.Volume = !snap.Volume.Empty()
		resp.Version = snap.Version
	}
	c.JSON(http.StatusOK, resp)
}

func errorResponse(err error) (int, ErrorResponse) {
	body := ErrorResponse{Error: err.Error()}
	var reqErr *pathfind.RequestError
	switch {
	case errors.As(err, &reqErr):
		body.Code = "INVALID_REQUEST"
		body.Field = reqErr.Field
		return http.StatusBadRequest, body
	case errors.Is(err, pathfind.ErrInvalidRequest):
		body.Code = "INVALID_REQUEST"
		return http.StatusBadRequest, body
	case errors.Is(err, pathfind.ErrNotFound):
		body.Code = "NO_PATH"
		return http.StatusNotFound, body
	case errors.Is(err, navsys.ErrUnknownRequest):
		body.Code = "UNKNOWN_REQUEST"
		return http.StatusNotFound, body
	case errors.Is(err, pathfind.ErrCancelled):
		body.Code = "CANCELLED"
		return http.StatusRequestTimeout, body
	case errors.Is(err, volume.ErrBuildFailed):
		body.Code = "BUILD_FAILED"
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, navsys.ErrSuperseded):
		body.Code = "SUPERSEDED"
		return http.StatusConflict, body
	case errors.Is(err, navsys.ErrNoVolume):
		body.Code = "NO_VOLUME"
		return http.StatusConflict, body
	case errors.Is(err, navsys.ErrQueueFull), errors.Is(err, navsys.ErrClosed):
		body.Code = "UNAVAILABLE"
		return http.StatusServiceUnavailable, body
	}
	body.Code = "INTERNAL"
	return http.StatusInternalServerError, body
}
