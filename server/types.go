package server

import (
	"github.com/milk9111/gravnav/pathfind"
	"github.com/milk9111/gravnav/scene"
	"github.com/milk9111/gravnav/volume"
)

// BuildRequest names a bundled scene or carries one inline. Exactly one of
// the two must be set.
type BuildRequest struct {
	Scene string      `json:"scene"`
	Spec  *scene.Spec `json:"spec"`
}

type BuildResponse struct {
	Scene       string       `json:"scene"`
	Fingerprint string       `json:"fingerprint"`
	Version     uint64       `json:"version"`
	Stats       volume.Stats `json:"stats"`
}

type PathRequest struct {
	pathfind.Request
	// Async queues the request and returns its id instead of waiting.
	Async bool `json:"async"`
}

type PathResponse struct {
	ID     string           `json:"id"`
	State  string           `json:"state"`
	Result *pathfind.Result `json:"result,omitempty"`
	Error  *ErrorResponse   `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	// Field is set for invalid requests.
	Field string `json:"field,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Volume  bool   `json:"volume"`
	Version uint64 `json:"version"`
}
