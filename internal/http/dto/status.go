package dto

import (
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
)

type StatusResponse struct {
	Breaker  *pipeline.BreakerStatus `json:"breaker"`
	Push     *store.PushStats        `json:"push"`
	Releases *store.ReleaseStats     `json:"releases"`
	Images   *store.ImageStats       `json:"images"`
	Refresh  RefreshStatus           `json:"refresh"`
}

type RefreshStatus struct {
	Cursor    string `json:"cursor,omitempty"`
	LastRunAt string `json:"last_run_at,omitempty"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
