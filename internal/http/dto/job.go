package dto

import (
	"time"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
)

type PushJobResponse struct {
	ID              int64   `json:"id"`
	Action          string  `json:"action"`
	Status          string  `json:"status"`
	Username        string  `json:"username"`
	ReleaseID       int64   `json:"release_id"`
	InstanceID      *int64  `json:"instance_id,omitempty"`
	Rating          *int    `json:"rating,omitempty"`
	MediaCondition  *string `json:"media_condition,omitempty"`
	SleeveCondition *string `json:"sleeve_condition,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	Attempts        int     `json:"attempts"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	Error           string  `json:"error,omitempty"`
}

func NewPushJobResponse(j *domain.PushJob) PushJobResponse {
	resp := PushJobResponse{
		ID:              j.ID,
		Action:          string(j.Action),
		Status:          string(j.Status),
		Username:        j.Username,
		ReleaseID:       j.ReleaseID,
		InstanceID:      j.InstanceID,
		Rating:          j.Rating,
		MediaCondition:  j.MediaCondition,
		SleeveCondition: j.SleeveCondition,
		Notes:           j.Notes,
		Attempts:        j.Attempts,
		CreatedAt:       j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       j.UpdatedAt.Format(time.RFC3339),
	}
	if j.LastError != nil {
		resp.Error = *j.LastError
	}
	return resp
}

func NewPushJobList(jobs []*domain.PushJob) []PushJobResponse {
	out := make([]PushJobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, NewPushJobResponse(j))
	}
	return out
}

// EnqueueRequest is the body of POST /api/push/jobs.
type EnqueueRequest struct {
	Action          string  `json:"action"`
	Username        string  `json:"username"`
	ReleaseID       int64   `json:"release_id"`
	InstanceID      *int64  `json:"instance_id,omitempty"`
	Rating          *int    `json:"rating,omitempty"`
	MediaCondition  *string `json:"media_condition,omitempty"`
	SleeveCondition *string `json:"sleeve_condition,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// ToPushJob builds the queue row. The username falls back to defaultUser.
func (r *EnqueueRequest) ToPushJob(defaultUser string) *domain.PushJob {
	username := r.Username
	if username == "" {
		username = defaultUser
	}
	return &domain.PushJob{
		Action:          domain.PushAction(r.Action),
		Username:        username,
		ReleaseID:       r.ReleaseID,
		InstanceID:      r.InstanceID,
		Rating:          r.Rating,
		MediaCondition:  r.MediaCondition,
		SleeveCondition: r.SleeveCondition,
		Notes:           r.Notes,
	}
}
