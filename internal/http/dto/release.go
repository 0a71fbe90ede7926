package dto

import "github.com/adamjohnlea/my-music-collection-sub000/internal/domain"

// ReleaseResponse is a stored release with its image rows.
type ReleaseResponse struct {
	*domain.Release
	Enriched bool            `json:"enriched"`
	Images   []*domain.Image `json:"images"`
}

func NewReleaseResponse(r *domain.Release, images []*domain.Image) ReleaseResponse {
	if images == nil {
		images = []*domain.Image{}
	}
	return ReleaseResponse{Release: r, Enriched: r.IsEnriched(), Images: images}
}
