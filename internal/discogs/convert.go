package discogs

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
)

// ToCollectionItem maps a listing entry. Notes are split by the default field
// ids for media condition, sleeve condition and free-text notes.
func (r APICollectionRelease) ToCollectionItem(username string) *domain.CollectionItem {
	item := &domain.CollectionItem{
		InstanceID: r.InstanceID,
		Username:   username,
		FolderID:   r.FolderID,
		ReleaseID:  r.releaseID(),
		DateAdded:  r.DateAdded,
		Rating:     domain.Ptr(r.Rating),
		Raw:        rawJSON(r),
	}
	for _, n := range r.Notes {
		v := n.Value
		switch n.FieldID {
		case constants.FieldMediaCondition:
			item.MediaCondition = &v
		case constants.FieldSleeveCondition:
			item.SleeveCondition = &v
		case constants.FieldNotes:
			item.Notes = &v
		}
	}
	return item
}

func (r APICollectionRelease) releaseID() int64 {
	if r.BasicInformation.ID != 0 {
		return r.BasicInformation.ID
	}
	return r.ID
}

// ToRelease builds the release stub carried by a collection entry.
func (r APICollectionRelease) ToRelease() *domain.Release {
	rel := r.BasicInformation.ToRelease()
	rel.ID = r.releaseID()
	return rel
}

func (w APIWant) ToWantlistItem(username string) *domain.WantlistItem {
	item := &domain.WantlistItem{
		Username:  username,
		ReleaseID: w.ID,
		DateAdded: w.DateAdded,
		Rating:    domain.Ptr(w.Rating),
		Raw:       rawJSON(w),
	}
	if w.Notes != "" {
		item.Notes = domain.Ptr(w.Notes)
	}
	return item
}

func (w APIWant) ToRelease() *domain.Release {
	rel := w.BasicInformation.ToRelease()
	rel.ID = w.ID
	return rel
}

// ToRelease maps the summary fields. Blank strings and zero years become nil
// so merge upserts keep stored values.
func (b APIBasicInformation) ToRelease() *domain.Release {
	return &domain.Release{
		ID:       b.ID,
		Title:    nonEmpty(b.Title),
		Artist:   nonEmpty(domain.JoinArtists(artistCredits(b.Artists))),
		Year:     nonZero(b.Year),
		ThumbURL: nonEmpty(b.Thumb),
		CoverURL: nonEmpty(b.CoverImage),
		Labels:   labelRefs(b.Labels),
		Formats:  formatRefs(b.Formats),
		Genres:   stringList(b.Genres),
		Styles:   stringList(b.Styles),
	}
}

// ToRelease maps full release detail. Absent lists stay nil; present but
// empty lists stay empty.
func (r *APIRelease) ToRelease() *domain.Release {
	rel := &domain.Release{
		ID:           r.ID,
		Title:        nonEmpty(r.Title),
		Artist:       nonEmpty(domain.JoinArtists(artistCredits(r.Artists))),
		Year:         nonZero(r.Year),
		Country:      nonEmpty(r.Country),
		ThumbURL:     nonEmpty(r.Thumb),
		CoverURL:     nonEmpty(r.PrimaryImage()),
		Labels:       labelRefs(r.Labels),
		Formats:      formatRefs(r.Formats),
		Genres:       stringList(r.Genres),
		Styles:       stringList(r.Styles),
		Tracklist:    trackEntries(r.Tracklist),
		Videos:       videoRefs(r.Videos),
		ExtraArtists: extraArtists(r.ExtraArtists),
		Companies:    companyRefs(r.Companies),
		Identifiers:  identifiers(r.Identifiers),
		Notes:        r.Notes,
	}
	if len(r.Raw) > 0 {
		rel.Raw = domain.Ptr(string(r.Raw))
	}
	return rel
}

// PrimaryImage returns the URI of the primary image, or the first image when
// none is marked primary.
func (r *APIRelease) PrimaryImage() string {
	for _, img := range r.Images {
		if img.Type == "primary" && img.URI != "" {
			return img.URI
		}
	}
	for _, img := range r.Images {
		if img.URI != "" {
			return img.URI
		}
	}
	return ""
}

// ToImages returns stub rows for every image in the detail payload.
func (r *APIRelease) ToImages() []*domain.Image {
	out := make([]*domain.Image, 0, len(r.Images))
	for _, img := range r.Images {
		if img.URI == "" {
			continue
		}
		kind := img.Type
		if kind == "" {
			kind = "secondary"
		}
		out = append(out, &domain.Image{ReleaseID: r.ID, SourceURL: img.URI, Kind: kind})
	}
	return out
}

func rawJSON(v interface{}) *string {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return domain.Ptr(string(data))
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func nonZero(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func stringList(in []string) domain.StringSlice {
	if in == nil {
		return nil
	}
	return domain.StringSlice(append([]string{}, in...))
}

func artistCredits(in []APIArtist) []domain.ArtistCredit {
	out := make([]domain.ArtistCredit, 0, len(in))
	for _, a := range in {
		out = append(out, domain.ArtistCredit{ID: a.ID, Name: a.Name, ANV: a.ANV, Join: a.Join, Role: a.Role})
	}
	return out
}

func extraArtists(in []APIArtist) domain.JSONList[domain.ArtistCredit] {
	if in == nil {
		return nil
	}
	return artistCredits(in)
}

func labelRefs(in []APILabel) domain.JSONList[domain.LabelRef] {
	if in == nil {
		return nil
	}
	out := make(domain.JSONList[domain.LabelRef], 0, len(in))
	for _, l := range in {
		out = append(out, domain.LabelRef{ID: l.ID, Name: l.Name, CatNo: l.CatNo})
	}
	return out
}

func formatRefs(in []APIFormat) domain.JSONList[domain.FormatRef] {
	if in == nil {
		return nil
	}
	out := make(domain.JSONList[domain.FormatRef], 0, len(in))
	for _, f := range in {
		out = append(out, domain.FormatRef{Name: f.Name, Qty: f.Qty, Text: f.Text, Descriptions: f.Descriptions})
	}
	return out
}

func trackEntries(in []APITrack) domain.JSONList[domain.TrackEntry] {
	if in == nil {
		return nil
	}
	out := make(domain.JSONList[domain.TrackEntry], 0, len(in))
	for _, t := range in {
		out = append(out, domain.TrackEntry{Position: t.Position, Type: t.Type, Title: t.Title, Duration: t.Duration})
	}
	return out
}

func videoRefs(in []APIVideo) domain.JSONList[domain.VideoRef] {
	if in == nil {
		return nil
	}
	out := make(domain.JSONList[domain.VideoRef], 0, len(in))
	for _, v := range in {
		out = append(out, domain.VideoRef{URI: v.URI, Title: v.Title, Duration: v.Duration})
	}
	return out
}

func companyRefs(in []APICompany) domain.JSONList[domain.CompanyRef] {
	if in == nil {
		return nil
	}
	out := make(domain.JSONList[domain.CompanyRef], 0, len(in))
	for _, c := range in {
		out = append(out, domain.CompanyRef{ID: c.ID, Name: c.Name, EntityTypeName: c.EntityTypeName, CatNo: c.CatNo})
	}
	return out
}

func identifiers(in []APIIdentifier) domain.JSONList[domain.Identifier] {
	if in == nil {
		return nil
	}
	out := make(domain.JSONList[domain.Identifier], 0, len(in))
	for _, id := range in {
		out = append(out, domain.Identifier{Type: id.Type, Value: id.Value, Description: id.Description})
	}
	return out
}
