package dto

import (
	"fmt"
	"strings"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Grades accepted by the remote service for the condition fields.
var mediaGrades = []string{
	"Mint (M)",
	"Near Mint (NM or M-)",
	"Very Good Plus (VG+)",
	"Very Good (VG)",
	"Good Plus (G+)",
	"Good (G)",
	"Fair (F)",
	"Poor (P)",
}

var sleeveGrades = append(append([]string{}, mediaGrades...), "Generic", "Not Graded", "No Cover")

func (r *EnqueueRequest) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateAction(r.Action)...)
	errs = append(errs, validateReleaseID(r.ReleaseID)...)
	errs = append(errs, validateInstanceID(domain.PushAction(r.Action), r.InstanceID)...)
	errs = append(errs, validateRating(r.Rating)...)
	errs = append(errs, validateGrade("media_condition", r.MediaCondition, mediaGrades)...)
	errs = append(errs, validateGrade("sleeve_condition", r.SleeveCondition, sleeveGrades)...)
	return errs
}

func validateAction(action string) []ValidationError {
	if !domain.PushAction(action).Valid() {
		return []ValidationError{{Field: "action", Message: fmt.Sprintf("unknown action %q", action)}}
	}
	return nil
}

func validateReleaseID(id int64) []ValidationError {
	if id <= 0 {
		return []ValidationError{{Field: "release_id", Message: "must be a positive release id"}}
	}
	return nil
}

func validateInstanceID(action domain.PushAction, id *int64) []ValidationError {
	if action == domain.PushUpdateCollection && (id == nil || *id <= 0) {
		return []ValidationError{{Field: "instance_id", Message: "is required for update_collection"}}
	}
	return nil
}

func validateRating(rating *int) []ValidationError {
	if rating != nil && (*rating < 0 || *rating > 5) {
		return []ValidationError{{Field: "rating", Message: "must be between 0 and 5"}}
	}
	return nil
}

func validateGrade(field string, value *string, allowed []string) []ValidationError {
	if value == nil || *value == "" {
		return nil
	}
	for _, g := range allowed {
		if *value == g {
			return nil
		}
	}
	return []ValidationError{{Field: field, Message: fmt.Sprintf("unknown grade %q", *value)}}
}
