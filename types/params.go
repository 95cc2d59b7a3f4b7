package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultSearchLimit     = 10
	DefaultSearchThreshold = 0.5
	MaxSearchLimit         = 50
	MaxSearchQueryLength   = 1000
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

// SearchParams is the body of a similarity search request.
// Zero Limit/SimilarityThreshold take the defaults.
type SearchParams struct {
	Query               string   `json:"query" validate:"required,min=1,max=1000"`
	Limit               int      `json:"limit" validate:"omitempty,gte=1,lte=50"`
	SimilarityThreshold *float64 `json:"similarity_threshold" validate:"omitempty,gte=0,lte=1"`
}

// Normalize fills unset fields with the documented defaults.
func (params *SearchParams) Normalize() {
	if params.Limit == 0 {
		params.Limit = DefaultSearchLimit
	}
	if params.SimilarityThreshold == nil {
		th := DefaultSearchThreshold
		params.SimilarityThreshold = &th
	}
}

func (params *SearchParams) Validate() map[string]string {
	return validateStruct(params)
}

type UpdateDocumentParams struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	Tags        *string `json:"tags"`
}

func (params *UpdateDocumentParams) Validate() map[string]string {
	return validateStruct(params)
}

// Empty reports whether the patch carries no fields at all.
func (params *UpdateDocumentParams) Empty() bool {
	return params.Title == nil && params.Description == nil && params.Tags == nil
}

type AskParams struct {
	Query               string   `json:"query" validate:"required,min=1,max=1000"`
	Limit               int      `json:"limit" validate:"omitempty,gte=1,lte=50"`
	SimilarityThreshold *float64 `json:"similarity_threshold" validate:"omitempty,gte=0,lte=1"`
}

func (params *AskParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}
