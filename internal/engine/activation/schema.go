// internal/engine/activation/schema.go
package activation

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "masqanicore/internal/common/errors"
	"masqanicore/internal/models"
)

// draftSchema is the structural contract a draft must meet before any money
// moves. The photo minimum mirrors models.MinPublishPhotos.
const draftSchema = `{
	"type": "object",
	"required": ["title", "description", "unitType", "price", "pricePeriod", "locationName", "photos"],
	"properties": {
		"title": {"type": "string", "minLength": 3},
		"description": {"type": "string", "minLength": 10},
		"unitType": {
			"type": "string",
			"enum": ["Bedsitter", "1 Bedroom", "2 Bedroom", "3 Bedroom", "4 Bedroom",
				"Own Compound", "Airbnb", "Nyumba ya Biashara"]
		},
		"price": {"type": "integer", "minimum": 1},
		"deposit": {"type": "integer", "minimum": 0},
		"pricePeriod": {"type": "string", "enum": ["monthly", "nightly"]},
		"locationName": {"type": "string", "minLength": 2},
		"photos": {
			"type": "array",
			"minItems": 8,
			"items": {"type": "string", "minLength": 1}
		},
		"coordinates": {
			"type": "object",
			"properties": {
				"lat": {"type": "number", "minimum": -90, "maximum": 90},
				"lng": {"type": "number", "minimum": -180, "maximum": 180}
			}
		}
	}
}`

var draftSchemaLoader = gojsonschema.NewStringLoader(draftSchema)

// ValidateDraft checks the draft against the structural contract and returns
// a single validation error aggregating every violation.
func ValidateDraft(draft *models.Listing) error {
	if draft == nil {
		return apperrors.NewValidationError("draft is empty")
	}

	result, err := gojsonschema.Validate(draftSchemaLoader, gojsonschema.NewGoLoader(draft))
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return apperrors.NewValidationError(strings.Join(details, "; "))
}
