package content

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var (
	audienceTag  = "audience"
	audienceText = "audience must be one of everyone, students or instructors"

	itemKindTag  = "itemkind"
	itemKindText = "unknown item kind"
)

// InitValidators registers the content-specific validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(audienceTag, audienceValidation)
	core.RegisterCustomTranslation(validate, translator, audienceTag, audienceText)

	_ = validate.RegisterValidation(itemKindTag, itemKindValidation)
	core.RegisterCustomTranslation(validate, translator, itemKindTag, itemKindText)
}

func audienceValidation(fl validator.FieldLevel) bool {
	return Audience(fl.Field().String()).Valid()
}

func itemKindValidation(fl validator.FieldLevel) bool {
	return Kind(fl.Field().String()).Valid()
}
