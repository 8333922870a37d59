package scheme

import (
	"math"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
)

var (
	componentTypeTag  = "componenttype"
	componentTypeText = "must be one of CAT, ASSIGNMENT, PROJECT, EXAM or PRACTICAL"

	weightSumTag  = "weightsum"
	weightSumText = "component weights must sum to 100"

	uniqueTypesTag  = "uniquetypes"
	uniqueTypesText = "component types must be unique within a scheme"

	uniqueGradesTag  = "uniquegrades"
	uniqueGradesText = "grades must be unique within a scheme"

	bandFloorTag  = "bandfloor"
	bandFloorText = "one band must start at 0"
)

// InitValidators registers the grading scheme validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(componentTypeTag, componentTypeValidation)
	core.RegisterCustomTranslation(validate, translator, componentTypeTag, componentTypeText)

	validate.RegisterStructValidation(newSchemeStructValidation, NewScheme{})
	core.RegisterCustomTranslation(validate, translator, weightSumTag, weightSumText)
	core.RegisterCustomTranslation(validate, translator, uniqueTypesTag, uniqueTypesText)
	core.RegisterCustomTranslation(validate, translator, uniqueGradesTag, uniqueGradesText)
	core.RegisterCustomTranslation(validate, translator, bandFloorTag, bandFloorText)
}

func componentTypeValidation(fl validator.FieldLevel) bool {
	return ComponentType(fl.Field().String()).IsValid()
}

// newSchemeStructValidation checks the invariants spanning several components or bands.
func newSchemeStructValidation(sl validator.StructLevel) {
	ns, ok := sl.Current().Interface().(NewScheme)
	if !ok || len(ns.Components) == 0 {
		return
	}

	var total float64
	types := make(map[ComponentType]bool, len(ns.Components))
	for _, c := range ns.Components {
		total += c.Weight
		if types[c.Type] {
			sl.ReportError(ns.Components, "components", "Components", uniqueTypesTag, "")
			return
		}
		types[c.Type] = true
	}
	if math.Abs(total-WeightTotal) > weightTolerance {
		sl.ReportError(ns.Components, "components", "Components", weightSumTag, "")
	}

	if len(ns.Bands) == 0 {
		return
	}
	grades := make(map[string]bool, len(ns.Bands))
	var hasFloor bool
	for _, b := range ns.Bands {
		if grades[b.Grade] {
			sl.ReportError(ns.Bands, "bands", "Bands", uniqueGradesTag, "")
			return
		}
		grades[b.Grade] = true
		if b.MinScore == 0 {
			hasFloor = true
		}
	}
	if !hasFloor {
		sl.ReportError(ns.Bands, "bands", "Bands", bandFloorTag, "")
	}
}
