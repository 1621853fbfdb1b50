package validator

import "github.com/go-playground/validator/v10"

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewSingleProspectValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("company_name", companyNameValidator),
		},
		{
			Rule: registerFn("linkedin_url", linkedInURLValidator),
		},
		{
			Rule: registerFn("phone", phoneValidator),
		},
	}
}
