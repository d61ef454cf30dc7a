package merger

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cmpulse/internal/model"
)

// ValidationResult 校验结果
type ValidationResult struct {
	Valid   []model.MergedMetric  `json:"valid"`
	Invalid []model.InvalidRecord `json:"invalid"`
}

// Validator 合并记录校验器
type Validator struct {
	v *validator.Validate
}

// NewValidator 创建校验器
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Validate 逐条校验；单条失败不影响其他记录
func (val *Validator) Validate(merged []model.MergedMetric) ValidationResult {
	var out ValidationResult
	for _, m := range merged {
		if reason := val.check(m); reason != "" {
			out.Invalid = append(out.Invalid, model.InvalidRecord{
				Mentor: m.DisplayName,
				Reason: reason,
			})
			continue
		}
		out.Valid = append(out.Valid, m)
	}
	return out
}

func (val *Validator) check(m model.MergedMetric) string {
	if !m.Values.HasAny() {
		return "no metric present"
	}

	err := val.v.Struct(m.Values)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		reasons = append(reasons, describe(fe))
	}
	return strings.Join(reasons, "; ")
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must not be negative", field)
	case "lte":
		return fmt.Sprintf("%s exceeds %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
