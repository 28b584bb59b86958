package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var hexColorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

// Environments 是允许的环境预设。
var Environments = []string{"city", "sunset", "night", "warehouse", "studio", "park"}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误信息中使用 JSON 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("viewercolor", func(fl validator.FieldLevel) bool {
		return hexColorPattern.MatchString(fl.Field().String())
	})
	// 空字符串表示不使用环境预设
	_ = v.RegisterValidation("viewerenv", func(fl validator.FieldLevel) bool {
		env := fl.Field().String()
		if env == "" {
			return true
		}
		for _, e := range Environments {
			if e == env {
				return true
			}
		}
		return false
	})
	return v
}

// IsHexColor 判断是否为 3 位或 6 位十六进制颜色。
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// validateStruct 执行结构体校验并转换为带字段详情的 ValidationError。
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError(err.Error())
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return validationError("Validation failed", fields...)
}

// fieldPath 去掉顶层结构体名，例如 ProfileInput.lights.ambientIntensity -> lights.ambientIntensity。
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "viewercolor":
		return fmt.Sprintf("Invalid hex color code for %s", name)
	case "viewerenv":
		return fmt.Sprintf("%s must be one of %s", name, strings.Join(Environments, ", "))
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "required":
		return fmt.Sprintf("%s is required", name)
	}
	return fmt.Sprintf("%s failed on %s", name, fe.Tag())
}
