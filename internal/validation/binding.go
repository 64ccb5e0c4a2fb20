package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterTags 注册自定义校验标签
//
//	maxbytes=N  字符串的UTF-8字节数不超过N
//	notblank    去除空白后不能为空
func RegisterTags(v *validator.Validate) error {
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		return err
	}
	return v.RegisterValidation("notblank", notBlank)
}

// RegisterGin 把自定义标签注册到gin的默认校验器
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin校验器不是validator/v10")
	}
	return RegisterTags(v)
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return Length(fl.Field().String()) <= limit
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// FormatValidationError 把校验错误转换为一句可读的原因
func FormatValidationError(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err.Error()
	}

	msgMap := map[string]string{
		"required": "is required",
		"notblank": "is required",
		"maxbytes": "is too long (max %v bytes)",
		"max":      "must be at most %v",
		"min":      "must be at least %v",
		"oneof":    "must be one of [%v]",
	}

	first := errs[0]
	field := strings.ToLower(first.Field())
	tmpl, ok := msgMap[first.Tag()]
	if !ok {
		return field + " is invalid"
	}
	if strings.Contains(tmpl, "%v") {
		return field + " " + fmt.Sprintf(tmpl, first.Param())
	}
	return field + " " + tmpl
}
