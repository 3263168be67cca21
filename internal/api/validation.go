package api

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var registerOnce sync.Once

// registerValidators teaches gin's validator to compare decimals and to
// report fields by their JSON names
func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}

	registerOnce.Do(func() {
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		v.RegisterTagNameFunc(jsonName)
	})
	return nil
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func jsonName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// validationErrors maps each failing field to the rule it broke. Returns nil
// when err is not a validation failure.
func validationErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make(map[string]string, len(verrs))
	for _, ve := range verrs {
		fields[ve.Field()] = ve.Tag()
	}
	return fields
}
