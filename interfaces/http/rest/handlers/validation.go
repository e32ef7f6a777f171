package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"literature-flow/domain/core/valueobjects"
	pkgerrors "literature-flow/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// requestValidator returns the shared validator. Errors name fields by their
// JSON key and the map vocabularies are registered as tags.
func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("edgetype", func(fl validator.FieldLevel) bool {
			return valueobjects.EdgeType(fl.Field().String()).IsValid()
		})
		_ = validate.RegisterValidation("layoutmode", func(fl validator.FieldLevel) bool {
			_, err := valueobjects.ParseLayoutMode(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// decodeAndValidate reads a JSON body into dst and checks its struct tags
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pkgerrors.NewValidationError("Invalid request body: " + err.Error())
	}
	if err := requestValidator().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]interface{}, len(verrs))
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return pkgerrors.NewValidationError("Validation error: " + strings.Join(msgs, ", ")).WithDetails(fields)
		}
		return pkgerrors.NewValidationError("Validation error: " + err.Error())
	}
	return nil
}
