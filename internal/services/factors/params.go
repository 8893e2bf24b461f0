package factors

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"FinFactor/internal/domain/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeParams fills out from its `default` tags, overlays the raw params map
// and validates the result. Keys present in raw win over defaults, including
// explicit zero values. Unknown keys are rejected.
func decodeParams(raw map[string]any, out any) error {
	if err := defaults.Set(out); err != nil {
		return fmt.Errorf("set defaults: %w", err)
	}
	if len(raw) > 0 {
		b, err := yaml.Marshal(raw)
		if err != nil {
			return models.NewInvalidParameter("params", raw, err.Error())
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(out); err != nil {
			return models.NewInvalidParameter("params", raw, err.Error())
		}
	}
	return checkStruct(out)
}

// checkStruct runs the validator and reports the first failing field by its yaml name.
func checkStruct(out any) error {
	err := validate.Struct(out)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fmt.Sprintf("violates %q", fe.Tag())
		if fe.Param() != "" {
			reason = fmt.Sprintf("violates %s=%s", fe.Tag(), fe.Param())
		}
		return models.NewInvalidParameter(fe.Field(), fe.Value(), reason)
	}
	return models.NewInvalidParameter("params", out, err.Error())
}

// paramsMap renders a params struct as the map stored in metadata.
func paramsMap(p any) map[string]any {
	b, err := yaml.Marshal(p)
	if err != nil {
		return nil
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}
