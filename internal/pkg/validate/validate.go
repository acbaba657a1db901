package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lead-otp-gateway/internal/pkg/phone"
)

// v is the package-level singleton validator. Custom tags are registered in init.
var v = validator.New()

func init() {
	// mobile_in accepts any raw form that normalizes to a national mobile number.
	_ = v.RegisterValidation("mobile_in", func(fl validator.FieldLevel) bool {
		key, ok := phone.Normalize(fl.Field().String())
		return ok && phone.IsMobile(key)
	})
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
