package validate

import (
	"fmt"
	"strings"

	"github.com/go-employment-verify/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Custom registrations happen in
// init before the first call to Struct.
var v = validator.New()

func init() {
	_ = v.RegisterValidation("decision", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "approve", "deny":
			return true
		}
		return false
	})
}

// Struct validates the given struct using its validate tags. The returned
// error wraps domain.ErrBadRequest and lists every failed field.
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
		return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), domain.ErrBadRequest)
	}
	return nil
}

// Email reports whether s is a syntactically valid address.
func Email(s string) bool {
	return v.Var(s, "required,email") == nil
}

// Phone reports whether s is an E.164 number.
func Phone(s string) bool {
	return v.Var(s, "required,e164") == nil
}

// Domain reports whether s is a fully qualified domain name.
func Domain(s string) bool {
	return v.Var(s, "required,fqdn") == nil
}
