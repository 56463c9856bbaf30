// Package validator checks usecase inputs against their struct tags and
// reports failures per snake_case field.
package validator

import (
	"encoding/json"
	"errors"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/samber/lo"
)

// reUserID accepts opaque keys from external id schemes.
var reUserID = regexp.MustCompile(`^[A-Za-z0-9_.:@-]{1,128}$`)

var ErrTranslatorNotFound = errors.New("validator: translator not found")

type Validator interface {
	Validate(data any) error
}

// V10ValidationError maps snake_case field names to English messages.
type V10ValidationError map[string]string

func (e V10ValidationError) Error() string {
	b, err := json.Marshal(map[string]string(e))
	if err != nil || len(e) == 0 {
		return "validation error"
	}
	return string(b)
}

func (e V10ValidationError) Values() map[string]string { return e }

type V10Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewV10Validator() (*V10Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	trans, ok := ut.New(english, english).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}
	if err := registerUserID(v, trans); err != nil {
		return nil, err
	}

	return &V10Validator{validate: v, trans: trans}, nil
}

func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(V10ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[lo.SnakeCase(fe.Field())] = fe.Translate(v.trans)
	}
	return out
}

func registerUserID(v *validator.Validate, trans ut.Translator) error {
	err := v.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
		return reUserID.MatchString(fl.Field().String())
	})
	if err != nil {
		return err
	}

	return v.RegisterTranslation("userid", trans,
		func(t ut.Translator) error {
			return t.Add("userid", "{0} may contain only letters, digits and _.:@-", false)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}
