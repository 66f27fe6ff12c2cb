package validate

import (
	"errors"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
)

var validate *validator.Validate

var translator ut.Translator

var zipRe = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

func init() {

	validate = validator.New()

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterValidation("uszip", func(fl validator.FieldLevel) bool {
		return zipRe.MatchString(fl.Field().String())
	})
	validate.RegisterTranslation("uszip", translator,
		func(ut ut.Translator) error {
			return ut.Add("uszip", "{0} must be a valid ZIP code", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("uszip", fe.Field())
			return t
		},
	)
}

func Check(val any) error {
	if err := validate.Struct(val); err != nil {

		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		if len(verrors) < 1 {
			return nil
		}

		return errors.New(verrors[0].Translate(translator))
	}

	return nil
}

func GenerateID() string {
	return uuid.NewString()
}

func CheckID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("ID is not in its proper form")
	}
	return nil
}
