package student

import (
	"regexp"
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/aula/core"
)

var (
	loginTypeTag  = "logintype"
	loginTypeText = "must be one of: pin, password, images"

	pinTag   = "pin"
	pinText  = "PIN must contain 4 to 6 digits"
	pinRegex = regexp.MustCompile(`^\d{4,6}$`)

	passwordTag    = "studentpwd"
	passwordMinLen = 6
	passwordText   = "password must contain at least 6 characters"

	imageSeqTag    = "imageseq"
	imageSeqText   = "pick between 2 and 6 images from the catalogue"
	imageSeqMinLen = 2
	imageSeqMaxLen = 6

	secretRequiredTag  = "secret_required"
	secretRequiredText = "this field is required for the selected login type"

	catalogue = func() map[string]bool {
		m := make(map[string]bool, len(LoginImageCatalogue))
		for _, img := range LoginImageCatalogue {
			m[img] = true
		}
		return m
	}()
)

// InitValidators registers the student validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(loginTypeTag, loginTypeValidation)
	core.RegisterCustomTranslation(validate, translator, loginTypeTag, loginTypeText)

	validate.RegisterStructValidation(studentStructValidation, NewStudent{}, UpdateStudent{})
	core.RegisterCustomTranslation(validate, translator, pinTag, pinText)
	core.RegisterCustomTranslation(validate, translator, passwordTag, passwordText)
	core.RegisterCustomTranslation(validate, translator, imageSeqTag, imageSeqText)
	core.RegisterCustomTranslation(validate, translator, secretRequiredTag, secretRequiredText)
}

func loginTypeValidation(fl validator.FieldLevel) bool {
	if lt, ok := fl.Field().Interface().(LoginType); ok {
		return lt.IsValid()
	}
	return false
}

// studentStructValidation checks the secret matching the login type.
func studentStructValidation(sl validator.StructLevel) {
	switch s := sl.Current().Interface().(type) {
	case NewStudent:
		if !s.LoginType.IsValid() {
			return // reported by the field validator
		}
		validateSecrets(s.LoginType, s.PIN, s.Password, s.Images, true, sl)
	case UpdateStudent:
		validateSecrets(s.LoginType, s.PIN, s.Password, s.Images, false, sl)
	}
}

func validateSecrets(lt LoginType, pin, pwd string, images []string, required bool, sl validator.StructLevel) {
	switch lt {
	case LoginPIN:
		if pin == "" {
			if required {
				sl.ReportError(pin, "pin", "PIN", secretRequiredTag, "")
			}
		} else if !pinRegex.MatchString(pin) {
			sl.ReportError(pin, "pin", "PIN", pinTag, "")
		}
	case LoginPassword:
		if pwd == "" {
			if required {
				sl.ReportError(pwd, "password", "Password", secretRequiredTag, "")
			}
		} else if utf8.RuneCountInString(pwd) < passwordMinLen {
			sl.ReportError(pwd, "password", "Password", passwordTag, "")
		}
	case LoginImages:
		if len(images) == 0 {
			if required {
				sl.ReportError(images, "images", "Images", secretRequiredTag, "")
			}
		} else if !validImageSequence(images) {
			sl.ReportError(images, "images", "Images", imageSeqTag, "")
		}
	}
}

func validImageSequence(images []string) bool {
	if len(images) < imageSeqMinLen || len(images) > imageSeqMaxLen {
		return false
	}
	for _, img := range images {
		if !catalogue[img] {
			return false
		}
	}
	return true
}
