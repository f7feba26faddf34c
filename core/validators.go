package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/es"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	es_translations "github.com/go-playground/validator/v10/translations/es"
)

var (
	// custom validation tags & texts
	dniTag   = "dni"
	dniText  = "el DNI debe tener 8 dígitos numéricos"
	dniRegex = regexp.MustCompile(`^\d{8}$`)

	phoneTag   = "phone"
	phoneText  = "número de teléfono inválido"
	phoneRegex = regexp.MustCompile(`^\+?[\d\s\-()]{6,20}$`)

	planNameTag   = "plan_name"
	planNameText  = "nombre de plan inválido"
	planNameRegex = regexp.MustCompile(`^[\p{L}\d]+([\s_][\p{L}\d]+)*$`)

	paymentMethodTag  = "payment_method"
	paymentMethodText = "método de pago inválido"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "este campo es obligatorio"
)

// Payment methods accepted at the front desk.
const (
	PaymentCash     = "efectivo"
	PaymentYape     = "yape"
	PaymentCard     = "tarjeta"
	PaymentTransfer = "transferencia"
)

var PaymentMethods = []string{PaymentCash, PaymentYape, PaymentCard, PaymentTransfer}

// NewTranslator returns the Spanish translator (english is registered as a fallback locale).
func NewTranslator() ut.Translator {
	_es := es.New()
	uni := ut.New(_es, _es, en.New())
	translator, _ := uni.GetTranslator("es")
	return translator
}

// NewValidator returns a validator with the default and custom translations registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	InitValidators(validate, translator)
	return validate
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = es_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(dniTag, dniValidation)
	RegisterCustomTranslation(validate, translator, dniTag, dniText)

	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	RegisterCustomTranslation(validate, translator, phoneTag, phoneText)

	_ = validate.RegisterValidation(planNameTag, planNameValidation)
	RegisterCustomTranslation(validate, translator, planNameTag, planNameText)

	_ = validate.RegisterValidation(paymentMethodTag, paymentMethodValidation)
	RegisterCustomTranslation(validate, translator, paymentMethodTag, paymentMethodText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// IsDNI reports whether s is a well formed DNI (exactly 8 digits).
func IsDNI(s string) bool {
	return dniRegex.MatchString(s)
}

// IsPaymentMethod reports whether m is a known payment method.
func IsPaymentMethod(m string) bool {
	for _, pm := range PaymentMethods {
		if m == pm {
			return true
		}
	}
	return false
}

// Custom Global Validators

func dniValidation(fl validator.FieldLevel) bool {
	return IsDNI(fl.Field().String())
}

func phoneValidation(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

// planNameValidation accepts words of letters and digits separated by single spaces or underscores.
func planNameValidation(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return len(s) <= 50 && planNameRegex.MatchString(s)
}

func paymentMethodValidation(fl validator.FieldLevel) bool {
	return IsPaymentMethod(fl.Field().String())
}
