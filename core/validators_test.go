package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validated struct {
	DNI    string `json:"dni" validate:"required,dni"`
	Phone  string `json:"phone" validate:"omitempty,phone"`
	Plan   string `json:"plan" validate:"omitempty,plan_name"`
	Method string `json:"method" validate:"omitempty,payment_method"`
}

func TestCustomValidators(t *testing.T) {
	translator := NewTranslator()
	validate := NewValidator(translator)

	tests := []struct {
		name string
		data validated
		want map[string]string
	}{
		{name: "valid", data: validated{DNI: "12345678", Phone: "+51 987-654-321", Plan: "Plan familiar", Method: PaymentYape}},
		{name: "valid with underscore plan", data: validated{DNI: "00000001", Plan: "plan_2x1"}},
		{name: "missing DNI", data: validated{}, want: map[string]string{"dni": requiredText}},
		{name: "short DNI", data: validated{DNI: "1234567"}, want: map[string]string{"dni": dniText}},
		{name: "DNI with letters", data: validated{DNI: "1234567a"}, want: map[string]string{"dni": dniText}},
		{name: "bad phone", data: validated{DNI: "12345678", Phone: "abc"}, want: map[string]string{"phone": phoneText}},
		{name: "bad plan", data: validated{DNI: "12345678", Plan: "plan$"}, want: map[string]string{"plan": planNameText}},
		{name: "double space plan", data: validated{DNI: "12345678", Plan: "plan  doble"}, want: map[string]string{"plan": planNameText}},
		{name: "bad method", data: validated{DNI: "12345678", Method: "bitcoin"}, want: map[string]string{"method": paymentMethodText}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.data)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)
			got := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				got[fe.Field()] = fe.Translate(translator)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsPaymentMethod(t *testing.T) {
	for _, m := range PaymentMethods {
		assert.True(t, IsPaymentMethod(m), m)
	}
	assert.False(t, IsPaymentMethod("Efectivo"))
	assert.False(t, IsPaymentMethod(""))
}
