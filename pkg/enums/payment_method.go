package enums

// PaymentMethod is the instrument reported by the payment provider.
type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodSEPA    PaymentMethod = "sepa_debit"
	PaymentMethodUnknown PaymentMethod = "unknown"
)

// String implements fmt.Stringer.
func (m PaymentMethod) String() string {
	return string(m)
}

// NormalizePaymentMethod maps raw provider values onto the known set.
func NormalizePaymentMethod(value string) PaymentMethod {
	switch PaymentMethod(value) {
	case PaymentMethodCard, PaymentMethodSEPA:
		return PaymentMethod(value)
	default:
		return PaymentMethodUnknown
	}
}
