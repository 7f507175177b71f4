package enums

// PaymentMethod is how the shopper pays for an order.
type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodDebitCard      PaymentMethod = "debit_card"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

var paymentMethods = []PaymentMethod{PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodCashOnDelivery}

func (m PaymentMethod) String() string { return string(m) }

func (m PaymentMethod) IsValid() bool { return member(paymentMethods, m) }

// RequiresGateway reports whether the method settles through the card gateway.
func (m PaymentMethod) RequiresGateway() bool {
	return m == PaymentMethodCreditCard || m == PaymentMethodDebitCard
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(paymentMethods, "payment method", value)
}
