package enums

// PaymentStatus tracks whether money for an order has been captured. It
// moves forward only: unpaid, paid, then optionally refunded.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentStatuses = []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusRefunded}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return member(paymentStatuses, p) }

// Settled reports whether funds were captured at some point.
func (p PaymentStatus) Settled() bool {
	return p == PaymentStatusPaid || p == PaymentStatusRefunded
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse(paymentStatuses, "payment status", value)
}
