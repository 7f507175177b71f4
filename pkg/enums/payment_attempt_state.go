package enums

// PaymentAttemptState is the per-attempt gateway protocol state.
type PaymentAttemptState string

const (
	PaymentAttemptNoIntent      PaymentAttemptState = "no_intent"
	PaymentAttemptIntentCreated PaymentAttemptState = "intent_created"
	PaymentAttemptConfirmed     PaymentAttemptState = "confirmed"
	PaymentAttemptDeclined      PaymentAttemptState = "declined"
	PaymentAttemptError         PaymentAttemptState = "error"
)

var paymentAttemptStates = []PaymentAttemptState{
	PaymentAttemptNoIntent,
	PaymentAttemptIntentCreated,
	PaymentAttemptConfirmed,
	PaymentAttemptDeclined,
	PaymentAttemptError,
}

func (s PaymentAttemptState) String() string { return string(s) }

func (s PaymentAttemptState) IsValid() bool { return member(paymentAttemptStates, s) }

// Reusable reports whether a later createIntent may hand back this attempt's intent.
func (s PaymentAttemptState) Reusable() bool {
	return s == PaymentAttemptIntentCreated || s == PaymentAttemptError
}

func ParsePaymentAttemptState(value string) (PaymentAttemptState, error) {
	return parse(paymentAttemptStates, "payment attempt state", value)
}
