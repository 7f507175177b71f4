package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderBook interface {
	Load(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, input orders.PaidInput) (*models.Order, error)
}

// Service is the payment authorizer. Callers serialize calls per order.
type Service interface {
	CreateIntent(ctx context.Context, orderID uuid.UUID, amountCents int64, currency string) (*PaymentIntent, error)
	Confirm(ctx context.Context, input ConfirmInput) (*ConfirmationResult, error)
	Settle(ctx context.Context, orderID uuid.UUID, intentID string) (*models.Order, error)
	Reconcile(ctx context.Context, orderID uuid.UUID) (*ReconcileResult, error)
	Latest(ctx context.Context, orderID uuid.UUID) (*models.PaymentAttempt, error)
	ReconcilableOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// ServiceParams wires the authorizer.
type ServiceParams struct {
	Attempts *AttemptRepository
	Orders   orderBook
	Tx       txRunner
	Gateway  Gateway
	Outbox   outbox.Emitter
	Logger   *logger.Logger
	Metrics  *metrics.GatewayMetrics
	Now      func() time.Time
}

type service struct {
	attempts *AttemptRepository
	orders   orderBook
	tx       txRunner
	gateway  Gateway
	outbox   outbox.Emitter
	logg     *logger.Logger
	metrics  *metrics.GatewayMetrics
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Attempts == nil {
		return nil, fmt.Errorf("payment attempt repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		attempts: params.Attempts,
		orders:   params.Orders,
		tx:       params.Tx,
		gateway:  params.Gateway,
		outbox:   params.Outbox,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// PaymentIntent is returned to the shopper's client to finish the payment.
type PaymentIntent struct {
	ID           string       `json:"payment_intent_id"`
	ClientSecret string       `json:"client_secret,omitempty"`
	Amount       money.Amount `json:"amount"`
	Currency     string       `json:"currency"`
	OrderID      uuid.UUID    `json:"order_id"`
	Status       IntentStatus `json:"status"`
	Attempt      int          `json:"attempt"`
}

// ConfirmInput carries a tokenized payment method, never raw card data.
type ConfirmInput struct {
	OrderID            uuid.UUID
	IntentID           string
	PaymentMethodToken string
}

type ConfirmationStatus string

const (
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationDeclined  ConfirmationStatus = "declined"
	ConfirmationPending   ConfirmationStatus = "pending"
)

// ConfirmationResult is the gateway's answer to a confirmation.
type ConfirmationResult struct {
	OrderID       uuid.UUID          `json:"order_id"`
	IntentID      string             `json:"payment_intent_id"`
	Status        ConfirmationStatus `json:"status"`
	DeclineReason string             `json:"decline_reason,omitempty"`
}

type ReconcileOutcome string

const (
	ReconcileSettled         ReconcileOutcome = "settled"
	ReconcileAlreadyPaid     ReconcileOutcome = "already_paid"
	ReconcileProcessing      ReconcileOutcome = "processing"
	ReconcileAwaitingPayment ReconcileOutcome = "awaiting_payment"
	ReconcileDeclined        ReconcileOutcome = "declined"
	ReconcileNoIntent        ReconcileOutcome = "no_intent"
	ReconcileClosed          ReconcileOutcome = "closed"
)

// ReconcileResult reports what an out-of-band sweep found for one order.
type ReconcileResult struct {
	OrderID uuid.UUID
	Outcome ReconcileOutcome
	Order   *models.Order
}

// IdempotencyKeyFor is the gateway idempotency key of an attempt.
func IdempotencyKeyFor(orderID uuid.UUID, attempt int) string {
	return fmt.Sprintf("order:%s:attempt:%d", orderID, attempt)
}

func (s *service) CreateIntent(ctx context.Context, orderID uuid.UUID, amountCents int64, currency string) (*PaymentIntent, error) {
	if amountCents <= 0 {
		return nil, InvalidAmountError(amountCents, 0)
	}
	currency = money.NormalizeCurrency(currency)
	if !money.Supported(currency) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency").
			WithDetails(map[string]any{"currency": currency})
	}
	order, err := s.orders.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := payable(order); err != nil {
		return nil, err
	}
	if amountCents != order.TotalCents {
		return nil, InvalidAmountError(amountCents, order.TotalCents)
	}

	latest, err := s.Latest(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		switch {
		case latest.IntentID != nil && (latest.State.Reusable() || latest.State == enums.PaymentAttemptConfirmed):
			intent, err := s.gateway.GetIntent(ctx, *latest.IntentID)
			if err != nil {
				return nil, s.gatewayFailure(ctx, latest, err)
			}
			if intent.Status != IntentFailed && intent.Status != IntentCanceled {
				if latest.State == enums.PaymentAttemptError {
					if err := s.attempts.Update(ctx, latest.ID, map[string]any{"state": enums.PaymentAttemptIntentCreated}); err != nil {
						return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment attempt")
					}
				}
				return intentView(order, latest, intent), nil
			}
			if err := s.decline(ctx, order, latest, intent.DeclineReason); err != nil {
				return nil, err
			}
		case latest.IntentID == nil && latest.State != enums.PaymentAttemptDeclined:
			// The gateway call never completed; retry it under the same key.
			return s.requestIntent(ctx, order, latest)
		}
	}

	next := 1
	if latest != nil {
		next = latest.AttemptNumber + 1
	}
	attempt := &models.PaymentAttempt{
		OrderID:        orderID,
		AttemptNumber:  next,
		Provider:       s.gateway.Name(),
		IdempotencyKey: IdempotencyKeyFor(orderID, next),
		State:          enums.PaymentAttemptNoIntent,
		AmountCents:    order.TotalCents,
		Currency:       currency,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a payment attempt for this order is already in progress")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment attempt")
	}
	return s.requestIntent(ctx, order, attempt)
}

func (s *service) requestIntent(ctx context.Context, order *models.Order, attempt *models.PaymentAttempt) (*PaymentIntent, error) {
	intent, err := s.gateway.CreateIntent(ctx, CreateIntentRequest{
		OrderID:        order.ID,
		AmountCents:    attempt.AmountCents,
		Currency:       attempt.Currency,
		IdempotencyKey: attempt.IdempotencyKey,
	})
	if err != nil {
		return nil, s.gatewayFailure(ctx, attempt, err)
	}
	intentID := intent.ID
	err = s.attempts.Update(ctx, attempt.ID, map[string]any{
		"intent_id":  intentID,
		"state":      enums.PaymentAttemptIntentCreated,
		"last_error": nil,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment intent")
	}
	attempt.IntentID = &intentID
	attempt.State = enums.PaymentAttemptIntentCreated

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":          order.ID.String(),
			"payment_intent_id": intentID,
			"attempt":           attempt.AttemptNumber,
			"provider":          attempt.Provider,
		})
		s.logg.Info(logCtx, "payment.intent_created")
	}
	return intentView(order, attempt, intent), nil
}

func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*ConfirmationResult, error) {
	token := strings.TrimSpace(input.PaymentMethodToken)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method token required")
	}
	order, err := s.orders.Load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := payable(order); err != nil {
		return nil, err
	}
	attempt, err := s.findAttempt(ctx, input.OrderID, input.IntentID)
	if err != nil {
		return nil, err
	}
	result := &ConfirmationResult{OrderID: order.ID, IntentID: input.IntentID}
	if attempt.State == enums.PaymentAttemptDeclined {
		result.Status = ConfirmationDeclined
		if attempt.DeclineReason != nil {
			result.DeclineReason = *attempt.DeclineReason
		}
		return result, nil
	}

	intent, err := s.gateway.ConfirmIntent(ctx, ConfirmRequest{
		IntentID:           input.IntentID,
		PaymentMethodToken: token,
		OrderID:            order.ID,
		AmountCents:        attempt.AmountCents,
		Currency:           attempt.Currency,
		IdempotencyKey:     attempt.IdempotencyKey + ":confirm",
	})
	if err != nil {
		if pkgerrors.IsReason(err, pkgerrors.ReasonPaymentDeclined) {
			reason := declineReasonOf(err)
			if err := s.decline(ctx, order, attempt, reason); err != nil {
				return nil, err
			}
			result.Status = ConfirmationDeclined
			result.DeclineReason = reason
			return result, nil
		}
		return nil, s.gatewayFailure(ctx, attempt, err)
	}

	updates := map[string]any{"last_error": nil}
	if intent.ID != "" && intent.ID != input.IntentID {
		updates["intent_id"] = intent.ID
		result.IntentID = intent.ID
	}
	switch intent.Status {
	case IntentSucceeded:
		updates["state"] = enums.PaymentAttemptConfirmed
		result.Status = ConfirmationConfirmed
	case IntentFailed, IntentCanceled:
		if len(updates) > 1 {
			if err := s.attempts.Update(ctx, attempt.ID, updates); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment attempt")
			}
		}
		reason := intent.DeclineReason
		if reason == "" {
			reason = string(intent.Status)
		}
		if err := s.decline(ctx, order, attempt, reason); err != nil {
			return nil, err
		}
		result.Status = ConfirmationDeclined
		result.DeclineReason = reason
		return result, nil
	default:
		updates["state"] = enums.PaymentAttemptIntentCreated
		result.Status = ConfirmationPending
	}
	if err := s.attempts.Update(ctx, attempt.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment attempt")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":          order.ID.String(),
			"payment_intent_id": result.IntentID,
			"status":            result.Status,
		})
		s.logg.Info(logCtx, "payment.confirmed")
	}
	return result, nil
}

func (s *service) Settle(ctx context.Context, orderID uuid.UUID, intentID string) (*models.Order, error) {
	paid, _, err := s.settle(ctx, orderID, intentID)
	return paid, err
}

// settle re-reads the intent from the gateway and marks the order paid only
// when the gateway says succeeded for the exact order and amount.
func (s *service) settle(ctx context.Context, orderID uuid.UUID, intentID string) (*models.Order, *Intent, error) {
	order, err := s.orders.Load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if settledBy(order, intentID) {
		return order, nil, nil
	}
	if err := payable(order); err != nil {
		return nil, nil, err
	}
	attempt, err := s.findAttempt(ctx, orderID, intentID)
	if err != nil {
		return nil, nil, err
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, nil, s.gatewayFailure(ctx, attempt, err)
	}

	switch intent.Status {
	case IntentSucceeded:
	case IntentFailed, IntentCanceled:
		reason := intent.DeclineReason
		if reason == "" {
			reason = string(intent.Status)
		}
		if attempt.State != enums.PaymentAttemptDeclined {
			if err := s.decline(ctx, order, attempt, reason); err != nil {
				return nil, intent, err
			}
		}
		return nil, intent, DeclinedError(intentID, reason)
	default:
		return nil, intent, SettlementPendingError(intentID, intent.Status)
	}

	if intent.OrderID != orderID.String() {
		s.logSettlementAnomaly(ctx, order, intent, "payment.intent_order_mismatch")
		return nil, intent, IntentMismatchError(orderID, intentID)
	}
	if intent.AmountCents != order.TotalCents {
		s.logSettlementAnomaly(ctx, order, intent, "payment.intent_amount_mismatch")
		return nil, intent, InvalidAmountError(intent.AmountCents, order.TotalCents)
	}

	var paid *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		err := s.attempts.WithTx(tx).Update(ctx, attempt.ID, map[string]any{
			"state":      enums.PaymentAttemptConfirmed,
			"last_error": nil,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment attempt")
		}
		paid, err = s.orders.MarkPaid(ctx, tx, orders.PaidInput{
			OrderID:       orderID,
			TransactionID: intentID,
			Provider:      attempt.Provider,
			AmountCents:   intent.AmountCents,
			Currency:      attempt.Currency,
			PaidAt:        s.now(),
		})
		return err
	})
	if err != nil {
		return nil, intent, err
	}
	s.metrics.IncSettlement("paid")
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":          orderID.String(),
			"payment_intent_id": intentID,
			"amount_cents":      intent.AmountCents,
		})
		s.logg.Info(logCtx, "payment.settled")
	}
	return paid, intent, nil
}

func (s *service) Reconcile(ctx context.Context, orderID uuid.UUID) (*ReconcileResult, error) {
	result := &ReconcileResult{OrderID: orderID}
	order, err := s.orders.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result.Order = order
	if order.PaymentStatus == enums.PaymentStatusPaid {
		result.Outcome = ReconcileAlreadyPaid
		return result, nil
	}
	if order.Status != enums.OrderStatusPending {
		result.Outcome = ReconcileClosed
		return result, nil
	}
	latest, err := s.Latest(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.IntentID == nil {
		result.Outcome = ReconcileNoIntent
		return result, nil
	}
	if latest.State == enums.PaymentAttemptDeclined {
		result.Outcome = ReconcileDeclined
		return result, nil
	}

	paid, intent, err := s.settle(ctx, orderID, *latest.IntentID)
	switch {
	case err == nil:
		result.Outcome = ReconcileSettled
		result.Order = paid
	case pkgerrors.IsReason(err, pkgerrors.ReasonPaymentDeclined):
		result.Outcome = ReconcileDeclined
	case pkgerrors.IsReason(err, pkgerrors.ReasonSettlementPending):
		result.Outcome = ReconcileAwaitingPayment
		if intent != nil && intent.Status == IntentProcessing {
			result.Outcome = ReconcileProcessing
		}
	default:
		return nil, err
	}
	return result, nil
}

// Latest returns the newest attempt, or nil when the order has none.
func (s *service) Latest(ctx context.Context, orderID uuid.UUID) (*models.PaymentAttempt, error) {
	attempt, err := s.attempts.Latest(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	return attempt, nil
}

func (s *service) ReconcilableOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	ids, err := s.attempts.ReconcilableOrderIDs(ctx, cutoff.UTC(), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reconcilable orders")
	}
	return ids, nil
}

func (s *service) findAttempt(ctx context.Context, orderID uuid.UUID, intentID string) (*models.PaymentAttempt, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	attempt, err := s.attempts.FindByIntent(ctx, orderID, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, IntentMismatchError(orderID, intentID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	return attempt, nil
}

// decline records a declined attempt and emits payment_declined.
func (s *service) decline(ctx context.Context, order *models.Order, attempt *models.PaymentAttempt, reason string) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		err := s.attempts.WithTx(tx).Update(ctx, attempt.ID, map[string]any{
			"state":          enums.PaymentAttemptDeclined,
			"decline_reason": reason,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record decline")
		}
		intentID := ""
		if attempt.IntentID != nil {
			intentID = *attempt.IntentID
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentDeclined,
			AggregateType: enums.AggregatePayment,
			AggregateID:   attempt.ID,
			Data: payloads.PaymentDeclinedEvent{
				OrderID:       order.ID,
				AttemptNumber: attempt.AttemptNumber,
				IntentID:      intentID,
				Provider:      attempt.Provider,
				DeclineReason: reason,
			},
		})
	})
	if err != nil {
		return err
	}
	attempt.State = enums.PaymentAttemptDeclined
	attempt.DeclineReason = &reason
	s.metrics.IncSettlement("declined")
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":       order.ID.String(),
			"attempt":        attempt.AttemptNumber,
			"decline_reason": reason,
		})
		s.logg.Info(logCtx, "payment.declined")
	}
	return nil
}

// gatewayFailure records the attempt as errored and normalizes transport
// failures to GatewayUnavailable. Other gateway answers pass through.
func (s *service) gatewayFailure(ctx context.Context, attempt *models.PaymentAttempt, cause error) error {
	if !isGatewayFailure(cause) {
		return cause
	}
	message := cause.Error()
	if err := s.attempts.Update(ctx, attempt.ID, map[string]any{
		"state":      enums.PaymentAttemptError,
		"last_error": message,
	}); err != nil && s.logg != nil {
		s.logg.Error(ctx, "payment.attempt_error_not_recorded", err)
	}
	attempt.State = enums.PaymentAttemptError
	attempt.LastError = &message
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": attempt.OrderID.String(),
			"attempt":  attempt.AttemptNumber,
		})
		s.logg.Warn(logCtx, "payment.gateway_unavailable")
	}
	if pkgerrors.IsReason(cause, pkgerrors.ReasonGatewayUnavailable) {
		return cause
	}
	return GatewayUnavailableError(cause)
}

func (s *service) logSettlementAnomaly(ctx context.Context, order *models.Order, intent *Intent, msg string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":          order.ID.String(),
		"payment_intent_id": intent.ID,
		"intent_order_id":   intent.OrderID,
		"intent_amount":     intent.AmountCents,
		"order_total":       order.TotalCents,
	})
	s.logg.Error(logCtx, msg, nil)
}

// settledBy reports whether intentID is the payment that already paid order.
func settledBy(order *models.Order, intentID string) bool {
	return order.PaymentStatus == enums.PaymentStatusPaid &&
		order.PaymentTransactionID != nil &&
		intentID != "" &&
		*order.PaymentTransactionID == intentID
}

// payable allows only pending, unpaid orders into the payment protocol.
func payable(order *models.Order) error {
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return orders.AlreadyPaidError(order.ID)
	}
	if order.Status != enums.OrderStatusPending {
		return orders.ClosedError(order.ID, order.Status.String())
	}
	if !order.PaymentMethod.RequiresGateway() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order does not take card payment").
			WithDetails(map[string]any{"payment_method": order.PaymentMethod})
	}
	return nil
}

func intentView(order *models.Order, attempt *models.PaymentAttempt, intent *Intent) *PaymentIntent {
	amount := intent.AmountCents
	if amount == 0 {
		amount = attempt.AmountCents
	}
	currency := intent.Currency
	if currency == "" {
		currency = attempt.Currency
	}
	return &PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       money.FromCents(amount),
		Currency:     currency,
		OrderID:      order.ID,
		Status:       intent.Status,
		Attempt:      attempt.AttemptNumber,
	}
}
