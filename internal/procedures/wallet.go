package procedures

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/models"
)

// ErrInsufficientFunds is returned when a debit would take a balance below zero
var ErrInsufficientFunds = &apperr.AppError{Code: apperr.CodeFailedPrecondition, Message: "Insufficient balance"}

// walletDelta is applied to one wallet in a single conditional UPDATE
type walletDelta struct {
	Balance int64
	Pending int64
	Earned  int64
	Spent   int64
}

// ensureWallet returns userID's wallet, creating an empty one if needed
func ensureWallet(tx *Tx, userID string) (*models.Wallet, error) {
	w, err := find[models.Wallet](tx, "user_id = ?", userID)
	if err != nil || w != nil {
		return w, err
	}
	w = &models.Wallet{UserID: userID}
	if err := tx.Create(w).Error; err != nil {
		return nil, err
	}
	if err := tx.inserted(w); err != nil {
		return nil, err
	}
	return w, nil
}

// adjustWallet applies d to userID's wallet and writes one ledger line
// for the balance (or, for pending-only moves, the pending) delta. The
// update only matches when neither balance nor pending would go negative.
func adjustWallet(tx *Tx, userID string, d walletDelta, kind, reference string) (*models.Wallet, error) {
	before, err := ensureWallet(tx, userID)
	if err != nil {
		return nil, err
	}

	q := tx.Model(&models.Wallet{}).Where("user_id = ?", userID)
	if d.Balance < 0 {
		q = q.Where("balance >= ?", -d.Balance)
	}
	if d.Pending < 0 {
		q = q.Where("pending_balance >= ?", -d.Pending)
	}
	res := q.Updates(map[string]interface{}{
		"balance":         gorm.Expr("balance + ?", d.Balance),
		"pending_balance": gorm.Expr("pending_balance + ?", d.Pending),
		"total_earned":    gorm.Expr("total_earned + ?", d.Earned),
		"total_spent":     gorm.Expr("total_spent + ?", d.Spent),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInsufficientFunds
	}

	after, err := find[models.Wallet](tx, "user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	if err := tx.updated(after, before); err != nil {
		return nil, err
	}

	amount := d.Balance
	if amount == 0 {
		amount = d.Pending
	}
	line := &models.WalletTransaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		Reference: reference,
	}
	if err := tx.Create(line).Error; err != nil {
		return nil, err
	}
	if err := tx.inserted(line); err != nil {
		return nil, err
	}
	return after, nil
}

// walletCreatePayment opens a pending top-up for the caller. The
// returned reference is what the payment provider settles against.
func walletCreatePayment(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p CreatePaymentParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Amount <= 0 {
		return nil, apperr.InvalidField("amount", "Amount must be greater than zero")
	}
	if _, err := callerProfile(tx, caller); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:        uuid.NewString(),
		UserID:    caller,
		Reference: "pay_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Amount:    p.Amount,
		Status:    models.PaymentPending,
	}
	if err := tx.Create(payment).Error; err != nil {
		return nil, err
	}
	if err := tx.inserted(payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// walletConfirmPayment settles a pending payment, crediting its payer with
// the amount recorded when it was opened. Only staff, acting for the
// payment provider, may settle. Settling twice is a no-op.
func walletConfirmPayment(_ context.Context, tx *Tx, caller string, params json.RawMessage) (interface{}, error) {
	var p ConfirmPaymentParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	p.Reference = strings.TrimSpace(p.Reference)
	if p.Reference == "" {
		return nil, apperr.InvalidField("reference", "Payment reference is required")
	}
	if _, err := requireStaff(tx, caller, "Only the payment provider can confirm payments"); err != nil {
		return nil, err
	}

	payment, err := find[models.Payment](tx, "reference = ?", p.Reference)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, apperr.NotFound("Payment not found")
	}
	if payment.Status == models.PaymentSettled {
		w, err := ensureWallet(tx, payment.UserID)
		if err != nil {
			return nil, err
		}
		return &ConfirmPaymentResult{Wallet: *w, Duplicate: true}, nil
	}

	now := time.Now().UTC()
	res := tx.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
		Updates(map[string]interface{}{"status": models.PaymentSettled, "settled_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.FailedPrecondition("This payment has already been settled")
	}
	after, err := find[models.Payment](tx, "id = ?", payment.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.updated(after, payment); err != nil {
		return nil, err
	}

	w, err := adjustWallet(tx, payment.UserID, walletDelta{Balance: payment.Amount}, models.TxTopUp, payment.Reference)
	if err != nil {
		return nil, err
	}
	return &ConfirmPaymentResult{Wallet: *w}, nil
}
