package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/metrics"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var ErrInsufficientCredits = repository.ErrInsufficientCredits

// Service atomically moves credit balances together with their ledger rows.
type Service struct {
	db     *sqlx.DB
	wallet repository.WalletRepository
	ledger repository.LedgerRepository
	events *events.Emitter
	log    *zap.Logger
}

// New constructs the credits service.
func New(
	db *sqlx.DB,
	walletRepo repository.WalletRepository,
	ledgerRepo repository.LedgerRepository,
	emitter *events.Emitter,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:     db,
		wallet: walletRepo,
		ledger: ledgerRepo,
		events: emitter,
		log:    log,
	}
}

func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	var bal int64
	err := repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		bal, err = s.wallet.Balance(ctx, tx, userID)
		return err
	})
	return bal, err
}

// Charge debits the cost of one generation and writes a usage ledger row in
// the same transaction. On ErrInsufficientCredits the returned balance is the
// untouched current one.
func (s *Service) Charge(ctx context.Context, userID int64, kind model.GenerationKind) (balance, cost int64, err error) {
	cost = model.CostOf(kind)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, cost, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.wallet.Debit(ctx, tx, userID, cost); err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			bal, berr := s.wallet.Balance(ctx, tx, userID)
			if berr != nil {
				return 0, cost, fmt.Errorf("wallet balance: %w", berr)
			}
			return bal, cost, ErrInsufficientCredits
		}
		return 0, cost, fmt.Errorf("wallet debit: %w", err)
	}

	if err := s.ledger.Insert(ctx, tx, repository.LedgerRow{
		UserID:      userID,
		Amount:      -cost,
		Type:        model.TxUsage,
		Description: kind.String() + " generation",
	}); err != nil {
		return 0, cost, fmt.Errorf("ledger usage: %w", err)
	}

	balance, err = s.wallet.Balance(ctx, tx, userID)
	if err != nil {
		return 0, cost, fmt.Errorf("wallet balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, cost, err
	}
	metrics.CreditsMoved.WithLabelValues(model.TxUsage.String()).Add(float64(cost))
	return balance, cost, nil
}

// Refund returns credits taken by a failed generation.
func (s *Service) Refund(ctx context.Context, userID int64, kind model.GenerationKind, amount int64) error {
	err := repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.wallet.Credit(ctx, tx, userID, amount); err != nil {
			return fmt.Errorf("wallet credit: %w", err)
		}
		return s.ledger.Insert(ctx, tx, repository.LedgerRow{
			UserID:      userID,
			Amount:      amount,
			Type:        model.TxRefund,
			Description: title(kind.String()) + " generation failed - refund",
		})
	})
	if err != nil {
		s.log.Error("credit refund failed", zap.Int64("user_id", userID), zap.Int64("amount", amount), zap.Error(err))
		return err
	}
	metrics.CreditsMoved.WithLabelValues(model.TxRefund.String()).Add(float64(amount))
	return nil
}

// Purchase credits a paid checkout session at most once. It reports whether
// this call applied the credits.
func (s *Service) Purchase(ctx context.Context, userID, credits int64, sessionID string) (bool, error) {
	if sessionID == "" || credits <= 0 {
		return false, fmt.Errorf("invalid purchase: session=%q credits=%d", sessionID, credits)
	}

	applied := false
	err := repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		exists, err := s.ledger.ExistsBySession(ctx, tx, sessionID)
		if err != nil {
			return fmt.Errorf("ledger lookup: %w", err)
		}
		if exists {
			return nil
		}
		if err := s.wallet.Credit(ctx, tx, userID, credits); err != nil {
			return fmt.Errorf("wallet credit: %w", err)
		}
		if err := s.ledger.Insert(ctx, tx, repository.LedgerRow{
			UserID:      userID,
			Amount:      credits,
			Type:        model.TxPurchase,
			Description: fmt.Sprintf("Purchased %d credits", credits),
			SessionID:   sessionID,
		}); err != nil {
			return fmt.Errorf("ledger purchase: %w", err)
		}
		if err := s.events.Emit(ctx, tx, "user", userID, model.Event{
			Type:    model.EventCreditsPurchased,
			ActorID: userID,
			OwnerID: userID,
			Attrs:   map[string]string{"credits": fmt.Sprint(credits), "session_id": sessionID},
		}); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		metrics.CreditsMoved.WithLabelValues(model.TxPurchase.String()).Add(float64(credits))
	}
	return applied, nil
}

// Grant adds promotional credits with a bonus ledger row.
func (s *Service) Grant(ctx context.Context, userID, credits int64, description string) error {
	err := repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.wallet.Credit(ctx, tx, userID, credits); err != nil {
			return err
		}
		return s.ledger.Insert(ctx, tx, repository.LedgerRow{
			UserID: userID, Amount: credits, Type: model.TxBonus, Description: description,
		})
	})
	if err == nil {
		metrics.CreditsMoved.WithLabelValues(model.TxBonus.String()).Add(float64(credits))
	}
	return err
}

func (s *Service) History(ctx context.Context, userID int64, limit int) ([]model.CreditTransaction, error) {
	return s.ledger.ListByUser(ctx, s.db, userID, limit)
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
