package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/internal/domain/service"
	"pasarmarket/pkg/clock"
	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/logger"
)

// LedgerUseCase owns every balance movement. Wallets are only changed
// through ledger postings or explicit bucket moves.
type LedgerUseCase struct {
	ledgerRepo     repository.LedgerRepository
	walletRepo     repository.WalletRepository
	withdrawalRepo repository.WithdrawalRepository
	archive        service.AuditArchive
	clock          clock.Clock
	storage        StoragePolicy
}

func NewLedgerUseCase(
	ledgerRepo repository.LedgerRepository,
	walletRepo repository.WalletRepository,
	withdrawalRepo repository.WithdrawalRepository,
	archive service.AuditArchive,
	clk clock.Clock,
	storage StoragePolicy,
) *LedgerUseCase {
	return &LedgerUseCase{
		ledgerRepo:     ledgerRepo,
		walletRepo:     walletRepo,
		withdrawalRepo: withdrawalRepo,
		archive:        archive,
		clock:          clk,
		storage:        storage,
	}
}

func validatePosting(p *entity.LedgerPosting) error {
	if p.AccountID == "" {
		return errors.InvalidArgument("Ledger posting needs an account", nil)
	}
	if p.Reference == "" {
		return errors.InvalidArgument("Ledger posting needs a reference", nil)
	}
	if p.Amount.IsZero() {
		return errors.InvalidArgument("Ledger posting amount must not be zero", nil)
	}
	if !p.Amount.Equal(p.Amount.Round(entity.CurrencyPrecision)) {
		return errors.InvalidArgument("Ledger amounts carry at most 2 decimal places", nil)
	}
	switch p.Reason {
	case entity.LedgerReasonOrderSettlement, entity.LedgerReasonPlatformFee, entity.LedgerReasonWithdrawalPayout, entity.LedgerReasonAdjustment:
	default:
		return errors.InvalidArgument(fmt.Sprintf("Unknown ledger reason %q", p.Reason), nil)
	}
	if p.Bucket == "" {
		p.Bucket = entity.BucketAvailable
	}
	if !p.Bucket.Valid() {
		return errors.InvalidArgument(fmt.Sprintf("Unknown balance bucket %q", p.Bucket), nil)
	}
	return nil
}

func (uc *LedgerUseCase) Append(ctx context.Context, posting entity.LedgerPosting) (*entity.LedgerEntry, error) {
	entries, err := uc.AppendGroup(ctx, posting)
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

// AppendGroup writes all postings in one atomic unit. A posting whose
// idempotency key already exists returns the stored entry.
func (uc *LedgerUseCase) AppendGroup(ctx context.Context, postings ...entity.LedgerPosting) ([]*entity.LedgerEntry, error) {
	if len(postings) == 0 {
		return nil, errors.InvalidArgument("Ledger group is empty", nil)
	}
	keys := make(map[string]bool, len(postings))
	for i := range postings {
		if err := validatePosting(&postings[i]); err != nil {
			return nil, err
		}
		key := postings[i].IdempotencyKey()
		if keys[key] {
			return nil, errors.InvalidArgument("Ledger group repeats posting "+key, nil)
		}
		keys[key] = true
	}

	var entries []*entity.LedgerEntry
	err := uc.storage.run(ctx, "post ledger group", func(ctx context.Context) error {
		var err error
		entries, err = uc.ledgerRepo.Post(ctx, postings, uc.clock.Now())
		return err
	})
	if err != nil {
		if errors.Is(err, errors.CodeIntegrityViolation) {
			logger.Critical("Ledger write refused: %v", err)
		}
		return nil, err
	}
	return entries, nil
}

// GetWallet returns the cached wallet; an account with no activity has a zero wallet.
func (uc *LedgerUseCase) GetWallet(ctx context.Context, accountID string) (*entity.Wallet, error) {
	var wallet *entity.Wallet
	err := uc.storage.run(ctx, "get wallet", func(ctx context.Context) error {
		var err error
		wallet, err = uc.walletRepo.GetByAccountID(ctx, accountID)
		return err
	})
	if errors.Is(err, errors.CodeNotFound) {
		return entity.NewWallet(accountID, uc.clock.Now()), nil
	}
	return wallet, err
}

func (uc *LedgerUseCase) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	wallet, err := uc.GetWallet(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

// ListEntries returns the newest entries first.
func (uc *LedgerUseCase) ListEntries(ctx context.Context, accountID string, page, pageSize int) ([]*entity.LedgerEntry, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	var entries []*entity.LedgerEntry
	err := uc.storage.run(ctx, "list ledger entries", func(ctx context.Context) error {
		var err error
		entries, err = uc.ledgerRepo.ListByAccountID(ctx, accountID, pageSize, (page-1)*pageSize)
		return err
	})
	return entries, err
}

// Reconcile recomputes the account from its full ledger. Any mismatch halts
// the wallet and is reported, never corrected.
func (uc *LedgerUseCase) Reconcile(ctx context.Context, accountID string) (*entity.ReconcileReport, error) {
	var entries []*entity.LedgerEntry
	err := uc.storage.run(ctx, "load ledger", func(ctx context.Context) error {
		var err error
		entries, err = uc.ledgerRepo.AllByAccountID(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	wallet, err := uc.GetWallet(ctx, accountID)
	if err != nil {
		return nil, err
	}

	report := &entity.ReconcileReport{
		AccountID:     accountID,
		EntryCount:    len(entries),
		WalletBalance: wallet.Balance,
		Available:     wallet.Available,
		Pending:       wallet.Pending,
		Frozen:        wallet.Frozen,
		CheckedAt:     uc.clock.Now(),
	}

	running := decimal.Zero
	for i, e := range entries {
		if e.Sequence != int64(i+1) {
			report.Issues = append(report.Issues, fmt.Sprintf("entry %s has sequence %d, expected %d", e.ID, e.Sequence, i+1))
		}
		running = running.Add(e.Amount)
		if !e.BalanceAfter.Equal(running) {
			report.Issues = append(report.Issues, fmt.Sprintf("entry %d records balance %s, ledger sums to %s", e.Sequence, e.BalanceAfter.StringFixed(2), running.StringFixed(2)))
		}
	}
	report.LedgerSum = running

	if !wallet.Balance.Equal(running) {
		report.Issues = append(report.Issues, fmt.Sprintf("wallet balance %s differs from ledger sum %s", wallet.Balance.StringFixed(2), running.StringFixed(2)))
	}
	if !wallet.BucketsConsistent() {
		report.Issues = append(report.Issues, fmt.Sprintf("buckets %s+%s+%s do not add up to balance %s",
			wallet.Available.StringFixed(2), wallet.Pending.StringFixed(2), wallet.Frozen.StringFixed(2), wallet.Balance.StringFixed(2)))
	}
	if wallet.LastSequence != int64(len(entries)) {
		report.Issues = append(report.Issues, fmt.Sprintf("wallet last sequence %d, ledger holds %d entries", wallet.LastSequence, len(entries)))
	}

	report.Consistent = len(report.Issues) == 0
	if report.Consistent {
		logger.Info("Reconciled account %s: %d entries, balance %s", accountID, len(entries), running.StringFixed(2))
		return report, nil
	}

	uc.haltWallet(ctx, accountID, report)
	return report, errors.IntegrityViolation(fmt.Sprintf("Account %s failed reconciliation", accountID), nil)
}

func (uc *LedgerUseCase) haltWallet(ctx context.Context, accountID string, report *entity.ReconcileReport) {
	logger.Critical("Ledger mismatch on account %s: %v", accountID, report.Issues)

	err := uc.storage.run(ctx, "halt wallet", func(ctx context.Context) error {
		_, err := uc.walletRepo.Mutate(ctx, accountID, uc.clock.Now(), func(w *entity.Wallet) error {
			w.Status = entity.WalletStatusHalted
			w.HaltedReason = "reconciliation mismatch"
			w.UpdatedAt = uc.clock.Now()
			return nil
		})
		return err
	})
	if err != nil {
		logger.Critical("Failed to halt wallet %s after mismatch: %v", accountID, err)
	}

	if uc.archive != nil {
		if err := uc.archive.ArchiveReconcileReport(ctx, report); err != nil {
			logger.Error("Failed to archive reconciliation report for %s: %v", accountID, err)
		}
	}
}

func (uc *LedgerUseCase) moveFunds(ctx context.Context, op, accountID string, from, to entity.BalanceBucket, amount decimal.Decimal, blockHalted bool) (*entity.Wallet, error) {
	var wallet *entity.Wallet
	err := uc.storage.run(ctx, op, func(ctx context.Context) error {
		var err error
		wallet, err = uc.walletRepo.Mutate(ctx, accountID, uc.clock.Now(), func(w *entity.Wallet) error {
			if blockHalted && w.IsHalted() {
				return errors.IntegrityViolation(fmt.Sprintf("Wallet %s is halted", accountID), nil)
			}
			if w.BucketAmount(from).LessThan(amount) {
				return errors.InsufficientFunds(fmt.Sprintf("Only %s %s", w.BucketAmount(from).StringFixed(2), from))
			}
			return w.MoveBucket(from, to, amount, uc.clock.Now())
		})
		return err
	})
	return wallet, err
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.InvalidArgument("Amount must be greater than zero", nil)
	}
	if !amount.Equal(amount.Round(entity.CurrencyPrecision)) {
		return errors.InvalidArgument("Amount may have at most 2 decimal places", nil)
	}
	return nil
}

func (uc *LedgerUseCase) FreezeFunds(ctx context.Context, accountID string, amount decimal.Decimal) (*entity.Wallet, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	wallet, err := uc.moveFunds(ctx, "freeze funds", accountID, entity.BucketAvailable, entity.BucketFrozen, amount, false)
	if err != nil {
		return nil, err
	}
	logger.Warn("Froze %s on account %s", amount.StringFixed(2), accountID)
	return wallet, nil
}

func (uc *LedgerUseCase) UnfreezeFunds(ctx context.Context, accountID string, amount decimal.Decimal) (*entity.Wallet, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	wallet, err := uc.moveFunds(ctx, "unfreeze funds", accountID, entity.BucketFrozen, entity.BucketAvailable, amount, false)
	if err != nil {
		return nil, err
	}
	logger.Info("Unfroze %s on account %s", amount.StringFixed(2), accountID)
	return wallet, nil
}

// RequestWithdrawal parks the amount in the pending bucket until an operator decides.
func (uc *LedgerUseCase) RequestWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal) (*entity.Withdrawal, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	if _, err := uc.moveFunds(ctx, "hold withdrawal", accountID, entity.BucketAvailable, entity.BucketPending, amount, true); err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	withdrawal := &entity.Withdrawal{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Amount:    amount,
		Status:    entity.WithdrawalStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := uc.storage.create(ctx, "create withdrawal", func(ctx context.Context) error {
		return uc.withdrawalRepo.Create(ctx, withdrawal)
	})
	if err != nil {
		if _, undoErr := uc.moveFunds(ctx, "undo withdrawal hold", accountID, entity.BucketPending, entity.BucketAvailable, amount, false); undoErr != nil {
			logger.Error("Failed to return held %s to account %s: %v", amount.StringFixed(2), accountID, undoErr)
		}
		return nil, err
	}

	logger.Info("Withdrawal %s requested by %s for %s", withdrawal.ID, accountID, amount.StringFixed(2))
	return withdrawal, nil
}

func (uc *LedgerUseCase) GetWithdrawal(ctx context.Context, id string) (*entity.Withdrawal, error) {
	var withdrawal *entity.Withdrawal
	err := uc.storage.run(ctx, "get withdrawal", func(ctx context.Context) error {
		var err error
		withdrawal, err = uc.withdrawalRepo.GetByID(ctx, id)
		return err
	})
	return withdrawal, err
}

func (uc *LedgerUseCase) ListWithdrawals(ctx context.Context, accountID string, page, pageSize int) ([]*entity.Withdrawal, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	var withdrawals []*entity.Withdrawal
	err := uc.storage.run(ctx, "list withdrawals", func(ctx context.Context) error {
		var err error
		withdrawals, err = uc.withdrawalRepo.ListByAccountID(ctx, accountID, pageSize, (page-1)*pageSize)
		return err
	})
	return withdrawals, err
}

func (uc *LedgerUseCase) mutateWithdrawal(ctx context.Context, op, id string, fn repository.WithdrawalMutation) (*entity.Withdrawal, error) {
	var withdrawal *entity.Withdrawal
	err := uc.storage.run(ctx, op, func(ctx context.Context) error {
		var err error
		withdrawal, err = uc.withdrawalRepo.Mutate(ctx, id, fn)
		return err
	})
	return withdrawal, err
}

// CompleteWithdrawal pays out a pending withdrawal. The payout entry is keyed
// by withdrawal id, so a completion interrupted after posting can be rerun.
func (uc *LedgerUseCase) CompleteWithdrawal(ctx context.Context, id, operatorID string) (*entity.Withdrawal, error) {
	withdrawal, err := uc.mutateWithdrawal(ctx, "claim withdrawal", id, func(w *entity.Withdrawal) error {
		switch w.Status {
		case entity.WithdrawalStatusCompleted, entity.WithdrawalStatusProcessing:
			return repository.ErrSkipWrite
		case entity.WithdrawalStatusRejected:
			return errors.InvalidState("Withdrawal was rejected")
		}
		w.Status = entity.WithdrawalStatusProcessing
		w.UpdatedAt = uc.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if withdrawal.Status == entity.WithdrawalStatusCompleted {
		return withdrawal, nil
	}

	_, err = uc.Append(ctx, entity.LedgerPosting{
		AccountID: withdrawal.AccountID,
		Amount:    withdrawal.Amount.Neg(),
		Bucket:    entity.BucketPending,
		Reason:    entity.LedgerReasonWithdrawalPayout,
		Reference: withdrawal.ID,
	})
	if err != nil {
		logger.Error("Payout posting failed for withdrawal %s: %v", id, err)
		if payoutRefused(err) {
			uc.releaseClaim(ctx, id)
		}
		return nil, err
	}

	withdrawal, err = uc.mutateWithdrawal(ctx, "finish withdrawal", id, func(w *entity.Withdrawal) error {
		if w.Status == entity.WithdrawalStatusCompleted {
			return repository.ErrSkipWrite
		}
		now := uc.clock.Now()
		w.Status = entity.WithdrawalStatusCompleted
		w.ProcessedBy = operatorID
		w.ProcessedAt = &now
		w.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Withdrawal %s completed by %s", id, operatorID)
	return withdrawal, nil
}

// payoutRefused reports whether a payout posting failed without writing
// anything. Storage failures are left out since the posting may have landed.
func payoutRefused(err error) bool {
	switch errors.Code(err) {
	case errors.CodeIntegrityViolation, errors.CodeInsufficientFunds, errors.CodeInvalidArgument:
		return true
	}
	return false
}

// releaseClaim puts a Processing withdrawal back to Pending so it can be
// completed later or rejected.
func (uc *LedgerUseCase) releaseClaim(ctx context.Context, id string) {
	_, err := uc.mutateWithdrawal(ctx, "release withdrawal claim", id, func(w *entity.Withdrawal) error {
		if w.Status != entity.WithdrawalStatusProcessing {
			return repository.ErrSkipWrite
		}
		w.Status = entity.WithdrawalStatusPending
		w.UpdatedAt = uc.clock.Now()
		return nil
	})
	if err != nil {
		logger.Error("Failed to release claim on withdrawal %s: %v", id, err)
	}
}

// RejectWithdrawal returns the held amount to the available bucket.
func (uc *LedgerUseCase) RejectWithdrawal(ctx context.Context, id, operatorID, reason string) (*entity.Withdrawal, error) {
	alreadyRejected := false
	withdrawal, err := uc.mutateWithdrawal(ctx, "reject withdrawal", id, func(w *entity.Withdrawal) error {
		switch w.Status {
		case entity.WithdrawalStatusRejected:
			alreadyRejected = true
			return repository.ErrSkipWrite
		case entity.WithdrawalStatusProcessing, entity.WithdrawalStatusCompleted:
			return errors.InvalidState("Withdrawal is already being paid out")
		}
		now := uc.clock.Now()
		w.Status = entity.WithdrawalStatusRejected
		w.Reason = reason
		w.ProcessedBy = operatorID
		w.ProcessedAt = &now
		w.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alreadyRejected {
		return withdrawal, nil
	}

	if _, err := uc.moveFunds(ctx, "release withdrawal hold", withdrawal.AccountID, entity.BucketPending, entity.BucketAvailable, withdrawal.Amount, false); err != nil {
		logger.Critical("Withdrawal %s rejected but %s still held on %s: %v", id, withdrawal.Amount.StringFixed(2), withdrawal.AccountID, err)
		return nil, err
	}

	logger.Info("Withdrawal %s rejected by %s: %s", id, operatorID, reason)
	return withdrawal, nil
}
