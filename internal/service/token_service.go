package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/events"
	"wodgachi/rewards-api/internal/observability"
	"wodgachi/rewards-api/internal/repository"

	"github.com/sirupsen/logrus"
)

// --- Error Definitions ---
var (
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrInsufficientBalance   = errors.New("insufficient CRUSH balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNotMinter             = errors.New("caller is not an authorized minter")
	ErrSupplyCapExceeded     = errors.New("mint would exceed the maximum supply")
	ErrLedgerNotInitialized  = errors.New("token ledger has no genesis supply")
)

// TokenConfig holds the ledger constants in base units.
type TokenConfig struct {
	InitialSupply    *big.Int
	MaxSupply        *big.Int
	WorkoutReward    *big.Int
	StreakResetAfter time.Duration // 0 keeps streaks forever
}

// DefaultTokenConfig: 10M genesis, 100M cap, 150 CRUSH per workout.
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		InitialSupply: domain.CRUSH(10_000_000),
		MaxSupply:     domain.CRUSH(100_000_000),
		WorkoutReward: domain.CRUSH(150),
	}
}

// RewardResult is the outcome of a workout reward.
type RewardResult struct {
	Amount      *big.Int
	Streak      int
	Balance     *big.Int
	TotalEarned *big.Int
	Receipt     domain.Receipt
}

type TokenService interface {
	// Genesis creates the supply record and credits the treasury. Calling it
	// again is a no-op.
	Genesis(ctx context.Context) (*domain.Supply, error)
	TotalSupply(ctx context.Context) (*domain.Supply, error)
	BalanceOf(ctx context.Context, addr domain.Address) (*big.Int, error)
	GetAccount(ctx context.Context, addr domain.Address) (*domain.TokenAccount, error)

	Transfer(ctx context.Context, from, to domain.Address, amount *big.Int) (domain.Receipt, error)
	Approve(ctx context.Context, owner, spender domain.Address, amount *big.Int) (domain.Receipt, error)
	Allowance(ctx context.Context, owner, spender domain.Address) (*big.Int, error)
	TransferFrom(ctx context.Context, spender, from, to domain.Address, amount *big.Int) (domain.Receipt, error)

	AuthorizeMinter(principal string)
	RevokeMinter(principal string)
	IsMinter(principal string) bool
	Mint(ctx context.Context, caller string, to domain.Address, amount *big.Int) (domain.Receipt, error)

	// RewardWorkout mints the workout reward to user and advances their streak.
	RewardWorkout(ctx context.Context, caller string, user domain.Address, at time.Time) (*RewardResult, error)
	GetUserStreak(ctx context.Context, user domain.Address) (int, error)
}

type tokenService struct {
	ledger    repository.LedgerRepository
	publisher events.Publisher
	log       logrus.FieldLogger
	cfg       TokenConfig
	minters   *principalSet
	now       func() time.Time
}

func NewTokenService(ledger repository.LedgerRepository, publisher events.Publisher, logger logrus.FieldLogger, cfg TokenConfig) TokenService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &tokenService{
		ledger:    ledger,
		publisher: publisher,
		log:       logger.WithField("component", "token"),
		cfg:       cfg,
		minters:   newPrincipalSet(),
		now:       time.Now,
	}
}

// Genesis creates the supply record and opens the treasury with it. Both steps
// are idempotent, so a boot that failed between them completes on retry.
func (s *tokenService) Genesis(ctx context.Context) (*domain.Supply, error) {
	supply := &domain.Supply{Total: new(big.Int).Set(s.cfg.InitialSupply), Cap: new(big.Int).Set(s.cfg.MaxSupply)}
	err := s.ledger.InitSupply(ctx, *supply)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		if supply, err = s.ledger.GetSupply(ctx); err != nil {
			return nil, fmt.Errorf("get supply: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("init supply: %w", err)
	}

	// Mints cannot happen before the treasury exists, so the stored total is the genesis amount.
	err = s.ledger.OpenAccount(ctx, domain.TreasuryAddress, supply.Total)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return supply, nil
	case err != nil:
		return nil, fmt.Errorf("open treasury: %w", err)
	}
	s.log.WithField("supply", domain.FormatCRUSH(supply.Total)).Info("token genesis complete")
	return supply, nil
}

func (s *tokenService) TotalSupply(ctx context.Context) (*domain.Supply, error) {
	supply, err := s.ledger.GetSupply(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrLedgerNotInitialized
	}
	return supply, err
}

func (s *tokenService) GetAccount(ctx context.Context, addr domain.Address) (*domain.TokenAccount, error) {
	acc, err := s.ledger.GetAccount(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewTokenAccount(addr), nil
	}
	return acc, err
}

func (s *tokenService) BalanceOf(ctx context.Context, addr domain.Address) (*big.Int, error) {
	acc, err := s.GetAccount(ctx, addr)
	if err != nil {
		return nil, err
	}
	return acc.Balance, nil
}

func (s *tokenService) Transfer(ctx context.Context, from, to domain.Address, amount *big.Int) (domain.Receipt, error) {
	if err := s.move(ctx, from, to, amount); err != nil {
		return domain.Receipt{}, err
	}
	receipt := domain.NewReceipt(domain.ReceiptTransfer, s.now(), string(from), string(to), amount.String())
	s.publisher.Publish(ctx, events.New(events.TokensTransferred, string(from), receipt.TxHash, map[string]any{
		"from": from, "to": to, "amount": domain.FormatCRUSH(amount),
	}))
	return receipt, nil
}

// move debits from and credits to. A failed credit is compensated.
func (s *tokenService) move(ctx context.Context, from, to domain.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := s.ledger.Debit(ctx, from, amount); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return ErrInsufficientBalance
		}
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if err := s.ledger.Credit(ctx, to, amount); err != nil {
		if rerr := s.ledger.Credit(ctx, from, amount); rerr != nil {
			s.log.WithError(rerr).WithFields(logrus.Fields{"from": from, "amount": amount.String()}).Error("refund after failed credit")
		}
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return nil
}

func (s *tokenService) Approve(ctx context.Context, owner, spender domain.Address, amount *big.Int) (domain.Receipt, error) {
	if amount == nil || amount.Sign() < 0 {
		return domain.Receipt{}, ErrInvalidAmount
	}
	if err := s.ledger.SetAllowance(ctx, owner, spender, amount); err != nil {
		return domain.Receipt{}, fmt.Errorf("set allowance: %w", err)
	}
	receipt := domain.NewReceipt(domain.ReceiptApprove, s.now(), string(owner), string(spender), amount.String())
	s.publisher.Publish(ctx, events.New(events.AllowanceApproved, string(owner), receipt.TxHash, map[string]any{
		"spender": spender, "amount": domain.FormatCRUSH(amount),
	}))
	return receipt, nil
}

func (s *tokenService) Allowance(ctx context.Context, owner, spender domain.Address) (*big.Int, error) {
	return s.ledger.GetAllowance(ctx, owner, spender)
}

func (s *tokenService) TransferFrom(ctx context.Context, spender, from, to domain.Address, amount *big.Int) (domain.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return domain.Receipt{}, ErrInvalidAmount
	}
	if err := s.ledger.SpendAllowance(ctx, from, spender, amount); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return domain.Receipt{}, ErrInsufficientAllowance
		}
		return domain.Receipt{}, fmt.Errorf("spend allowance: %w", err)
	}
	if err := s.move(ctx, from, to, amount); err != nil {
		s.restoreAllowance(ctx, from, spender, amount)
		return domain.Receipt{}, err
	}
	receipt := domain.NewReceipt(domain.ReceiptTransfer, s.now(), string(spender), string(from), string(to), amount.String())
	s.publisher.Publish(ctx, events.New(events.TokensTransferred, string(from), receipt.TxHash, map[string]any{
		"from": from, "to": to, "spender": spender, "amount": domain.FormatCRUSH(amount),
	}))
	return receipt, nil
}

func (s *tokenService) restoreAllowance(ctx context.Context, owner, spender domain.Address, amount *big.Int) {
	current, err := s.ledger.GetAllowance(ctx, owner, spender)
	if err == nil {
		err = s.ledger.SetAllowance(ctx, owner, spender, new(big.Int).Add(current, amount))
	}
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"owner": owner, "spender": spender}).Error("restore allowance")
	}
}

func (s *tokenService) AuthorizeMinter(principal string) { s.minters.add(principal) }
func (s *tokenService) RevokeMinter(principal string)    { s.minters.remove(principal) }
func (s *tokenService) IsMinter(principal string) bool   { return s.minters.has(principal) }

func (s *tokenService) Mint(ctx context.Context, caller string, to domain.Address, amount *big.Int) (domain.Receipt, error) {
	if !s.IsMinter(caller) {
		return domain.Receipt{}, ErrNotMinter
	}
	if err := s.mint(ctx, to, amount); err != nil {
		return domain.Receipt{}, err
	}
	observability.RecordMint(caller, domain.WholeCRUSH(amount))
	receipt := domain.NewReceipt(domain.ReceiptMint, s.now(), caller, string(to), amount.String())
	s.publisher.Publish(ctx, events.New(events.TokensMinted, string(to), receipt.TxHash, map[string]any{
		"to": to, "amount": domain.FormatCRUSH(amount), "minter": caller,
	}))
	return receipt, nil
}

func (s *tokenService) mint(ctx context.Context, to domain.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := s.ledger.IncreaseSupply(ctx, amount); err != nil {
		switch {
		case errors.Is(err, repository.ErrConditionFailed):
			return ErrSupplyCapExceeded
		case errors.Is(err, repository.ErrNotFound):
			return ErrLedgerNotInitialized
		}
		return fmt.Errorf("increase supply: %w", err)
	}
	if err := s.ledger.Credit(ctx, to, amount); err != nil {
		if rerr := s.ledger.IncreaseSupply(ctx, new(big.Int).Neg(amount)); rerr != nil {
			s.log.WithError(rerr).WithFields(logrus.Fields{"to": to, "amount": amount.String()}).Error("roll back supply after failed credit")
		}
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return nil
}

func (s *tokenService) RewardWorkout(ctx context.Context, caller string, user domain.Address, at time.Time) (*RewardResult, error) {
	if !s.IsMinter(caller) {
		return nil, ErrNotMinter
	}
	acc, err := s.GetAccount(ctx, user)
	if err != nil {
		return nil, err
	}

	reward := new(big.Int).Set(s.cfg.WorkoutReward)
	if err := s.mint(ctx, user, reward); err != nil {
		return nil, err
	}

	streak := acc.Streak + 1
	if s.cfg.StreakResetAfter > 0 && acc.LastRewardAt != nil && at.Sub(*acc.LastRewardAt) > s.cfg.StreakResetAfter {
		streak = 1
	}
	if err := s.ledger.RecordReward(ctx, user, reward, streak, at); err != nil {
		return nil, fmt.Errorf("record reward: %w", err)
	}
	observability.RecordMint("workout", domain.WholeCRUSH(reward))

	balance := new(big.Int).Add(acc.Balance, reward)
	earned := new(big.Int).Add(acc.TotalEarned, reward)
	if updated, err := s.GetAccount(ctx, user); err == nil {
		balance, earned = updated.Balance, updated.TotalEarned
	} else {
		s.log.WithError(err).WithField("user", user).Warn("reload account after reward")
	}

	return &RewardResult{
		Amount:      reward,
		Streak:      streak,
		Balance:     balance,
		TotalEarned: earned,
		Receipt:     domain.NewReceipt(domain.ReceiptMint, at, caller, string(user), reward.String()),
	}, nil
}

func (s *tokenService) GetUserStreak(ctx context.Context, user domain.Address) (int, error) {
	acc, err := s.GetAccount(ctx, user)
	if err != nil {
		return 0, err
	}
	return acc.Streak, nil
}
