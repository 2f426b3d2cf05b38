// Package memory implements the repository interfaces in process memory.
// It backs the test suites and the "memory" database driver for local runs.
package memory

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every collection behind one lock.
type Store struct {
	mu sync.RWMutex

	users       map[primitive.ObjectID]domain.User
	profiles    map[primitive.ObjectID]domain.UserProfile
	accounts    map[domain.Address]*domain.TokenAccount
	allowances  map[string]*big.Int
	supply      *domain.Supply
	workouts    map[string]domain.ValidWorkout
	logs        []domain.WorkoutLog
	nodes       map[primitive.ObjectID]domain.OracleNode
	submissions map[string]domain.FitnessSubmission
	nfts        map[uint64]domain.ProgressNFT
	nftSeq      uint64
	redemptions []domain.Redemption
}

func NewStore() *Store {
	return &Store{
		users:       make(map[primitive.ObjectID]domain.User),
		profiles:    make(map[primitive.ObjectID]domain.UserProfile),
		accounts:    make(map[domain.Address]*domain.TokenAccount),
		allowances:  make(map[string]*big.Int),
		workouts:    make(map[string]domain.ValidWorkout),
		nodes:       make(map[primitive.ObjectID]domain.OracleNode),
		submissions: make(map[string]domain.FitnessSubmission),
		nfts:        make(map[uint64]domain.ProgressNFT),
	}
}

func (s *Store) Users() repository.UserRepository             { return (*userRepo)(s) }
func (s *Store) Profiles() repository.ProfileRepository       { return (*profileRepo)(s) }
func (s *Store) Ledger() repository.LedgerRepository          { return (*ledgerRepo)(s) }
func (s *Store) Workouts() repository.WorkoutRepository       { return (*workoutRepo)(s) }
func (s *Store) Oracle() repository.OracleRepository          { return (*oracleRepo)(s) }
func (s *Store) NFTs() repository.NFTRepository               { return (*nftRepo)(s) }
func (s *Store) Redemptions() repository.RedemptionRepository { return (*redemptionRepo)(s) }

// --- users ---

type userRepo Store

func (r *userRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(user.Email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	return user.ID, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// --- profiles ---

type profileRepo Store

func (r *profileRepo) Create(ctx context.Context, profile *domain.UserProfile) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.UserID]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now().UTC()
	profile.CreatedAt, profile.UpdatedAt = now, now
	s.profiles[profile.UserID] = *profile
	return nil
}

func (r *profileRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.UserProfile, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *profileRepo) UpdateProgress(ctx context.Context, userID primitive.ObjectID, totalWorkouts, level int, points int64, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return repository.ErrNotFound
	}
	p.TotalWorkouts, p.Level, p.Points = totalWorkouts, level, points
	t := at.UTC()
	p.LastWorkoutAt = &t
	p.UpdatedAt = time.Now().UTC()
	s.profiles[userID] = p
	return nil
}

func (r *profileRepo) SetWallet(ctx context.Context, userID primitive.ObjectID, wallet string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return repository.ErrNotFound
	}
	p.WalletAddress = wallet
	p.UpdatedAt = time.Now().UTC()
	s.profiles[userID] = p
	return nil
}

func (r *profileRepo) ListTop(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.TotalWorkouts != b.TotalWorkouts {
			return a.TotalWorkouts > b.TotalWorkouts
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.UserID.Hex() < b.UserID.Hex()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- ledger ---

type ledgerRepo Store

func (r *ledgerRepo) account(addr domain.Address) *domain.TokenAccount {
	acc, ok := r.accounts[addr]
	if !ok {
		acc = domain.NewTokenAccount(addr)
		r.accounts[addr] = acc
	}
	return acc
}

func copyAccount(acc *domain.TokenAccount) *domain.TokenAccount {
	out := *acc
	out.Balance = new(big.Int).Set(acc.Balance)
	out.TotalEarned = new(big.Int).Set(acc.TotalEarned)
	if acc.LastRewardAt != nil {
		t := *acc.LastRewardAt
		out.LastRewardAt = &t
	}
	return &out
}

func (r *ledgerRepo) GetAccount(ctx context.Context, addr domain.Address) (*domain.TokenAccount, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[addr]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyAccount(acc), nil
}

func (r *ledgerRepo) Credit(ctx context.Context, addr domain.Address, amount *big.Int) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := r.account(addr)
	acc.Balance.Add(acc.Balance, amount)
	return nil
}

func (r *ledgerRepo) Debit(ctx context.Context, addr domain.Address, amount *big.Int) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[addr]
	if !ok || acc.Balance.Cmp(amount) < 0 {
		return repository.ErrConditionFailed
	}
	acc.Balance.Sub(acc.Balance, amount)
	return nil
}

func (r *ledgerRepo) RecordReward(ctx context.Context, addr domain.Address, earned *big.Int, streak int, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := r.account(addr)
	acc.TotalEarned.Add(acc.TotalEarned, earned)
	acc.Streak = streak
	t := at.UTC()
	acc.LastRewardAt = &t
	return nil
}

func (r *ledgerRepo) OpenAccount(ctx context.Context, addr domain.Address, balance *big.Int) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[addr]; ok {
		return repository.ErrDuplicate
	}
	acc := domain.NewTokenAccount(addr)
	acc.Balance.Set(balance)
	s.accounts[addr] = acc
	return nil
}

func allowanceKey(owner, spender domain.Address) string {
	return string(owner) + "->" + string(spender)
}

func (r *ledgerRepo) GetAllowance(ctx context.Context, owner, spender domain.Address) (*big.Int, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.allowances[allowanceKey(owner, spender)]; ok {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

func (r *ledgerRepo) SetAllowance(ctx context.Context, owner, spender domain.Address, amount *big.Int) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowances[allowanceKey(owner, spender)] = new(big.Int).Set(amount)
	return nil
}

func (r *ledgerRepo) SpendAllowance(ctx context.Context, owner, spender domain.Address, amount *big.Int) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allowances[allowanceKey(owner, spender)]
	if !ok || a.Cmp(amount) < 0 {
		return repository.ErrConditionFailed
	}
	a.Sub(a, amount)
	return nil
}

func (r *ledgerRepo) InitSupply(ctx context.Context, supply domain.Supply) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.supply != nil {
		return repository.ErrDuplicate
	}
	s.supply = &domain.Supply{Total: new(big.Int).Set(supply.Total), Cap: new(big.Int).Set(supply.Cap)}
	return nil
}

func (r *ledgerRepo) GetSupply(ctx context.Context) (*domain.Supply, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.supply == nil {
		return nil, repository.ErrNotFound
	}
	return &domain.Supply{Total: new(big.Int).Set(s.supply.Total), Cap: new(big.Int).Set(s.supply.Cap)}, nil
}

func (r *ledgerRepo) IncreaseSupply(ctx context.Context, amount *big.Int) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.supply == nil {
		return repository.ErrNotFound
	}
	next := new(big.Int).Add(s.supply.Total, amount)
	if next.Cmp(s.supply.Cap) > 0 {
		return repository.ErrConditionFailed
	}
	s.supply.Total = next
	return nil
}

// --- workouts ---

type workoutRepo Store

func (r *workoutRepo) Upsert(ctx context.Context, workout *domain.ValidWorkout) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.workouts[workout.ID]; ok {
		workout.CreatedAt = existing.CreatedAt
	} else {
		workout.CreatedAt = now
	}
	workout.UpdatedAt = now
	s.workouts[workout.ID] = *workout
	return nil
}

func (r *workoutRepo) GetByID(ctx context.Context, id string) (*domain.ValidWorkout, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &w, nil
}

func (r *workoutRepo) SetActive(ctx context.Context, id string, active bool) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workouts[id]
	if !ok {
		return repository.ErrNotFound
	}
	w.Active = active
	w.UpdatedAt = time.Now().UTC()
	s.workouts[id] = w
	return nil
}

func (r *workoutRepo) ListActive(ctx context.Context) ([]domain.ValidWorkout, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.ValidWorkout{}
	for _, w := range s.workouts {
		if w.Active {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *workoutRepo) Count(ctx context.Context) (int64, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.workouts)), nil
}

func (r *workoutRepo) AppendLog(ctx context.Context, entry *domain.WorkoutLog) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = primitive.NewObjectID()
	s.logs = append(s.logs, *entry)
	return nil
}

func (r *workoutRepo) ListLogs(ctx context.Context, userID primitive.ObjectID, limit int) ([]domain.WorkoutLog, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.WorkoutLog{}
	// Newest first.
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].UserID == userID {
			out = append(out, s.logs[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// --- oracle ---

type oracleRepo Store

func submissionKey(userID primitive.ObjectID, workoutID string) string {
	return userID.Hex() + "/" + workoutID
}

func (r *oracleRepo) AddNode(ctx context.Context, node *domain.OracleNode) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[node.UserID]; ok {
		return repository.ErrDuplicate
	}
	s.nodes[node.UserID] = *node
	return nil
}

func (r *oracleRepo) RemoveNode(ctx context.Context, userID primitive.ObjectID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.nodes, userID)
	return nil
}

func (r *oracleRepo) IsNode(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[userID]
	return ok, nil
}

func (r *oracleRepo) ListNodes(ctx context.Context) ([]domain.OracleNode, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.OracleNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

func (r *oracleRepo) UpsertSubmission(ctx context.Context, sub *domain.FitnessSubmission) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[submissionKey(sub.UserID, sub.WorkoutID)] = *sub
	return nil
}

func (r *oracleRepo) GetSubmission(ctx context.Context, userID primitive.ObjectID, workoutID string) (*domain.FitnessSubmission, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[submissionKey(userID, workoutID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sub, nil
}

func (r *oracleRepo) DeleteSubmission(ctx context.Context, userID primitive.ObjectID, workoutID string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := submissionKey(userID, workoutID)
	if _, ok := s.submissions[key]; !ok {
		return repository.ErrNotFound
	}
	delete(s.submissions, key)
	return nil
}

// --- nfts ---

type nftRepo Store

func (r *nftRepo) NextTokenID(ctx context.Context) (uint64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nftSeq++
	return s.nftSeq, nil
}

func (r *nftRepo) Create(ctx context.Context, nft *domain.ProgressNFT) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nfts[nft.TokenID]; ok {
		return repository.ErrDuplicate
	}
	for _, n := range s.nfts {
		if n.Owner == nft.Owner && n.WorkoutsMilestone == nft.WorkoutsMilestone {
			return repository.ErrDuplicate
		}
	}
	s.nfts[nft.TokenID] = *nft
	return nil
}

func (r *nftRepo) GetByTokenID(ctx context.Context, tokenID uint64) (*domain.ProgressNFT, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nfts[tokenID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &n, nil
}

func (r *nftRepo) ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]domain.ProgressNFT, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.ProgressNFT{}
	for _, n := range s.nfts {
		if n.Owner == owner {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out, nil
}

func (r *nftRepo) HasMilestone(ctx context.Context, owner primitive.ObjectID, milestone int) (bool, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nfts {
		if n.Owner == owner && n.WorkoutsMilestone == milestone {
			return true, nil
		}
	}
	return false, nil
}

func (r *nftRepo) SetTokenURI(ctx context.Context, tokenID uint64, uri string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nfts[tokenID]
	if !ok {
		return repository.ErrNotFound
	}
	n.TokenURI = uri
	s.nfts[tokenID] = n
	return nil
}

func (r *nftRepo) MarkRedeemed(ctx context.Context, tokenID uint64, rewardID string, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nfts[tokenID]
	if !ok {
		return repository.ErrNotFound
	}
	if n.IsRedeemed {
		return repository.ErrConditionFailed
	}
	t := at.UTC()
	n.IsRedeemed, n.RedeemedFor, n.RedeemedAt = true, rewardID, &t
	s.nfts[tokenID] = n
	return nil
}

// --- redemptions ---

type redemptionRepo Store

func (r *redemptionRepo) Create(ctx context.Context, red *domain.Redemption) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if red.UnlockKey != "" {
		for _, existing := range s.redemptions {
			if existing.UnlockKey == red.UnlockKey {
				return repository.ErrDuplicate
			}
		}
	}
	s.redemptions = append(s.redemptions, *red)
	return nil
}

func (r *redemptionRepo) HasUnlock(ctx context.Context, unlockKey string) (bool, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, existing := range s.redemptions {
		if existing.UnlockKey == unlockKey {
			return true, nil
		}
	}
	return false, nil
}

func (r *redemptionRepo) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Redemption, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Redemption{}
	for _, red := range s.redemptions {
		if red.UserID == userID {
			out = append(out, red)
		}
	}
	return out, nil
}
