package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"storypool/internal/config"
	"storypool/internal/models"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newEngine(repo *stubRepo) *Engine {
	return &Engine{
		Repo:   repo,
		Config: config.SettlementConfig{AutoConsumeShields: true},
	}
}

// seedPool creates a CLOSED two-choice pool with the given stakes.
func seedPool(repo *stubRepo, poolID string, stakes map[string]struct {
	choice string
	amount string
}) {
	now := time.Now().UTC()
	pool := &models.Pool{
		ID:       poolID,
		Title:    "branch point",
		Status:   models.PoolClosed,
		OpensAt:  now.Add(-2 * time.Hour),
		ClosesAt: now.Add(-time.Minute),
		Choices: []models.Choice{
			{ID: "choice-a", PoolID: poolID, Label: "A", Position: 0},
			{ID: "choice-b", PoolID: poolID, Label: "B", Position: 1},
		},
	}
	repo.pools[poolID] = pool

	i := 0
	for userID, st := range stakes {
		if _, ok := repo.streaks[userID]; !ok {
			repo.streaks[userID] = &models.UserStreak{UserID: userID}
		}
		repo.bets["bet-"+userID] = &models.Bet{
			ID:        "bet-" + userID,
			PoolID:    poolID,
			ChoiceID:  st.choice,
			UserID:    userID,
			Amount:    dec(st.amount),
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		i++
	}
}

type stake = struct {
	choice string
	amount string
}

func TestSettleWorkedExample(t *testing.T) {
	repo := newStubRepo()
	seedPool(repo, "p1", map[string]stake{
		"u1": {"choice-a", "400"},
		"u2": {"choice-b", "100"},
		"u3": {"choice-b", "500"},
	})
	engine := newEngine(repo)

	res, err := engine.Settle(context.Background(), "p1", "choice-b")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !res.TotalPool.Equal(dec("1000")) {
		t.Fatalf("total_pool=%s want=1000", res.TotalPool)
	}
	if !res.WinnersPaid.Equal(dec("850")) {
		t.Fatalf("winners_paid=%s want=850", res.WinnersPaid)
	}
	if !res.TreasuryCut.Equal(dec("125")) {
		t.Fatalf("treasury_cut=%s want=125", res.TreasuryCut)
	}
	if !res.DevCut.Equal(dec("25")) {
		t.Fatalf("dev_cut=%s want=25", res.DevCut)
	}

	// Conservation: the three cuts reconstruct the pool exactly.
	total := res.WinnersPaid.Add(res.TreasuryCut).Add(res.DevCut)
	if !total.Equal(res.TotalPool) {
		t.Fatalf("conservation broken: %s != %s", total, res.TotalPool)
	}

	// u2 staked 100 of B's 600: base payout 850 * (100/600) ~= 141.67,
	// multiplier 1.0 on a first win.
	var u2 *WinnerPayout
	for i := range res.Winners {
		if res.Winners[i].UserID == "u2" {
			u2 = &res.Winners[i]
		}
	}
	if u2 == nil {
		t.Fatalf("u2 missing from winners: %+v", res.Winners)
	}
	if diff := u2.BasePayout.Sub(dec("141.666666666667")).Abs(); diff.GreaterThan(dec("0.001")) {
		t.Fatalf("u2 base=%s want~141.67", u2.BasePayout)
	}
	if !u2.Multiplier.Equal(dec("1")) {
		t.Fatalf("u2 multiplier=%s want=1", u2.Multiplier)
	}
	if u2.StreakAfter != 1 {
		t.Fatalf("u2 streak=%d want=1", u2.StreakAfter)
	}

	// Base payouts reconstruct the winner share.
	sum := decimal.Zero
	for _, w := range res.Winners {
		sum = sum.Add(w.BasePayout)
	}
	if diff := sum.Sub(res.WinnersPaid).Abs(); diff.GreaterThan(dec("0.01")) {
		t.Fatalf("sum(base)=%s winners_paid=%s", sum, res.WinnersPaid)
	}

	// Loser bookkeeping.
	if len(res.Losers) != 1 || res.Losers[0].UserID != "u1" {
		t.Fatalf("losers=%+v want only u1", res.Losers)
	}
	if st := repo.streaks["u1"]; st.CurrentStreak != 0 || !st.TotalLost.Equal(dec("400")) {
		t.Fatalf("u1 streak=%d total_lost=%s", st.CurrentStreak, st.TotalLost)
	}

	// Pool finalized.
	pool := repo.pools["p1"]
	if pool.Status != models.PoolResolved {
		t.Fatalf("status=%s want=RESOLVED", pool.Status)
	}
	if pool.WinningChoiceID == nil || *pool.WinningChoiceID != "choice-b" {
		t.Fatalf("winning_choice=%v", pool.WinningChoiceID)
	}
	if pool.WinnersPaid == nil || !pool.WinnersPaid.Equal(dec("850")) {
		t.Fatalf("pool winners_paid=%v", pool.WinnersPaid)
	}
	for _, c := range pool.Choices {
		if c.ID == "choice-b" && !c.IsChosen {
			t.Fatalf("winning choice not marked chosen")
		}
	}
}

func TestSettleTwiceRejected(t *testing.T) {
	repo := newStubRepo()
	seedPool(repo, "p1", map[string]stake{
		"u1": {"choice-a", "400"},
		"u2": {"choice-b", "600"},
	})
	engine := newEngine(repo)

	if _, err := engine.Settle(context.Background(), "p1", "choice-b"); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	paidAfterOne := repo.streaks["u2"].TotalWon

	_, err := engine.Settle(context.Background(), "p1", "choice-b")
	if !errors.Is(err, models.ErrPoolAlreadyResolved) {
		t.Fatalf("err=%v want=ErrPoolAlreadyResolved", err)
	}
	// State after both calls equals state after one.
	if !repo.streaks["u2"].TotalWon.Equal(paidAfterOne) {
		t.Fatalf("double pay: %s -> %s", paidAfterOne, repo.streaks["u2"].TotalWon)
	}
}

func TestSettleConcurrentSingleWinner(t *testing.T) {
	repo := newStubRepo()
	seedPool(repo, "p1", map[string]stake{
		"u1": {"choice-a", "400"},
		"u2": {"choice-b", "600"},
	})
	engine := newEngine(repo)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Settle(context.Background(), "p1", "choice-b")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, models.ErrPoolAlreadyResolved):
		default:
			t.Fatalf("unexpected err: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("succeeded=%d want exactly 1", succeeded)
	}
	if !repo.streaks["u2"].TotalWon.Equal(dec("850")) {
		t.Fatalf("u2 total_won=%s want=850", repo.streaks["u2"].TotalWon)
	}
}

func TestSettleNoWinningBets(t *testing.T) {
	repo := newStubRepo()
	seedPool(repo, "p1", map[string]stake{
		"u1": {"choice-a", "400"},
		"u2": {"choice-a", "600"},
	})
	engine := newEngine(repo)

	res, err := engine.Settle(context.Background(), "p1", "choice-b")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !res.NoWinners {
		t.Fatalf("no_winners=false want=true")
	}
	if !res.WinnersPaid.IsZero() {
		t.Fatalf("winners_paid=%s want=0", res.WinnersPaid)
	}
	// Winner share folds into treasury; conservation still holds.
	if !res.TreasuryCut.Equal(dec("975")) {
		t.Fatalf("treasury=%s want=975", res.TreasuryCut)
	}
	total := res.WinnersPaid.Add(res.TreasuryCut).Add(res.DevCut)
	if !total.Equal(dec("1000")) {
		t.Fatalf("conservation broken: %s", total)
	}
}

func TestSettleStreakMultiplierApplied(t *testing.T) {
	repo := newStubRepo()
	seedPool(repo, "p1", map[string]stake{
		"u1": {"choice-a", "400"},
		"u2": {"choice-b", "600"},
	})
	// u2's fifth consecutive win lands the 1.25 tier.
	repo.streaks["u2"].CurrentStreak = 4
	repo.streaks["u2"].LongestStreak = 4
	engine := newEngine(repo)

	res, err := engine.Settle(context.Background(), "p1", "choice-b")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	w := res.Winners[0]
	if !w.Multiplier.Equal(dec("1.25")) {
		t.Fatalf("multiplier=%s want=1.25", w.Multiplier)
	}
	if !w.Payout.Equal(w.BasePayout.Mul(dec("1.25"))) {
		t.Fatalf("payout=%s base=%s", w.Payout, w.BasePayout)
	}
	if !res.MultiplierBonus.Equal(w.Payout.Sub(w.BasePayout)) {
		t.Fatalf("bonus=%s want=%s", res.MultiplierBonus, w.Payout.Sub(w.BasePayout))
	}
	if repo.streaks["u2"].LongestStreak != 5 {
		t.Fatalf("longest=%d want=5", repo.streaks["u2"].LongestStreak)
	}
}

func TestSettleShieldGrantedAtTenthWin(t *testing.T) {
	repo := newStubRepo()
	seedPool(repo, "p1", map[string]stake{
		"u1": {"choice-a", "400"},
		"u2": {"choice-b", "600"},
	})
	repo.streaks["u2"].CurrentStreak = 9
	engine := newEngine(repo)

	res, err := engine.Settle(context.Background(), "p1", "choice-b")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.Winners[0].ShieldsGranted != 1 {
		t.Fatalf("shields_granted=%d want=1", res.Winners[0].ShieldsGranted)
	}
	if repo.streaks["u2"].Shields != 1 {
		t.Fatalf("shields=%d want=1", repo.streaks["u2"].Shields)
	}
}

func TestSettleShieldConsumedOnLoss(t *testing.T) {
	repo := newStubRepo()
	seedPool(repo, "p1", map[string]stake{
		"u1": {"choice-a", "400"},
		"u2": {"choice-b", "600"},
	})
	repo.streaks["u1"].CurrentStreak = 6
	repo.streaks["u1"].Shields = 1
	engine := newEngine(repo)

	res, err := engine.Settle(context.Background(), "p1", "choice-b")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	loser := res.Losers[0]
	if !loser.ShieldConsumed {
		t.Fatalf("shield not consumed: %+v", loser)
	}
	st := repo.streaks["u1"]
	if st.CurrentStreak != 6 {
		t.Fatalf("streak=%d want preserved 6", st.CurrentStreak)
	}
	if st.Shields != 0 {
		t.Fatalf("shields=%d want=0", st.Shields)
	}
	if !st.TotalLost.IsZero() {
		t.Fatalf("total_lost=%s want=0 when shielded", st.TotalLost)
	}
}

func TestSettleShieldNotWastedOnZeroStreak(t *testing.T) {
	repo := newStubRepo()
	seedPool(repo, "p1", map[string]stake{
		"u1": {"choice-a", "400"},
		"u2": {"choice-b", "600"},
	})
	repo.streaks["u1"].Shields = 2
	engine := newEngine(repo)

	if _, err := engine.Settle(context.Background(), "p1", "choice-b"); err != nil {
		t.Fatalf("settle: %v", err)
	}
	st := repo.streaks["u1"]
	if st.Shields != 2 {
		t.Fatalf("shields=%d want=2 (nothing to protect)", st.Shields)
	}
	if !st.TotalLost.Equal(dec("400")) {
		t.Fatalf("total_lost=%s want=400", st.TotalLost)
	}
}

func TestSettleMissingStreakRowRollsBack(t *testing.T) {
	repo := newStubRepo()
	seedPool(repo, "p1", map[string]stake{
		"u1": {"choice-a", "400"},
		"u2": {"choice-b", "600"},
	})
	delete(repo.streaks, "u2")
	engine := newEngine(repo)

	_, err := engine.Settle(context.Background(), "p1", "choice-b")
	if !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("err=%v want=ErrUserNotFound", err)
	}
	// Full rollback: pool back to CLOSED, no bet settled, no streak touched.
	if repo.pools["p1"].Status != models.PoolClosed {
		t.Fatalf("status=%s want=CLOSED after rollback", repo.pools["p1"].Status)
	}
	for _, b := range repo.bets {
		if b.IsWinner != nil || b.Payout != nil {
			t.Fatalf("bet %s partially settled after rollback", b.ID)
		}
	}
	if st := repo.streaks["u1"]; st.CurrentStreak != 0 || !st.TotalLost.IsZero() {
		t.Fatalf("u1 mutated after rollback: %+v", st)
	}
}

func TestSettleOpenPoolRejectedUnlessConfigured(t *testing.T) {
	repo := newStubRepo()
	seedPool(repo, "p1", map[string]stake{
		"u1": {"choice-a", "400"},
		"u2": {"choice-b", "600"},
	})
	repo.pools["p1"].Status = models.PoolOpen
	engine := newEngine(repo)

	_, err := engine.Settle(context.Background(), "p1", "choice-b")
	if !errors.Is(err, models.ErrPoolStillOpen) {
		t.Fatalf("err=%v want=ErrPoolStillOpen", err)
	}

	engine.Config.AllowSettleOpen = true
	res, err := engine.Settle(context.Background(), "p1", "choice-b")
	if err != nil {
		t.Fatalf("settle with allow_settle_open: %v", err)
	}
	if repo.pools["p1"].Status != models.PoolResolved {
		t.Fatalf("status=%s want=RESOLVED", repo.pools["p1"].Status)
	}
	if !res.WinnersPaid.Equal(dec("850")) {
		t.Fatalf("winners_paid=%s want=850", res.WinnersPaid)
	}
}

func TestSettleUnknownPoolAndChoice(t *testing.T) {
	repo := newStubRepo()
	engine := newEngine(repo)

	if _, err := engine.Settle(context.Background(), "nope", "choice-b"); !errors.Is(err, models.ErrPoolNotFound) {
		t.Fatalf("err=%v want=ErrPoolNotFound", err)
	}

	seedPool(repo, "p1", map[string]stake{
		"u1": {"choice-a", "400"},
	})
	_, err := engine.Settle(context.Background(), "p1", "choice-z")
	if !errors.Is(err, models.ErrChoiceNotFound) {
		t.Fatalf("err=%v want=ErrChoiceNotFound", err)
	}
	// The claim rolled back with the rest of the transaction.
	if repo.pools["p1"].Status != models.PoolClosed {
		t.Fatalf("status=%s want=CLOSED", repo.pools["p1"].Status)
	}
}

func TestSettleMultipleBetsSameUserEvolveStreak(t *testing.T) {
	repo := newStubRepo()
	now := time.Now().UTC()
	pool := &models.Pool{
		ID:       "p1",
		Title:    "branch point",
		Status:   models.PoolClosed,
		OpensAt:  now.Add(-2 * time.Hour),
		ClosesAt: now.Add(-time.Minute),
		Choices: []models.Choice{
			{ID: "choice-a", PoolID: "p1", Position: 0},
			{ID: "choice-b", PoolID: "p1", Position: 1},
		},
	}
	repo.pools["p1"] = pool
	repo.streaks["u1"] = &models.UserStreak{UserID: "u1"}
	repo.bets["b1"] = &models.Bet{ID: "b1", PoolID: "p1", ChoiceID: "choice-b", UserID: "u1", Amount: dec("100"), CreatedAt: now.Add(-time.Hour)}
	repo.bets["b2"] = &models.Bet{ID: "b2", PoolID: "p1", ChoiceID: "choice-b", UserID: "u1", Amount: dec("300"), CreatedAt: now.Add(-30 * time.Minute)}
	engine := newEngine(repo)

	res, err := engine.Settle(context.Background(), "p1", "choice-b")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(res.Winners) != 2 {
		t.Fatalf("winners=%d want=2", len(res.Winners))
	}
	// Each winning bet advances the same user's streak one step.
	if repo.streaks["u1"].CurrentStreak != 2 {
		t.Fatalf("streak=%d want=2", repo.streaks["u1"].CurrentStreak)
	}
}
