package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvoengpt-sudo/ubm-bot/internal/model"
)

const testBonus = 1.5

// fakeStore mimics the Postgres repository: the events map plays the role
// of the unique constraint on referrals.referred_id, and ApplyReferral is
// atomic under the mutex the way the real one is atomic under a transaction.
type fakeStore struct {
	mu         sync.Mutex
	events     map[int64]int64 // referred -> referrer
	balances   map[int64]float64
	counts     map[int64]int
	referredBy map[int64]int64
	pending    map[int64]int64 // referred -> referrer
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:     make(map[int64]int64),
		balances:   make(map[int64]float64),
		counts:     make(map[int64]int),
		referredBy: make(map[int64]int64),
		pending:    make(map[int64]int64),
	}
}

func (f *fakeStore) ApplyReferral(_ context.Context, referrerID, referredID int64, bonus float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.events[referredID]; exists {
		return false, nil
	}
	f.events[referredID] = referrerID
	if _, bound := f.referredBy[referredID]; !bound {
		f.referredBy[referredID] = referrerID
	}
	f.counts[referrerID]++
	f.balances[referrerID] += bonus
	return true, nil
}

func (f *fakeStore) StagePendingClaim(_ context.Context, referredID, referrerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[referredID] = referrerID
	return nil
}

func (f *fakeStore) TakePendingClaim(_ context.Context, referredID int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	referrerID, ok := f.pending[referredID]
	if !ok {
		return 0, false, nil
	}
	delete(f.pending, referredID)
	return referrerID, true, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	applied [][2]int64
	auto    []int64
}

func (f *fakeNotifier) NotifyReferralApplied(referrerID, referredID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, [2]int64{referrerID, referredID})
}

func (f *fakeNotifier) NotifyAutoCheckCredited(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auto = append(f.auto, userID)
}

func (f *fakeNotifier) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

// fakeMembership drives the gate: member[userID] controls every channel at
// once, err simulates platform failures.
type fakeMembership struct {
	mu     sync.Mutex
	member map[int64]bool
	err    error
	calls  int
}

func (f *fakeMembership) ChatMemberStatus(_ context.Context, _ model.ChannelRef, userID int64) (model.MemberStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return model.MemberStatusUnknown, f.err
	}
	if f.member[userID] {
		return model.MemberStatusMember, nil
	}
	return model.MemberStatusLeft, nil
}

func (f *fakeMembership) setMember(userID int64, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.member[userID] = ok
}

func newTestService(channels []model.ChannelRef) (*ReferralService, *fakeStore, *fakeMembership, *fakeNotifier) {
	store := newFakeStore()
	membership := &fakeMembership{member: make(map[int64]bool)}
	gate := NewSubscriptionGate(membership, channels, time.Second)
	svc := NewReferralService(store, gate, testBonus)
	notifier := &fakeNotifier{}
	svc.SetNotifier(notifier)
	return svc, store, membership, notifier
}

func requiredChannels() []model.ChannelRef {
	return []model.ChannelRef{{Username: "@news"}}
}

func TestAttemptCreditAppliesExactlyOnce(t *testing.T) {
	svc, store, _, notifier := newTestService(nil)
	ctx := context.Background()

	outcome, err := svc.AttemptCredit(ctx, 100, 200)
	require.NoError(t, err)
	require.Equal(t, model.CreditApplied, outcome)

	outcome, err = svc.AttemptCredit(ctx, 100, 200)
	require.NoError(t, err)
	require.Equal(t, model.CreditAlreadyCredited, outcome)

	assert.Equal(t, testBonus, store.balances[100])
	assert.Equal(t, 1, store.counts[100])
	assert.Equal(t, int64(100), store.referredBy[200])
	assert.Equal(t, 1, notifier.appliedCount())
}

func TestAttemptCreditSelfReferralNeverWrites(t *testing.T) {
	svc, store, _, notifier := newTestService(nil)

	outcome, err := svc.AttemptCredit(context.Background(), 100, 100)
	require.NoError(t, err)
	require.Equal(t, model.CreditSelfReferral, outcome)

	assert.Empty(t, store.events)
	assert.Empty(t, store.balances)
	assert.Empty(t, store.counts)
	assert.Zero(t, notifier.appliedCount())
}

func TestAttemptCreditConcurrentSamePair(t *testing.T) {
	svc, store, _, notifier := newTestService(nil)
	ctx := context.Background()

	const n = 64
	outcomes := make(chan model.CreditOutcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.AttemptCredit(ctx, 100, 200)
			assert.NoError(t, err)
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	var applied, already int
	for outcome := range outcomes {
		switch outcome {
		case model.CreditApplied:
			applied++
		case model.CreditAlreadyCredited:
			already++
		}
	}

	assert.Equal(t, 1, applied)
	assert.Equal(t, n-1, already)
	assert.Equal(t, testBonus, store.balances[100])
	assert.Equal(t, 1, store.counts[100])
	assert.Len(t, store.events, 1)
	assert.Equal(t, 1, notifier.appliedCount())
}

func TestHandleIncomingClaimSelfRejected(t *testing.T) {
	svc, store, _, _ := newTestService(nil)

	outcome, err := svc.HandleIncomingClaim(context.Background(), 100, 100)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimRejected, outcome)
	assert.Empty(t, store.events)
	assert.Empty(t, store.pending)
}

func TestHandleIncomingClaimNoGateAppliesNow(t *testing.T) {
	svc, store, _, _ := newTestService(nil)
	ctx := context.Background()

	outcome, err := svc.HandleIncomingClaim(ctx, 100, 200)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimAppliedNow, outcome)

	assert.Equal(t, testBonus, store.balances[100])
	assert.Equal(t, 1, store.counts[100])
	assert.Equal(t, int64(100), store.referredBy[200])
}

func TestHandleIncomingClaimAlreadyDoneIsNeutral(t *testing.T) {
	svc, _, _, _ := newTestService(nil)
	ctx := context.Background()

	_, err := svc.HandleIncomingClaim(ctx, 100, 200)
	require.NoError(t, err)

	outcome, err := svc.HandleIncomingClaim(ctx, 100, 200)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimAlreadyDone, outcome)
}

func TestHandleIncomingClaimBlockedGateDefers(t *testing.T) {
	svc, store, _, _ := newTestService(requiredChannels())
	ctx := context.Background()

	outcome, err := svc.HandleIncomingClaim(ctx, 100, 200)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimDeferred, outcome)

	assert.Empty(t, store.events, "no credit while gate is blocked")
	assert.Equal(t, int64(100), store.pending[200])
}

func TestStagedClaimLastWriteWins(t *testing.T) {
	svc, store, _, _ := newTestService(requiredChannels())
	ctx := context.Background()

	_, err := svc.HandleIncomingClaim(ctx, 100, 200)
	require.NoError(t, err)
	_, err = svc.HandleIncomingClaim(ctx, 300, 200)
	require.NoError(t, err)

	require.Len(t, store.pending, 1)
	assert.Equal(t, int64(300), store.pending[200])
}

func TestResolveClaimStillBlockedKeepsClaim(t *testing.T) {
	svc, store, _, _ := newTestService(requiredChannels())
	ctx := context.Background()

	_, err := svc.HandleIncomingClaim(ctx, 100, 200)
	require.NoError(t, err)

	outcome, applied, err := svc.ResolveClaim(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, model.ResolveStillBlocked, outcome)
	assert.False(t, applied)
	assert.Equal(t, int64(100), store.pending[200], "claim stays staged")
}

func TestResolveClaimConsumesOnce(t *testing.T) {
	svc, store, membership, notifier := newTestService(requiredChannels())
	ctx := context.Background()

	_, err := svc.HandleIncomingClaim(ctx, 100, 200)
	require.NoError(t, err)

	membership.setMember(200, true)

	outcome, applied, err := svc.ResolveClaim(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, model.ResolveCredited, outcome)
	assert.True(t, applied)

	outcome, applied, err = svc.ResolveClaim(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, model.ResolveNothingPending, outcome)
	assert.False(t, applied)

	assert.Equal(t, testBonus, store.balances[100])
	assert.Equal(t, 1, store.counts[100])
	assert.Equal(t, 1, notifier.appliedCount())
}

func TestResolveClaimAlreadyCreditedNotApplied(t *testing.T) {
	svc, store, membership, notifier := newTestService(requiredChannels())
	ctx := context.Background()

	// Credit happened elsewhere, then a stale staged claim is resolved.
	membership.setMember(200, true)
	_, err := svc.AttemptCredit(ctx, 100, 200)
	require.NoError(t, err)
	require.NoError(t, store.StagePendingClaim(ctx, 200, 100))

	outcome, applied, err := svc.ResolveClaim(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, model.ResolveCredited, outcome)
	assert.False(t, applied, "no fresh credit, no celebration")

	assert.Equal(t, testBonus, store.balances[100])
	assert.Equal(t, 1, notifier.appliedCount())
}

func TestDeferredThenResolvedMatchesDirectCredit(t *testing.T) {
	ctx := context.Background()

	// Scenario 1: no gate configured.
	direct, directStore, _, _ := newTestService(nil)
	outcome, err := direct.HandleIncomingClaim(ctx, 100, 200)
	require.NoError(t, err)
	require.Equal(t, model.ClaimAppliedNow, outcome)

	// Scenario 2: gate blocks first, membership confirmed later.
	deferred, deferredStore, membership, _ := newTestService(requiredChannels())
	claim, err := deferred.HandleIncomingClaim(ctx, 100, 200)
	require.NoError(t, err)
	require.Equal(t, model.ClaimDeferred, claim)

	membership.setMember(200, true)
	resolved, applied, err := deferred.ResolveClaim(ctx, 200)
	require.NoError(t, err)
	require.Equal(t, model.ResolveCredited, resolved)
	require.True(t, applied)

	assert.Equal(t, directStore.balances, deferredStore.balances)
	assert.Equal(t, directStore.counts, deferredStore.counts)
	assert.Equal(t, directStore.referredBy, deferredStore.referredBy)
	assert.Empty(t, deferredStore.pending)
}
