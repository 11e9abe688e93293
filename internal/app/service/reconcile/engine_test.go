package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/momobridge/internal/app/service/store"
	"github.com/fatflowers/momobridge/internal/app/service/txcache"
	"github.com/fatflowers/momobridge/internal/models"
	"github.com/fatflowers/momobridge/pkg/types"
)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	mu      sync.Mutex
	rows    map[string]*models.Transaction
	upserts int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*models.Transaction{}}
}

func (m *memStore) Insert(_ context.Context, t *models.Transaction) error {
	return m.Upsert(context.Background(), t)
}

func (m *memStore) Upsert(_ context.Context, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.rows[t.ReferenceID] = t.Clone()
	return nil
}

func (m *memStore) FindByReferenceID(_ context.Context, referenceID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.rows[referenceID]; ok {
		return t.Clone(), nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) FindByExternalID(_ context.Context, externalID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.rows {
		if externalID != "" && t.ExternalID == externalID {
			return t.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) Scan(context.Context, *store.ScanRequest) (*store.ScanResponse, error) {
	return nil, store.ErrDisabled
}

type countingHook struct {
	name  string
	mu    sync.Mutex
	calls []*models.Transaction
	err   error
}

func (h *countingHook) Name() string { return h.name }

func (h *countingHook) Handle(_ context.Context, t *models.Transaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, t)
	return h.err
}

func (h *countingHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

type recordingListener struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (l *recordingListener) Notify(_ context.Context, t *models.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, t.ReferenceID+":"+string(t.Status))
	return l.err
}

func newTestEngine(st store.Store) (*Engine, *txcache.Cache) {
	cache := txcache.New()
	return New(zap.NewNop().Sugar(), cache, st, nil), cache
}

func TestEngine_PendingToSuccessfulFiresHooksOnce(t *testing.T) {
	st := newMemStore()
	e, cache := newTestEngine(st)
	success := &countingHook{name: "success"}
	failure := &countingHook{name: "failure"}
	e.SetSuccessHooks(success)
	e.SetFailureHooks(failure)

	ctx := context.Background()
	cache.Set(&models.Transaction{
		ReferenceID: "ref-1",
		ExternalID:  "ORDER-1",
		Amount:      "250",
		Currency:    "USD",
		Status:      types.TransactionStatusPending,
	})

	merged, err := e.Apply(ctx, &models.Transaction{
		ReferenceID: "ref-1",
		Status:      types.TransactionStatusSuccessful,
	})
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusSuccessful, merged.Status)
	require.Equal(t, "ORDER-1", merged.ExternalID)
	require.NotNil(t, merged.ProcessedAt)
	require.NotNil(t, merged.HooksFiredAt)
	require.Equal(t, 1, success.count())
	require.Equal(t, 0, failure.count())

	// Duplicate delivery of the same terminal status must not refire hooks.
	again, err := e.Apply(ctx, &models.Transaction{
		ReferenceID: "ref-1",
		Status:      types.TransactionStatusSuccessful,
	})
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusSuccessful, again.Status)
	require.Equal(t, 1, success.count())

	stored, err := st.FindByReferenceID(ctx, "ref-1")
	require.NoError(t, err)
	require.NotNil(t, stored.HooksFiredAt)
}

func TestEngine_TerminalStatusNeverRegresses(t *testing.T) {
	st := newMemStore()
	e, cache := newTestEngine(st)
	e.SetSuccessHooks()
	e.SetFailureHooks()

	ctx := context.Background()
	cache.Set(&models.Transaction{ReferenceID: "ref-1", Status: types.TransactionStatusSuccessful})

	merged, err := e.Apply(ctx, &models.Transaction{
		ReferenceID: "ref-1",
		Status:      types.TransactionStatusPending,
	})
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusSuccessful, merged.Status)

	merged, err = e.Apply(ctx, &models.Transaction{
		ReferenceID: "ref-1",
		Status:      types.TransactionStatusFailed,
	})
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusSuccessful, merged.Status)
}

func TestEngine_FailedDefaultsReasonAndFiresFailureHooks(t *testing.T) {
	st := newMemStore()
	e, cache := newTestEngine(st)
	success := &countingHook{name: "success"}
	failure := &countingHook{name: "failure"}
	e.SetSuccessHooks(success)
	e.SetFailureHooks(failure)

	ctx := context.Background()
	cache.Set(&models.Transaction{ReferenceID: "ref-1", Status: types.TransactionStatusPending})

	merged, err := e.Apply(ctx, &models.Transaction{
		ReferenceID: "ref-1",
		Status:      types.TransactionStatusFailed,
	})
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusFailed, merged.Status)
	require.NotNil(t, merged.FailureReason)
	require.Equal(t, types.FailureReasonUnknown, *merged.FailureReason)
	require.Equal(t, 1, failure.count())
	require.Equal(t, 0, success.count())
}

func TestEngine_SynthesizesRecordForUntrackedCallback(t *testing.T) {
	st := newMemStore()
	e, cache := newTestEngine(st)
	success := &countingHook{name: "success"}
	e.SetSuccessHooks(success)
	e.SetFailureHooks()

	merged, err := e.Apply(context.Background(), &models.Transaction{
		ReferenceID: "ref-unknown",
		ExternalID:  "ORDER-9",
		Amount:      "10",
		Currency:    "USD",
		Status:      types.TransactionStatusSuccessful,
	})
	require.NoError(t, err)
	require.Equal(t, "ref-unknown", merged.ReferenceID)
	require.Equal(t, types.TransactionStatusSuccessful, merged.Status)
	require.Equal(t, 1, success.count())

	cached, ok := cache.Get("ref-unknown")
	require.True(t, ok)
	require.Equal(t, "ORDER-9", cached.ExternalID)
}

func TestEngine_ResolvesByExternalIDFromStore(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.Upsert(context.Background(), &models.Transaction{
		ReferenceID: "ref-1",
		ExternalID:  "ORDER-1",
		Amount:      "50",
		Status:      types.TransactionStatusPending,
	}))
	e, _ := newTestEngine(st)
	e.SetSuccessHooks()
	e.SetFailureHooks()

	merged, err := e.Apply(context.Background(), &models.Transaction{
		ExternalID: "ORDER-1",
		Status:     types.TransactionStatusSuccessful,
	})
	require.NoError(t, err)
	require.Equal(t, "ref-1", merged.ReferenceID)
	require.Equal(t, "50", merged.Amount)
	require.Equal(t, types.TransactionStatusSuccessful, merged.Status)
}

func TestEngine_UnknownStatusIsCacheOnly(t *testing.T) {
	st := newMemStore()
	e, cache := newTestEngine(st)
	e.SetSuccessHooks()
	e.SetFailureHooks()

	before := st.upserts
	merged, err := e.Apply(context.Background(), &models.Transaction{
		ReferenceID: "ref-1",
		Status:      types.TransactionStatus("HALF_DONE"),
	})
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatus("HALF_DONE"), merged.Status)
	require.Equal(t, before, st.upserts)

	_, ok := cache.Get("ref-1")
	require.True(t, ok)
}

func TestEngine_ApplyRejectsUpdateWithoutIdentifier(t *testing.T) {
	e, _ := newTestEngine(newMemStore())
	_, err := e.Apply(context.Background(), &models.Transaction{Status: types.TransactionStatusPending})
	require.ErrorIs(t, err, ErrNoIdentifier)
}

func TestEngine_ListenerAndHookErrorsAreIsolated(t *testing.T) {
	st := newMemStore()
	e, cache := newTestEngine(st)
	bad := &countingHook{name: "bad", err: errors.New("boom")}
	good := &countingHook{name: "good"}
	e.SetSuccessHooks(bad, good)
	e.SetFailureHooks()

	failing := &recordingListener{err: errors.New("listener down")}
	healthy := &recordingListener{}
	e.RegisterListener(failing)
	e.RegisterListener(healthy)

	cache.Set(&models.Transaction{ReferenceID: "ref-1", Status: types.TransactionStatusPending})

	merged, err := e.Apply(context.Background(), &models.Transaction{
		ReferenceID: "ref-1",
		Status:      types.TransactionStatusSuccessful,
	})
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusSuccessful, merged.Status)
	require.Equal(t, 1, bad.count())
	require.Equal(t, 1, good.count())
	require.Equal(t, []string{"ref-1:SUCCESSFUL"}, healthy.seen)
}

func TestEngine_HandleCallbackRejectsAnonymousPayload(t *testing.T) {
	e, _ := newTestEngine(newMemStore())

	_, err := e.HandleCallback(context.Background(), "", []byte(`{}`))
	require.ErrorIs(t, err, ErrNoIdentifier)
}

func TestEngine_HandleCallbackMergesBodyAndHeader(t *testing.T) {
	st := newMemStore()
	e, cache := newTestEngine(st)
	success := &countingHook{name: "success"}
	e.SetSuccessHooks(success)
	e.SetFailureHooks()

	cache.Set(&models.Transaction{
		ReferenceID: "ref-1",
		ExternalID:  "ORDER-1",
		Status:      types.TransactionStatusPending,
	})

	body := []byte(`{"externalId":"ORDER-1","financialTransactionId":"FT99","status":"SUCCESSFUL","amount":"75","currency":"USD"}`)
	merged, err := e.HandleCallback(context.Background(), "ref-1", body)
	require.NoError(t, err)
	require.Equal(t, "ref-1", merged.ReferenceID)
	require.Equal(t, "FT99", *merged.FinancialTransactionID)
	require.Equal(t, "75", merged.Amount)
	require.NotNil(t, merged.CallbackReceivedAt)
	require.Equal(t, 1, success.count())
}
