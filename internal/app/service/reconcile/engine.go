package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/momobridge/internal/app/service/callbacklog"
	"github.com/fatflowers/momobridge/internal/app/service/store"
	"github.com/fatflowers/momobridge/internal/app/service/txcache"
	"github.com/fatflowers/momobridge/internal/models"
	"github.com/fatflowers/momobridge/pkg/logctx"
	"github.com/fatflowers/momobridge/pkg/metrics"
	"github.com/fatflowers/momobridge/pkg/types"
)

// Engine merges callback payloads, polled status and cache/store state into
// one authoritative record per reference id, applies status-specific side
// effects at most once per terminal transition, and persists the result.
type Engine struct {
	log   *zap.SugaredLogger
	cache *txcache.Cache
	store store.Store
	cblog *callbacklog.Service

	successHooks []Hook
	failureHooks []Hook

	mu        sync.RWMutex
	listeners []Listener
}

func New(log *zap.SugaredLogger, cache *txcache.Cache, st store.Store, cblog *callbacklog.Service) *Engine {
	return &Engine{
		log:          log,
		cache:        cache,
		store:        st,
		cblog:        cblog,
		successHooks: defaultSuccessHooks(log),
		failureHooks: defaultFailureHooks(log),
	}
}

// RegisterListener adds an in-process observer of merged records.
func (e *Engine) RegisterListener(l Listener) {
	if l == nil {
		return
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

// SetSuccessHooks replaces the ordered success side-effect chain.
func (e *Engine) SetSuccessHooks(hooks ...Hook) { e.successHooks = hooks }

// SetFailureHooks replaces the ordered failure side-effect chain.
func (e *Engine) SetFailureHooks(hooks ...Hook) { e.failureHooks = hooks }

// HandleCallback is the webhook entry point: parse, audit-log, merge.
// Returns ErrNoIdentifier for the one caller-facing validation failure;
// every other internal failure is swallowed into the returned record so the
// HTTP surface can keep answering 200.
func (e *Engine) HandleCallback(ctx context.Context, headerReferenceID string, body []byte) (*models.Transaction, error) {
	receivedAt := time.Now()
	upd, err := ParseCallback(headerReferenceID, body, receivedAt)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	traceID, _ := ctx.Value("traceID").(string)
	e.cblog.Save(ctx, &models.CallbackLog{
		TraceID:     traceID,
		ReferenceID: upd.ReferenceID,
		ExternalID:  upd.ExternalID,
		ReceivedAt:  receivedAt,
		Payload:     datatypes.JSON(body),
		Status:      models.CallbackLogStatusReceived,
	})

	merged, err := e.Apply(ctx, upd)

	resMap := map[string]any{"transaction": merged}
	logStatus := models.CallbackLogStatusHandled
	if err != nil {
		resMap["error"] = err.Error()
		logStatus = models.CallbackLogStatusHandleFailed
		metrics.CallbacksTotal.WithLabelValues("failed").Inc()
	} else {
		metrics.CallbacksTotal.WithLabelValues("handled").Inc()
	}
	resBytes, _ := json.Marshal(resMap)
	e.cblog.Save(ctx, &models.CallbackLog{
		TraceID:     traceID,
		ReferenceID: upd.ReferenceID,
		ExternalID:  upd.ExternalID,
		ReceivedAt:  time.Now(),
		Payload:     datatypes.JSON(body),
		Result:      lo.ToPtr(datatypes.JSON(resBytes)),
		Status:      logStatus,
	})

	return merged, err
}

// Apply runs the record lookup/merge protocol for one inbound update and
// dispatches the per-status handler.
func (e *Engine) Apply(ctx context.Context, in *models.Transaction) (*models.Transaction, error) {
	resolved := resolveIdentifier(in)
	if resolved == "" {
		return nil, ErrNoIdentifier
	}
	log := logctx.FromCtx(ctx, e.log)

	existing := e.lookup(ctx, in, resolved)
	if existing == nil {
		// Callback for a transaction we do not track locally, e.g. after a
		// process restart. Synthesize a minimal record so the outcome is not
		// lost.
		existing = &models.Transaction{
			ReferenceID: lo.Ternary(in.ReferenceID != "", in.ReferenceID, resolved),
			ExternalID:  in.ExternalID,
			Status:      types.TransactionStatusPending,
		}
		log.Infow("synthesized record for untracked transaction", "reference_id", existing.ReferenceID)
	}

	// Terminal guard: a stored terminal status is never changed by a later
	// update. Duplicate deliveries of the same terminal status fall through
	// to refresh audit fields only.
	if existing.IsTerminal() && in.Status != existing.Status {
		log.Warnw("ignoring update against terminal record",
			"reference_id", existing.ReferenceID,
			"stored_status", existing.Status,
			"inbound_status", in.Status,
		)
		return existing, nil
	}

	merged := existing.Clone()
	merged.ApplyUpdate(in)

	switch merged.Status {
	case types.TransactionStatusSuccessful:
		e.handleTerminal(ctx, merged, e.successHooks)
	case types.TransactionStatusFailed:
		if merged.FailureReason == nil {
			merged.FailureReason = lo.ToPtr(types.FailureReasonUnknown)
		}
		e.handleTerminal(ctx, merged, e.failureHooks)
	case types.TransactionStatusPending, types.TransactionStatusCreated:
		e.persist(ctx, merged)
		e.cache.Set(merged)
		e.notifyListeners(ctx, merged)
	default:
		// Defensive fallback, not a designed state: keep it visible in the
		// cache but do not persist or run side effects.
		log.Warnw("unrecognized transaction status, cache-only update",
			"reference_id", merged.ReferenceID,
			"status", merged.Status,
		)
		e.cache.Set(merged)
	}

	return merged, nil
}

// handleTerminal persists and caches a terminal record and fires its hook
// chain at most once per reference id, guarded by the persisted
// hooks_fired_at marker.
func (e *Engine) handleTerminal(ctx context.Context, merged *models.Transaction, hooks []Hook) {
	now := time.Now()
	if merged.ProcessedAt == nil {
		merged.ProcessedAt = &now
	}
	fire := merged.HooksFiredAt == nil
	if fire {
		merged.HooksFiredAt = &now
		metrics.TransitionsTotal.WithLabelValues(string(merged.Status)).Inc()
	}

	e.persist(ctx, merged)
	e.cache.Set(merged)
	e.notifyListeners(ctx, merged)
	if fire {
		e.runHooks(ctx, hooks, merged)
	}
}

// persist upserts by reference id. Store failures are logged and swallowed:
// the in-memory path is sufficient for answering the caller.
func (e *Engine) persist(ctx context.Context, txn *models.Transaction) {
	if err := e.store.Upsert(ctx, txn); err != nil && !errors.Is(err, store.ErrDisabled) {
		logctx.FromCtx(ctx, e.log).Errorw("failed to persist transaction",
			"reference_id", txn.ReferenceID,
			"error", err.Error(),
		)
	}
}

func (e *Engine) notifyListeners(ctx context.Context, txn *models.Transaction) {
	e.mu.RLock()
	listeners := e.listeners
	e.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Errorw("listener panicked", "reference_id", txn.ReferenceID, "panic", fmt.Sprint(r))
				}
			}()
			if err := l.Notify(ctx, txn); err != nil {
				e.log.Errorw("listener failed", "reference_id", txn.ReferenceID, "error", err.Error())
			}
		}()
	}
}

func (e *Engine) runHooks(ctx context.Context, hooks []Hook, txn *models.Transaction) {
	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.HooksFailedTotal.WithLabelValues(h.Name()).Inc()
					e.log.Errorw("hook panicked", "hook", h.Name(), "reference_id", txn.ReferenceID, "panic", fmt.Sprint(r))
				}
			}()
			if err := h.Handle(ctx, txn); err != nil {
				metrics.HooksFailedTotal.WithLabelValues(h.Name()).Inc()
				e.log.Errorw("hook failed", "hook", h.Name(), "reference_id", txn.ReferenceID, "error", err.Error())
			}
		}()
	}
}

// lookup walks cache then store, by reference id then external id.
func (e *Engine) lookup(ctx context.Context, in *models.Transaction, resolved string) *models.Transaction {
	if t, ok := e.cache.Get(resolved); ok {
		return t
	}
	if t, ok := e.cache.FindByExternalID(in.ExternalID); ok {
		return t
	}

	if t, err := e.store.FindByReferenceID(ctx, in.ReferenceID); err == nil {
		return t
	} else if !errors.Is(err, store.ErrNotFound) {
		logctx.FromCtx(ctx, e.log).Errorw("store lookup failed", "reference_id", in.ReferenceID, "error", err.Error())
	}
	if t, err := e.store.FindByExternalID(ctx, in.ExternalID); err == nil {
		return t
	} else if !errors.Is(err, store.ErrNotFound) {
		logctx.FromCtx(ctx, e.log).Errorw("store lookup failed", "external_id", in.ExternalID, "error", err.Error())
	}
	return nil
}

func resolveIdentifier(in *models.Transaction) string {
	if in == nil {
		return ""
	}
	if in.ReferenceID != "" {
		return in.ReferenceID
	}
	if in.ExternalID != "" {
		return in.ExternalID
	}
	if in.FinancialTransactionID != nil && *in.FinancialTransactionID != "" {
		return *in.FinancialTransactionID
	}
	return ""
}

// Module exposes the reconciliation engine via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
