// Package pipeline sanitizes handler results before they leave the process.
//
// The Adapter resolves the caller's role, runs the sanitize engine on
// successful results and contains any failure of the engine: a caller gets
// either a sanitized payload or an empty one, never the raw value.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/placementcell/campus-api/internal/metrics"
	"github.com/placementcell/campus-api/internal/middleware"
	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/sanitize"
)

// RoleResolver returns the authenticated caller's role. ok is false for
// anonymous requests.
type RoleResolver func(ctx context.Context) (role policy.Role, ok bool)

// Adapter is the per-request entry point to the sanitize engine. It is safe
// for concurrent use.
type Adapter struct {
	engine  *sanitize.Engine
	resolve RoleResolver
	logger  *slog.Logger
}

// New creates an Adapter. A nil resolver treats every caller as anonymous.
// If logger is nil, slog.Default() will be used.
func New(engine *sanitize.Engine, resolve RoleResolver, logger *slog.Logger) *Adapter {
	if resolve == nil {
		resolve = func(context.Context) (policy.Role, bool) { return "", false }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{engine: engine, resolve: resolve, logger: logger}
}

// Apply returns the sanitized form of result. Nil results and results that
// are not maps, structs or sequences are returned unchanged. Composite results
// come back as a sanitize.Value, which encodes to JSON.
//
// If the engine fails, Apply logs the failure and returns an empty sequence
// for sequence results and an empty object otherwise.
func (a *Adapter) Apply(ctx context.Context, result any) any {
	if result == nil {
		return nil
	}

	out, sanitized := a.guard(ctx, fallbackFor(result), func() (sanitize.Value, bool) {
		v := sanitize.FromAny(result, a.engine.Limits().MaxDepth)
		if !v.IsComposite() {
			// A non-nil pointer may lead back to itself; the converted
			// scalar is safe to encode where the pointer is not.
			if rv := reflect.ValueOf(result); rv.Kind() == reflect.Pointer && !rv.IsNil() {
				return v, true
			}
			return v, false
		}
		return a.sanitize(ctx, v), true
	})
	if !sanitized {
		return result
	}
	return out
}

// SanitizeValue runs an already decoded Value through the engine with the
// same failure containment as Apply.
func (a *Adapter) SanitizeValue(ctx context.Context, v sanitize.Value) sanitize.Value {
	if !v.IsComposite() {
		return v
	}
	out, _ := a.guard(ctx, emptyLike(v), func() (sanitize.Value, bool) {
		return a.sanitize(ctx, v), true
	})
	return out
}

// guard runs fn and substitutes fallback if it panics.
func (a *Adapter) guard(ctx context.Context, fallback sanitize.Value, fn func() (sanitize.Value, bool)) (out sanitize.Value, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			role, _ := a.resolve(ctx)
			a.logger.Error("sanitizer failed, returning empty payload",
				"request_id", middleware.GetRequestID(ctx),
				"role", string(role),
				"panic", fmt.Sprint(rec),
			)
			metrics.RecordSanitizeFailure()
			out, ok = fallback, true
		}
	}()
	return fn()
}

func (a *Adapter) sanitize(ctx context.Context, v sanitize.Value) sanitize.Value {
	start := time.Now()
	out, stats := a.engine.Sanitize(v, a.Role(ctx))
	metrics.RecordSanitizeDuration(time.Since(start).Seconds())

	recordStats(stats)
	if stats.BoundsHit() {
		a.logger.Debug("sanitizer bound hit",
			"request_id", middleware.GetRequestID(ctx),
			"depth_exceeded", stats.DepthExceeded,
			"cycles", stats.Cycles,
			"keys_dropped", stats.KeysDropped,
			"elements_dropped", stats.ElementsDropped,
			"nodes_exceeded", stats.NodesExceeded,
		)
	}
	return out
}

// Role returns nil for the admin bypass set, the caller's role otherwise.
// Anonymous callers get the empty role, which has no conditional masks.
func (a *Adapter) Role(ctx context.Context) *policy.Role {
	role, ok := a.resolve(ctx)
	if !ok {
		role = ""
	}
	if ok && a.engine.Registry().IsAdminBypass(role) {
		return nil
	}
	return &role
}

func recordStats(s sanitize.Stats) {
	metrics.RecordSanitizedFields(metrics.ActionRemoved, s.Removed)
	metrics.RecordSanitizedFields(metrics.ActionMasked, s.Masked)
	metrics.RecordBoundExceeded(metrics.BoundDepth, s.DepthExceeded)
	metrics.RecordBoundExceeded(metrics.BoundKeys, s.KeysDropped)
	metrics.RecordBoundExceeded(metrics.BoundElements, s.ElementsDropped)
	metrics.RecordBoundExceeded(metrics.BoundNodes, s.NodesExceeded)
	metrics.RecordCycles(s.Cycles)
}

func emptyLike(v sanitize.Value) sanitize.Value {
	if v.Kind() == sanitize.KindSequence {
		return sanitize.Seq(sanitize.NewSequence())
	}
	return sanitize.Object(sanitize.NewKeyed(0))
}

// fallbackFor picks the empty payload for a result that failed to sanitize.
func fallbackFor(result any) sanitize.Value {
	if v, ok := result.(sanitize.Value); ok {
		return emptyLike(v)
	}

	rv := reflect.ValueOf(result)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			return sanitize.Seq(sanitize.NewSequence())
		}
	}
	return sanitize.Object(sanitize.NewKeyed(0))
}
