package sanitize

import (
	"fmt"

	"github.com/placementcell/campus-api/internal/masking"
	"github.com/placementcell/campus-api/internal/policy"
)

// Sentinels substituted for subtrees that could not be walked.
const (
	SentinelDepth    = "[DEPTH_LIMIT_EXCEEDED]"
	SentinelCircular = "[CIRCULAR_REFERENCE]"
	SentinelSize     = "[SIZE_LIMIT_EXCEEDED]"
)

// Limits bound the work a single Sanitize call may do.
type Limits struct {
	// MaxDepth is the deepest level that is still walked; the root is level 0.
	MaxDepth int
	// MaxKeys is the number of keys kept per keyed map; later keys are dropped.
	MaxKeys int
	// MaxElements is the number of elements kept per sequence; later elements are dropped.
	MaxElements int
	// MaxNodes caps the composites visited per call. A composite referenced from
	// several places is walked once per reference.
	MaxNodes int
}

// DefaultLimits returns the production limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:    50,
		MaxKeys:     10_000,
		MaxElements: 50_000,
		MaxNodes:    1_000_000,
	}
}

// Stats describes what a Sanitize call did.
type Stats struct {
	Removed         int
	Masked          int
	DepthExceeded   int
	Cycles          int
	KeysDropped     int
	ElementsDropped int
	NodesExceeded   int
}

// BoundsHit reports whether any resource bound or cycle guard fired.
func (s Stats) BoundsHit() bool {
	return s.DepthExceeded+s.Cycles+s.KeysDropped+s.ElementsDropped+s.NodesExceeded > 0
}

// Engine applies a policy registry and masking rules to payloads. It holds no
// per-call state and is safe for concurrent use.
type Engine struct {
	registry *policy.Registry
	rules    *masking.RuleSet
	limits   Limits
}

// NewEngine returns an engine. Nil registry or rules select the defaults;
// non-positive limits select the corresponding default.
func NewEngine(registry *policy.Registry, rules *masking.RuleSet, limits Limits) *Engine {
	if registry == nil {
		registry = policy.Default()
	}
	if rules == nil {
		rules = masking.Default()
	}
	def := DefaultLimits()
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = def.MaxDepth
	}
	if limits.MaxKeys <= 0 {
		limits.MaxKeys = def.MaxKeys
	}
	if limits.MaxElements <= 0 {
		limits.MaxElements = def.MaxElements
	}
	if limits.MaxNodes <= 0 {
		limits.MaxNodes = def.MaxNodes
	}
	return &Engine{registry: registry, rules: rules, limits: limits}
}

// Limits returns the engine's bounds.
func (e *Engine) Limits() Limits { return e.limits }

// Registry returns the engine's policy registry.
func (e *Engine) Registry() *policy.Registry { return e.registry }

// Sanitize returns a rebuilt copy of v. AlwaysRemove fields are dropped for
// every caller. When role is nil (admin bypass) nothing is masked; otherwise
// AlwaysMask fields and the role's conditional fields are masked.
//
// The input is never modified. Sanitize panics only on a Value with an
// unknown kind, which cannot be built through this package's constructors.
func (e *Engine) Sanitize(v Value, role *policy.Role) (Value, Stats) {
	w := walker{
		engine:  e,
		role:    role,
		visited: make(map[any]struct{}),
	}
	out := w.walk(v, 0)
	return out, w.stats
}

// walker is the per-call traversal state. It is never shared.
type walker struct {
	engine  *Engine
	role    *policy.Role
	visited map[any]struct{}
	nodes   int
	stats   Stats
}

func (w *walker) walk(v Value, depth int) Value {
	if depth > w.engine.limits.MaxDepth {
		w.stats.DepthExceeded++
		return String(SentinelDepth)
	}

	switch v.kind {
	case KindNull, KindBool, KindNumber, KindString, KindOpaque:
		return v
	case KindSequence:
		if sentinel, ok := w.enter(v.seq); !ok {
			return String(sentinel)
		}
		defer w.leave(v.seq)
		return Seq(w.walkSequence(v.seq, depth))
	case KindKeyed:
		if sentinel, ok := w.enter(v.keyed); !ok {
			return String(sentinel)
		}
		defer w.leave(v.keyed)
		return Object(w.walkKeyed(v.keyed, depth))
	default:
		panic(fmt.Sprintf("sanitize: unknown value kind %s", v.kind))
	}
}

// enter marks a composite visited. On a cycle or an exhausted node budget it
// returns the sentinel to substitute instead.
func (w *walker) enter(node any) (string, bool) {
	if _, seen := w.visited[node]; seen {
		w.stats.Cycles++
		return SentinelCircular, false
	}
	if w.nodes >= w.engine.limits.MaxNodes {
		w.stats.NodesExceeded++
		return SentinelSize, false
	}
	w.nodes++
	w.visited[node] = struct{}{}
	return "", true
}

// leave unmarks a composite so a shared, acyclic reference is walked again
// wherever it appears.
func (w *walker) leave(node any) {
	delete(w.visited, node)
}

func (w *walker) walkSequence(src *Sequence, depth int) *Sequence {
	items := src.items
	if limit := w.engine.limits.MaxElements; len(items) > limit {
		w.stats.ElementsDropped += len(items) - limit
		items = items[:limit]
	}

	out := &Sequence{items: make([]Value, len(items))}
	for i, item := range items {
		out.items[i] = w.walk(item, depth+1)
	}
	return out
}

func (w *walker) walkKeyed(src *Keyed, depth int) *Keyed {
	keys := src.keys
	if limit := w.engine.limits.MaxKeys; len(keys) > limit {
		w.stats.KeysDropped += len(keys) - limit
		keys = keys[:limit]
	}

	reg := w.engine.registry
	out := NewKeyed(len(keys))
	for _, key := range keys {
		val := src.values[key]

		if reg.ShouldRemove(key) {
			w.stats.Removed++
			continue
		}

		if val.IsNull() {
			out.Set(key, val)
			continue
		}

		if val.kind == KindString && w.role != nil && reg.ShouldMask(key, *w.role) {
			w.stats.Masked++
			out.Set(key, String(w.engine.rules.Mask(key, val.s)))
			continue
		}

		if val.IsComposite() {
			out.Set(key, w.walk(val, depth+1))
			continue
		}

		out.Set(key, val)
	}
	return out
}
