package pipeline

import (
	"context"
	"reflect"
	"sort"

	"github.com/vk/etlgrid/internal/ctxlog"
	"github.com/vk/etlgrid/internal/dag"
)

// SizeEstimator reports the approximate in-memory footprint of a value.
type SizeEstimator func(v any) int64

// MemoryConfig controls the memory manager for one run.
type MemoryConfig struct {
	// Enabled turns automatic reclamation on. Size tracking still happens
	// when disabled; only clearing is suppressed.
	Enabled bool
	// LogUsage emits a memory summary when the run completes.
	LogUsage bool
	// Estimator overrides the default size estimator.
	Estimator SizeEstimator
}

// DefaultMemoryConfig returns the configuration used when the caller does
// not supply one: eager reclamation with an end-of-run summary.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{Enabled: true, LogUsage: true}
}

// MemoryManager decides, after each stage transition, which variables no
// remaining stage can read, and releases them. Size tracking is advisory;
// reclamation timing is driven purely by the dependency graph and the
// completed-stage set.
type MemoryManager struct {
	cfg MemoryConfig
}

// NewMemoryManager builds a manager from a configuration, filling in the
// default estimator.
func NewMemoryManager(cfg MemoryConfig) *MemoryManager {
	if cfg.Estimator == nil {
		cfg.Estimator = EstimateSize
	}
	return &MemoryManager{cfg: cfg}
}

// Config returns the manager's configuration.
func (m *MemoryManager) Config() MemoryConfig {
	return m.cfg
}

func (m *MemoryManager) estimate(v any) int64 {
	return m.cfg.Estimator(v)
}

// AutoClearUnusedVariables scans the registry and clears every variable that
// became safe: its producer has completed and every declared consumer has
// completed or been skipped. Variables with no declared consumers are run
// outputs by convention and are only released at context teardown. Cleared
// variables are never re-examined. Returns the cleared names, sorted.
//
// The inverted dependency map is accepted alongside the per-variable
// consumer sets so a caller can cross-check them; the per-variable set is
// authoritative since one producer may feed different consumers through
// different variables.
func (m *MemoryManager) AutoClearUnusedVariables(ctx context.Context, pctx *Context, inverted dag.Map, completed dag.Set) []string {
	if !m.cfg.Enabled {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	var cleared []string
	for _, name := range pctx.order {
		v := pctx.vars[name]
		if !v.set || v.cleared {
			continue
		}
		if len(v.Consumers) == 0 {
			// Run output: held until teardown.
			continue
		}
		if v.Producer != "" && !completed.Has(v.Producer) {
			// Not yet a reclamation candidate.
			continue
		}
		if !completed.ContainsAll(v.Consumers) {
			continue
		}
		if v.Producer != "" {
			if pending, ok := inverted[v.Producer]; ok && !completed.ContainsAll(pending) {
				// Another consumer of this producer's outputs is still
				// pending; hold the variable per the conservative policy.
				continue
			}
		}
		size := v.size
		v.clear()
		cleared = append(cleared, name)
		logger.Debug("Cleared variable.", "variable", name, "bytes_freed", size)
	}

	sort.Strings(cleared)
	return cleared
}

// EstimateSize is the default advisory estimator. Values can report their
// own footprint via an EstimatedSize method; otherwise a shallow
// reflect-based estimate is used.
func EstimateSize(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case interface{ EstimatedSize() int64 }:
		return val.EstimatedSize()
	case string:
		return int64(len(val))
	case []byte:
		return int64(len(val))
	case bool:
		return 1
	case int, int64, uint64, float64:
		return 8
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		if n == 0 {
			return 0
		}
		var total int64
		for i := 0; i < n; i++ {
			total += EstimateSize(rv.Index(i).Interface())
		}
		return total
	case reflect.Map:
		var total int64
		iter := rv.MapRange()
		for iter.Next() {
			total += EstimateSize(iter.Key().Interface())
			total += EstimateSize(iter.Value().Interface())
		}
		return total
	case reflect.Ptr:
		if rv.IsNil() {
			return 0
		}
		return EstimateSize(rv.Elem().Interface())
	default:
		return int64(reflect.TypeOf(v).Size())
	}
}
