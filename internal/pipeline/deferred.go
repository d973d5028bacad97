package pipeline

// DeferredKind tags the variants of a Deferred value.
type DeferredKind int

const (
	// DeferredUnset is the zero value; Resolve fails on it.
	DeferredUnset DeferredKind = iota
	// DeferredConstant wraps a plain value.
	DeferredConstant
	// DeferredNullary wraps a zero-argument producer invoked at resolution.
	DeferredNullary
	// DeferredStageBound wraps a producer that needs the owning stage.
	DeferredStageBound
)

// Deferred is a value that may be supplied directly or computed lazily at
// its evaluation site, optionally from the owning stage. The variant is
// declared explicitly by the constructor used; there is no arity sniffing.
type Deferred[T any] struct {
	kind       DeferredKind
	value      T
	nullary    func() T
	stageBound func(*Stage) T
}

// Constant returns a deferred wrapping an already-known value.
func Constant[T any](v T) Deferred[T] {
	return Deferred[T]{kind: DeferredConstant, value: v}
}

// Producer returns a deferred that calls fn once when resolved.
func Producer[T any](fn func() T) Deferred[T] {
	return Deferred[T]{kind: DeferredNullary, nullary: fn}
}

// BoundProducer returns a deferred that calls fn with the owning stage when
// resolved. Resolving it without a stage is a configuration error.
func BoundProducer[T any](fn func(*Stage) T) Deferred[T] {
	return Deferred[T]{kind: DeferredStageBound, stageBound: fn}
}

// Kind returns the declared variant.
func (d Deferred[T]) Kind() DeferredKind {
	return d.kind
}

// IsSet reports whether the deferred holds any variant at all.
func (d Deferred[T]) IsSet() bool {
	return d.kind != DeferredUnset
}

// Resolve produces the value. Each evaluation site calls Resolve exactly
// once and caches the result itself.
func (d Deferred[T]) Resolve(stage *Stage) (T, error) {
	var zero T
	switch d.kind {
	case DeferredConstant:
		return d.value, nil
	case DeferredNullary:
		return d.nullary(), nil
	case DeferredStageBound:
		if stage == nil {
			return zero, configErrorf("cannot resolve stage-bound deferred value: no stage is bound")
		}
		return d.stageBound(stage), nil
	default:
		return zero, configErrorf("cannot resolve unset deferred value")
	}
}
