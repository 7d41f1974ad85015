package domain

// Optional records whether a field was supplied at all, so a partial update
// can tell "absent" apart from a zero value.
type Optional[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

func FromPtr[T any](p *T) Optional[T] {
	if p == nil {
		return None[T]()
	}

	return Some(*p)
}

func (o Optional[T]) OrElse(fallback T) T {
	if o.Set {
		return o.Value
	}

	return fallback
}
