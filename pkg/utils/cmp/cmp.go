package cmp

type BiPredicator[S, T any] func(a S, b T) bool

func EqEq[T comparable](a, b T) bool {
	return a == b
}

func SliceEq[T comparable](a []T, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for nth, va := range a {
		if va != b[nth] {
			return false
		}
	}
	return true
}

// check 2 slices have equivalent content ignoring ordering.
//
// In other words, this function answers equivalence of two bags (or multi-sets).
//
// args:
//   - a []T, b []T: slices to be compared
//
// return:
//
//	true when slices `a` and `b` are equivalent (as bag).
//	otherwise, false.
func SliceContentEq[T comparable](a, b []T) bool {
	return SliceContentEqWith(a, b, EqEq[T])
}

func SliceContentEqWith[S, T any](a []S, b []T, equiv BiPredicator[S, T]) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}

	bm := make(map[int]*T, len(b))
	for i := range b {
		bm[i] = &b[i]
	}

NEXT_A:
	for i := range a {
		for j, vb := range bm {
			if equiv(a[i], *vb) {
				delete(bm, j)
				continue NEXT_A
			}
		}
		return false
	}

	return len(bm) == 0
}

func MapEq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	return MapEqWith(a, b, EqEq[V])
}

func MapEqWith[K comparable, V any, U any](a map[K]V, b map[K]U, comparator BiPredicator[V, U]) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !comparator(va, vb) {
			return false
		}
	}
	return true
}
