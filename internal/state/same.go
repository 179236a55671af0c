package state

import "reflect"

// Same reports whether a and b are the same value in the sense used for
// change detection: the same comparable value, or the same underlying
// reference for maps, slices, channels, funcs and pointers.
//
// Values of non-comparable struct or array types are never Same; states
// built from them should be held behind a pointer.
func Same(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}

	if ta.Comparable() {
		// Interface fields holding uncomparable values panic at runtime.
		defer func() {
			if recover() != nil {
				same = false
			}
		}()
		return a == b
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch ta.Kind() {
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	default:
		return false
	}
}
