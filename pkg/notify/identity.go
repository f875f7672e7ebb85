package notify

import "reflect"

// identityKey identifies a reference by address and type, never by value.
// Two distinct instances that compare equal get distinct keys.
type identityKey struct {
	typ reflect.Type
	ptr uintptr
}

// identityOf returns the identity of v. Only reference kinds have one.
func identityOf(v any) (identityKey, bool) {
	if v == nil {
		return identityKey{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return identityKey{typ: rv.Type(), ptr: rv.Pointer()}, true
	default:
		return identityKey{}, false
	}
}

// Same reports whether a and b are the same instance.
// Values without identity are never the same instance.
func Same(a, b any) bool {
	ka, ok := identityOf(a)
	if !ok {
		return false
	}
	kb, ok := identityOf(b)
	return ok && ka == kb
}
