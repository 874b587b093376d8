package reactivedomain

import "reflect"

// TypeName returns the bare (unqualified, pointer-stripped) type name of v.
// It is the key used by apply dispatch tables and the default event registry
// name, so it must stay stable for any type with persisted events.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
