package directory

import "github.com/go-ldap/ldap/v3"

// Value is a tagged attribute value: the protocol always returns lists, but
// callers nearly always want the scalar when exactly one value is present.
// Collapsing happens once, here, instead of ad hoc at every call site.
type Value struct {
	values []string
	multi  bool
}

func singleValue(v string) Value {
	return Value{values: []string{v}}
}

func multiValue(vs []string) Value {
	return Value{values: vs, multi: true}
}

// Single returns the scalar form; for multi-valued attributes it returns the
// first value.
func (v Value) Single() string {
	if len(v.values) == 0 {
		return ""
	}
	return v.values[0]
}

func (v Value) Values() []string {
	return v.values
}

func (v Value) IsMulti() bool {
	return v.multi
}

// Entry is a normalized directory entry.
type Entry struct {
	DN    string
	Attrs map[string]Value
}

func (e Entry) Attr(name string) string {
	return e.Attrs[name].Single()
}

func normalizeEntry(e *ldap.Entry) Entry {
	out := Entry{DN: e.DN, Attrs: make(map[string]Value, len(e.Attributes))}
	for _, a := range e.Attributes {
		if len(a.Values) == 1 {
			out.Attrs[a.Name] = singleValue(a.Values[0])
		} else {
			out.Attrs[a.Name] = multiValue(a.Values)
		}
	}
	return out
}
