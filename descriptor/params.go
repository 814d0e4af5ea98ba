package descriptor

// params is an ordered-insertion string->string map. Order of first
// occurrence is preserved across overwrites so Format() is stable (spec
// §4.1: "order of first occurrence preserved for formatting").
//
// params is copy-on-write: every mutating helper on Descriptor clones the
// slice and map before touching them, so a params value reachable from a
// live Descriptor is never mutated in place.
type params struct {
	keys   []string
	values map[string]string
}

func newParams() params {
	return params{values: map[string]string{}}
}

func (p params) clone() params {
	keys := make([]string, len(p.keys))
	copy(keys, p.keys)
	values := make(map[string]string, len(p.values))
	for k, v := range p.values {
		values[k] = v
	}
	return params{keys: keys, values: values}
}

func (p params) get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// set overwrites or appends key, preserving first-occurrence order.
func (p *params) set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

func (p params) equal(o params) bool {
	if len(p.values) != len(o.values) {
		return false
	}
	for k, v := range p.values {
		if ov, ok := o.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
