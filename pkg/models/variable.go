package models

// Variable is a named string value produced by a step and available to later
// steps via interpolation.
type Variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Variables is the ordered set accumulated across a run. Order matters:
// later entries shadow earlier ones with the same key.
type Variables []Variable

// Lookup returns the value for key, honoring last-write-wins.
func (vs Variables) Lookup(key string) (string, bool) {
	for i := len(vs) - 1; i >= 0; i-- {
		if vs[i].Key == key {
			return vs[i].Value, true
		}
	}

	return "", false
}

// Append returns vs extended with more, leaving vs usable by the caller.
func (vs Variables) Append(more ...Variable) Variables {
	out := make(Variables, 0, len(vs)+len(more))
	out = append(out, vs...)
	out = append(out, more...)

	return out
}
