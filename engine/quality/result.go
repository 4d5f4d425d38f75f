package quality

// Value is one named scalar of a metric.
type Value struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Result is a single metric computation, kept with its inputs for auditing.
type Result struct {
	Name   string         `json:"name"`
	Values []Value        `json:"values,omitempty"`
	Inputs map[string]any `json:"inputs,omitempty"`
	Err    error          `json:"-"`
}

// Get returns the named value.
func (r Result) Get(name string) (float64, bool) {
	for _, v := range r.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

// With appends a named value and returns the result.
func (r Result) With(name string, v float64) Result {
	r.Values = append(r.Values, Value{Name: name, Value: v})
	return r
}
