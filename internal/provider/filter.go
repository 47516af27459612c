package provider

import (
	"slices"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// FilterType is how a search filter is presented.
type FilterType string

// Filter types.
const (
	FilterCheckbox FilterType = "checkbox"
	FilterEntry    FilterType = "entry"
	FilterSelect   FilterType = "select"
)

// ValueType tells whether a select filter takes one or several options.
type ValueType string

// Value types.
const (
	ValueSingle   ValueType = "single"
	ValueMultiple ValueType = "multiple"
)

// Option is one choice of a select filter.
type Option struct {
	Key     string `json:"key" validate:"required"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// Filter describes one search filter a provider accepts.
type Filter struct {
	Key         string     `json:"key" validate:"required"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Type        FilterType `json:"type" validate:"required,oneof=checkbox entry select"`
	// Default is a bool for checkboxes and a string for entries. Select
	// filters take their defaults from Options.
	Default   any       `json:"default,omitempty"`
	ValueType ValueType `json:"value_type,omitempty" validate:"omitempty,oneof=single multiple"`
	Options   []Option  `json:"options,omitempty" validate:"dive"`
}

// Values are filter values keyed by Filter.Key. Checkboxes hold bool,
// entries and single selects string, multiple selects []string.
type Values map[string]any

// Bool returns a checkbox value.
func (v Values) Bool(key string) bool {
	b, _ := v[key].(bool)
	return b
}

// String returns an entry or single select value.
func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Strings returns a multiple select value.
func (v Values) Strings(key string) []string {
	switch x := v[key].(type) {
	case []string:
		return x
	case string:
		if x == "" {
			return nil
		}
		return []string{x}
	default:
		return nil
	}
}

// Defaults returns the default values of filters.
func Defaults(filters []Filter) Values {
	out := Values{}
	for _, f := range filters {
		switch f.Type {
		case FilterCheckbox:
			b, _ := f.Default.(bool)
			out[f.Key] = b
		case FilterEntry:
			s, _ := f.Default.(string)
			out[f.Key] = s
		case FilterSelect:
			var selected []string
			for _, o := range f.Options {
				if o.Default {
					selected = append(selected, o.Key)
				}
			}
			if f.ValueType == ValueMultiple {
				out[f.Key] = selected
			} else if len(selected) > 0 {
				out[f.Key] = selected[0]
			} else {
				out[f.Key] = ""
			}
		}
	}
	return out
}

// Resolve fills missing values with defaults and rejects unknown keys or
// options.
func Resolve(filters []Filter, given Values) (Values, error) {
	out := Defaults(filters)
	for key, val := range given {
		idx := slices.IndexFunc(filters, func(f Filter) bool { return f.Key == key })
		if idx < 0 {
			return nil, errors.Validationf("unknown filter %q", key)
		}
		f := filters[idx]
		switch f.Type {
		case FilterCheckbox:
			if _, ok := val.(bool); !ok {
				return nil, errors.Validationf("filter %q takes a bool", key)
			}
		case FilterEntry:
			if _, ok := val.(string); !ok {
				return nil, errors.Validationf("filter %q takes a string", key)
			}
		case FilterSelect:
			keys := Values{key: val}.Strings(key)
			if f.ValueType != ValueMultiple && len(keys) > 1 {
				return nil, errors.Validationf("filter %q takes a single option", key)
			}
			for _, k := range keys {
				if !slices.ContainsFunc(f.Options, func(o Option) bool { return o.Key == k }) {
					return nil, errors.Validationf("filter %q has no option %q", key, k)
				}
			}
			if f.ValueType == ValueMultiple {
				val = keys
			} else if len(keys) == 1 {
				val = keys[0]
			}
		}
		out[key] = val
	}
	return out, nil
}
