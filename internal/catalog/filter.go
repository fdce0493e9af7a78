package catalog

import (
	"fmt"
	"strings"
)

type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) sql() string {
	return strings.Join(w.conds, " AND ")
}

func serviceWhere(f ServiceFilter) (string, []any) {
	w := &whereBuilder{conds: []string{"is_active"}}
	if f.CategoryID != "" {
		w.conds = append(w.conds, "category_id = "+w.arg(f.CategoryID))
	}
	if f.ServiceType != "" {
		w.conds = append(w.conds, "service_type = "+w.arg(string(f.ServiceType)))
	}
	return w.sql(), w.args
}

// partWhere matches brand, model and year against the same compatibility
// entry. An entry without yearFrom or yearTo is open on that side.
func partWhere(f PartFilter) (string, []any) {
	w := &whereBuilder{conds: []string{"is_active"}}
	if f.CategoryID != "" {
		w.conds = append(w.conds, "category_id = "+w.arg(f.CategoryID))
	}

	var elem []string
	if f.Brand != "" {
		elem = append(elem, "lower(c->>'brand') = lower("+w.arg(f.Brand)+")")
	}
	if f.Model != "" {
		elem = append(elem, "EXISTS (SELECT 1 FROM jsonb_array_elements_text(c->'models') m WHERE lower(m) = lower("+w.arg(f.Model)+"))")
	}
	if f.Year > 0 {
		y := w.arg(f.Year)
		elem = append(elem,
			"(c->'yearFrom' IS NULL OR (c->>'yearFrom')::int <= "+y+")",
			"(c->'yearTo' IS NULL OR (c->>'yearTo')::int >= "+y+")",
		)
	}
	if len(elem) > 0 {
		w.conds = append(w.conds, "EXISTS (SELECT 1 FROM jsonb_array_elements(compatibility) c WHERE "+strings.Join(elem, " AND ")+")")
	}
	return w.sql(), w.args
}
