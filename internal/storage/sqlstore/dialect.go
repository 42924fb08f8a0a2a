package sqlstore

import (
	"strings"
)

// Dialect captures what differs between the SQL engines the store runs on.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// IsUniqueViolation reports whether err comes from a unique constraint.
	IsUniqueViolation func(err error) bool
}

// Rebind rewrites the '?' placeholders of query into the dialect's form.
func (d Dialect) Rebind(query string) string {
	if d.Placeholder == nil {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) uniqueViolation(err error) bool {
	return err != nil && d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}
