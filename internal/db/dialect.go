package db

import (
	"strconv"
	"strings"
)

// Dialect adapts the repository's '?'-placeholder SQL to a driver.
type Dialect string

func DialectFor(driverName string) Dialect {
	return Dialect(driverName)
}

// Rebind rewrites '?' placeholders into the driver's native form.
// Queries must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
