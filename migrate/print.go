package migrate

import (
	"fmt"
	"io"
	"strings"
)

// ExcerptLength is the SQL excerpt width in Print output
const ExcerptLength = 72

// Print writes pending migrations in execution order
func Print(w io.Writer, defs []Definition) error {
	if len(defs) == 0 {
		_, err := fmt.Fprintln(w, "No pending migrations")
		return err
	}
	for idx, def := range defs {
		_, err := fmt.Fprintf(w, "%3d. %s [%s] %s\n     %s\n", idx+1, def.Name, def.Group, def.Source, Excerpt(def.Up, ExcerptLength))
		if err != nil {
			return err
		}
	}
	return nil
}

// Excerpt collapses whitespace in query and truncates it to length runes
func Excerpt(query string, length int) string {
	query = strings.Join(strings.Fields(query), " ")
	runes := []rune(query)
	if len(runes) <= length {
		return query
	}
	return string(runes[:length-3]) + "..."
}
