package echoapi

import (
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/aula/core"
)

const orderingParam = "ordering"

// sortable fields per listing, by their JSON names
var (
	studentOrderFields = []string{"name", "username", "created_at", "last_login"}
	userOrderFields    = []string{"name", "username", "email", "created_at", "last_login"}
)

// bindOrdering reads ?ordering=name,-created_at. A leading "-" sorts descending.
// Fields missing from allowed are dropped, as are repeats of a field.
func bindOrdering(ctx echo.Context, allowed []string) []core.DBOrdering {
	raw := strings.TrimSpace(ctx.QueryParam(orderingParam))
	if raw == "" {
		return nil
	}

	var orderings []core.DBOrdering
	seen := make(map[string]bool, len(allowed))
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if seen[field] || !slices.Contains(allowed, field) {
			continue
		}
		seen[field] = true
		orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}
