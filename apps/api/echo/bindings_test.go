package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/aula/core"
)

func Test_bindOrdering(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []core.DBOrdering
	}{
		{name: "none", query: ""},
		{name: "empty", query: "?ordering="},
		{
			name:  "ascending and descending",
			query: "?ordering=name,-created_at",
			want:  []core.DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}},
		},
		{
			name:  "unknown fields dropped",
			query: "?ordering=-pin_hash,%20username%20,email",
			want:  []core.DBOrdering{{Field: "username", Ascending: true}},
		},
		{
			name:  "first of a repeated field wins",
			query: "?ordering=-last_login,last_login",
			want:  []core.DBOrdering{{Field: "last_login"}},
		},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/students"+tt.query, nil), httptest.NewRecorder())
			assert.Equal(t, tt.want, bindOrdering(ctx, studentOrderFields))
		})
	}
}
