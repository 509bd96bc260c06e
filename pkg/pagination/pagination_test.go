package pagination

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 20, Offset: 0}},
		{"?page=3&limit=10", Params{Page: 3, Limit: 10, Offset: 20}},
		{"?page=0&limit=0", Params{Page: 1, Limit: 20, Offset: 0}},
		{"?page=-2&limit=500", Params{Page: 1, Limit: 100, Offset: 0}},
		{"?page=abc&limit=xyz", Params{Page: 1, Limit: 20, Offset: 0}},
		{"?search=%20Flight%20Ops%20&page=2", Params{Page: 2, Limit: 20, Offset: 20, Search: "Flight Ops"}},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/api/departments"+tt.query, nil)
		if got := Parse(c); got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

func TestParseTruncatesSearch(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/documents?search="+strings.Repeat("a", 300), nil)
	if got := Parse(c).Search; len(got) != MaxSearchLen {
		t.Fatalf("search length = %d, want %d", len(got), MaxSearchLen)
	}
}
