package pagination

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1

	// MaxSearchLen caps the free-text filter sent to LIKE queries.
	MaxSearchLen = 100
)

// Params holds validated listing parameters.
type Params struct {
	Page   int
	Limit  int
	Offset int
	Search string
}

// Parse reads page, limit and search from the query string, clamping out-of-range values.
func Parse(c *gin.Context) Params {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	search := strings.TrimSpace(c.Query("search"))
	if len(search) > MaxSearchLen {
		search = search[:MaxSearchLen]
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
		Search: search,
	}
}
