// Package params parses path, query and body parameters shared by the admin and public
// handlers. Helpers that abort write the standard error envelope and return false.
package params

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/enums"
)

// ID parses a positive integer path parameter, aborting with 400 otherwise.
func ID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// BindJSON decodes the request body into dst, aborting with 400 on malformed JSON.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.BadRequest(c, "Invalid request body")
		return false
	}
	return true
}

// List reads ?search=&limit=&offset=.
func List(c *gin.Context) repositories.ListOptions {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return repositories.ListOptions{
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	}.Normalize()
}

// LogFilter reads ?status=&since=&until=&search=&limit=&offset=. Dates accept RFC 3339 or
// YYYY-MM-DD; a bare until date covers that whole day.
func LogFilter(c *gin.Context) (repositories.EmailLogFilter, error) {
	opts := List(c)
	f := repositories.EmailLogFilter{Search: opts.Search, Limit: opts.Limit, Offset: opts.Offset}

	if s := c.Query("status"); s != "" {
		status, err := enums.ParseEmailStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = &status
	}
	if s := c.Query("since"); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return f, apperr.Invalid("since", "expected RFC 3339 or YYYY-MM-DD")
		}
		f.Since = &t
	}
	if s := c.Query("until"); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return f, apperr.Invalid("until", "expected RFC 3339 or YYYY-MM-DD")
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		f.Until = &t
	}
	return f, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	return t, true, err
}
