package utils

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE reported for a unique index conflict.
const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// GenerateToken returns n random bytes from crypto/rand, base64url encoded.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func ToNullString(str string) sql.NullString {
	if str == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: str, Valid: true}
}

// SortOrder is one "field,dir" term of a list request.
type SortOrder struct {
	Field string
	Desc  bool
}

// PageRequest describes a zero-based page of a list query.
type PageRequest struct {
	Page int
	Size int
	Sort []SortOrder
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Offset returns the row offset of the requested page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// ParsePageRequest builds a PageRequest from query string values. Sort terms
// are "field" or "field,dir" where dir is asc or desc. Only fields present in
// allowed are accepted; allowed maps the public field name to a column name.
func ParsePageRequest(page, size string, sorts []string, allowed map[string]string) (PageRequest, error) {
	req := PageRequest{Page: 0, Size: DefaultPageSize}

	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 0 {
			return req, fmt.Errorf("invalid page: %q", page)
		}
		req.Page = n
	}
	if size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n < 1 {
			return req, fmt.Errorf("invalid size: %q", size)
		}
		if n > MaxPageSize {
			n = MaxPageSize
		}
		req.Size = n
	}

	for _, s := range sorts {
		if s == "" {
			continue
		}
		field, dir, _ := strings.Cut(s, ",")
		column, ok := allowed[strings.TrimSpace(field)]
		if !ok {
			return req, fmt.Errorf("invalid sort field: %q", field)
		}
		order := SortOrder{Field: column}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			order.Desc = true
		default:
			return req, fmt.Errorf("invalid sort direction: %q", dir)
		}
		req.Sort = append(req.Sort, order)
	}
	return req, nil
}

// Page is one page of a list result.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
}
