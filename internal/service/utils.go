package service

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is one window of an ordered listing. Page numbers start at 0.
type Page[T any] struct {
	Items    []T
	Total    int
	Page     int
	PageSize int
}

// normalizePage clamps paging input to the supported range.
func normalizePage(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// sanitizeUTF8 removes invalid UTF-8 sequences from string
// This prevents PostgreSQL encoding errors when saving text
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))

	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			// Invalid UTF-8 sequence, skip this byte
			s = s[1:]
			continue
		}
		result.WriteRune(r)
		s = s[size:]
	}

	return result.String()
}
