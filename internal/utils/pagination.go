// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// Page bounds shared by every paginated listing.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ParsePage reads raw page and page_size query values. Missing or malformed
// values take the defaults; explicit values below 1 become 1 and page sizes
// above MaxPageSize are capped.
func ParsePage(pageQ, sizeQ string) (page, pageSize int) {
	page = AtoiDefault(pageQ, DefaultPage)
	pageSize = AtoiDefault(sizeQ, DefaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	return NormalizePage(page, pageSize)
}

// NormalizePage bounds values coming from code rather than a query string:
// page below 1 becomes 1, a non-positive pageSize means DefaultPageSize and
// sizes above MaxPageSize are capped.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Offset is the number of rows before the given 1-based page.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}

// TotalPages is ceil(total / pageSize), or 0 when pageSize is not positive.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
