// ABOUTME: SQL helper functions for query construction.
// ABOUTME: Escapes LIKE patterns used by request log path filters.

package store

import "strings"

// escapeSQLLike escapes %, _ and \ so a path prefix matches literally.
// Queries using it must declare ESCAPE '\'.
func escapeSQLLike(pattern string) string {
	// Backslash first, or the escapes below would be doubled.
	pattern = strings.ReplaceAll(pattern, "\\", "\\\\")
	pattern = strings.ReplaceAll(pattern, "%", "\\%")
	pattern = strings.ReplaceAll(pattern, "_", "\\_")
	return pattern
}
