package library

import (
	"database/sql"
	"strings"
)

const defaultListLimit = 50

const maxListLimit = 500

func normalizePagination(limit int, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

func makeSearchPattern(search string) string {
	trimmed := strings.TrimSpace(search)
	if trimmed == "" {
		return ""
	}

	return "%" + strings.ToLower(trimmed) + "%"
}

func cloneArgs(args []any) []any {
	copyArgs := make([]any, len(args))
	copy(copyArgs, args)
	return copyArgs
}

func intPointer(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}

	intValue := int(value.Int64)
	return &intValue
}

func floatPointer(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}

	floatValue := value.Float64
	return &floatValue
}

func stringPointer(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}

	trimmed := strings.TrimSpace(value.String)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}
