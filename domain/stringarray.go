package domain

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringArray is a text list (tag sets, media references) stored as a Postgres text[] column.
// Other dialects (the sqlite test harness) fall back to a text column
// holding the pq array literal.
type StringArray []string

func (t StringArray) Value() (driver.Value, error) {
	return pq.StringArray(t).Value()
}

func (t *StringArray) Scan(src any) error {
	return (*pq.StringArray)(t).Scan(src)
}

func (StringArray) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Union returns t with extra appended, deduplicated, preserving first-seen order.
func (t StringArray) Union(extra []string) StringArray {
	seen := make(map[string]struct{}, len(t)+len(extra))
	merged := make(StringArray, 0, len(t)+len(extra))
	for _, tag := range t {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		merged = append(merged, tag)
	}
	for _, tag := range extra {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		merged = append(merged, tag)
	}
	return merged
}

// Difference returns t without any of the given tags.
func (t StringArray) Difference(remove []string) StringArray {
	drop := make(map[string]struct{}, len(remove))
	for _, tag := range remove {
		drop[tag] = struct{}{}
	}
	kept := make(StringArray, 0, len(t))
	for _, tag := range t {
		if _, ok := drop[tag]; ok {
			continue
		}
		kept = append(kept, tag)
	}
	return kept
}
