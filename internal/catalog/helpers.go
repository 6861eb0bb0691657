package catalog

import (
	"encoding/json"
	"strings"
)

// marshalTags stores a tag list as JSON text, matching how the label and
// plan tables hold their list columns.
func marshalTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func unmarshalTags(s string) []string {
	if s == "" || s == "null" {
		return nil
	}
	var tags []string
	_ = json.Unmarshal([]byte(s), &tags)
	return tags
}

// skipExtensionClause builds a SQL fragment excluding paths whose lowercased
// suffix matches any of exts. Extensions are plain suffixes (".jpg"), not
// patterns, so LIKE with a literal suffix is safe; single quotes are doubled
// defensively since extensions come from user config.
func skipExtensionClause(exts []string) string {
	if len(exts) == 0 {
		return ""
	}
	conds := make([]string, 0, len(exts))
	for _, ext := range exts {
		safe := strings.ReplaceAll(strings.ToLower(ext), "'", "''")
		conds = append(conds, "LOWER(f.path) NOT LIKE '%"+safe+"'")
	}
	return "(" + strings.Join(conds, " AND ") + ")"
}

// matchExtensionClause is the inverse of skipExtensionClause: paths whose
// suffix matches any of exts.
func matchExtensionClause(exts []string) string {
	if len(exts) == 0 {
		return ""
	}
	conds := make([]string, 0, len(exts))
	for _, ext := range exts {
		safe := strings.ReplaceAll(strings.ToLower(ext), "'", "''")
		conds = append(conds, "LOWER(f.path) LIKE '%"+safe+"'")
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}
