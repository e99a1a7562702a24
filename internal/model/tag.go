package model

import "strings"

// Tag is a normalised label. Tags are global: the name is the key, and two
// tasks using the same name share one row.
type Tag struct {
	Name string `json:"name"`
}

// NormalizeTagName trims surrounding whitespace and lower-cases a raw tag.
// Every write path and every tag lookup goes through this function.
func NormalizeTagName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeTagNames normalises a list of raw tags, drops the ones that end up
// empty, and collapses duplicates. First occurrence wins the position.
//
//	NormalizeTagNames([]string{"Quest", " quest ", "", "QUEST", "ni"}) → ["quest", "ni"]
func NormalizeTagNames(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	names := make([]string, 0, len(raw))
	for _, r := range raw {
		name := NormalizeTagName(r)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// ParseTagList splits the comma-separated text of the tag form field.
// The pieces are returned raw; NormalizeTagNames cleans them up.
func ParseTagList(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Split(text, ",")
}
