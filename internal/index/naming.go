package index

import (
	"fmt"
	"strings"
)

// sanitizeName lowercases a name and replaces every character outside
// [a-z0-9_] with an underscore, keeping collection names portable.
func sanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// AliasName builds the stable alias for a project collection:
// {prefix}_{workspace}__{project}.
func AliasName(prefix, workspace, project string) string {
	return fmt.Sprintf("%s_%s__%s", sanitizeName(prefix), sanitizeName(workspace), sanitizeName(project))
}

// versionedName builds the name of one index generation behind an alias.
func versionedName(alias string, unixMillis int64) string {
	return fmt.Sprintf("%s_v%d", alias, unixMillis)
}

// isVersionOf reports whether collection is a versioned generation of alias.
func isVersionOf(collection, alias string) bool {
	suffix, ok := strings.CutPrefix(collection, alias+"_v")
	if !ok || suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
