package config

// Diff processing markers
const (
	MarkerTruncated = "\n\n[... TRUNCATED FOR TOKEN LIMIT ...]"
	MarkerOmitted   = " [... context lines omitted ...]"
)

// Path cleaning prefixes
const (
	PathPrefixGitSource      = "a/"
	PathPrefixGitDestination = "b/"
)

// Catch-all group id appended when the planner omits files.
const GroupMissingFiles = "GROUP_MISSING_FILES"

// DefaultExcludePatterns are glob fragments never worth indexing.
var DefaultExcludePatterns = []string{
	".git/", "node_modules/", "vendor/", "dist/", "build/", "target/",
	"__pycache__/", ".venv/", ".idea/", ".vscode/",
	"*.min.js", "*.lock", "*.sum", "*.png", "*.jpg", "*.jpeg", "*.gif",
	"*.pdf", "*.zip", "*.tar", "*.gz", "*.exe", "*.dll", "*.so", "*.dylib",
}

// Candidate base branches probed when the caller does not supply one.
var DefaultBaseBranches = []string{"main", "master", "develop"}

// MigrationPathMarkers identify schema-migration files inside a diff.
var MigrationPathMarkers = []string{
	"/migrations/", "/migrate/", "/flyway/", "/liquibase/", "/alembic/", "/changeset/",
}
