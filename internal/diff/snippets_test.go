package diff

import (
	"strings"
	"testing"
)

func TestSnippetsGrouping(t *testing.T) {
	fileDiff := `diff --git a/x.go b/x.go
+++ b/x.go
@@ -1,3 +1,9 @@
+func handler(w http.ResponseWriter, r *http.Request) {
+	user := r.URL.Query().Get("user")
+	rows := db.Query("SELECT * FROM t WHERE u = " + user)
+	// comment line should break the group
+	process(rows)
+	respond(w, rows)
+	cleanup(rows)
`
	snippets := Snippets(fileDiff)
	if len(snippets) != 2 {
		t.Fatalf("expected 2 snippets, got %d: %v", len(snippets), snippets)
	}
	if !strings.Contains(snippets[0], "db.Query") {
		t.Errorf("first snippet should contain the query line: %q", snippets[0])
	}
	// Snippets must not carry the file path.
	for _, s := range snippets {
		if strings.Contains(s, "x.go") {
			t.Errorf("snippet leaked file path: %q", s)
		}
	}
}

func TestSnippetsSkipTrivia(t *testing.T) {
	fileDiff := `+++ b/y.go
+// only a comment
+}
+{
+
`
	if got := Snippets(fileDiff); len(got) != 0 {
		t.Errorf("expected no snippets for trivia-only diff, got %v", got)
	}
}

func TestSnippetsCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("+++ b/big.go\n")
	for i := 0; i < 120; i++ {
		sb.WriteString("+\tvalue := compute(input)\n")
	}
	snippets := Snippets(sb.String())
	if len(snippets) > maxSnippetsPerFile {
		t.Errorf("snippet cap exceeded: %d", len(snippets))
	}
}

func TestBatchSnippetsLimit(t *testing.T) {
	fd := "+++ b/a.go\n+alpha := one()\n+beta := two()\n+gamma := three()\n"
	got := BatchSnippets([]string{fd, fd, fd, fd}, 3)
	if len(got) != 3 {
		t.Errorf("expected 3 snippets with limit, got %d", len(got))
	}
}
