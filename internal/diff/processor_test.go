package diff

import (
	"testing"

	"code-review-orchestrator/internal/domain"
)

const sampleDiff = `diff --git a/src/db/query.py b/src/db/query.py
index 1111111..2222222 100644
--- a/src/db/query.py
+++ b/src/db/query.py
@@ -10,7 +10,8 @@ def lookup(user_input):
 def lookup(user_input):
-    query = "SELECT * FROM users"
+    query = f"SELECT * FROM users WHERE name = '{user_input}'"
+    cursor.execute(query)
     return cursor.fetchall()
diff --git a/src/new.go b/src/new.go
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/src/new.go
@@ -0,0 +1,3 @@
+package main
+
+func main() {}
diff --git a/src/old.go b/src/old.go
deleted file mode 100644
index 4444444..0000000
--- a/src/old.go
+++ /dev/null
@@ -1,2 +0,0 @@
-package main
-func old() {}
diff --git a/src/before.go b/src/after.go
similarity index 95%
rename from src/before.go
rename to src/after.go
index 5555555..6666666 100644
--- a/src/before.go
+++ b/src/after.go
@@ -1,1 +1,1 @@
-var x = 1
+var x = 2
`

func TestProcess(t *testing.T) {
	processed := Process(sampleDiff)

	if len(processed.Files) != 4 {
		t.Fatalf("expected 4 files, got %d", len(processed.Files))
	}

	byPath := map[string]domain.DiffFile{}
	for _, f := range processed.Files {
		byPath[f.Path] = f
	}

	q := byPath["src/db/query.py"]
	if q.ChangeType != domain.ChangeModified {
		t.Errorf("query.py: expected MODIFIED, got %s", q.ChangeType)
	}
	if q.Added != 2 || q.Deleted != 1 {
		t.Errorf("query.py: expected 2 added / 1 deleted, got %d/%d", q.Added, q.Deleted)
	}

	if byPath["src/new.go"].ChangeType != domain.ChangeAdded {
		t.Errorf("new.go should be ADDED")
	}
	if byPath["src/old.go"].ChangeType != domain.ChangeDeleted {
		t.Errorf("old.go should be DELETED")
	}

	renamed := byPath["src/after.go"]
	if renamed.ChangeType != domain.ChangeRenamed {
		t.Errorf("after.go should be RENAMED, got %s", renamed.ChangeType)
	}
	if renamed.OldPath != "src/before.go" {
		t.Errorf("expected old path src/before.go, got %q", renamed.OldPath)
	}

	if processed.TotalAdded != 6 {
		t.Errorf("expected 6 added lines total, got %d", processed.TotalAdded)
	}
	if processed.TotalDeleted != 4 {
		t.Errorf("expected 4 deleted lines total, got %d", processed.TotalDeleted)
	}
}

func TestProcessEmpty(t *testing.T) {
	processed := Process("")
	if len(processed.Files) != 0 {
		t.Errorf("expected no files for empty diff")
	}
}

func TestFileLookup(t *testing.T) {
	processed := Process(sampleDiff)
	if processed.File("src/new.go") == nil {
		t.Error("expected lookup hit for src/new.go")
	}
	if processed.File("nope.go") != nil {
		t.Error("expected lookup miss for nope.go")
	}
}
