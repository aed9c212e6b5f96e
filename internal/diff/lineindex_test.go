package diff

import "testing"

const lineIndexDiff = `diff --git a/pkg/auth/auth.go b/pkg/auth/auth.go
index aaa..bbb 100644
--- a/pkg/auth/auth.go
+++ b/pkg/auth/auth.go
@@ -40,6 +40,8 @@ func Check(u *User) error {
 	if u == nil {
 		return ErrNoUser
 	}
+	if u.Token == "" {
+		return ErrNoToken
+	}
 	return validate(u)
`

func TestLineIndexAddedLines(t *testing.T) {
	idx := NewLineIndex(lineIndexDiff)

	if !idx.Touches("pkg/auth/auth.go") {
		t.Fatal("diff should touch pkg/auth/auth.go")
	}
	// suffix / basename matching
	if !idx.Touches("auth.go") {
		t.Error("basename matching should find auth.go")
	}
	if idx.Touches("pkg/other/other.go") {
		t.Error("unrelated file should not match")
	}

	// Hunk starts at new line 40: lines 40-42 are context, 43-45 added.
	if !idx.LineAdded("pkg/auth/auth.go", 43) {
		t.Error("line 43 should be added")
	}
	if !idx.LineAdded("pkg/auth/auth.go", 45) {
		t.Error("line 45 should be added")
	}
	if idx.LineAdded("pkg/auth/auth.go", 40) {
		t.Error("line 40 is context, not added")
	}
	if idx.LineAdded("pkg/auth/auth.go", 46) {
		t.Error("line 46 is context, not added")
	}
}
