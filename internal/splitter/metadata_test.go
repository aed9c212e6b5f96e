package splitter

import (
	"strings"
	"testing"
)

func TestExtractSignature(t *testing.T) {
	cases := map[string]string{
		"func Charge(amount float64) (float64, error) {\n\treturn 0, nil\n}": "func Charge(amount float64) (float64, error)",
		"def find(self, user_id):\n    return None":                          "def find(self, user_id)",
		"// leading comment\nclass Foo extends Bar {\n}":                     "class Foo extends Bar",
	}
	for in, want := range cases {
		if got := extractSignature(in); got != want {
			t.Errorf("extractSignature(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractDocstring(t *testing.T) {
	py := "def f():\n    \"\"\"Does a thing.\"\"\"\n    pass"
	if got := extractDocstring(py); got != "Does a thing." {
		t.Errorf("python docstring = %q", got)
	}

	jsdoc := "/** Renders a widget. */\nfunction render() {}"
	if got := extractDocstring(jsdoc); !strings.Contains(got, "Renders a widget") {
		t.Errorf("jsdoc = %q", got)
	}

	rustdoc := "/// Parses input.\n/// Returns an error on failure.\nfn parse() {}"
	got := extractDocstring(rustdoc)
	if !strings.Contains(got, "Parses input.") || !strings.Contains(got, "Returns an error") {
		t.Errorf("rustdoc = %q", got)
	}
}

func TestExtractInheritance(t *testing.T) {
	ext, impl := extractInheritance("class Admin(User, Auditable):\n    pass")
	if len(ext) != 2 || ext[0] != "User" || ext[1] != "Auditable" {
		t.Errorf("python extends = %v", ext)
	}
	if len(impl) != 0 {
		t.Errorf("python implements = %v", impl)
	}

	ext, impl = extractInheritance("class Service extends Base implements Runnable, Closeable {\n}")
	if len(ext) != 1 || ext[0] != "Base" {
		t.Errorf("java extends = %v", ext)
	}
	if len(impl) != 2 || impl[0] != "Runnable" || impl[1] != "Closeable" {
		t.Errorf("java implements = %v", impl)
	}
}

func TestExtractImportsCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("import module")
		sb.WriteByte(byte('a' + i%26))
		sb.WriteString(strings.Repeat("x", i/26))
		sb.WriteString("\n")
	}
	imports := extractImports(sb.String())
	if len(imports) > maxImportsPerFile {
		t.Errorf("imports cap exceeded: %d", len(imports))
	}
}

func TestExtractNames(t *testing.T) {
	src := "func Alpha() {}\ntype Beta struct {}\nclass Gamma {}\ndef delta():"
	names := extractNames(src)
	joined := strings.Join(names, ",")
	for _, want := range []string{"Alpha", "Beta", "Gamma", "delta"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing name %s in %v", want, names)
		}
	}
}

func TestExtractNamespace(t *testing.T) {
	if got := extractNamespace("package payments\n"); got != "payments" {
		t.Errorf("namespace = %q", got)
	}
	if got := extractNamespace("namespace App.Services\n{"); got != "App.Services" {
		t.Errorf("namespace = %q", got)
	}
}
