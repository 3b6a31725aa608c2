package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		pred Forbidden
		in   string
		want bool
	}{
		{InternalImportForbidden, "plantcore/internal/core", true},
		{InternalImportForbidden, "plantcore/pkg/domain", false},
		{AdapterImportForbidden, "plantcore/internal/adapters/httpapi", true},
		{AdapterImportForbidden, "plantcore/internal/bus", true},
		{AdapterImportForbidden, "plantcore/internal/blob", false},
		{InfraImportForbidden, "plantcore/internal/infra/blob/s3", true},
		{InfraImportForbidden, "plantcore/internal/blob", false},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Fatalf("predicate(%q)=%v want %v", c.in, got, c.want)
		}
	}
	combined := AnyOf(AdapterImportForbidden, InfraImportForbidden)
	if !combined("plantcore/internal/infra/persistence/memory") || combined("plantcore/internal/seed") {
		t.Fatalf("AnyOf combined predicates incorrectly")
	}
}

type recordingTB struct {
	testing.TB
	msg string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatalf(format string, args ...any) {
	r.msg = format
}

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.go", "package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}\n")
	writeFile(t, dir, "bad_test.go", "package tmp\nimport _ \"plantcore/internal/core\"\n")
	AssertNoDirectImports(t, dir, InternalImportForbidden, "tests are ignored")

	writeFile(t, dir, "bad.go", "package tmp\nimport _ \"plantcore/internal/bus\"\n")
	rec := &recordingTB{TB: t}
	AssertNoDirectImports(rec, dir, AdapterImportForbidden, "bus")
	if !strings.Contains(rec.msg, "forbidden direct imports") {
		t.Fatalf("expected violation, got %q", rec.msg)
	}
}

func TestDomainHasNoInternalDependencies(t *testing.T) {
	AssertNoTransitiveDependency(t, "plantcore/pkg/domain", InternalImportForbidden, "domain is the innermost layer")
}
