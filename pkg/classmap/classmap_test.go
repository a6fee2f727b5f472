package classmap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/scenecue/pkg/errorsx"
)

const sample = `index,mid,display_name
0,/m/09x0r,Speech
1,/m/0ytgt,"Child speech, kid speaking"
2,/m/01yrx,Subway
`

func TestParseQuotedNames(t *testing.T) {
	cm, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cm.Len() != 3 {
		t.Fatalf("expected 3 classes, got %d", cm.Len())
	}
	if name, _ := cm.Name(1); name != "Child speech, kid speaking" {
		t.Fatalf("unexpected name %q", name)
	}
	if _, ok := cm.Name(3); ok {
		t.Fatalf("expected out of range lookup to fail")
	}
}

func TestParseRejectsGaps(t *testing.T) {
	_, err := Parse(strings.NewReader("index,mid,display_name\n0,/m/a,A\n2,/m/c,C\n"))
	if err == nil {
		t.Fatalf("expected error for missing index")
	}
	if !errorsx.HasReason(err, errorsx.ReasonClassMap) {
		t.Fatalf("expected classmap reason, got %s", errorsx.Reason(err))
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse(strings.NewReader("index,mid,display_name\n")); err == nil {
		t.Fatalf("expected error for empty map")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.csv")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cm, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if name, _ := cm.Name(2); name != "Subway" {
		t.Fatalf("unexpected name %q", name)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
