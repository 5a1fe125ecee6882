package terminology

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "namaste.csv")
	content := "Code,Display,System,Synonyms\n" +
		"NAM001,Madhumeha (Ayurveda),Ayurveda,diabetes;Prameha\n" +
		"NAM002,\"Jwara, acute (Ayurveda)\",Ayurveda,fever\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := ReadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Headers are lower-cased so loaders address columns uniformly.
	if rows[0]["code"] != "NAM001" {
		t.Errorf("header case not normalized: %v", rows[0])
	}
	if rows[1]["display"] != "Jwara, acute (Ayurveda)" {
		t.Errorf("quoted field mangled: %v", rows[1])
	}
}

func TestReadCSVMissingFile(t *testing.T) {
	if _, err := ReadCSV("/nonexistent/file.csv"); err == nil {
		t.Error("expected error for missing file")
	}
}
