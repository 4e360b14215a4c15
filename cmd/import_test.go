package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/capsule/tripoverview/catz"
	"github.com/capsule/tripoverview/ingest"
)

func TestOpenImport(t *testing.T) {
	line := []byte(`{"timestamp": 1688169600, "lat": 45.5, "lon": 5}` + "\n")
	dir := t.TempDir()

	gz, err := catz.CreateGZ(filepath.Join(dir, "track.ndjson.gz"), catz.Truncate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gz.Write(line); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "track.ndjson"), line, 0644); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"track.ndjson.gz", "track.ndjson"} {
		f, err := openImport(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		samples, err := ingest.ReadNDJSON(context.Background(), f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if len(samples) != 1 || samples[0].Latitude != 45.5 {
			t.Errorf("%s: want one sample at lat 45.5, got %+v", name, samples)
		}
	}
}
