package request

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestMarshal_PreservesFieldOrder(t *testing.T) {
	r := New(
		Field{"dataset", "tigge"},
		Field{"date", "20071001"},
		Field{"area", []string{"70", "-130", "30", "-60"}},
		Field{"target", "data.grib"},
	)

	got, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"dataset":"tigge","date":"20071001","area":["70","-130","30","-60"],"target":"data.grib"}`
	if string(got) != want {
		t.Errorf("got %s\nwant %s", got, want)
	}
}

func TestSet_ReplacesInPlace(t *testing.T) {
	r := New(Field{"a", 1}, Field{"b", 2})
	r.Set("a", 9)

	got, _ := json.Marshal(r)
	if string(got) != `{"a":9,"b":2}` {
		t.Errorf("expected in-place replace, got %s", got)
	}
	if r.Get("a") != "9" {
		t.Errorf("Get after Set = %q", r.Get("a"))
	}
}

func TestDelete(t *testing.T) {
	r := New(Field{"a", 1}, Field{"b", 2})
	r.Delete("a")
	if r.Len() != 1 || r.Get("a") != "" {
		t.Errorf("expected a removed, got %v", r.Fields())
	}
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.json")
	content := `{"dataset": "tigge", "target": "data.grib", "step": "24"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Get("dataset") != "tigge" || r.Get("target") != "data.grib" || r.Get("step") != "24" {
		t.Errorf("unexpected fields %v", r.Fields())
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.yaml")
	content := "dataset: tigge\ntarget: data.grib\ntime: \"00\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Get("dataset") != "tigge" || r.Get("time") != "00" {
		t.Errorf("unexpected fields %v", r.Fields())
	}
}

func TestLoadFile_UnknownExtension(t *testing.T) {
	if _, err := LoadFile("req.ini"); err == nil {
		t.Fatal("expected an error for unsupported extension")
	}
}
