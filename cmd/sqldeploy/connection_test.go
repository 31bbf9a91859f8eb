package main

import (
	"crypto/sha256"
	"encoding/hex"
	"reflect"
	"testing"
)

func TestDefaultPreprocessorSplitsOnStandaloneGo(t *testing.T) {
	sql := "CREATE TABLE Foo (Id int)\nGO\nINSERT INTO Foo VALUES (1)\n"
	batches, err := defaultPreprocessor(sql)
	if err != nil {
		t.Fatalf("defaultPreprocessor: %v", err)
	}
	want := []string{"CREATE TABLE Foo (Id int)", "INSERT INTO Foo VALUES (1)\n"}
	if !reflect.DeepEqual(batches, want) {
		t.Errorf("batches = %q, want %q", batches, want)
	}
}

func TestDefaultPreprocessorIgnoresGoSubstring(t *testing.T) {
	sql := "SELECT 'GOING' AS x\n"
	batches, err := defaultPreprocessor(sql)
	if err != nil {
		t.Fatalf("defaultPreprocessor: %v", err)
	}
	if len(batches) != 1 || batches[0] != sql {
		t.Errorf("batches = %q, want single unsplit batch", batches)
	}
}

func TestDefaultPreprocessorCaseInsensitiveGo(t *testing.T) {
	sql := "SELECT 1\ngo\nSELECT 2\n"
	batches, err := defaultPreprocessor(sql)
	if err != nil {
		t.Fatalf("defaultPreprocessor: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("batches = %q, want 2", batches)
	}
}

func TestDefaultHasherMatchesSha256Hex(t *testing.T) {
	sum := sha256.Sum256([]byte("SELECT 1"))
	want := hex.EncodeToString(sum[:])
	if got := defaultHasher("SELECT 1"); got != want {
		t.Errorf("defaultHasher = %q, want %q", got, want)
	}
}

func TestDefaultHasherDiffersOnContentChange(t *testing.T) {
	if defaultHasher("SELECT 1") == defaultHasher("SELECT 2") {
		t.Error("expected different content to hash differently")
	}
}
