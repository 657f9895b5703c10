package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsAreEmbeddedAndAnnotated(t *testing.T) {
	fsys, err := Migrations()
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for _, entry := range entries {
		body, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		text := string(body)
		if !strings.Contains(text, "-- +goose Up") || !strings.Contains(text, "-- +goose Down") {
			t.Errorf("%s is missing goose annotations", entry.Name())
		}
	}
}

func TestPaymentsOutliveNoRequest(t *testing.T) {
	fsys, err := Migrations()
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	body, err := fs.ReadFile(fsys, "00001_init.sql")
	if err != nil {
		t.Fatalf("read init: %v", err)
	}
	text := string(body)
	start := strings.Index(text, "CREATE TABLE rac_payments")
	if start < 0 {
		t.Fatal("rac_payments not created")
	}
	table := text[start:]
	table = table[:strings.Index(table, ");")]
	if !strings.Contains(table, "REFERENCES rac_service_requests(id) ON DELETE RESTRICT") {
		t.Fatalf("payment rows must block request deletion:\n%s", table)
	}
}
