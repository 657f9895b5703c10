package repository

import (
	"strings"
	"testing"
)

func TestListFilterConstrainsStatus(t *testing.T) {
	if !strings.Contains(listWhere, "p.status = $2") {
		t.Fatal("list filter must constrain status")
	}
}

func TestOrderByFallsBackToNewestFirst(t *testing.T) {
	if got := orderBy("drop table", false); got != " ORDER BY p.created_at DESC NULLS LAST, p.id" {
		t.Fatalf("unexpected order clause %q", got)
	}
	if got := orderBy("amount", false); got != " ORDER BY p.amount_cents ASC NULLS LAST, p.id" {
		t.Fatalf("unexpected order clause %q", got)
	}
}
