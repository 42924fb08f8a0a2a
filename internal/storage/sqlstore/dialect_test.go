package sqlstore

import (
	"strconv"
	"testing"

	"github.com/sheikh-saqib/store-credit-ledger/internal/models"
)

func TestRebind(t *testing.T) {
	numbered := Dialect{Placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}
	got := numbered.Rebind(`SELECT id FROM clients WHERE phone = ? AND id > ?`)
	if want := `SELECT id FROM clients WHERE phone = $1 AND id > $2`; got != want {
		t.Fatalf("expected %q got %q", want, got)
	}

	plain := Dialect{}
	if got := plain.Rebind(`a = ?`); got != `a = ?` {
		t.Fatalf("expected query unchanged, got %q", got)
	}
}

func TestSearchPredicate(t *testing.T) {
	where, arg := searchPredicate("name", models.FieldName, "Ami_50%")
	if where != `LOWER(CAST(name AS TEXT)) LIKE ? ESCAPE '\'` {
		t.Fatalf("unexpected where %s", where)
	}
	if arg != `%ami\_50\%%` {
		t.Fatalf("unexpected arg %s", arg)
	}

	where, arg = searchPredicate("paid", models.FieldPaid, " PAID ")
	if where != `LOWER(paid) = ?` || arg != "paid" {
		t.Fatalf("unexpected exact predicate %s %s", where, arg)
	}
}
