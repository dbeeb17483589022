package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/store"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: store.ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", pgx.ErrNoRows), want: store.ErrNotFound},
		{name: "unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "postings_url_key"}, want: store.ErrDuplicate},
		{name: "foreign key", err: &pgconn.PgError{Code: "23503"}, want: store.ErrNotFound},
		{name: "bad uuid", err: &pgconn.PgError{Code: "22P02"}, want: store.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapError(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("mapError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	other := errors.New("connection reset")
	if got := mapError(other); got != other {
		t.Fatalf("expected unrelated error to pass through, got %v", got)
	}
}

func TestMarshalNullable(t *testing.T) {
	var analysis *jobs.Analysis
	raw, err := marshalNullable(analysis)
	if err != nil || raw != nil {
		t.Fatalf("expected nil payload for nil analysis, got %q (err %v)", raw, err)
	}

	raw, err = marshalNullable(&jobs.Analysis{Score: 80, Summary: "fit"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(raw), `"score":80`) {
		t.Fatalf("unexpected payload: %s", raw)
	}
}

func TestRepinAnalysesTouchesOnlyStaleObjects(t *testing.T) {
	for _, fragment := range []string{
		"jsonb_set(match_analysis, '{score}', to_jsonb($2::int))",
		"WHERE posting_id::text = $1",
		"jsonb_typeof(match_analysis) = 'object'",
		"IS DISTINCT FROM",
	} {
		if !strings.Contains(repinAnalysesSQL, fragment) {
			t.Fatalf("re-pin statement is missing %q", fragment)
		}
	}
}

func TestSchemaDeclaresConstraints(t *testing.T) {
	for _, fragment := range []string{
		"url              TEXT        NOT NULL UNIQUE",
		"PRIMARY KEY (candidate_id, posting_id)",
		"CHECK (status IN ('draft', 'applied'))",
	} {
		if !strings.Contains(schema, fragment) {
			t.Fatalf("schema is missing %q", fragment)
		}
	}
}
