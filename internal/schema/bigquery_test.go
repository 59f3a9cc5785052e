package schema

import (
	"errors"
	"testing"

	"cloud.google.com/go/bigquery"
)

func TestSchemaBigQuery(t *testing.T) {
	s := Schema{
		{Name: "id", Type: "INTEGER", Mode: ModeRequired},
		{Name: "name", Type: "string", Mode: ModeNullable},
		{Name: "tags", Type: "STRING", Mode: ModeRepeated},
		{Name: "created_at", Type: "TIMESTAMP", Mode: ModeNullable},
	}

	bq, err := s.BigQuery()
	if err != nil {
		t.Fatalf("BigQuery() error = %v", err)
	}
	if len(bq) != len(s) {
		t.Fatalf("got %d fields, want %d", len(bq), len(s))
	}

	if bq[0].Type != bigquery.IntegerFieldType || !bq[0].Required || bq[0].Repeated {
		t.Errorf("unexpected id field %+v", bq[0])
	}
	if bq[1].Type != bigquery.StringFieldType || bq[1].Required || bq[1].Repeated {
		t.Errorf("unexpected name field %+v", bq[1])
	}
	if !bq[2].Repeated {
		t.Errorf("tags should be repeated: %+v", bq[2])
	}
	if bq[3].Type != bigquery.TimestampFieldType {
		t.Errorf("unexpected created_at type %s", bq[3].Type)
	}

	back := FromBigQuery(bq)
	for i := range back {
		if back[i].Name != s[i].Name || back[i].Mode != s[i].Mode {
			t.Errorf("FromBigQuery()[%d] = %+v, want name/mode of %+v", i, back[i], s[i])
		}
	}
}

func TestSchemaBigQueryUnknownType(t *testing.T) {
	_, err := Schema{{Name: "x", Type: "VARCHAR", Mode: ModeNullable}}.BigQuery()

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Rule != RuleUnknownType || verr.Column != "x" {
		t.Errorf("unexpected error %+v", verr)
	}
}

func TestSchemaBigQueryNestedType(t *testing.T) {
	for _, typ := range []string{"RECORD", "struct"} {
		t.Run(typ, func(t *testing.T) {
			s := Schema{
				{Name: "id", Type: "INTEGER", Mode: ModeRequired},
				{Name: "author", Type: typ, Mode: ModeNullable},
			}
			_, err := s.BigQuery()

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Rule != RuleNestedType || verr.Column != "author" {
				t.Errorf("unexpected error %+v", verr)
			}
		})
	}
}
