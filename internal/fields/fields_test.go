package fields

import (
	"encoding/json"
	"testing"

	"github.com/docfusion/docfusion/internal/schema"
)

func bankDoc(t *testing.T) *schema.Document {
	t.Helper()
	reg, err := schema.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	return reg.Resolve(schema.DocTypeBankStatement)
}

func TestDecode_BankStatement(t *testing.T) {
	raw := json.RawMessage(`{
		"basic_information": {
			"account_holder": {"value": "PRAKASH MAHENDRA SHUKLA", "position": [58, 218, 380, 250], "confidence": 1.0, "review_required": false}
		},
		"transactions": [
			{
				"date": {"value": "15-05-2024", "position": [50, 1283, 160, 1319], "confidence": 0.98, "review_required": false},
				"credit": {"value": 29293.0, "position": [1397, 1283, 1531, 1319], "confidence": 1.0, "review_required": false},
				"debit": {"value": null, "position": [], "confidence": 1.0, "review_required": false}
			}
		],
		"summary": null
	}`)

	doc, err := Decode(raw, bankDoc(t))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	holder := doc.Sections["basic_information"]["account_holder"]
	if holder.Value != "PRAKASH MAHENDRA SHUKLA" {
		t.Fatalf("account_holder = %+v", holder)
	}
	if len(holder.Position) != 4 || holder.Position[0] != 58 {
		t.Fatalf("account_holder position = %v", holder.Position)
	}

	if len(doc.Tables["transactions"]) != 1 {
		t.Fatalf("transactions = %+v", doc.Tables["transactions"])
	}
	row := doc.Tables["transactions"][0]
	if row["credit"].Value != 29293.0 {
		t.Fatalf("credit = %+v", row["credit"])
	}
	if !row["debit"].IsEmpty() {
		t.Fatalf("debit should be empty, got %+v", row["debit"])
	}

	// Entirely-null section decodes to a nil record, not an error.
	if rec, ok := doc.Sections["summary"]; !ok || rec != nil {
		t.Fatalf("summary = %v (present %v), want present nil", rec, ok)
	}
}

func TestDecode_AllNullSections(t *testing.T) {
	raw := json.RawMessage(`{"basic_information": null, "transactions": null, "summary": null}`)

	doc, err := Decode(raw, bankDoc(t))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	stats := doc.Stats()
	if stats.FieldCount != 0 || stats.RowCount != 0 {
		t.Fatalf("stats = %+v, want zeros", stats)
	}
}

func TestDecode_TopLevelLeaf(t *testing.T) {
	reg, err := schema.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	receipt := reg.Resolve(schema.DocTypeReceipt)

	raw := json.RawMessage(`{
		"store": null,
		"transaction_information": null,
		"items": [],
		"total": {"value": 129.5, "position": [10, 20, 80, 40], "confidence": 0.97, "review_required": true}
	}`)

	doc, err := Decode(raw, receipt)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	total := doc.Fields["total"]
	if total.Value != 129.5 || !total.ReviewRequired {
		t.Fatalf("total = %+v", total)
	}
	if rows := doc.Tables["items"]; rows == nil || len(rows) != 0 {
		t.Fatalf("present-but-empty items should decode to empty slice, got %#v", rows)
	}

	stats := doc.Stats()
	if stats.FieldCount != 1 || stats.ReviewCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestDecode_MalformedIsError(t *testing.T) {
	if _, err := Decode(json.RawMessage(`[1,2,3]`), bankDoc(t)); err == nil {
		t.Fatal("array at document root should fail decode")
	}
}
