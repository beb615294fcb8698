package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewRegistry_CompilesBuiltins(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	for _, typ := range []DocumentType{DocTypeBankStatement, DocTypeInvoice, DocTypeReceipt} {
		doc := r.Resolve(typ)
		if doc == nil || doc.Name != string(typ) {
			t.Errorf("Resolve(%s) = %v", typ, doc)
		}
	}
}

func TestResolve_UnknownFallsBackToBankStatement(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	for _, typ := range []DocumentType{DocTypeAuto, DocumentType("payslip"), DocumentType("")} {
		doc := r.Resolve(typ)
		if doc.Name != string(DocTypeBankStatement) {
			t.Errorf("Resolve(%q) = %s, want bank_statement", typ, doc.Name)
		}
	}
}

func TestFieldValueShape_BareScalarFailsValidation(t *testing.T) {
	doc, err := Compile("test", Object(
		P("balance", Number("running balance")),
	))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	var bare any
	if err := json.Unmarshal([]byte(`{"balance": 29293.0}`), &bare); err != nil {
		t.Fatal(err)
	}
	if err := doc.Compiled().Validate(bare); err == nil {
		t.Fatal("bare scalar leaf passed validation, want failure")
	}

	var wrapped any
	good := `{"balance": {"value": 29293.0, "position": [1397, 1283, 1531, 1319], "confidence": 1.0, "review_required": false}}`
	if err := json.Unmarshal([]byte(good), &wrapped); err != nil {
		t.Fatal(err)
	}
	if err := doc.Compiled().Validate(wrapped); err != nil {
		t.Fatalf("four-key FieldValue failed validation: %v", err)
	}
}

func TestFieldValueShape_MissingKeyFails(t *testing.T) {
	doc, err := Compile("test", Object(P("name", String(""))))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	var inst any
	// review_required missing
	bad := `{"name": {"value": "X", "position": [], "confidence": 0.9}}`
	if err := json.Unmarshal([]byte(bad), &inst); err != nil {
		t.Fatal(err)
	}
	if err := doc.Compiled().Validate(inst); err == nil {
		t.Fatal("FieldValue missing review_required passed validation")
	}
}

func TestFieldValueShape_NullValueAndEmptyPositionAllowed(t *testing.T) {
	doc, err := Compile("test", Object(P("debit", Number(""))))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	var inst any
	empty := `{"debit": {"value": null, "position": [], "confidence": 1.0, "review_required": false}}`
	if err := json.Unmarshal([]byte(empty), &inst); err != nil {
		t.Fatal(err)
	}
	if err := doc.Compiled().Validate(inst); err != nil {
		t.Fatalf("null-value FieldValue failed validation: %v", err)
	}
}

func TestNullSectionsAllowed(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	doc := r.Resolve(DocTypeBankStatement)

	var inst any
	empty := `{"basic_information": null, "transactions": null, "summary": null}`
	if err := json.Unmarshal([]byte(empty), &inst); err != nil {
		t.Fatal(err)
	}
	if err := doc.Compiled().Validate(inst); err != nil {
		t.Fatalf("all-null sections failed validation: %v", err)
	}
}

func TestParseCustom(t *testing.T) {
	spec := `{
		"kind": "object",
		"properties": {
			"reference": {"kind": "string", "description": "Payment reference"}
		}
	}`

	doc, err := ParseCustom([]byte(spec))
	if err != nil {
		t.Fatalf("ParseCustom() error = %v", err)
	}
	if !strings.Contains(string(doc.Raw()), "review_required") {
		t.Fatalf("custom schema leaves not wrapped: %s", doc.Raw())
	}

	if _, err := ParseCustom([]byte(`{"kind": "string"}`)); err == nil {
		t.Fatal("non-object root accepted")
	}
	if _, err := ParseCustom([]byte(`not json`)); err == nil {
		t.Fatal("malformed custom schema accepted")
	}
}

// Every shape ParseCustom accepts must have a decoded representation, so
// nesting beyond sections-of-leaves and tables-of-leaf-rows is rejected.
func TestParseCustomRejectsUndecodableNesting(t *testing.T) {
	cases := []struct {
		name string
		spec string
	}{
		{
			name: "object inside section",
			spec: `{"kind": "object", "properties": {
				"outer": {"kind": "object", "properties": {
					"inner": {"kind": "object", "properties": {
						"total": {"kind": "number"}
					}}
				}}
			}}`,
		},
		{
			name: "array with leaf items",
			spec: `{"kind": "object", "properties": {
				"amounts": {"kind": "array", "items": {"kind": "number"}}
			}}`,
		},
		{
			name: "array without items",
			spec: `{"kind": "object", "properties": {
				"rows": {"kind": "array"}
			}}`,
		},
		{
			name: "array row with nested object",
			spec: `{"kind": "object", "properties": {
				"rows": {"kind": "array", "items": {"kind": "object", "properties": {
					"detail": {"kind": "object", "properties": {
						"code": {"kind": "string"}
					}}
				}}}
			}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseCustom([]byte(tc.spec)); err == nil {
				t.Fatal("undecodable nesting accepted")
			}
		})
	}

	// The documented two-level shape still parses.
	ok := `{"kind": "object", "properties": {
		"reference": {"kind": "string"},
		"parties": {"kind": "object", "properties": {
			"payer": {"kind": "string"},
			"payee": {"kind": "string"}
		}},
		"rows": {"kind": "array", "items": {"kind": "object", "properties": {
			"amount": {"kind": "number"}
		}}}
	}}`
	if _, err := ParseCustom([]byte(ok)); err != nil {
		t.Fatalf("two-level custom schema rejected: %v", err)
	}
}
