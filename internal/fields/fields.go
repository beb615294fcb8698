// Package fields holds the typed result containers for extracted documents.
// It is pure data: decoding failures of already-validated JSON indicate a
// schema/model mismatch and are reported, never repaired.
package fields

import (
	"encoding/json"
	"fmt"

	"github.com/docfusion/docfusion/internal/schema"
)

// FieldValue is the atomic unit of extraction output: every semantic leaf
// field carries its value, spatial provenance, confidence and review flag.
type FieldValue struct {
	Value          any       `json:"value"`
	Position       []float64 `json:"position"`
	Confidence     float64   `json:"confidence"`
	ReviewRequired bool      `json:"review_required"`
}

// IsEmpty reports whether the model found no evidence for the field.
func (f FieldValue) IsEmpty() bool { return f.Value == nil }

// Record is an object of named field values (one section, or one table row).
type Record map[string]FieldValue

// StructuredDocument is the schema-shaped aggregate. A nil Record or nil
// table slice means the model returned null for that section; callers must
// tolerate both a present-but-empty object and a null one.
type StructuredDocument struct {
	// Fields holds top-level leaves (e.g. a receipt's total).
	Fields map[string]FieldValue
	// Sections holds named objects of leaves (e.g. basic_information).
	Sections map[string]Record
	// Tables holds named arrays of records (e.g. transactions).
	Tables map[string][]Record
}

// Stats summarizes a decoded document.
type Stats struct {
	FieldCount  int `json:"field_count"`  // leaves with a non-null value
	ReviewCount int `json:"review_count"` // leaves flagged for review
	RowCount    int `json:"row_count"`    // table rows across all tables
}

// Decode maps validated JSON onto the typed shape described by the schema
// tree. The input must already have passed schema validation; any mismatch
// found here is a bug surfaced as an error, not silently skipped.
func Decode(raw json.RawMessage, doc *schema.Document) (*StructuredDocument, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("failed to decode document object: %w", err)
	}

	out := &StructuredDocument{
		Fields:   make(map[string]FieldValue),
		Sections: make(map[string]Record),
		Tables:   make(map[string][]Record),
	}

	for name, node := range doc.Root.Properties {
		rawVal, ok := top[name]
		if !ok || isNull(rawVal) {
			switch node.Kind {
			case schema.KindObject:
				out.Sections[name] = nil
			case schema.KindArray:
				out.Tables[name] = nil
			}
			continue
		}

		switch {
		case node.IsLeaf():
			fv, err := decodeField(rawVal)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			out.Fields[name] = fv

		case node.Kind == schema.KindObject:
			rec, err := decodeRecord(rawVal, node)
			if err != nil {
				return nil, fmt.Errorf("section %s: %w", name, err)
			}
			out.Sections[name] = rec

		case node.Kind == schema.KindArray:
			var items []json.RawMessage
			if err := json.Unmarshal(rawVal, &items); err != nil {
				return nil, fmt.Errorf("table %s: %w", name, err)
			}
			rows := make([]Record, 0, len(items))
			for i, item := range items {
				rec, err := decodeRecord(item, node.Items)
				if err != nil {
					return nil, fmt.Errorf("table %s row %d: %w", name, i, err)
				}
				rows = append(rows, rec)
			}
			out.Tables[name] = rows
		}
	}

	return out, nil
}

// decodeRecord decodes an object of leaves. Leaves absent from the payload
// are simply omitted from the record.
func decodeRecord(raw json.RawMessage, node *schema.Node) (Record, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}

	rec := make(Record, len(node.Properties))
	for name, child := range node.Properties {
		rawVal, ok := obj[name]
		if !ok || isNull(rawVal) {
			continue
		}
		if !child.IsLeaf() {
			return nil, fmt.Errorf("nested non-leaf field %s is not supported", name)
		}
		fv, err := decodeField(rawVal)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		rec[name] = fv
	}
	return rec, nil
}

func decodeField(raw json.RawMessage) (FieldValue, error) {
	var fv FieldValue
	if err := json.Unmarshal(raw, &fv); err != nil {
		return FieldValue{}, err
	}
	return fv, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// Stats computes summary counts over the decoded document.
func (d *StructuredDocument) Stats() Stats {
	var s Stats

	count := func(fv FieldValue) {
		if !fv.IsEmpty() {
			s.FieldCount++
		}
		if fv.ReviewRequired {
			s.ReviewCount++
		}
	}

	for _, fv := range d.Fields {
		count(fv)
	}
	for _, rec := range d.Sections {
		for _, fv := range rec {
			count(fv)
		}
	}
	for _, rows := range d.Tables {
		s.RowCount += len(rows)
		for _, rec := range rows {
			for _, fv := range rec {
				count(fv)
			}
		}
	}
	return s
}
