package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DocumentType selects the extraction target shape and prompt framing.
type DocumentType string

const (
	DocTypeBankStatement DocumentType = "bank_statement"
	DocTypeInvoice       DocumentType = "invoice"
	DocTypeReceipt       DocumentType = "receipt"
	DocTypeCustom        DocumentType = "custom"
	DocTypeAuto          DocumentType = "auto"
)

// Document is a compiled extraction schema: the typed tree, its serialized
// JSON Schema (embedded in prompts), and the compiled validator. Compiled
// once and reused across requests.
type Document struct {
	Name     string
	Root     *Node
	raw      json.RawMessage
	compiled *jsonschema.Schema
}

// Raw returns the serialized JSON Schema document.
func (d *Document) Raw() json.RawMessage { return d.raw }

// Compiled returns the compiled validator.
func (d *Document) Compiled() *jsonschema.Schema { return d.compiled }

// Compile builds a Document from a typed tree.
func Compile(name string, root *Node) (*Document, error) {
	raw, err := root.JSONSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to render schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name+".json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	return &Document{Name: name, Root: root, raw: raw, compiled: compiled}, nil
}

// ParseCustom builds a Document from a caller-provided node tree serialized
// as JSON (the shape of Node, not raw JSON Schema).
func ParseCustom(spec []byte) (*Document, error) {
	var root Node
	if err := json.Unmarshal(spec, &root); err != nil {
		return nil, fmt.Errorf("invalid custom schema: %w", err)
	}
	if root.Kind != KindObject {
		return nil, fmt.Errorf("custom schema root must be an object, got %q", root.Kind)
	}
	if err := checkDecodable(&root); err != nil {
		return nil, fmt.Errorf("invalid custom schema: %w", err)
	}
	return Compile(string(DocTypeCustom), &root)
}

// checkDecodable enforces the shape the field decoder understands: top-level
// leaves, sections of leaf fields, and tables whose rows are objects of leaf
// fields. Deeper nesting would compile and validate but has no decoded
// representation, so it is rejected up front.
func checkDecodable(root *Node) error {
	for name, node := range root.Properties {
		switch node.Kind {
		case KindObject:
			for field, child := range node.Properties {
				if !child.IsLeaf() {
					return fmt.Errorf("section %q: field %q must be a leaf (objects nest at most one level)", name, field)
				}
			}
		case KindArray:
			if node.Items == nil || node.Items.Kind != KindObject {
				return fmt.Errorf("table %q: items must be an object of leaf fields", name)
			}
			for field, child := range node.Items.Properties {
				if !child.IsLeaf() {
					return fmt.Errorf("table %q: row field %q must be a leaf", name, field)
				}
			}
		}
	}
	return nil
}

// Registry holds the built-in document schemas, compiled once at startup.
type Registry struct {
	docs map[DocumentType]*Document
}

// NewRegistry compiles the built-in schemas.
func NewRegistry() (*Registry, error) {
	r := &Registry{docs: make(map[DocumentType]*Document)}

	for typ, root := range map[DocumentType]*Node{
		DocTypeBankStatement: BankStatement(),
		DocTypeInvoice:       Invoice(),
		DocTypeReceipt:       Receipt(),
	} {
		doc, err := Compile(string(typ), root)
		if err != nil {
			return nil, err
		}
		r.docs[typ] = doc
	}
	return r, nil
}

// Resolve returns the schema for a document type. Unknown types and "auto"
// resolve to the bank statement schema, the service default; they never
// error.
func (r *Registry) Resolve(typ DocumentType) *Document {
	if doc, ok := r.docs[typ]; ok {
		return doc
	}
	return r.docs[DocTypeBankStatement]
}

// Names returns the built-in schema names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.docs))
	for typ := range r.docs {
		names = append(names, string(typ))
	}
	sort.Strings(names)
	return names
}

// BankStatement is the default extraction shape: account identity, the full
// transaction table, and the statement summary.
func BankStatement() *Node {
	return Object(
		P("basic_information", Object(
			P("account_holder", String("Full name of the account holder")),
			P("account_number", String("Account number as printed")),
			P("ifsc_code", String("IFSC or routing code")),
			P("branch", String("Branch name or address")),
			P("currency", String("Statement currency code")),
		)),
		P("transactions", Array(Object(
			P("date", String("Transaction date as printed")),
			P("narration", String("Transaction description")),
			P("debit", Number("Amount withdrawn, null if none")),
			P("credit", Number("Amount deposited, null if none")),
			P("balance", Number("Running balance after the transaction")),
		))),
		P("summary", Object(
			P("opening_balance", Number("Balance at statement start")),
			P("total_debit", Number("Sum of withdrawals")),
			P("total_credit", Number("Sum of deposits")),
			P("closing_balance", Number("Balance at statement end")),
		)),
	)
}

// Invoice covers header and vendor identity, line items, and totals.
func Invoice() *Node {
	return Object(
		P("invoice_information", Object(
			P("invoice_number", String("Invoice identifier")),
			P("invoice_date", String("Issue date as printed")),
			P("due_date", String("Payment due date")),
		)),
		P("vendor", Object(
			P("vendor_name", String("Issuing vendor name")),
			P("vendor_address", String("Vendor address")),
			P("vendor_phone", String("Vendor phone number")),
		)),
		P("line_items", Array(Object(
			P("description", String("Line item description")),
			P("quantity", Number("Quantity")),
			P("unit_price", Number("Price per unit")),
			P("amount", Number("Line total")),
		))),
		P("totals", Object(
			P("subtotal", Number("Pre-tax total")),
			P("tax", Number("Tax amount")),
			P("grand_total", Number("Final payable amount")),
		)),
	)
}

// Receipt covers store identity, the purchased items, and the total.
func Receipt() *Node {
	return Object(
		P("store", Object(
			P("store_name", String("Store name")),
			P("store_address", String("Store address")),
			P("store_phone", String("Store phone number")),
		)),
		P("transaction_information", Object(
			P("receipt_number", String("Receipt identifier")),
			P("date", String("Purchase date")),
			P("time", String("Purchase time")),
		)),
		P("items", Array(Object(
			P("item_name", String("Item name")),
			P("quantity", Number("Quantity purchased")),
			P("price", Number("Item price")),
		))),
		P("total", Number("Receipt total")),
	)
}
