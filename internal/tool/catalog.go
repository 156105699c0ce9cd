package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/viant/mcp-protocol/schema"
)

// listBasesText documents a capability gap: the Web API has no endpoint to
// enumerate the bases a token can access, so list_bases is a local no-op.
const listBasesText = "Airtable's Web API does not provide an endpoint to enumerate the bases " +
	"a token can access. Specify the base ID directly: open the base in your " +
	"browser and copy the identifier starting with \"app\" from the URL."

type fieldSpec struct {
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Options map[string]any `json:"options,omitempty"`
}

type sortTerm struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// definitions builds the catalog in advertised order. Every entry here has
// exactly one dispatch branch; both come from the same definition.
func (s *Service) definitions() []*definition {
	return []*definition{
		{
			tool: describe("list_bases", "List bases accessible to the configured Airtable token",
				objectSchema(props{}, nil)),
			run: func(context.Context, json.RawMessage) (string, error) {
				return listBasesText, nil
			},
		},
		{
			tool: describe("list_tables", "List all tables in a base, including their fields and views",
				objectSchema(props{
					"baseId": prop("string", "ID of the base (starts with 'app')"),
				}, []string{"baseId"})),
			run: s.runListTables,
		},
		{
			tool: describe("create_table", "Create a new table in a base",
				objectSchema(props{
					"baseId":      prop("string", "ID of the base"),
					"name":        prop("string", "Name of the new table"),
					"description": prop("string", "Description of the table"),
					"fields": map[string]any{
						"type":        "array",
						"description": "Initial fields of the table",
						"items": map[string]any{
							"type": "object",
							"properties": props{
								"name":    prop("string", "Name of the field"),
								"type":    prop("string", "Type of the field (e.g. singleLineText, number)"),
								"options": prop("object", "Field type options"),
							},
							"required": []string{"name", "type"},
						},
					},
				}, []string{"baseId", "name", "fields"})),
			run: s.runCreateTable,
		},
		{
			tool: describe("create_field", "Create a new field in a table",
				objectSchema(props{
					"baseId":  prop("string", "ID of the base"),
					"tableId": prop("string", "ID of the table"),
					"name":    prop("string", "Name of the new field"),
					"type":    prop("string", "Type of the field"),
					"options": prop("object", "Field type options"),
				}, []string{"baseId", "tableId", "name", "type"})),
			run: s.runCreateField,
		},
		{
			tool: describe("list_records", "List records from a table",
				objectSchema(props{
					"baseId":          prop("string", "ID of the base"),
					"tableId":         prop("string", "ID or name of the table"),
					"maxRecords":      prop("integer", "Maximum number of records to return (default 100)"),
					"view":            prop("string", "Name or ID of a view to use"),
					"filterByFormula": prop("string", "Airtable formula to filter records"),
					"sort": map[string]any{
						"type":        "array",
						"description": "Sort order, applied in list order",
						"items": map[string]any{
							"type": "object",
							"properties": props{
								"field": prop("string", "Field name to sort by"),
								"direction": map[string]any{
									"type":        "string",
									"description": "Sort direction",
									"enum":        []string{"asc", "desc"},
								},
							},
							"required": []string{"field", "direction"},
						},
					},
				}, []string{"baseId", "tableId"})),
			run: s.runListRecords,
		},
		{
			tool: describe("create_record", "Create a new record in a table",
				objectSchema(props{
					"baseId":  prop("string", "ID of the base"),
					"tableId": prop("string", "ID or name of the table"),
					"fields":  prop("object", "Field values of the new record"),
				}, []string{"baseId", "tableId", "fields"})),
			run: s.runCreateRecord,
		},
		{
			tool: describe("update_record", "Update field values of an existing record",
				objectSchema(props{
					"baseId":   prop("string", "ID of the base"),
					"tableId":  prop("string", "ID or name of the table"),
					"recordId": prop("string", "ID of the record to update"),
					"fields":   prop("object", "Field values to set"),
				}, []string{"baseId", "tableId", "recordId", "fields"})),
			run: s.runUpdateRecord,
		},
		{
			tool: describe("delete_record", "Delete a record from a table",
				objectSchema(props{
					"baseId":   prop("string", "ID of the base"),
					"tableId":  prop("string", "ID or name of the table"),
					"recordId": prop("string", "ID of the record to delete"),
				}, []string{"baseId", "tableId", "recordId"})),
			run: s.runDeleteRecord,
		},
		{
			tool: describe("search_records", "Search records in a table using an Airtable formula",
				objectSchema(props{
					"baseId":          prop("string", "ID of the base"),
					"tableId":         prop("string", "ID or name of the table"),
					"filterByFormula": prop("string", "Airtable formula to match records"),
					"maxRecords":      prop("integer", "Maximum number of records to return"),
				}, []string{"baseId", "tableId", "filterByFormula"})),
			run: s.runSearchRecords,
		},
		{
			tool: describe("get_record", "Get a single record by ID",
				objectSchema(props{
					"baseId":   prop("string", "ID of the base"),
					"tableId":  prop("string", "ID or name of the table"),
					"recordId": prop("string", "ID of the record"),
				}, []string{"baseId", "tableId", "recordId"})),
			run: s.runGetRecord,
		},
	}
}

func (s *Service) runListTables(ctx context.Context, raw json.RawMessage) (string, error) {
	var a struct {
		BaseID string `json:"baseId"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return "", err
	}
	if err := require("baseId", a.BaseID); err != nil {
		return "", err
	}
	data, err := s.client.Call(ctx, http.MethodGet, "meta/bases/"+url.PathEscape(a.BaseID)+"/tables", nil)
	if err != nil {
		return "", err
	}
	return prettyJSON(data), nil
}

func (s *Service) runCreateTable(ctx context.Context, raw json.RawMessage) (string, error) {
	var a struct {
		BaseID      string      `json:"baseId"`
		Name        string      `json:"name"`
		Description *string     `json:"description"`
		Fields      []fieldSpec `json:"fields"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return "", err
	}
	if err := require("baseId", a.BaseID); err != nil {
		return "", err
	}
	if err := require("name", a.Name); err != nil {
		return "", err
	}
	if len(a.Fields) == 0 {
		return "", fmt.Errorf("fields is required")
	}
	body := map[string]any{"name": a.Name, "fields": a.Fields}
	if a.Description != nil {
		body["description"] = *a.Description
	}
	data, err := s.client.Call(ctx, http.MethodPost, "meta/bases/"+url.PathEscape(a.BaseID)+"/tables", body)
	if err != nil {
		return "", err
	}
	return "Table created:\n" + prettyJSON(data), nil
}

func (s *Service) runCreateField(ctx context.Context, raw json.RawMessage) (string, error) {
	var a struct {
		BaseID  string         `json:"baseId"`
		TableID string         `json:"tableId"`
		Name    string         `json:"name"`
		Type    string         `json:"type"`
		Options map[string]any `json:"options"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return "", err
	}
	if err := require("baseId", a.BaseID); err != nil {
		return "", err
	}
	if err := require("tableId", a.TableID); err != nil {
		return "", err
	}
	if err := require("name", a.Name); err != nil {
		return "", err
	}
	if err := require("type", a.Type); err != nil {
		return "", err
	}
	body := map[string]any{"name": a.Name, "type": a.Type}
	if a.Options != nil {
		body["options"] = a.Options
	}
	path := "meta/bases/" + url.PathEscape(a.BaseID) + "/tables/" + url.PathEscape(a.TableID) + "/fields"
	data, err := s.client.Call(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}
	return "Field created:\n" + prettyJSON(data), nil
}

func (s *Service) runListRecords(ctx context.Context, raw json.RawMessage) (string, error) {
	var a struct {
		BaseID          string     `json:"baseId"`
		TableID         string     `json:"tableId"`
		MaxRecords      *int       `json:"maxRecords"`
		View            string     `json:"view"`
		FilterByFormula string     `json:"filterByFormula"`
		Sort            []sortTerm `json:"sort"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return "", err
	}
	if err := require("baseId", a.BaseID); err != nil {
		return "", err
	}
	if err := require("tableId", a.TableID); err != nil {
		return "", err
	}
	maxRecords := 100
	if a.MaxRecords != nil {
		maxRecords = *a.MaxRecords
	}
	q := newQuery()
	q.add("maxRecords", strconv.Itoa(maxRecords))
	if a.View != "" {
		q.add("view", a.View)
	}
	if a.FilterByFormula != "" {
		q.add("filterByFormula", a.FilterByFormula)
	}
	// Indexed sort terms keep the caller's list order on the wire.
	for i, term := range a.Sort {
		q.add(fmt.Sprintf("sort[%d][field]", i), term.Field)
		q.add(fmt.Sprintf("sort[%d][direction]", i), term.Direction)
	}
	path := recordsPath(a.BaseID, a.TableID) + "?" + q.encode()
	data, err := s.client.Call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return prettyJSON(data), nil
}

func (s *Service) runCreateRecord(ctx context.Context, raw json.RawMessage) (string, error) {
	var a struct {
		BaseID  string         `json:"baseId"`
		TableID string         `json:"tableId"`
		Fields  map[string]any `json:"fields"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return "", err
	}
	if err := require("baseId", a.BaseID); err != nil {
		return "", err
	}
	if err := require("tableId", a.TableID); err != nil {
		return "", err
	}
	if a.Fields == nil {
		return "", fmt.Errorf("fields is required")
	}
	data, err := s.client.Call(ctx, http.MethodPost, recordsPath(a.BaseID, a.TableID), map[string]any{"fields": a.Fields})
	if err != nil {
		return "", err
	}
	return "Record created:\n" + prettyJSON(data), nil
}

func (s *Service) runUpdateRecord(ctx context.Context, raw json.RawMessage) (string, error) {
	var a struct {
		BaseID   string         `json:"baseId"`
		TableID  string         `json:"tableId"`
		RecordID string         `json:"recordId"`
		Fields   map[string]any `json:"fields"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return "", err
	}
	if err := require("baseId", a.BaseID); err != nil {
		return "", err
	}
	if err := require("tableId", a.TableID); err != nil {
		return "", err
	}
	if err := require("recordId", a.RecordID); err != nil {
		return "", err
	}
	if a.Fields == nil {
		return "", fmt.Errorf("fields is required")
	}
	path := recordsPath(a.BaseID, a.TableID) + "/" + url.PathEscape(a.RecordID)
	data, err := s.client.Call(ctx, http.MethodPatch, path, map[string]any{"fields": a.Fields})
	if err != nil {
		return "", err
	}
	return "Record updated:\n" + prettyJSON(data), nil
}

func (s *Service) runDeleteRecord(ctx context.Context, raw json.RawMessage) (string, error) {
	var a struct {
		BaseID   string `json:"baseId"`
		TableID  string `json:"tableId"`
		RecordID string `json:"recordId"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return "", err
	}
	if err := require("baseId", a.BaseID); err != nil {
		return "", err
	}
	if err := require("tableId", a.TableID); err != nil {
		return "", err
	}
	if err := require("recordId", a.RecordID); err != nil {
		return "", err
	}
	path := recordsPath(a.BaseID, a.TableID) + "/" + url.PathEscape(a.RecordID)
	data, err := s.client.Call(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Record %s deleted:\n%s", a.RecordID, prettyJSON(data)), nil
}

func (s *Service) runSearchRecords(ctx context.Context, raw json.RawMessage) (string, error) {
	var a struct {
		BaseID          string `json:"baseId"`
		TableID         string `json:"tableId"`
		FilterByFormula string `json:"filterByFormula"`
		MaxRecords      *int   `json:"maxRecords"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return "", err
	}
	if err := require("baseId", a.BaseID); err != nil {
		return "", err
	}
	if err := require("tableId", a.TableID); err != nil {
		return "", err
	}
	if err := require("filterByFormula", a.FilterByFormula); err != nil {
		return "", err
	}
	q := newQuery()
	q.add("filterByFormula", a.FilterByFormula)
	if a.MaxRecords != nil {
		q.add("maxRecords", strconv.Itoa(*a.MaxRecords))
	}
	path := recordsPath(a.BaseID, a.TableID) + "?" + q.encode()
	data, err := s.client.Call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return prettyJSON(data), nil
}

func (s *Service) runGetRecord(ctx context.Context, raw json.RawMessage) (string, error) {
	var a struct {
		BaseID   string `json:"baseId"`
		TableID  string `json:"tableId"`
		RecordID string `json:"recordId"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return "", err
	}
	if err := require("baseId", a.BaseID); err != nil {
		return "", err
	}
	if err := require("tableId", a.TableID); err != nil {
		return "", err
	}
	if err := require("recordId", a.RecordID); err != nil {
		return "", err
	}
	path := recordsPath(a.BaseID, a.TableID) + "/" + url.PathEscape(a.RecordID)
	data, err := s.client.Call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return prettyJSON(data), nil
}

func recordsPath(baseID, tableID string) string {
	return url.PathEscape(baseID) + "/" + url.PathEscape(tableID)
}

func require(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

// query preserves insertion order, unlike url.Values.Encode which sorts keys.
type query struct {
	pairs []string
}

func newQuery() *query { return &query{} }

func (q *query) add(key, value string) {
	q.pairs = append(q.pairs, url.QueryEscape(key)+"="+url.QueryEscape(value))
}

func (q *query) encode() string { return strings.Join(q.pairs, "&") }

type props map[string]any

func describe(name, description string, input schema.ToolInputSchema) schema.Tool {
	return schema.Tool{Name: name, Description: &description, InputSchema: input}
}

func objectSchema(properties props, required []string) schema.ToolInputSchema {
	s := schema.ToolInputSchema{Type: "object", Properties: schema.ToolInputSchemaProperties{}}
	for name, p := range properties {
		if m, ok := p.(map[string]any); ok {
			s.Properties[name] = m
		}
	}
	s.Required = required
	return s
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}
