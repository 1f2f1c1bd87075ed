// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package shard implements the TOON shard text format (spec.md §6) and the
// shard writer that partitions extracted summaries into the on-disk cache
// layout (spec.md §4.5, §3 "Shard layout on disk").
package shard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Table is the tabular field kind: a compact row-major encoding of N rows
// of the same column set, used for symbol lists and graph adjacency.
type Table struct {
	Columns []string
	Rows    [][]string
}

// fieldKind distinguishes the three TOON field shapes.
type fieldKind int

const (
	kindScalar fieldKind = iota
	kindArray
	kindTable
)

type field struct {
	kind   fieldKind
	scalar string
	array  []string
	table  Table
}

// Doc is an in-memory TOON document: an ordered sequence of named fields
// plus the `_type`/`version` header spec.md §6 requires on every shard.
type Doc struct {
	Type    string
	Version string

	order  []string
	fields map[string]field
}

// NewDoc starts a document tagged with the given `_type` header value.
func NewDoc(typ string) *Doc {
	return &Doc{Type: typ, fields: make(map[string]field)}
}

func (d *Doc) set(key string, f field) {
	if _, exists := d.fields[key]; !exists {
		d.order = append(d.order, key)
	}
	d.fields[key] = f
}

// SetScalar sets a `key: value` field.
func (d *Doc) SetScalar(key, value string) { d.set(key, field{kind: kindScalar, scalar: value}) }

// SetArray sets a `key[N]: v1,v2,…` field.
func (d *Doc) SetArray(key string, values []string) {
	d.set(key, field{kind: kindArray, array: values})
}

// SetTable sets a `key[N]{f1,f2,…}:` tabular field.
func (d *Doc) SetTable(key string, t Table) { d.set(key, field{kind: kindTable, table: t}) }

// Scalar returns a previously set scalar field.
func (d *Doc) Scalar(key string) (string, bool) {
	f, ok := d.fields[key]
	if !ok || f.kind != kindScalar {
		return "", false
	}
	return f.scalar, true
}

// Array returns a previously set array field.
func (d *Doc) Array(key string) ([]string, bool) {
	f, ok := d.fields[key]
	if !ok || f.kind != kindArray {
		return nil, false
	}
	return f.array, true
}

// TableField returns a previously set tabular field.
func (d *Doc) TableField(key string) (Table, bool) {
	f, ok := d.fields[key]
	if !ok || f.kind != kindTable {
		return Table{}, false
	}
	return f.table, true
}

// legacyFieldAliases maps the historical short field names spec.md §9 notes
// ("hash"/"h", "symbol"/"s") to their canonical long form. Readers accept
// either; Encode only ever emits the long form, so round-tripping a shard
// through this package upgrades it.
var legacyFieldAliases = map[string]string{
	"h": "hash",
	"s": "symbol",
}

func canonicalFieldName(key string) string {
	if canon, ok := legacyFieldAliases[key]; ok {
		return canon
	}
	return key
}

// quoteScalar quotes a scalar only when it contains a comma or colon, per
// spec.md §6 ("quoted strings only if they contain commas or colons").
func quoteScalar(s string) string {
	if strings.ContainsAny(s, ",:") {
		return strconv.Quote(s)
	}
	return s
}

func unquoteScalar(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

// Encode renders the document to TOON text.
func (d *Doc) Encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "_type: %s\n", d.Type)
	if d.Version != "" {
		fmt.Fprintf(&b, "version: %s\n", d.Version)
	}
	for _, key := range d.order {
		f := d.fields[key]
		switch f.kind {
		case kindScalar:
			fmt.Fprintf(&b, "%s: %s\n", key, quoteScalar(f.scalar))
		case kindArray:
			quoted := make([]string, len(f.array))
			for i, v := range f.array {
				quoted[i] = quoteScalar(v)
			}
			fmt.Fprintf(&b, "%s[%d]: %s\n", key, len(f.array), strings.Join(quoted, ","))
		case kindTable:
			fmt.Fprintf(&b, "%s[%d]{%s}:\n", key, len(f.table.Rows), strings.Join(f.table.Columns, ","))
			for _, row := range f.table.Rows {
				quoted := make([]string, len(row))
				for i, v := range row {
					quoted[i] = quoteScalar(v)
				}
				fmt.Fprintf(&b, "  %s\n", strings.Join(quoted, ","))
			}
		}
	}
	return b.String()
}

// Decode parses TOON text, or (auto-detected by a leading `{`) a JSON
// object carrying the same logical shape, per spec.md §6: "The parser
// tolerates either TOON or JSON-object text."
func Decode(text string) (*Doc, error) {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	if strings.HasPrefix(trimmed, "{") {
		return decodeJSON(trimmed)
	}
	return decodeTOON(text)
}

func decodeTOON(text string) (*Doc, error) {
	lines := strings.Split(text, "\n")
	d := NewDoc("")

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimRight(line, "\r")
		if strings.TrimSpace(trimmed) == "" {
			i++
			continue
		}
		if strings.HasPrefix(trimmed, "  ") || strings.HasPrefix(trimmed, "\t") {
			// An indented row with no preceding table header is malformed;
			// skip defensively rather than aborting the whole shard.
			i++
			continue
		}

		key, rest, ok := strings.Cut(trimmed, ":")
		if !ok {
			i++
			continue
		}
		rest = strings.TrimPrefix(rest, " ")

		if key == "_type" {
			d.Type = rest
			i++
			continue
		}
		if key == "version" {
			d.Version = rest
			i++
			continue
		}

		if open := strings.IndexByte(key, '['); open >= 0 {
			name := canonicalFieldName(key[:open])
			spec := key[open:]
			if strings.HasSuffix(spec, "}") {
				closeBrace := strings.IndexByte(spec, '{')
				rawCols := strings.Split(strings.TrimSuffix(spec[closeBrace+1:], "}"), ",")
				cols := make([]string, len(rawCols))
				for c := range rawCols {
					cols[c] = canonicalFieldName(strings.TrimSpace(rawCols[c]))
				}
				n := parseCount(spec[1:strings.IndexByte(spec, ']')])
				var rows [][]string
				i++
				for j := 0; j < n && i < len(lines); j++ {
					rowLine := strings.TrimSpace(lines[i])
					rows = append(rows, splitQuotedCSV(rowLine))
					i++
				}
				d.SetTable(name, Table{Columns: cols, Rows: rows})
				continue
			}
			// array field
			values := splitQuotedCSV(rest)
			d.SetArray(name, values)
			i++
			continue
		}

		d.SetScalar(canonicalFieldName(key), unquoteScalar(rest))
		i++
	}
	return d, nil
}

func parseCount(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

// splitQuotedCSV splits a comma-separated list, honoring double-quoted
// fields that may themselves contain commas or colons.
func splitQuotedCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == ',' && !inQuotes:
			out = append(out, unquoteScalar(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, unquoteScalar(cur.String()))
	return out
}

// decodeJSON adapts a JSON object into a Doc: top-level scalar values
// become scalar fields, arrays of scalars become array fields, and arrays
// of objects become table fields with the first object's keys, sorted, as
// the column set.
func decodeJSON(text string) (*Doc, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("decode json shard: %w", err)
	}
	d := NewDoc("")
	if t, ok := raw["_type"].(string); ok {
		d.Type = t
		delete(raw, "_type")
	}
	if v, ok := raw["version"].(string); ok {
		d.Version = v
		delete(raw, "version")
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := canonicalFieldName(k)
		switch v := raw[k].(type) {
		case string:
			d.SetScalar(name, v)
		case float64:
			d.SetScalar(name, strconv.FormatFloat(v, 'g', -1, 64))
		case bool:
			d.SetScalar(name, strconv.FormatBool(v))
		case []any:
			if len(v) == 0 {
				d.SetArray(name, nil)
				continue
			}
			if _, isObj := v[0].(map[string]any); isObj {
				rawObjCols := objectKeys(v[0].(map[string]any))
				cols := make([]string, len(rawObjCols))
				for i, c := range rawObjCols {
					cols[i] = canonicalFieldName(c)
				}
				rows := make([][]string, 0, len(v))
				for _, item := range v {
					obj, _ := item.(map[string]any)
					row := make([]string, len(cols))
					for i, c := range rawObjCols {
						row[i] = fmt.Sprintf("%v", obj[c])
					}
					rows = append(rows, row)
				}
				d.SetTable(name, Table{Columns: cols, Rows: rows})
				continue
			}
			values := make([]string, len(v))
			for i, item := range v {
				values[i] = fmt.Sprintf("%v", item)
			}
			d.SetArray(name, values)
		}
	}
	return d, nil
}

func objectKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
