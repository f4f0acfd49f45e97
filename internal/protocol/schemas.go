package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// requestSchemas maps an API operation to its schema. Unassign and delete
// share the single-name body.
var requestSchemas = map[string]string{
	"assign":     "assign",
	"move":       "move",
	"swap":       "swap",
	"unassign":   "name",
	"delete":     "name",
	"edit":       "edit",
	"clear":      "clear",
	"auto":       "auto",
	"upload-csv": "upload-csv",
	"set-name":   "set-name",
	"set-mg":     "set-mg",
	"subscribe":  "subscribe",
}

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas, schemasErr = compileSchemas()
	})
	return schemas, schemasErr
}

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	var names []string
	for _, e := range entries {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaURL(e.Name()), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", e.Name(), err)
		}
		names = append(names, e.Name())
	}
	out := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := c.Compile(schemaURL(name))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		out[strings.TrimSuffix(name, ".schema.json")] = s
	}
	return out, nil
}

func schemaURL(file string) string { return "mem://hivegrid/schemas/" + file }

// Operations lists every operation with a request schema.
func Operations() []string {
	out := make([]string, 0, len(requestSchemas))
	for op := range requestSchemas {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// RequestError reports a body that is not JSON or does not match its
// schema. It maps to E_PROTO_BAD_REQUEST.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string { return fmt.Sprintf("bad %s request: %v", e.Op, e.Err) }

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Code() string { return ErrProtoBadRequest }

// DecodeRequest validates body against the schema for op and decodes it
// into dst. An empty body is treated as {}.
func DecodeRequest(op string, body []byte, dst any) error {
	set, err := loadSchemas()
	if err != nil {
		return err
	}
	name, ok := requestSchemas[op]
	if !ok {
		return fmt.Errorf("no schema for operation %q", op)
	}
	schema := set[name]

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &RequestError{Op: op, Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return &RequestError{Op: op, Err: err}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &RequestError{Op: op, Err: err}
	}
	return nil
}
