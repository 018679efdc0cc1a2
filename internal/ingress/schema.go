package ingress

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
)

// userSchema, issueSchema and projectSchema are minimal advisory shapes used to
// flag malformed upstream payloads. A validation failure is never fatal and
// never changes the always-200 ingress contract (spec §4.2, §6); it only
// feeds a warning log line so operators can see when the platform sends a
// shape the pipeline wasn't built against.
const userSchema = `{
  "type": "object",
  "required": ["email"],
  "properties": {"email": {"type": "string"}}
}`

const issueSchema = `{
  "type": "object",
  "required": ["object_attributes"],
  "properties": {
    "object_attributes": {
      "type": "object",
      "required": ["id", "project_id"]
    }
  }
}`

const projectSchema = `{
  "type": "object",
  "required": ["owner_email"]
}`

// SchemaValidator performs advisory JSON-schema validation keyed by
// EventKind. It never returns an error that should reject a webhook; callers
// only log its result.
type SchemaValidator struct {
	schemas map[model.EventKind]*jsonschema.Schema
}

// NewSchemaValidator compiles the embedded per-kind schemas.
func NewSchemaValidator() (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	schemas := map[model.EventKind]*jsonschema.Schema{}

	groups := map[string][]model.EventKind{
		userSchema:    kindsOf(model.UserKinds),
		issueSchema:    append(kindsOf(model.IssueKinds), kindsOf(model.IssueNoteKinds)...),
		projectSchema: kindsOf(model.ProjectKinds),
	}

	for raw, kinds := range groups {
		for _, kind := range kinds {
			name := fmt.Sprintf("mem://%s.json", kind)
			if err := compiler.AddResource(name, bytes.NewReader([]byte(raw))); err != nil {
				return nil, fmt.Errorf("add schema resource for %s: %w", kind, err)
			}
			schema, err := compiler.Compile(name)
			if err != nil {
				return nil, fmt.Errorf("compile schema for %s: %w", kind, err)
			}
			schemas[kind] = schema
		}
	}

	return &SchemaValidator{schemas: schemas}, nil
}

// Validate checks body against the schema registered for kind, if any.
func (v *SchemaValidator) Validate(kind model.EventKind, body []byte) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

func kindsOf(set map[model.EventKind]struct{}) []model.EventKind {
	kinds := make([]model.EventKind, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	return kinds
}
