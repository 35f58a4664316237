package transport

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fastygo/taskboard/domain"
)

const registerSchema = `{
	"type": "object",
	"properties": {
		"name":     {"type": "string", "minLength": 1, "maxLength": 200},
		"email":    {"type": "string", "format": "email", "maxLength": 320},
		"password": {"type": "string", "minLength": 1, "maxLength": 72}
	},
	"required": ["name", "email", "password"],
	"additionalProperties": false
}`

const loginSchema = `{
	"type": "object",
	"properties": {
		"email":    {"type": "string"},
		"password": {"type": "string"}
	},
	"required": ["email", "password"],
	"additionalProperties": false
}`

const createTaskSchema = `{
	"type": "object",
	"properties": {
		"title":       {"type": "string", "minLength": 1, "maxLength": 500},
		"description": {"type": "string", "minLength": 1, "maxLength": 10000},
		"priority":    {"type": "string"}
	},
	"required": ["title", "description"],
	"additionalProperties": false
}`

// Read-only task fields are tolerated so clients can send back a task they
// fetched; they are ignored.
const updateTaskSchema = `{
	"type": "object",
	"properties": {
		"title":       {"type": "string", "minLength": 1, "maxLength": 500},
		"description": {"type": "string", "minLength": 1, "maxLength": 10000},
		"status":      {"type": "string", "enum": ["pending", "in-progress", "completed"]},
		"priority":    {"type": "string", "enum": ["low", "medium", "high"]},
		"id":          {},
		"user_id":     {},
		"created_at":  {},
		"updated_at":  {}
	},
	"additionalProperties": false
}`

// Schema validates a request body before it is decoded.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

var (
	RegisterSchema   = mustCompile("register", registerSchema)
	LoginSchema      = mustCompile("login", loginSchema)
	CreateTaskSchema = mustCompile("create task", createTaskSchema)
	UpdateTaskSchema = mustCompile("update task", updateTaskSchema)
)

func mustCompile(name, source string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic("compile " + name + " schema: " + err.Error())
	}
	return &Schema{name: name, schema: s}
}

// Decode validates body against s and unmarshals it into dst. Any failure is
// a domain validation error whose message lists the offending fields.
func (s *Schema) Decode(body []byte, dst interface{}) error {
	if len(body) == 0 {
		return domain.Invalid("request body is required")
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "request body is not valid JSON", err)
	}
	if !result.Valid() {
		return domain.Invalid(describe(result.Errors()))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "request body is not valid JSON", err)
	}
	return nil
}

func describe(errs []gojsonschema.ResultError) string {
	const maxReported = 5
	parts := make([]string, 0, len(errs))
	for i, e := range errs {
		if i == maxReported {
			break
		}
		parts = append(parts, e.String())
	}
	return "invalid request: " + strings.Join(parts, "; ")
}
