package config

import "github.com/invopop/jsonschema"

// Schema generates the JSON Schema for the engine configuration. The web UI
// config builder consumes it, so definitions are inlined (no $ref).
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&Config{})
	schema.ID = "https://github.com/Squiddl/sma-group2-mini-rag/schemas/config.json"
	schema.Title = "minirag configuration"
	schema.Description = "Configuration schema for the minirag document QA engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}
