package classifier

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed artifact_schema.json
var artifactSchemaJSON []byte

const artifactSchemaURL = "artifact_schema.json"

var compiledArtifactSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(artifactSchemaURL, bytes.NewReader(artifactSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(artifactSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// validateArtifact checks raw artifact bytes against the embedded schema.
func validateArtifact(data []byte) error {
	schema, err := compiledArtifactSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal artifact: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("artifact does not match schema: %w", err)
	}
	return nil
}
