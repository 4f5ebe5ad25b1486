package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const schemaDraft = "http://json-schema.org/draft-07/schema#"

func reflectSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	s := r.Reflect(&Config{})
	s.Version = schemaDraft
	s.Title = "redsnap configuration"
	return s
}

// JSONSchema returns the JSON schema of the .redsnap.yml file.
func JSONSchema() ([]byte, error) {
	return json.MarshalIndent(reflectSchema(), "", "  ")
}

// ValidateDocument checks a raw .redsnap.yml document against the JSON schema.
func ValidateDocument(buf []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return fmt.Errorf("failed to parse the config file: %w", err)
	}

	raw, err := JSONSchema()
	if err != nil {
		return err
	}

	loader := gojsonschema.NewSchemaLoader()
	loader.Draft = gojsonschema.Draft7
	schema, err := loader.Compile(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("invalid config schema: %w", err)
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to validate the config file: %w", err)
	}
	if res.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid config file:\n  - %s", strings.Join(msgs, "\n  - "))
}
