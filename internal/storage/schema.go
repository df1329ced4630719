package storage

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/everstacklabs/modelprice/internal/model"
)

// SchemaID identifies the published database document schema.
const SchemaID = "https://github.com/everstacklabs/modelprice/schema/database.json"

// Schema returns the JSON Schema of the persisted database document.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            false,
	}
	schema := reflector.Reflect(&model.Database{})
	schema.Title = "Model pricing database"
	schema.Description = "Priced model offerings aggregated from upstream sources"
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.ID = SchemaID
	return schema
}

// SchemaJSON returns Schema encoded as indented JSON.
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}
	return data, nil
}
