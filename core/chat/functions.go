package chat

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/leofalp/chatwire/core/chat/schema"
	"github.com/leofalp/chatwire/internal/utils"
)

// FunctionFor builds a definition whose parameters are derived from the
// fields of T.
//
//	type weatherArgs struct {
//		City string `json:"city" jsonschema:"description=City name"`
//	}
//	def, err := chat.FunctionFor[weatherArgs]("get_weather", "Current weather for a city")
func FunctionFor[T any](name, description string) (FunctionDefinition, error) {
	parameters, err := schema.Generate[T]()
	if err != nil {
		return FunctionDefinition{}, fmt.Errorf("generating parameters for %s: %w", name, err)
	}
	return FunctionDefinition{Name: name, Description: description, Parameters: parameters}, nil
}

// ValidateArguments checks the arguments of a call against the definition's
// parameter schema. A definition without parameters only requires a JSON
// object.
func ValidateArguments(def FunctionDefinition, arguments string) error {
	var value any
	if err := json.Unmarshal([]byte(arguments), &value); err != nil {
		return fmt.Errorf("arguments of %s are not valid JSON: %w", def.Name, err)
	}

	parameters := def.Parameters
	if parameters == nil {
		parameters = &schema.Schema{Type: "object"}
	}

	raw, err := parameters.JSON()
	if err != nil {
		return fmt.Errorf("encoding parameters of %s: %w", def.Name, err)
	}
	var schemaDoc any
	if err := json.Unmarshal(raw, &schemaDoc); err != nil {
		return fmt.Errorf("decoding parameters of %s: %w", def.Name, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("parameters.json", schemaDoc); err != nil {
		return fmt.Errorf("invalid parameters schema for %s: %w", def.Name, err)
	}
	compiled, err := c.Compile("parameters.json")
	if err != nil {
		return fmt.Errorf("compiling parameters schema for %s: %w", def.Name, err)
	}

	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("arguments of %s do not match schema: %w", def.Name, err)
	}
	return nil
}

// ParseArguments decodes call arguments into T. Malformed JSON, such as the
// truncated arguments of an abandoned stream, is repaired before decoding.
func ParseArguments[T any](arguments string) (T, error) {
	return utils.ParseStringAs[T](arguments)
}
