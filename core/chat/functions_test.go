package chat

import (
	"strings"
	"testing"
)

type weatherArgs struct {
	City string `json:"city" jsonschema:"description=City name"`
	Unit string `json:"unit,omitempty" jsonschema:"enum=celsius,enum=fahrenheit"`
	Days int    `json:"days,omitempty"`
}

// TestFunctionFor_GeneratesParameters verifies the schema comes from the Go type.
func TestFunctionFor_GeneratesParameters(t *testing.T) {
	def, err := FunctionFor[weatherArgs]("get_weather", "Current weather")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "get_weather" || def.Description != "Current weather" {
		t.Errorf("unexpected definition %+v", def)
	}
	if def.Parameters.Type != "object" || len(def.Parameters.Properties) != 3 {
		t.Errorf("unexpected parameters %+v", def.Parameters)
	}
	if len(def.Parameters.Required) != 1 || def.Parameters.Required[0] != "city" {
		t.Errorf("unexpected required %v", def.Parameters.Required)
	}
}

// TestValidateArguments_MatchesSchema verifies arguments are checked against
// the definition.
func TestValidateArguments_MatchesSchema(t *testing.T) {
	def, err := FunctionFor[weatherArgs]("get_weather", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ValidateArguments(def, `{"city":"Rome","unit":"celsius","days":3}`); err != nil {
		t.Errorf("valid arguments rejected: %v", err)
	}

	cases := map[string]string{
		"missing required": `{"unit":"celsius"}`,
		"bad enum":         `{"city":"Rome","unit":"kelvin"}`,
		"wrong type":       `{"city":"Rome","days":"three"}`,
		"not json":         `{"city":`,
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if err := ValidateArguments(def, args); err == nil {
				t.Errorf("expected %s to be rejected", args)
			}
		})
	}
}

// TestValidateArguments_NoParameters verifies a bare definition accepts any object.
func TestValidateArguments_NoParameters(t *testing.T) {
	def := FunctionDefinition{Name: "noop"}
	if err := ValidateArguments(def, `{}`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateArguments(def, `[1,2]`); err == nil || !strings.Contains(err.Error(), "noop") {
		t.Errorf("expected non-object rejection naming the function, got %v", err)
	}
}

// TestParseArguments_RepairsTruncatedJSON verifies cut-off arguments are recovered.
func TestParseArguments_RepairsTruncatedJSON(t *testing.T) {
	args, err := ParseArguments[weatherArgs](`{"city": "Rome", "unit": "cel`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args.City != "Rome" || args.Unit != "cel" {
		t.Errorf("unexpected arguments %+v", args)
	}

	exact, err := ParseArguments[weatherArgs](`{"city":"Oslo","days":2}`)
	if err != nil || exact.City != "Oslo" || exact.Days != 2 {
		t.Errorf("unexpected exact parse %+v %v", exact, err)
	}
}

type Paging struct {
	Page  int `json:"page"`
	Limit int `json:"limit,omitempty"`
}

type searchArgs struct {
	Paging
	Query string `json:"query"`
}

// TestFunctionFor_EmbeddedStruct verifies the schema and the parsed value
// agree on promoted fields.
func TestFunctionFor_EmbeddedStruct(t *testing.T) {
	def, err := FunctionFor[searchArgs]("search", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const flat = `{"query":"go generics","page":2,"limit":10}`
	if err := ValidateArguments(def, flat); err != nil {
		t.Fatalf("flattened arguments rejected: %v", err)
	}
	if err := ValidateArguments(def, `{"query":"go generics","Paging":{"page":2}}`); err == nil {
		t.Error("nested embedded object should miss the promoted page field")
	}

	args, err := ParseArguments[searchArgs](flat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args.Query != "go generics" || args.Page != 2 || args.Limit != 10 {
		t.Errorf("unexpected arguments %+v", args)
	}
}
