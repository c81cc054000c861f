package config

import (
	"encoding/json"
	"strings"
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func TestSecretString_Masked(t *testing.T) {
	type creds struct {
		URL    string       `json:"url" yaml:"url"`
		APIKey SecretString `json:"api_key" yaml:"api_key"`
	}
	in := creds{URL: "https://gen.example.com", APIKey: "sk-very-secret"}

	j, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(j), "sk-very-secret") {
		t.Errorf("secret leaked into JSON: %s", j)
	}

	y, err := yaml.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(y), "sk-very-secret") {
		t.Errorf("secret leaked into YAML: %s", y)
	}
	if !strings.Contains(string(y), SecretStringValue) {
		t.Errorf("set secret not masked as %s: %s", SecretStringValue, y)
	}
}

func TestSecretString_EmptyMarshalsNull(t *testing.T) {
	var s SecretString

	j, err := s.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(j) != "null" {
		t.Errorf("MarshalJSON() = %s, want null", j)
	}

	v, err := s.MarshalYAML()
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("MarshalYAML() = %v, want nil", v)
	}
}

func TestSecretString_ValueAccessible(t *testing.T) {
	s := SecretString("sk-test")
	if string(s) != "sk-test" {
		t.Errorf("string(s) = %q", string(s))
	}
}
