package course

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// VersionV1 is the only course schema version understood by this build.
const VersionV1 = "1.0"

//go:embed schema.cue
var schemaSource string

// LoadError reports a course file that could not be opened, decoded or
// validated. These are command errors, not validation failures: a broken
// file is different from a well-formed file with wrong slugs.
type LoadError struct {
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid course file %s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid course file %s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads, validates and decodes a course definition. JSON and YAML
// files are accepted, discriminated by extension. The raw document is
// checked against the embedded CUE schema before the typed decode, so a
// malformed file fails with a schema position rather than a zero-valued
// struct.
func Load(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "cannot open", Err: err}
	}

	var doc map[string]any
	yamlFile := false
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		yamlFile = true
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, &LoadError{Path: path, Message: "cannot decode YAML", Err: err}
		}
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, &LoadError{Path: path, Message: "cannot decode JSON", Err: err}
		}
	}

	version, ok := doc["version"].(string)
	if !ok {
		return nil, &LoadError{Path: path, Message: "missing field 'version'"}
	}
	if version != VersionV1 {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("unsupported course version %q", version)}
	}

	if err := validateSchema(doc); err != nil {
		return nil, &LoadError{Path: path, Message: "schema violation", Err: err}
	}

	var def Definition
	if yamlFile {
		err = yaml.Unmarshal(raw, &def)
	} else {
		err = json.Unmarshal(raw, &def)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Message: "cannot decode", Err: err}
	}

	return &def, nil
}

// validateSchema unifies the decoded document with the #Course definition
// and requires the result to be concrete.
func validateSchema(doc map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	courseSchema := schema.LookupPath(cue.ParsePath("#Course"))
	if err := courseSchema.Err(); err != nil {
		return fmt.Errorf("lookup schema: %w", err)
	}

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	if err := courseSchema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}
