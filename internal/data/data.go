package data

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aescanero/dago-template/internal/value"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format is a supported data file format
type Format string

const (
	// FormatJSON accepts JSON and JSONC (comments, trailing commas)
	FormatJSON Format = "json"
	// FormatYAML accepts YAML documents
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for file extensions with no decoder
var ErrUnknownFormat = errors.New("unknown data format")

// FormatFromPath picks a format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

// Parse decodes raw bytes in the given format
func Parse(raw []byte, format Format) (value.Value, error) {
	switch format {
	case FormatJSON:
		return ParseJSON(raw)
	case FormatYAML:
		return ParseYAML(raw)
	default:
		return value.Null(), fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
}

// ReadFile reads a JSON, JSONC or YAML file into a Value
func ReadFile(path string) (value.Value, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return value.Null(), err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return value.Null(), fmt.Errorf("reading %s: %w", path, err)
	}
	v, err := Parse(raw, format)
	if err != nil {
		return value.Null(), fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ParseJSON strips JSONC comments and trailing commas, then decodes the
// document keeping object keys in document order. Empty input is Null.
func ParseJSON(raw []byte) (value.Value, error) {
	stripped := jsonc.ToJSON(raw)
	if strings.TrimSpace(string(stripped)) == "" {
		return value.Null(), nil
	}
	if !gjson.ValidBytes(stripped) {
		return value.Null(), fmt.Errorf("parsing json: invalid document")
	}
	return fromJSON(gjson.ParseBytes(stripped)), nil
}

func fromJSON(r gjson.Result) value.Value {
	switch r.Type {
	case gjson.True:
		return value.Bool(true)
	case gjson.False:
		return value.Bool(false)
	case gjson.Number:
		return value.Number(r.Num)
	case gjson.String:
		return value.String(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			var items []value.Value
			r.ForEach(func(_, item gjson.Result) bool {
				items = append(items, fromJSON(item))
				return true
			})
			return value.Array(items...)
		}
		var fields []value.Field
		r.ForEach(func(key, item gjson.Result) bool {
			fields = append(fields, value.Field{Key: key.Str, Value: fromJSON(item)})
			return true
		})
		return value.Object(fields...)
	default:
		return value.Null()
	}
}

// ParseYAML decodes the first YAML document keeping mapping keys in
// document order. Empty input is Null.
func ParseYAML(raw []byte) (value.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return value.Null(), fmt.Errorf("parsing yaml: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return value.Null(), nil
	}
	if expandedSize(doc.Content[0], make(map[*yaml.Node]int), maxYAMLNodes) > maxYAMLNodes {
		return value.Null(), fmt.Errorf("parsing yaml: %w", ErrYAMLTooLarge)
	}
	d := &yamlDecoder{limit: maxYAMLNodes}
	return d.decode(doc.Content[0], 0)
}

// expandedSize counts the nodes of n with aliases expanded, saturating just
// past limit. Sizes are memoized per node so shared anchors are counted once.
func expandedSize(n *yaml.Node, memo map[*yaml.Node]int, limit int) int {
	if size, ok := memo[n]; ok {
		return size
	}
	// a cycle back to n counts as over the limit
	memo[n] = limit + 1

	size := 1
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		size += expandedSize(n.Alias, memo, limit)
	}
	for _, c := range n.Content {
		size += expandedSize(c, memo, limit)
		if size > limit {
			size = limit + 1
			break
		}
	}
	if size > limit {
		size = limit + 1
	}
	memo[n] = size
	return size
}

const (
	// maxAliasDepth bounds alias nesting
	maxAliasDepth = 32
	// maxYAMLNodes bounds the nodes produced once aliases are expanded
	maxYAMLNodes = 1 << 20
)

// ErrYAMLTooLarge is returned when alias expansion produces too many nodes
var ErrYAMLTooLarge = errors.New("yaml document expands to too many nodes")

type yamlDecoder struct {
	nodes int
	limit int
}

func (d *yamlDecoder) decode(n *yaml.Node, depth int) (value.Value, error) {
	if depth > maxAliasDepth {
		return value.Null(), fmt.Errorf("line %d: aliases nested too deep", n.Line)
	}
	d.nodes++
	if d.nodes > d.limit {
		return value.Null(), fmt.Errorf("line %d: %w", n.Line, ErrYAMLTooLarge)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value.Null(), nil
		}
		return d.decode(n.Content[0], depth)
	case yaml.AliasNode:
		return d.decode(n.Alias, depth+1)
	case yaml.SequenceNode:
		items := make([]value.Value, 0, len(n.Content))
		for _, c := range n.Content {
			item, err := d.decode(c, depth)
			if err != nil {
				return value.Null(), err
			}
			items = append(items, item)
		}
		return value.Array(items...), nil
	case yaml.MappingNode:
		return d.mapping(n, depth)
	case yaml.ScalarNode:
		return scalar(n)
	}
	return value.Null(), fmt.Errorf("line %d: unsupported yaml node", n.Line)
}

// mapping decodes a mapping. Explicit keys win over merged ones wherever
// they appear; within a merge sequence earlier mappings win. Merged fields
// take the position of the merge key.
func (d *yamlDecoder) mapping(n *yaml.Node, depth int) (value.Value, error) {
	explicit := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := n.Content[i]; k.ShortTag() != "!!merge" {
			explicit[k.Value] = true
		}
	}

	fields := make([]value.Field, 0, len(n.Content)/2)
	merged := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.ShortTag() != "!!merge" {
			item, err := d.decode(v, depth)
			if err != nil {
				return value.Null(), err
			}
			fields = append(fields, value.Field{Key: k.Value, Value: item})
			continue
		}

		sources, err := d.mergeSources(v, depth)
		if err != nil {
			return value.Null(), err
		}
		for _, src := range sources {
			for _, f := range src.Fields() {
				if explicit[f.Key] || merged[f.Key] {
					continue
				}
				merged[f.Key] = true
				fields = append(fields, f)
			}
		}
	}
	return value.Object(fields...), nil
}

// mergeSources decodes the value of a merge key into the mappings it names
func (d *yamlDecoder) mergeSources(v *yaml.Node, depth int) ([]value.Value, error) {
	decoded, err := d.decode(v, depth+1)
	if err != nil {
		return nil, err
	}

	switch decoded.Kind() {
	case value.KindObject:
		return []value.Value{decoded}, nil
	case value.KindArray:
		items := decoded.Items()
		for _, item := range items {
			if item.Kind() != value.KindObject {
				return nil, fmt.Errorf("line %d: merge sequence holds a %s, want mappings", v.Line, item.Kind())
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("line %d: merge value is a %s, want a mapping or a sequence of mappings", v.Line, decoded.Kind())
	}
}

func scalar(n *yaml.Node) (value.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return value.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return value.Null(), fmt.Errorf("line %d: %w", n.Line, err)
		}
		return value.Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return value.Null(), fmt.Errorf("line %d: %w", n.Line, err)
		}
		return value.Number(f), nil
	default:
		return value.String(n.Value), nil
	}
}
