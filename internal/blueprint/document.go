package blueprint

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

var (
	// ErrSyntax indicates the input is not a single well-formed YAML document.
	ErrSyntax = errors.New("invalid YAML")

	// ErrUnsupported indicates a value has no JSON representation.
	ErrUnsupported = errors.New("value cannot be represented as JSON")
)

type valueKind int

const (
	kindNull valueKind = iota
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
	// kindInvalid holds a value that parsed but cannot be encoded.
	kindInvalid
)

// value is one node of the ordered tree built from the YAML document.
type value struct {
	kind  valueKind
	text  string // number literal, string content, or invalid reason
	b     bool
	line  int
	items []*value
	keys  []string // object keys, parallel to items
	ids   []string // key identities, parallel to keys
}

// set inserts or replaces the key identified by id. A replaced key keeps its
// original position and spelling.
func (v *value) set(id, key string, item *value) {
	for i, k := range v.ids {
		if k == id {
			v.items[i] = item
			return
		}
	}
	v.ids = append(v.ids, id)
	v.keys = append(v.keys, key)
	v.items = append(v.items, item)
}

// Document is a parsed blueprint.
type Document struct {
	root *value
}

// Parse parses data as exactly one YAML document.
// Empty input, or input holding only comments, parses to null.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var node yaml.Node
	if err := dec.Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return &Document{root: &value{kind: kindNull}}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	var extra yaml.Node
	switch err := dec.Decode(&extra); {
	case err == nil:
		return nil, fmt.Errorf("%w: line %d: expected a single document in the stream but found another document", ErrSyntax, extra.Line)
	case !errors.Is(err, io.EOF):
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	c := &converter{active: make(map[*yaml.Node]bool)}
	root, err := c.convert(&node)
	if err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// IsNull reports whether the document is empty or an explicit null.
func (d *Document) IsNull() bool {
	return d.root.kind == kindNull
}

// converter walks a yaml.Node tree into values.
type converter struct {
	// active tracks alias targets currently being expanded.
	active map[*yaml.Node]bool

	// depth is the number of alias expansions in progress.
	depth int
	// nodes counts converted nodes; aliased counts those reached through an alias.
	nodes, aliased int
}

// Alias expansion limits. A document may grow through aliases, but once
// nearly all converted nodes come from expansions it is rejected.
const (
	minAliasedNodes = 100
	minNodes        = 1000
	aliasRatioLow   = 400000
	aliasRatioHigh  = 4000000
)

func allowedAliasRatio(nodes int) float64 {
	switch {
	case nodes <= aliasRatioLow:
		return 0.99
	case nodes >= aliasRatioHigh:
		return 0.10
	default:
		return 0.99 - 0.89*(float64(nodes-aliasRatioLow)/float64(aliasRatioHigh-aliasRatioLow))
	}
}

func (c *converter) count(n *yaml.Node) error {
	c.nodes++
	if c.depth > 0 {
		c.aliased++
	}
	if c.aliased > minAliasedNodes && c.nodes > minNodes &&
		float64(c.aliased)/float64(c.nodes) > allowedAliasRatio(c.nodes) {
		return fmt.Errorf("%w: line %d: document contains excessive aliasing", ErrSyntax, n.Line)
	}
	return nil
}

func (c *converter) convert(n *yaml.Node) (*value, error) {
	if err := c.count(n); err != nil {
		return nil, err
	}
	switch n.Kind {
	case 0:
		return &value{kind: kindNull}, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return &value{kind: kindNull}, nil
		}
		return c.convert(n.Content[0])
	case yaml.AliasNode:
		return c.alias(n)
	case yaml.ScalarNode:
		return c.scalar(n)
	case yaml.SequenceNode:
		return c.sequence(n)
	case yaml.MappingNode:
		return c.mapping(n)
	default:
		return nil, fmt.Errorf("%w: line %d: unknown node kind %d", ErrSyntax, n.Line, n.Kind)
	}
}

func (c *converter) alias(n *yaml.Node) (*value, error) {
	target := n.Alias
	if target == nil {
		return nil, fmt.Errorf("%w: line %d: unknown anchor %q referenced", ErrSyntax, n.Line, n.Value)
	}
	if c.active[target] {
		return &value{kind: kindInvalid, line: n.Line, text: fmt.Sprintf("circular reference through anchor %q", n.Value)}, nil
	}
	c.active[target] = true
	c.depth++
	defer func() {
		delete(c.active, target)
		c.depth--
	}()
	return c.convert(target)
}

func (c *converter) sequence(n *yaml.Node) (*value, error) {
	if err := checkTag(n, "!!seq"); err != nil {
		return nil, err
	}
	out := &value{kind: kindArray, line: n.Line, items: make([]*value, 0, len(n.Content))}
	for _, child := range n.Content {
		item, err := c.convert(child)
		if err != nil {
			return nil, err
		}
		out.items = append(out.items, item)
	}
	return out, nil
}

type pair struct {
	key, val *yaml.Node
	// merged pairs come from a merge key that referenced an anchor.
	merged bool
}

func (c *converter) mapping(n *yaml.Node) (*value, error) {
	if err := checkTag(n, "!!map"); err != nil {
		return nil, err
	}
	pairs, err := c.flatten(n)
	if err != nil {
		return nil, err
	}

	out := &value{kind: kindObject, line: n.Line}
	for _, p := range pairs {
		id, key, err := c.key(p.key)
		if err != nil {
			return nil, err
		}
		if p.merged {
			c.depth++
		}
		val, err := c.convert(p.val)
		if p.merged {
			c.depth--
		}
		if err != nil {
			return nil, err
		}
		out.set(id, key, val)
	}
	return out, nil
}

// flatten resolves merge keys. Merged pairs come first, followed by the
// mapping's own pairs, so explicit keys override merged ones. Within a merge
// sequence earlier mappings take precedence over later ones.
func (c *converter) flatten(n *yaml.Node) ([]pair, error) {
	var merged, own []pair
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode || k.ShortTag() != "!!merge" {
			if err := c.count(k); err != nil {
				return nil, err
			}
			own = append(own, pair{key: k, val: v})
			continue
		}

		src := deref(v)
		switch src.Kind {
		case yaml.MappingNode:
			sub, err := c.flattenTarget(v)
			if err != nil {
				return nil, err
			}
			merged = append(merged, sub...)
		case yaml.SequenceNode:
			var subs [][]pair
			for _, item := range src.Content {
				if deref(item).Kind != yaml.MappingNode {
					return nil, fmt.Errorf("%w: line %d: expected a mapping for merging, but found %s", ErrSyntax, item.Line, kindName(deref(item)))
				}
				sub, err := c.flattenTarget(item)
				if err != nil {
					return nil, err
				}
				subs = append(subs, sub)
			}
			for i := len(subs) - 1; i >= 0; i-- {
				merged = append(merged, subs[i]...)
			}
		default:
			return nil, fmt.Errorf("%w: line %d: expected a mapping or list of mappings for merging, but found %s", ErrSyntax, v.Line, kindName(src))
		}
	}
	return append(merged, own...), nil
}

func (c *converter) flattenTarget(n *yaml.Node) ([]pair, error) {
	if n.Kind != yaml.AliasNode {
		return c.flatten(n)
	}
	if c.active[n.Alias] {
		return nil, fmt.Errorf("%w: line %d: merge of anchor %q refers to itself", ErrSyntax, n.Line, n.Value)
	}
	c.active[n.Alias] = true
	c.depth++
	defer func() {
		delete(c.active, n.Alias)
		c.depth--
	}()
	pairs, err := c.flatten(n.Alias)
	if err != nil {
		return nil, err
	}
	for i := range pairs {
		pairs[i].merged = true
	}
	return pairs, nil
}

// key stringifies a scalar mapping key the way JSON object keys are produced
// from a loaded document. The returned id decides which keys are duplicates:
// strings never collide with numbers, while equal numbers and booleans
// (1, 1.0 and true) do.
func (c *converter) key(n *yaml.Node) (id, key string, err error) {
	src := deref(n)
	if src.Kind != yaml.ScalarNode {
		return "", "", fmt.Errorf("%w: line %d: found unhashable key (%s)", ErrSyntax, n.Line, kindName(src))
	}
	v, err := c.scalar(src)
	if err != nil {
		return "", "", err
	}
	switch v.kind {
	case kindNull:
		return "null", "null", nil
	case kindBool:
		if v.b {
			return "num:1", "true", nil
		}
		return "num:0", "false", nil
	case kindNumber:
		if r, ok := new(big.Rat).SetString(v.text); ok {
			return "num:" + r.RatString(), v.text, nil
		}
		return "num:" + v.text, v.text, nil
	case kindInvalid:
		return "", "", fmt.Errorf("%w: line %d: key %s", ErrUnsupported, n.Line, v.text)
	default:
		return "str:" + v.text, v.text, nil
	}
}

func (c *converter) scalar(n *yaml.Node) (*value, error) {
	tag := n.ShortTag()
	switch tag {
	case "!!null":
		return &value{kind: kindNull, line: n.Line}, nil

	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
		}
		return &value{kind: kindBool, b: b, line: n.Line}, nil

	case "!!int":
		return c.scalarInt(n)

	case "!!float":
		// Plain integers too wide for 64 bits resolve as floats; keep them exact.
		if n.Style&yaml.TaggedStyle == 0 && plainInt.MatchString(n.Value) {
			return c.scalarInt(n)
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &value{kind: kindInvalid, line: n.Line, text: fmt.Sprintf("out of range float value %q", n.Value)}, nil
		}
		return &value{kind: kindNumber, text: formatFloat(f), line: n.Line}, nil

	case "!!str", "!!timestamp":
		return &value{kind: kindString, text: n.Value, line: n.Line}, nil

	case "!!binary":
		return &value{kind: kindInvalid, line: n.Line, text: "binary value"}, nil

	case "!!merge":
		return &value{kind: kindString, text: n.Value, line: n.Line}, nil

	default:
		return nil, fmt.Errorf("%w: line %d: could not determine a constructor for the tag %s", ErrSyntax, n.Line, tag)
	}
}

var plainInt = regexp.MustCompile(`^[-+]?[0-9]+$`)

func (c *converter) scalarInt(n *yaml.Node) (*value, error) {
	lit, err := intLiteral(n)
	if err != nil {
		return nil, err
	}
	return &value{kind: kindNumber, text: lit, line: n.Line}, nil
}

func intLiteral(n *yaml.Node) (string, error) {
	var v any
	if err := n.Decode(&v); err == nil {
		switch i := v.(type) {
		case int:
			return strconv.Itoa(i), nil
		case int64:
			return strconv.FormatInt(i, 10), nil
		case uint64:
			return strconv.FormatUint(i, 10), nil
		}
	}
	// Values past 64 bits fall back to arbitrary precision.
	b, ok := new(big.Int).SetString(n.Value, 0)
	if !ok {
		return "", fmt.Errorf("%w: line %d: cannot decode %q as an integer", ErrSyntax, n.Line, n.Value)
	}
	return b.String(), nil
}

func checkTag(n *yaml.Node, want string) error {
	if tag := n.ShortTag(); tag != want {
		return fmt.Errorf("%w: line %d: could not determine a constructor for the tag %s", ErrSyntax, n.Line, tag)
	}
	return nil
}

func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
