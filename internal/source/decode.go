package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	// maxDepth bounds nesting in structured payloads.
	maxDepth = 64
	// maxNodes bounds the nodes visited in a YAML payload, aliases
	// counted at every use.
	maxNodes = 10000
)

var (
	errTooDeep  = errors.New("payload nested too deeply")
	errTooLarge = errors.New("payload expands to too many nodes")
)

// DecodeJSON resolves a JSON payload. A top-level string is raw wikitext.
func DecodeJSON(r io.Reader) (Input, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	v, err := readJSON(dec, 0)
	if err != nil {
		return Input{}, fmt.Errorf("decode json: %w", err)
	}
	return resolve(v)
}

// readJSON walks the token stream so that object fields keep their order.
func readJSON(dec *json.Decoder, depth int) (value, error) {
	if depth > maxDepth {
		return value{}, errTooDeep
	}
	tok, err := dec.Token()
	if err != nil {
		return value{}, err
	}
	switch t := tok.(type) {
	case string:
		return value{kind: valueString, text: t}, nil
	case json.Delim:
		switch t {
		case '{':
			v := value{kind: valueObject}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return value{}, err
				}
				key, _ := kt.(string)
				child, err := readJSON(dec, depth+1)
				if err != nil {
					return value{}, err
				}
				v.fields = append(v.fields, field{key: key, val: child})
			}
			if _, err := dec.Token(); err != nil {
				return value{}, err
			}
			return v, nil
		case '[':
			for dec.More() {
				if _, err := readJSON(dec, depth+1); err != nil {
					return value{}, err
				}
			}
			if _, err := dec.Token(); err != nil {
				return value{}, err
			}
		}
	}
	return value{kind: valueOther}, nil
}

// DecodeYAML resolves a YAML payload. Mapping order is taken from the
// node tree, not from a decoded map.
func DecodeYAML(r io.Reader) (Input, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Input{}, ErrNoContent
		}
		return Input{}, fmt.Errorf("decode yaml: %w", err)
	}
	w := &yamlWalker{}
	v, err := w.value(&doc, 0)
	if err != nil {
		return Input{}, fmt.Errorf("decode yaml: %w", err)
	}
	return resolve(v)
}

// yamlWalker converts a node tree into a value, counting every node it
// visits so that alias fan-out cannot multiply the work.
type yamlWalker struct {
	nodes int
}

func (w *yamlWalker) value(n *yaml.Node, depth int) (value, error) {
	if depth > maxDepth {
		return value{}, errTooDeep
	}
	w.nodes++
	if w.nodes > maxNodes {
		return value{}, errTooLarge
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value{}, nil
		}
		return w.value(n.Content[0], depth+1)
	case yaml.AliasNode:
		if n.Alias == nil {
			return value{}, nil
		}
		return w.value(n.Alias, depth+1)
	case yaml.ScalarNode:
		if n.ShortTag() != "!!str" {
			return value{}, nil
		}
		return value{kind: valueString, text: n.Value}, nil
	case yaml.MappingNode:
		v := value{kind: valueObject}
		for i := 0; i+1 < len(n.Content); i += 2 {
			child, err := w.value(n.Content[i+1], depth+1)
			if err != nil {
				return value{}, err
			}
			v.fields = append(v.fields, field{key: n.Content[i].Value, val: child})
		}
		return v, nil
	}
	return value{}, nil
}
