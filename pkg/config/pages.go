package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// SingleURLLabel is the label of a page given on its own.
const SingleURLLabel = "PageType"

// Pages is an ordered list of page targets. In YAML it is written either as
// a mapping of label to URL, whose order is kept, or as a sequence of
// {label, url} objects.
type Pages []types.PageTarget

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Pages) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		out := make(Pages, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var label, url string
			if err := node.Content[i].Decode(&label); err != nil {
				return fmt.Errorf("line %d: page label: %w", node.Content[i].Line, err)
			}
			if err := node.Content[i+1].Decode(&url); err != nil {
				return fmt.Errorf("line %d: page url: %w", node.Content[i+1].Line, err)
			}
			out = append(out, types.PageTarget{Label: label, URL: url})
		}
		*p = out
		return nil

	case yaml.SequenceNode:
		var out []types.PageTarget
		if err := node.Decode(&out); err != nil {
			return err
		}
		*p = out
		return nil

	default:
		return fmt.Errorf("line %d: pages must be a mapping or a list", node.Line)
	}
}

// LoadBatch reads "label: url" lines. The line is split at the first colon;
// blank lines, "#" comments and lines without a label or URL are skipped.
func LoadBatch(r io.Reader) (Pages, error) {
	var out Pages
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		label, url, ok := strings.Cut(line, ":")
		label, url = strings.TrimSpace(label), strings.TrimSpace(url)
		if !ok || label == "" || url == "" {
			continue
		}
		out = append(out, types.PageTarget{Label: label, URL: url})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return out, nil
}

// SinglePage returns the target list for one URL.
func SinglePage(url string) Pages {
	return Pages{{Label: SingleURLLabel, URL: url}}
}
