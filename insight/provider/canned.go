package provider

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed canned_answers.yaml
var defaultCannedYAML []byte

type CannedRoute struct {
	Key        string   `yaml:"key"`
	Keywords   []string `yaml:"keywords"`
	Answer     string   `yaml:"answer"`
	Context    string   `yaml:"context"`
	Confidence float64  `yaml:"confidence"`
}

// CannedAnswerer answers from a fixed keyword-routed table without any network call.
type CannedAnswerer struct {
	routes   []CannedRoute
	fallback CannedRoute
}

// DefaultCanned returns the built-in table.
func DefaultCanned() *CannedAnswerer {
	c, err := ParseCanned(defaultCannedYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCanned reads a table from a YAML file shaped like canned_answers.yaml.
func LoadCanned(path string) (*CannedAnswerer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseCanned(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ParseCanned decodes a table. Exactly one route must have no keywords; it answers everything else.
func ParseCanned(b []byte) (*CannedAnswerer, error) {
	var doc struct {
		Routes []CannedRoute `yaml:"routes"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse canned answers: %w", err)
	}
	c := &CannedAnswerer{}
	haveDefault := false
	for _, r := range doc.Routes {
		r.Answer = strings.TrimSpace(r.Answer)
		if r.Answer == "" {
			return nil, fmt.Errorf("canned route %q has no answer", r.Key)
		}
		if len(r.Keywords) == 0 {
			if haveDefault {
				return nil, errors.New("canned answers: more than one default route")
			}
			c.fallback, haveDefault = r, true
			continue
		}
		for i, k := range r.Keywords {
			r.Keywords[i] = strings.ToLower(strings.TrimSpace(k))
		}
		c.routes = append(c.routes, r)
	}
	if !haveDefault {
		return nil, errors.New("canned answers: no default route")
	}
	return c, nil
}

// Route picks the route for question.
func (c *CannedAnswerer) Route(question string) CannedRoute {
	lower := strings.ToLower(question)
	for _, r := range c.routes {
		for _, k := range r.Keywords {
			if strings.Contains(lower, k) {
				return r
			}
		}
	}
	return c.fallback
}

func (c *CannedAnswerer) Answer(ctx context.Context, req Request) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	r := c.Route(req.Question)
	return Answer{
		Answer:          r.Answer,
		Context:         r.Context,
		Confidence:      r.Confidence,
		VerseReferences: ExtractVerseReferences(r.Answer),
		Source:          "canned:" + r.Key,
	}, nil
}
