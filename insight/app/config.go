package app

import (
	"flag"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

func applyConfig(fs *flag.FlagSet, b []byte, source string) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("config file %s: %w", source, err)
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if fs.Lookup(k) == nil {
			return fmt.Errorf("config file %s: unknown option %q", source, k)
		}
		if explicit[k] {
			continue
		}
		v, err := scalarString(doc[k])
		if err != nil {
			return fmt.Errorf("config file %s: %s: %w", source, k, err)
		}
		if err := fs.Set(k, v); err != nil {
			return fmt.Errorf("config file %s: %s: %w", source, k, err)
		}
	}
	return nil
}

func scalarString(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			s, err := scalarString(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	case map[string]interface{}:
		return "", fmt.Errorf("nested mappings are not supported")
	default:
		return fmt.Sprint(x), nil
	}
}
