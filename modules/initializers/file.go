package initializers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/internal/stage"
	"github.com/vk/substepgrid/internal/state"
	"github.com/vk/substepgrid/internal/yamlconfig"
	"gopkg.in/yaml.v3"
)

type fileArgs struct {
	FilePath string `cty:"file_path"`
	// Key selects a nested entry with a dotted path, e.g. "products.stock".
	Key string `cty:"key"`
}

// ReadFromFile loads values from a YAML or JSON file. Relative paths are
// resolved against the configuration directory. The selected value is
// flattened in row-major order and must hold exactly as many elements as the
// variable.
func ReadFromFile(_ context.Context, req registry.InitRequest) (any, error) {
	var args fileArgs
	if err := stage.DecodeArguments(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	if args.FilePath == "" {
		return nil, fmt.Errorf("%s: read_from_file requires a file_path argument", req.Name)
	}
	path := args.FilePath
	if !filepath.IsAbs(path) && req.BaseDir != "" {
		path = filepath.Join(req.BaseDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%s: parsing %s: %w", req.Name, path, err)
	}
	val, err := yamlconfig.ToCty(&root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}

	if args.Key != "" {
		for _, part := range strings.Split(args.Key, ".") {
			if !val.Type().IsObjectType() || !val.Type().HasAttribute(part) {
				return nil, fmt.Errorf("%s: key %q not found in %s", req.Name, args.Key, path)
			}
			val = val.GetAttr(part)
		}
	}

	leaves, err := config.Flatten(val)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	if len(leaves) != req.Size {
		return nil, fmt.Errorf("%s: %s holds %d elements, variable needs %d", req.Name, path, len(leaves), req.Size)
	}
	if req.DType == state.String {
		return config.Strings(leaves)
	}
	return config.Floats(leaves)
}
