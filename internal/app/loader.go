package app

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/fsutil"
	"github.com/vk/substepgrid/internal/hcl"
	"github.com/vk/substepgrid/internal/yamlconfig"
)

// FormatLoader dispatches each configuration path to the HCL or YAML loader
// by extension and merges the results. Directories are searched for both
// formats.
type FormatLoader struct {
	HCL  config.Loader
	YAML config.Loader
}

// NewFormatLoader returns a loader for both supported formats.
func NewFormatLoader() *FormatLoader {
	return &FormatLoader{HCL: hcl.NewLoader(), YAML: yamlconfig.NewLoader()}
}

func (l *FormatLoader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var hclPaths, yamlPaths []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, config.Errorf("%v", err)
		}
		if !info.IsDir() {
			switch ext := strings.ToLower(filepath.Ext(p)); {
			case ext == ".hcl":
				hclPaths = append(hclPaths, p)
			case slices.Contains(yamlconfig.Extensions, ext):
				yamlPaths = append(yamlPaths, p)
			default:
				return nil, config.Errorf("%s: unsupported configuration format %q", p, ext)
			}
			continue
		}
		if found, err := fsutil.FindFilesByExtension(p, ".hcl"); err == nil && len(found) > 0 {
			hclPaths = append(hclPaths, p)
		}
		if found, err := fsutil.FindFilesByExtension(p, yamlconfig.Extensions...); err == nil && len(found) > 0 {
			yamlPaths = append(yamlPaths, p)
		}
	}
	if len(hclPaths) == 0 && len(yamlPaths) == 0 {
		return nil, config.Errorf("no configuration files found in %v", paths)
	}

	model := &config.Model{}
	for _, src := range []struct {
		loader config.Loader
		paths  []string
		format string
	}{{l.HCL, hclPaths, "hcl"}, {l.YAML, yamlPaths, "yaml"}} {
		if len(src.paths) == 0 {
			continue
		}
		m, err := src.loader.Load(ctx, src.paths...)
		if err != nil {
			return nil, err
		}
		logger.Debug("Configuration loaded.", "format", src.format, "substeps", len(m.Substeps))
		model.Merge(m)
	}
	return model, nil
}
