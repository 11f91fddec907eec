package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every given file, and every .hcl file below every given
// directory, and merges their blocks into one model. Substeps keep the order
// in which they appear, file by file.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.CollectFiles(paths, ".hcl")
	if err != nil {
		return nil, config.Errorf("%v", err)
	}
	if len(files) == 0 {
		return nil, config.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	evalCtx := newEvalContext()
	model := &config.Model{}
	haveMetadata := false

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: failed to parse HCL file %s: %w", config.ErrConfig, file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: failed to decode HCL file %s: %w", config.ErrConfig, file, diags)
		}

		if root.Metadata != nil {
			if haveMetadata {
				return nil, config.Errorf("%s: simulation_metadata is declared in more than one file", file)
			}
			haveMetadata = true
			model.Metadata = translateMetadata(root.Metadata)
		}
		for _, b := range root.Environment {
			v, err := translateVariable(b, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("%s: environment %q: %w", file, b.Name, err)
			}
			model.Environment = append(model.Environment, v)
		}
		for _, b := range root.Agents {
			g, err := translateAgents(b, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Agents = append(model.Agents, g)
		}
		for _, b := range root.Substeps {
			s, err := translateSubstep(b, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Substeps = append(model.Substeps, s)
		}
		logger.Debug("Successfully loaded definitions from HCL file.", "file", file)
	}

	if !haveMetadata {
		return nil, config.Errorf("simulation_metadata block is required")
	}

	logger.Debug("HCL loading complete.",
		"environment", len(model.Environment),
		"agent_groups", len(model.Agents),
		"substeps", len(model.Substeps),
	)
	return model, nil
}
