package yamlconfig

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/substepgrid/internal/config"
	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Extensions lists the file extensions picked up from directories.
var Extensions = []string{".yaml", ".yml"}

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

type document struct {
	Metadata *metadataDoc `yaml:"simulation_metadata"`
	State    struct {
		Environment yaml.Node `yaml:"environment"`
		Agents      yaml.Node `yaml:"agents"`
	} `yaml:"state"`
	Substeps yaml.Node `yaml:"substeps"`
}

type metadataDoc struct {
	NumEpisodes        int    `yaml:"num_episodes"`
	NumStepsPerEpisode int    `yaml:"num_steps_per_episode"`
	Calibration        bool   `yaml:"calibration"`
	Seed               *int64 `yaml:"seed"`
	AtomicSteps        bool   `yaml:"atomic_steps"`
}

type variableDoc struct {
	Value       yaml.Node `yaml:"value"`
	Shape       []int     `yaml:"shape"`
	DType       string    `yaml:"dtype"`
	Learnable   bool      `yaml:"learnable"`
	Initializer string    `yaml:"initializer"`
	Arguments   yaml.Node `yaml:"arguments"`
	InitFunc    *struct {
		Generator string    `yaml:"generator"`
		Arguments yaml.Node `yaml:"arguments"`
	} `yaml:"initialization_function"`
}

type groupDoc struct {
	Number     int       `yaml:"number"`
	Properties yaml.Node `yaml:"properties"`
}

type substepDoc struct {
	Name         string    `yaml:"name"`
	Description  string    `yaml:"description"`
	ActiveAgents []string  `yaml:"active_agents"`
	Observation  yaml.Node `yaml:"observation"`
	Policy       yaml.Node `yaml:"policy"`
	Transition   yaml.Node `yaml:"transition"`
}

type phaseDoc struct {
	Inputs    []string  `yaml:"input_variables"`
	Outputs   []string  `yaml:"output_variables"`
	Arguments yaml.Node `yaml:"arguments"`
}

// Load reads every given file, and every .yaml/.yml file below every given
// directory, and merges them into one model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	files, err := fsutil.CollectFiles(paths, Extensions...)
	if err != nil {
		return nil, config.Errorf("%v", err)
	}
	if len(files) == 0 {
		return nil, config.Errorf("no YAML files found in %v", paths)
	}

	model := &config.Model{}
	haveMetadata := false
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, config.Errorf("reading %s: %v", file, err)
		}
		part, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		if part.Metadata.Declared {
			if haveMetadata {
				return nil, config.Errorf("%s: simulation_metadata is declared in more than one file", file)
			}
			haveMetadata = true
		}
		model.Merge(part)
		logger.Debug("Successfully loaded definitions from YAML file.", "file", file)
	}

	if !haveMetadata {
		return nil, config.Errorf("simulation_metadata is required")
	}
	logger.Debug("YAML loading complete.",
		"environment", len(model.Environment),
		"agent_groups", len(model.Agents),
		"substeps", len(model.Substeps),
	)
	return model, nil
}

// Parse translates one YAML document into a model.
func Parse(data []byte) (*config.Model, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, config.Errorf("decoding YAML: %v", err)
	}

	model := &config.Model{}
	if doc.Metadata != nil {
		model.Metadata = config.Metadata{
			Declared:           true,
			NumEpisodes:        doc.Metadata.NumEpisodes,
			NumStepsPerEpisode: doc.Metadata.NumStepsPerEpisode,
			Calibration:        doc.Metadata.Calibration,
			Seed:               doc.Metadata.Seed,
			AtomicSteps:        doc.Metadata.AtomicSteps,
		}
	}

	err := eachEntry(&doc.State.Environment, func(name string, n *yaml.Node) error {
		v, err := translateVariable(name, n)
		if err != nil {
			return fmt.Errorf("state.environment.%s: %w", name, err)
		}
		model.Environment = append(model.Environment, v)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachEntry(&doc.State.Agents, func(name string, n *yaml.Node) error {
		var gd groupDoc
		if err := n.Decode(&gd); err != nil {
			return config.Errorf("state.agents.%s: %v", name, err)
		}
		g := &config.AgentGroup{Name: name, Number: gd.Number}
		err := eachEntry(&gd.Properties, func(prop string, pn *yaml.Node) error {
			v, err := translateVariable(prop, pn)
			if err != nil {
				return fmt.Errorf("state.agents.%s.properties.%s: %w", name, prop, err)
			}
			g.Properties = append(g.Properties, v)
			return nil
		})
		if err != nil {
			return err
		}
		model.Agents = append(model.Agents, g)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachEntry(&doc.Substeps, func(key string, n *yaml.Node) error {
		s, err := translateSubstep(key, n)
		if err != nil {
			return fmt.Errorf("substeps.%s: %w", key, err)
		}
		model.Substeps = append(model.Substeps, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return model, nil
}

// eachEntry calls fn for every key of a mapping node in document order. An
// absent or null node has no entries.
func eachEntry(n *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	if isAbsent(n) {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return config.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := fn(n.Content[i].Value, n.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func isAbsent(n *yaml.Node) bool {
	return n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

func translateVariable(name string, n *yaml.Node) (*config.Variable, error) {
	var vd variableDoc
	if err := n.Decode(&vd); err != nil {
		return nil, config.Errorf("%v", err)
	}

	v := &config.Variable{
		Name:        name,
		DType:       vd.DType,
		Shape:       vd.Shape,
		Learnable:   vd.Learnable,
		Initializer: vd.Initializer,
	}
	var err error
	if v.Value, err = ToCty(&vd.Value); err != nil {
		return nil, err
	}

	argsNode := &vd.Arguments
	if vd.InitFunc != nil {
		if v.Initializer != "" {
			return nil, config.Errorf("initializer and initialization_function are mutually exclusive")
		}
		v.Initializer = vd.InitFunc.Generator
		argsNode = &vd.InitFunc.Arguments
	}
	if v.Arguments, err = argumentsMap(argsNode); err != nil {
		return nil, err
	}
	return v, nil
}

func translateSubstep(key string, n *yaml.Node) (*config.Substep, error) {
	var sd substepDoc
	if err := n.Decode(&sd); err != nil {
		return nil, config.Errorf("%v", err)
	}
	s := &config.Substep{
		Key:          key,
		Name:         sd.Name,
		Description:  sd.Description,
		ActiveAgents: sd.ActiveAgents,
	}
	if s.Name == "" {
		s.Name = key
	}

	var err error
	if s.Observation, err = translatePhase(&sd.Observation); err != nil {
		return nil, fmt.Errorf("observation: %w", err)
	}
	if s.Policy, err = translatePhase(&sd.Policy); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	if s.Transition, err = translatePhase(&sd.Transition); err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}
	return s, nil
}

func translatePhase(n *yaml.Node) (*config.Phase, error) {
	if isAbsent(n) {
		return nil, nil
	}
	var pd phaseDoc
	if err := n.Decode(&pd); err != nil {
		return nil, config.Errorf("%v", err)
	}
	args, err := argumentsMap(&pd.Arguments)
	if err != nil {
		return nil, err
	}
	return &config.Phase{Inputs: pd.Inputs, Outputs: pd.Outputs, Arguments: args}, nil
}

func argumentsMap(n *yaml.Node) (map[string]cty.Value, error) {
	if isAbsent(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, config.Errorf("line %d: arguments must be a mapping", n.Line)
	}
	val, err := ToCty(n)
	if err != nil {
		return nil, err
	}
	if val.LengthInt() == 0 {
		return nil, nil
	}
	return val.AsValueMap(), nil
}
