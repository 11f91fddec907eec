package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot decodes all possible top-level blocks from any file.
type fileRoot struct {
	Metadata    *metadataBlock   `hcl:"simulation_metadata,block"`
	Environment []*variableBlock `hcl:"environment,block"`
	Agents      []*agentsBlock   `hcl:"agents,block"`
	Substeps    []*substepBlock  `hcl:"substep,block"`
}

type metadataBlock struct {
	NumEpisodes        int    `hcl:"num_episodes"`
	NumStepsPerEpisode int    `hcl:"num_steps_per_episode"`
	Calibration        bool   `hcl:"calibration,optional"`
	Seed               *int64 `hcl:"seed,optional"`
	AtomicSteps        bool   `hcl:"atomic_steps,optional"`
}

// variableBlock is an `environment "<name>"` block or an agent
// `property "<name>"` block.
type variableBlock struct {
	Name        string         `hcl:"name,label"`
	Value       hcl.Expression `hcl:"value,optional"`
	Shape       []int          `hcl:"shape,optional"`
	DType       string         `hcl:"dtype,optional"`
	Learnable   bool           `hcl:"learnable,optional"`
	Initializer string         `hcl:"initializer,optional"`
	Arguments   hcl.Expression `hcl:"arguments,optional"`
}

type agentsBlock struct {
	Name       string           `hcl:"name,label"`
	Number     int              `hcl:"number"`
	Properties []*variableBlock `hcl:"property,block"`
}

type substepBlock struct {
	Key          string      `hcl:"key,label"`
	Name         string      `hcl:"name,optional"`
	Description  string      `hcl:"description,optional"`
	ActiveAgents []string    `hcl:"active_agents,optional"`
	Observation  *phaseBlock `hcl:"observation,block"`
	Policy       *phaseBlock `hcl:"policy,block"`
	Transition   *phaseBlock `hcl:"transition,block"`
}

type phaseBlock struct {
	Inputs    []string       `hcl:"inputs,optional"`
	Outputs   []string       `hcl:"outputs,optional"`
	Arguments hcl.Expression `hcl:"arguments,optional"`
}
