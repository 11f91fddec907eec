package app

import (
	"github.com/vk/substepgrid/internal/registry"
	"github.com/vk/substepgrid/modules/env_vars"
	"github.com/vk/substepgrid/modules/initializers"
	"github.com/vk/substepgrid/modules/print"
	"github.com/vk/substepgrid/modules/retail"
)

// coreModules is the definitive list of all modules that are compiled into
// the substepgrid binary.
var coreModules = []registry.Module{
	&initializers.Module{},
	&env_vars.Module{},
	&print.Module{},
	&retail.Module{},
}
