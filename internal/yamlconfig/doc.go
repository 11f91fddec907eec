// Package yamlconfig loads simulation configuration written in YAML:
//
//	simulation_metadata:
//	  num_episodes: 1
//	  num_steps_per_episode: 10
//	state:
//	  environment:
//	    product_stocks: {value: [10, 5, 50], shape: [3], dtype: float}
//	  agents:
//	    consumers:
//	      number: 50
//	      properties:
//	        budget:
//	          dtype: float
//	          shape: [50, 1]
//	          initialization_function:
//	            generator: uniform
//	            arguments: {low: 50, high: 150}
//	substeps:
//	  "0":
//	    name: Purchase
//	    active_agents: [consumers]
//	    observation: {}
//	    policy: {}
//	    transition: {}
//
// Substeps run in document order. Mapping order is preserved by decoding
// through yaml.Node.
package yamlconfig
