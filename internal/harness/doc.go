// Package harness runs YAML conformance scenarios against the query
// engine.
//
// Each scenario gets a fresh in-memory store, is seeded with records and
// then runs query, put and delete steps through the engine, comparing each
// step with its expectation. Steps are traced (strategy, result keys,
// store calls, error class) for golden file comparison.
//
// # Scenario Format
//
//	name: fruit_colors
//	description: "OR over two colors fans out and merges by size"
//	models: models.cue
//	seed:
//	  - key: "fruit:1"
//	    properties: {color: red, size: 5}
//	steps:
//	  - query:
//	      kind: fruit
//	      where:
//	        or:
//	          - {column: color, op: "=", value: red}
//	          - {column: color, op: "=", value: green}
//	      order: ["-size"]
//	    expect:
//	      strategy: fan-out
//	      keys: ["fruit:1"]
//	  - put:
//	      - {kind: user, properties: {email: a@example.com}}
//	    expect:
//	      error: integrity
//
// Store calls made inside write transactions (unique checks) are not
// counted in a step's subqueries.
package harness
