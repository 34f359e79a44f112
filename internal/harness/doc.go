// Package harness runs weft conformance scenarios.
//
// A scenario is a small CUE program plus an entry call and the outcome it
// must produce. The harness runs it on a real Application, records every
// protocol message into an in-memory trace store, and checks the result
// and the recorded trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	workers: 1
//	entry: test.main
//	program: |
//	  module: test: fn: main: ops: [
//	    {op: "const", dst: "r0", val: 42},
//	    {op: "return", src: "r0"},
//	  ]
//	expect:
//	  status: success
//	  value: 42
//	assertions:
//	  - type: trace_count
//	    kind: request_code
//	    count: 1
//
// # Assertion Types
//
//   - trace_contains: a message of the given kind (and function) was recorded
//   - trace_order: messages appear in the given order
//   - trace_count: a message kind (and function) appears exactly N times
//   - stored_count: the trace store holds exactly N messages of a kind
//
// # Deterministic Testing
//
// Every scenario runs under a fixed run id and a fresh in-memory SQLite
// store. With one Worker and one entry call the recorded trace is identical
// on every run, so it can be compared against a golden file.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/native_call.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
