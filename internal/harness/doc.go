// Package harness provides conformance testing for query compilation.
//
// The harness loads a schema, compiles one request per scenario and checks
// the logical and filtered expressions, the output columns and the lint
// warnings.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: eu_orders
//	description: "Orders with a large line, newest first"
//	schema: ../schema          # CUE directory; omit for the sample schema
//	options: [anyall, aggregates]
//	auth:
//	  properties: { Order.Total: "finance only" }
//	request:
//	  root: Order
//	  columns:
//	    - token: Number
//	    - token: Customer.Active
//	      name: Active customer
//	  filters:
//	    - token: Lines.Any.Quantity
//	      op: GreaterThan
//	      value: 5
//	    - group:
//	        or: true
//	        prefix: Lines.All
//	        filters:
//	          - { token: Lines.All.Product, op: StartsWith, value: "A" }
//	  orders:
//	    - { token: Date, descending: true }
//	  pagination: { firsts: 10 }   # or { size: 20, page: 2 }
//	  disable_filters: false
//	expect:
//	  logical: "Select(...)"
//	  filtered: "Select(...)"
//	  columns: [Number, Customer.Active]
//	  warnings: []
//
// An expected failure names the error code instead:
//
//	expect:
//	  error: UNKNOWN_TOKEN
//
// # Deterministic Testing
//
// Compilation ids come from a sequence ("test-0001") restarted for every
// scenario, so identical scenarios produce byte-identical snapshots for
// golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/eu_orders.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
