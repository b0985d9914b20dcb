// Package harness runs conformance scenarios against every data source
// backend and checks that they agree.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: users
//	description: "What this scenario validates"
//	schema: |
//	  table: users: {
//	  	primary_key: ["id"]
//	  	fields: {
//	  		id: {type: "integer", serial: true}
//	  		name: "string"
//	  	}
//	  }
//	table: users
//	rows:
//	  - {id: 1, name: foo}
//	steps:
//	  - op: read
//	    query:
//	      where: "name = ?"
//	      args: [foo]
//	      order: [{by: id, desc: true}]
//	      limit: 1
//	    expect:
//	      rows:
//	        - {id: 1}
//
// # Operations
//
//   - read: reads records; expect rows (subset match per row, in order) or count
//   - count: counts records; expect count
//   - insert: inserts data; expect key
//   - update: updates matched records with data; expect count
//   - delete: deletes matched records; expect count
//
// Any step may instead expect an error kind: lex, parse, binding,
// unknown_field, type_coercion or unsupported.
//
// # Backends
//
// Each backend gets a fresh source loaded with the scenario rows, and
// steps run in order so mutations carry over. After every backend has
// run, the outcomes of each step are compared; any difference fails the
// scenario even when each backend met the expectations on its own.
//
// # Golden Files
//
// RunWithGolden additionally compiles every step for each SQL dialect and
// compares the statements against testdata/golden/{scenario}.golden.
package harness
