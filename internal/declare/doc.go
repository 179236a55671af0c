// Package declare builds slices from CUE declarations.
//
// A declaration file lists slices under the top-level "slice" struct:
//
//	slice: counter: {
//		state: {count: 0, label: "clicks"}
//	}
//	slice: summary: {
//		state: {total: 0}
//		deps: ["counter"]
//	}
//
// Compiling yields SliceDecls; Build turns them into a Catalog of runtime
// slices whose state is a Record (a string-keyed map). Every slice gets a
// "set" action that merges into, or replaces, the current record, and a
// Field per state key so effects can track reads key by key.
package declare
