package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSame(t *testing.T) {
	m := map[string]any{"a": 1}
	s := []int{1, 2, 3}
	p := &oneState{KeyOne: "x"}
	type withSlice struct{ Items []int }

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"both nil", nil, nil, true},
		{"one nil", nil, 1, false},
		{"equal ints", 1, 1, true},
		{"different types", 1, int64(1), false},
		{"equal strings", "x", "x", true},
		{"equal comparable structs", oneState{KeyOne: "x"}, oneState{KeyOne: "x"}, true},
		{"same pointer", p, p, true},
		{"distinct equal pointers", p, &oneState{KeyOne: "x"}, false},
		{"same map", m, m, true},
		{"distinct equal maps", m, map[string]any{"a": 1}, false},
		{"same slice", s, s, true},
		{"resliced", s, s[:2], false},
		{"non-comparable struct", withSlice{Items: s}, withSlice{Items: s}, false},
		{"interface field holding slice", struct{ V any }{V: s}, struct{ V any }{V: s}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Same(tt.a, tt.b))
		})
	}
}
