package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenToFormData(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
		want  map[string]string
	}{
		{
			name:  "scalars",
			input: map[string]any{"amount": 1099, "rate": 0.15, "enabled": true, "note": nil},
			want:  map[string]string{"amount": "1099", "rate": "0.15", "enabled": "true", "note": ""},
		},
		{
			name: "nested mappings",
			input: map[string]any{
				"shipping": map[string]any{
					"address": map[string]any{"city": "NYC"},
				},
			},
			want: map[string]string{"shipping[address][city]": "NYC"},
		},
		{
			name: "sequences of mappings",
			input: map[string]any{
				"line_items": []any{
					map[string]any{"price": "p_1", "quantity": 2},
					"loose",
				},
			},
			want: map[string]string{
				"line_items[0][price]":    "p_1",
				"line_items[0][quantity]": "2",
				"line_items[1]":           "loose",
			},
		},
		{
			name:  "empty",
			input: map[string]any{},
			want:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flattenToFormData(tt.input, ""))
		})
	}
}

func TestParseBody(t *testing.T) {
	assert.Nil(t, parseBody(nil))
	assert.Nil(t, parseBody([]byte("  \n")))
	assert.Equal(t, "<xml/>", parseBody([]byte("<xml/>")))
	assert.Equal(t, []any{float64(1), "a"}, parseBody([]byte(`[1,"a"]`)))
	assert.Equal(t, map[string]any{"k": "v"}, parseBody([]byte(`{"k":"v"}`)))
}
