package workerspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		gpus     int
		mode     string
		expected []Spec
	}{
		{
			name:     "empty defaults to simulation",
			raw:      "",
			gpus:     0,
			mode:     GPUModeActual,
			expected: []Spec{{Type: "simulation", Count: 1}},
		},
		{
			name:     "explicit counts",
			raw:      "simulation:3",
			gpus:     0,
			mode:     GPUModeActual,
			expected: []Spec{{Type: "simulation", Count: 3}},
		},
		{
			name:     "auto resolves against hardware",
			raw:      "comfyui:auto",
			gpus:     2,
			mode:     GPUModeActual,
			expected: []Spec{{Type: "comfyui", Count: 2}},
		},
		{
			name:     "auto under mock resolves to one",
			raw:      "comfyui:auto",
			gpus:     0,
			mode:     GPUModeMock,
			expected: []Spec{{Type: "comfyui", Count: 1}},
		},
		{
			name:     "unknown type dropped, valid kept",
			raw:      "bogus:2,simulation:1",
			gpus:     0,
			mode:     GPUModeActual,
			expected: []Spec{{Type: "simulation", Count: 1}},
		},
		{
			name:     "unparsable count falls back to one",
			raw:      "simulation:many",
			gpus:     0,
			mode:     GPUModeActual,
			expected: []Spec{{Type: "simulation", Count: 1}},
		},
		{
			name:     "missing count defaults to one",
			raw:      "simulation",
			gpus:     0,
			mode:     GPUModeActual,
			expected: []Spec{{Type: "simulation", Count: 1}},
		},
		{
			name:     "gpu-bound drops to nothing without gpus in actual mode",
			raw:      "comfyui:auto",
			gpus:     0,
			mode:     GPUModeActual,
			expected: nil,
		},
		{
			name:     "truncation to gpu count",
			raw:      "comfyui:8",
			gpus:     2,
			mode:     GPUModeActual,
			expected: []Spec{{Type: "comfyui", Count: 2}},
		},
		{
			name: "multiple entries keep order",
			raw:  "comfyui:auto,simulation:2",
			gpus: 1,
			mode: GPUModeActual,
			expected: []Spec{
				{Type: "comfyui", Count: 1},
				{Type: "simulation", Count: 2},
			},
		},
		{
			name:     "whitespace tolerated",
			raw:      " simulation : 2 ",
			gpus:     0,
			mode:     GPUModeActual,
			expected: []Spec{{Type: "simulation", Count: 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := Parse(tt.raw, optsWith(tt.gpus, tt.mode))
			assert.Equal(t, tt.expected, specs)
		})
	}
}
