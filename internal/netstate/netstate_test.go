package netstate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixed struct {
	state Connectivity
	err   error
}

func (f fixed) Connectivity(context.Context) (Connectivity, error) { return f.state, f.err }

func TestMonitorOnline(t *testing.T) {
	tests := []struct {
		name   string
		checker Checker
		want   bool
	}{
		{"no checker", nil, true},
		{"full", fixed{state: Full}, true},
		{"limited", fixed{state: Limited}, true},
		{"unknown", fixed{state: Unknown}, true},
		{"none", fixed{state: None}, false},
		{"checker error", fixed{err: errors.New("no such service")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.checker, nil).Online(context.Background()))
		})
	}
}
