package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid", Invalidf("sample size %d", -1), "invalid_input"},
		{"wrapped invalid", fmt.Errorf("sampling: %w", Invalidf("empty")), "invalid_input"},
		{"insufficient", Insufficientf("only %d observations", 3), "insufficient_data"},
		{"other", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func TestInvalidfMessage(t *testing.T) {
	err := Invalidf("likelihood %d outside [1,5]", 7)
	assert.EqualError(t, err, "invalid input: likelihood 7 outside [1,5]")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, ErrInsufficientData)
}
