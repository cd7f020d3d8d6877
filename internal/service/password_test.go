package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid", password: "Passw0rd!", wantErr: false},
		{name: "minimal valid", password: "Abcdefg1", wantErr: false},
		{name: "too short", password: "Ab1c", wantErr: true},
		{name: "no digit", password: "Abcdefgh", wantErr: true},
		{name: "no uppercase", password: "abcdefg1", wantErr: true},
		{name: "no lowercase", password: "ABCDEFG1", wantErr: true},
		{name: "empty", password: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidatePassword(tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrPasswordPolicy)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
