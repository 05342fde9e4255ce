package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/nanoprobe/errors"
)

func TestInfoString(t *testing.T) {
	dev := Info{Version: "dev", CommitHash: "abcdef1234", BuildTime: "now"}
	assert.Equal(t, "nanoprobe dev (commit abcdef1234, built now)", dev.String())
	assert.Equal(t, "abcdef1", dev.Short())

	tagged := Info{Version: "1.4.0", CommitHash: "abc", BuildTime: "now"}
	assert.Equal(t, "nanoprobe 1.4.0 (commit abc, built now)", tagged.String())
	assert.Equal(t, "abc", tagged.Short())
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		constraint string
		wantErr    bool
		incompat   bool
	}{
		{name: "empty constraint", version: "1.0.0", constraint: ""},
		{name: "dev build skips check", version: "dev", constraint: ">= 9.0"},
		{name: "within range", version: "1.4.0", constraint: ">= 1.2, < 2"},
		{name: "too old", version: "1.1.0", constraint: ">= 1.2", wantErr: true, incompat: true},
		{name: "bad constraint", version: "1.4.0", constraint: "not-a-constraint", wantErr: true},
		{name: "bad version", version: "one.two", constraint: ">= 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Info{Version: tt.version}.Satisfies(tt.constraint)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.incompat, errors.Is(err, errors.ErrIncompatibleVersion))
		})
	}
}
