package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"WAIT", StatusPending},
		{"RUN", StatusRunning},
		{"DONE", StatusDone},
		{"FAIL", StatusFailed},
		{" done ", StatusDone},
		{"", StatusRunning},
		{"SOMETHING_NEW", StatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStatus(tt.in))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusDone.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestParseKind(t *testing.T) {
	t.Run("aliases", func(t *testing.T) {
		cases := map[string]Kind{
			"hunyuan":        KindGeneration,
			"pro":            KindGeneration,
			"rapid":          KindRapidGeneration,
			"smart-topology": KindRetopology,
			"part":           KindPartDecomposition,
			"Texture-Edit":   KindTextureEdit,
			"uv":             KindUVUnwrap,
			"convert":        KindConversion,
		}
		for in, want := range cases {
			got, err := ParseKind(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}
	})

	t.Run("canonical names round trip", func(t *testing.T) {
		for _, k := range Kinds {
			got, err := ParseKind(k.String())
			require.NoError(t, err)
			assert.Equal(t, k, got)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseKind("sculpt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sculpt")
	})
}

func TestSnapshotDiagnostic(t *testing.T) {
	s := &Snapshot{ErrorCode: "InvalidParameter", ErrorMessage: "bad image"}
	assert.Equal(t, "InvalidParameter - bad image", s.Diagnostic())

	empty := &Snapshot{}
	assert.Equal(t, "Unknown - Unknown error", empty.Diagnostic())
}
