package repourl

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyShape = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func TestDeriveCacheKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple https",
			input: "https://gitlab.com/group/project",
			want:  "gitlab-com-group-project",
		},
		{
			name:  "subgroups",
			input: "https://gitlab.com/group/sub/project",
			want:  "gitlab-com-group-sub-project",
		},
		{
			name:  "ssh shorthand matches https form",
			input: "git@gitlab.com:group/project.git",
			want:  "gitlab-com-group-project",
		},
		{
			name:  "dots in host and path collapse",
			input: "https://gitlab.example.com/team/app.config",
			want:  "gitlab-example-com-team-app-config",
		},
		{
			name:  "underscores survive",
			input: "https://gitlab.com/my_group/my_project",
			want:  "gitlab-com-my_group-my_project",
		},
		{
			name:  "port becomes a dash",
			input: "https://gitlab.example.com:8443/team/app",
			want:  "gitlab-example-com-8443-team-app",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ref, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, DeriveCacheKey(ref))
		})
	}
}

func TestDeriveCacheKeyShape(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://gitlab.com/a/b",
		"https://GitLab.Example.COM:8443/Team.Name/App_1",
		"git@gitlab.com:g/s/p.git",
		"https://gitlab.com/a.b.c/d---e",
	}

	for _, in := range inputs {
		ref, err := Normalize(in)
		require.NoError(t, err, in)

		key := DeriveCacheKey(ref)
		assert.Regexp(t, keyShape, key, in)
		assert.False(t, strings.HasPrefix(key, "-"), in)
		assert.False(t, strings.HasSuffix(key, "-"), in)
		assert.NotContains(t, key, "--", in)
	}
}

func TestDeriveCacheKeyDeterministic(t *testing.T) {
	t.Parallel()

	ref, err := Normalize("https://gitlab.com/group/sub/project")
	require.NoError(t, err)

	first := DeriveCacheKey(ref)
	second := DeriveCacheKey(ref)
	assert.Equal(t, first, second)
}

// Sanitization is not collision-free: "a/b" and "a-b" both map to "a-b".
// This is accepted behavior, asserted here so a future change to the scheme
// is a deliberate one.
func TestDeriveCacheKeyKnownCollision(t *testing.T) {
	t.Parallel()

	slash, err := Normalize("https://gitlab.com/a/b")
	require.NoError(t, err)

	dash, err := Normalize("https://gitlab.com/a-b")
	require.NoError(t, err)

	assert.Equal(t, DeriveCacheKey(slash), DeriveCacheKey(dash))
}
