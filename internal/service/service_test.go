package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShapeBranches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  []string
		want []string
	}{
		{
			name: "main first then sorted",
			raw:  []string{"zeta", "main", "alpha"},
			want: []string{"main", "alpha", "zeta"},
		},
		{
			name: "master first when no main",
			raw:  []string{"release", "master", "develop"},
			want: []string{"master", "develop", "release"},
		},
		{
			name: "main beats master",
			raw:  []string{"master", "main"},
			want: []string{"main", "master"},
		},
		{
			name: "HEAD pseudo entry dropped",
			raw:  []string{"HEAD", "main", "feature"},
			want: []string{"main", "feature"},
		},
		{
			name: "duplicates removed",
			raw:  []string{"main", "main", "feature", "feature"},
			want: []string{"main", "feature"},
		},
		{
			name: "empty entries dropped",
			raw:  []string{"", "feature"},
			want: []string{"feature"},
		},
		{
			name: "no default branch",
			raw:  []string{"beta", "alpha"},
			want: []string{"alpha", "beta"},
		},
		{
			name: "empty input",
			raw:  nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, shapeBranches(tt.raw))
		})
	}
}

func TestCredential(t *testing.T) {
	t.Parallel()

	assert.Nil(t, credential(RepoRequest{URL: "https://gitlab.com/a/b"}))

	cred := credential(RepoRequest{URL: "https://gitlab.com/a/b", Token: "glpat-x"})
	assert.NotNil(t, cred)
	assert.Equal(t, "glpat-x", cred.Token)
	assert.Empty(t, cred.Username)
}
