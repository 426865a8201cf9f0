package gitlab

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glab "gitlab.com/gitlab-org/api/client-go"
)

type fakeBranches struct {
	gotPID   any
	branches []*glab.Branch
	resp     *glab.Response
	err      error
}

func (f *fakeBranches) ListBranches(pid any, _ *glab.ListBranchesOptions, _ ...glab.RequestOptionFunc) ([]*glab.Branch, *glab.Response, error) {
	f.gotPID = pid
	return f.branches, f.resp, f.err
}

type fakeCommits struct {
	gotOpt  *glab.ListCommitsOptions
	commits []*glab.Commit
	err     error
}

func (f *fakeCommits) ListCommits(_ any, opt *glab.ListCommitsOptions, _ ...glab.RequestOptionFunc) ([]*glab.Commit, *glab.Response, error) {
	f.gotOpt = opt
	return f.commits, nil, f.err
}

type fakeRepositories struct {
	gotOpt  *glab.CompareOptions
	compare *glab.Compare
	err     error
}

func (f *fakeRepositories) Compare(_ any, opt *glab.CompareOptions, _ ...glab.RequestOptionFunc) (*glab.Compare, *glab.Response, error) {
	f.gotOpt = opt
	return f.compare, nil, f.err
}

type fakeFiles struct {
	gotPath string
	gotOpt  *glab.GetRawFileOptions
	content []byte
	resp    *glab.Response
	err     error
}

func (f *fakeFiles) GetRawFile(_ any, fileName string, opt *glab.GetRawFileOptions, _ ...glab.RequestOptionFunc) ([]byte, *glab.Response, error) {
	f.gotPath = fileName
	f.gotOpt = opt
	return f.content, f.resp, f.err
}

func httpResponse(code int) *glab.Response {
	return &glab.Response{Response: &http.Response{StatusCode: code}}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient("https://gitlab.example.com", "glpat-token")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestListBranches(t *testing.T) {
	t.Parallel()

	fake := &fakeBranches{
		branches: []*glab.Branch{
			{Name: "main", Default: true},
			{Name: "feature"},
		},
	}
	client := &Client{branches: fake}

	branches, err := client.ListBranches(context.Background(), "group/project")
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "group/project", fake.gotPID)
	assert.Equal(t, "main", branches[0].Name)
}

func TestListBranches_NotFound(t *testing.T) {
	t.Parallel()

	fake := &fakeBranches{
		resp: httpResponse(http.StatusNotFound),
		err:  errors.New("404 Project Not Found"),
	}
	client := &Client{branches: fake}

	_, err := client.ListBranches(context.Background(), "group/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBranches_Unauthorized(t *testing.T) {
	t.Parallel()

	fake := &fakeBranches{
		resp: httpResponse(http.StatusUnauthorized),
		err:  errors.New("401 Unauthorized"),
	}
	client := &Client{branches: fake}

	_, err := client.ListBranches(context.Background(), "group/project")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	fake := &fakeRepositories{compare: &glab.Compare{}}
	client := &Client{repositories: fake}

	_, err := client.Compare(context.Background(), "group/project", "main", "feature")
	require.NoError(t, err)
	require.NotNil(t, fake.gotOpt)
	assert.Equal(t, "main", *fake.gotOpt.From)
	assert.Equal(t, "feature", *fake.gotOpt.To)
}

func TestRawFile(t *testing.T) {
	t.Parallel()

	fake := &fakeFiles{content: []byte("package main\n")}
	client := &Client{files: fake}

	content, err := client.RawFile(context.Background(), "group/project", "cmd/main.go", "v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))
	assert.Equal(t, "cmd/main.go", fake.gotPath)
	require.NotNil(t, fake.gotOpt.Ref)
	assert.Equal(t, "v1.2.3", *fake.gotOpt.Ref)
}

func TestRawFile_NotFound(t *testing.T) {
	t.Parallel()

	fake := &fakeFiles{
		resp: httpResponse(http.StatusNotFound),
		err:  errors.New("404 File Not Found"),
	}
	client := &Client{files: fake}

	_, err := client.RawFile(context.Background(), "group/project", "nope.txt", "main")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCommits(t *testing.T) {
	t.Parallel()

	fake := &fakeCommits{
		commits: []*glab.Commit{{ID: "abc123"}, {ID: "def456"}},
	}
	client := &Client{commits: fake}

	commits, err := client.ListCommits(context.Background(), "group/project", "main", 2)
	require.NoError(t, err)
	assert.Len(t, commits, 2)
	require.NotNil(t, fake.gotOpt.RefName)
	assert.Equal(t, "main", *fake.gotOpt.RefName)
	assert.Equal(t, 2, fake.gotOpt.PerPage)
}

func TestListCommits_DefaultLimit(t *testing.T) {
	t.Parallel()

	fake := &fakeCommits{}
	client := &Client{commits: fake}

	_, err := client.ListCommits(context.Background(), "group/project", "main", 0)
	require.NoError(t, err)
	assert.Equal(t, 20, fake.gotOpt.PerPage)
}
