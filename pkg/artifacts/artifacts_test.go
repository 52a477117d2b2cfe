package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-sh/thorium/pkg/events"
	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/types"
)

func groups(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func testRegistry() *Registry {
	store := memstore.New()
	return New(store, events.New(store))
}

func TestSubmitSampleRejectsEmptySHA(t *testing.T) {
	r := testRegistry()
	_, err := r.SubmitSample("", "acme", "alice", types.OriginDownloaded)
	assert.Error(t, err)
}

func TestSubmitSampleThenGetVisible(t *testing.T) {
	r := testRegistry()
	sha := "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	_, err := r.SubmitSample(sha, "acme", "alice", types.OriginDownloaded)
	require.NoError(t, err)

	got, err := r.GetSample(sha, groups("acme"))
	require.NoError(t, err)
	assert.Equal(t, sha, got.SHA256)
	_, visible := got.Groups["acme"]
	assert.True(t, visible)
}

func TestGetSampleHidesFromNonMemberGroup(t *testing.T) {
	r := testRegistry()
	sha := "cafebabecafebabecafebabecafebabecafebabecafebabecafebabecafebabe"
	_, err := r.SubmitSample(sha, "acme", "alice", types.OriginDownloaded)
	require.NoError(t, err)

	_, err = r.GetSample(sha, groups("other-group"))
	assert.Error(t, err, "sample submitted to acme must not be visible to other-group")
}

func TestResubmissionExtendsVisibility(t *testing.T) {
	r := testRegistry()
	sha := "1111111111111111111111111111111111111111111111111111111111111"
	_, err := r.SubmitSample(sha, "acme", "alice", types.OriginDownloaded)
	require.NoError(t, err)
	_, err = r.SubmitSample(sha, "other-group", "bob", types.OriginUnpacked)
	require.NoError(t, err)

	got, err := r.GetSample(sha, groups("other-group"))
	require.NoError(t, err)
	_, stillAcme := got.Groups["acme"]
	_, alsoOther := got.Groups["other-group"]
	assert.True(t, stillAcme)
	assert.True(t, alsoOther)
	assert.Len(t, got.Submissions, 2)
}

func TestResolveRepoCommitishPrefersPinned(t *testing.T) {
	r := testRegistry()
	dep := types.RepoDependency{URL: "https://example.com/repo.git", Commitish: "abc123"}
	c, err := r.ResolveRepoCommitish(dep, groups("acme"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", c)
}

func TestResolveRepoCommitishFallsBackToDefaultBranchHead(t *testing.T) {
	r := testRegistry()
	url := "https://example.com/other.git"
	_, err := r.SubmitRepo(url, "acme", "alice", types.OriginSource)
	require.NoError(t, err)

	rep, err := r.GetRepo(url, groups("acme"))
	require.NoError(t, err)
	rep.DefaultBranchHead = "main-head-sha"

	c, err := r.ResolveRepoCommitish(types.RepoDependency{URL: url}, groups("acme"))
	require.NoError(t, err)
	assert.Equal(t, "main-head-sha", c)
}

func TestResolveRepoCommitishUnavailableWithoutDefaultBranchHead(t *testing.T) {
	r := testRegistry()
	url := "https://example.com/unresolved.git"
	_, err := r.SubmitRepo(url, "acme", "alice", types.OriginSource)
	require.NoError(t, err)

	_, err = r.ResolveRepoCommitish(types.RepoDependency{URL: url}, groups("acme"))
	assert.Error(t, err)
}
