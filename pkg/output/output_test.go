package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-sh/thorium/pkg/events"
	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/tags"
	"github.com/thorium-sh/thorium/pkg/types"
)

func testService(t *testing.T) (*Service, *tags.Service) {
	t.Helper()
	store := memstore.New()
	bus := events.New(store)
	tagSvc := tags.New(store, time.Hour, bus)
	return New(store, tagSvc), tagSvc
}

func testResult(fields string) *types.Result {
	return &types.Result{
		Kind:       types.TagKindFiles,
		Key:        "deadbeef",
		Groups:     map[string]struct{}{"acme": {}},
		ResultJSON: []byte(fields),
		UploadedBy: "alice",
	}
}

func TestIngestExistsRuleTagsOnPresence(t *testing.T) {
	svc, tagSvc := testService(t)
	img := &types.Image{
		OutputCollection: types.OutputCollection{
			AutoTag: map[string]types.AutoTagRule{
				"family": {Logic: types.LogicExists},
			},
		},
	}
	require.NoError(t, svc.Ingest(img, testResult(`{"family":"trojan"}`)))

	got, err := tagSvc.Query(types.TagKindFiles, "acme", "family", "trojan")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "deadbeef", got[0].Item)
}

func TestIngestExistsRuleSkipsOnAbsence(t *testing.T) {
	svc, tagSvc := testService(t)
	img := &types.Image{
		OutputCollection: types.OutputCollection{
			AutoTag: map[string]types.AutoTagRule{
				"family": {Logic: types.LogicExists},
			},
		},
	}
	require.NoError(t, svc.Ingest(img, testResult(`{}`)))

	got, err := tagSvc.Query(types.TagKindFiles, "acme", "family", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIngestRenameOverridesTagKey(t *testing.T) {
	svc, tagSvc := testService(t)
	img := &types.Image{
		OutputCollection: types.OutputCollection{
			AutoTag: map[string]types.AutoTagRule{
				"score": {Logic: types.LogicGreater, Value: float64(5), Rename: "high-score"},
			},
		},
	}
	require.NoError(t, svc.Ingest(img, testResult(`{"score": 9}`)))

	got, err := tagSvc.Query(types.TagKindFiles, "acme", "high-score", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestIngestGreaterRuleRejectsNonNumericOperand(t *testing.T) {
	svc, _ := testService(t)
	img := &types.Image{
		OutputCollection: types.OutputCollection{
			AutoTag: map[string]types.AutoTagRule{
				"score": {Logic: types.LogicGreater, Value: "not-a-number"},
			},
		},
	}
	err := svc.Ingest(img, testResult(`{"score": 9}`))
	assert.Error(t, err)
}

func TestIngestInRuleMatchesMembership(t *testing.T) {
	svc, tagSvc := testService(t)
	img := &types.Image{
		OutputCollection: types.OutputCollection{
			AutoTag: map[string]types.AutoTagRule{
				"arch": {Logic: types.LogicIn, Value: []interface{}{"x86_64", "arm64"}},
			},
		},
	}
	require.NoError(t, svc.Ingest(img, testResult(`{"arch": "arm64"}`)))

	got, err := tagSvc.Query(types.TagKindFiles, "acme", "arch", "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestIngestNotInRuleExcludesMembership(t *testing.T) {
	svc, tagSvc := testService(t)
	img := &types.Image{
		OutputCollection: types.OutputCollection{
			AutoTag: map[string]types.AutoTagRule{
				"arch": {Logic: types.LogicNotIn, Value: []interface{}{"x86_64", "arm64"}},
			},
		},
	}
	require.NoError(t, svc.Ingest(img, testResult(`{"arch": "arm64"}`)))

	got, err := tagSvc.Query(types.TagKindFiles, "acme", "arch", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIngestPersistsResultEvenWithoutRules(t *testing.T) {
	svc, _ := testService(t)
	img := &types.Image{}
	r := testResult(`{}`)
	require.NoError(t, svc.Ingest(img, r))
	assert.NotEmpty(t, r.ID)
}
