package v1alpha1

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thorium-sh/thorium/pkg/types"
)

func TestValidateRejectsUnknownScaler(t *testing.T) {
	c := &ThoriumCluster{Spec: ThoriumClusterSpec{Scaler: "bogus"}}
	assert.Error(t, c.Validate())
}

func TestValidateRequiresKubeConfigForK8s(t *testing.T) {
	c := &ThoriumCluster{Spec: ThoriumClusterSpec{Scaler: types.ScalerK8s}}
	assert.Error(t, c.Validate())

	c.Spec.KubeConfigSecret = "kubeconfig"
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsInvertedNodeBounds(t *testing.T) {
	c := &ThoriumCluster{Spec: ThoriumClusterSpec{Scaler: types.ScalerBareMetal, MinNodes: 5, MaxNodes: 1}}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsNegativeFairShare(t *testing.T) {
	c := &ThoriumCluster{Spec: ThoriumClusterSpec{Scaler: types.ScalerBareMetal, FairShareWeight: -1}}
	assert.Error(t, c.Validate())
}

func TestValidateAcceptsBareMetal(t *testing.T) {
	c := &ThoriumCluster{Spec: ThoriumClusterSpec{Scaler: types.ScalerBareMetal, MinNodes: 1, MaxNodes: 10}}
	assert.NoError(t, c.Validate())
}

func TestIsReady(t *testing.T) {
	c := &ThoriumCluster{Status: ThoriumClusterStatus{Phase: PhaseReady}}
	assert.True(t, c.IsReady())

	c.Status.Phase = PhasePending
	assert.False(t, c.IsReady())

	var nilCluster *ThoriumCluster
	assert.False(t, nilCluster.IsReady())
}

func TestDeepCopyIsIndependent(t *testing.T) {
	c := &ThoriumCluster{Spec: ThoriumClusterSpec{Bans: []string{"bad-image"}}}
	cp := c.DeepCopy()
	cp.Spec.Bans[0] = "mutated"
	assert.Equal(t, "bad-image", c.Spec.Bans[0])
}
