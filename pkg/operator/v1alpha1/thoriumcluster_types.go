/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

const ThoriumClusterKind = "ThoriumCluster"

type ThoriumClusterPhase string

const (
	PhasePending     ThoriumClusterPhase = "Pending"
	PhaseProvisioned ThoriumClusterPhase = "Provisioned"
	PhaseReady       ThoriumClusterPhase = "Ready"
	PhaseDegraded    ThoriumClusterPhase = "Degraded"
	PhaseDeleting    ThoriumClusterPhase = "Deleting"
)

// ThoriumClusterSpec describes one scaler target: the backend it drives
// (K8s/Direct/Kvm, per spec §4.9's scaler.Core(scaler, cluster)
// partition), its node pool bounds, and its starting fair-share weight.
type ThoriumClusterSpec struct {
	Scaler types.ScalerKind `json:"scaler"`

	// KubeConfigSecret names the Secret holding the kubeconfig used to
	// drive this cluster, required when Scaler is K8s.
	KubeConfigSecret string `json:"kubeConfigSecret,omitempty"`

	MinNodes int `json:"minNodes,omitempty"`
	MaxNodes int `json:"maxNodes,omitempty"`

	// FairShareWeight seeds the per-group fair share tracker for groups
	// that have never run a job on this cluster.
	FairShareWeight float64 `json:"fairShareWeight,omitempty"`

	// Bans lists image/pipeline names this cluster's backend should
	// refuse to schedule, independent of registry-level bans.
	Bans []string `json:"bans,omitempty"`
}

type ThoriumClusterStatus struct {
	Phase ThoriumClusterPhase `json:"phase,omitempty"`

	ObservedNodes   int `json:"observedNodes,omitempty"`
	AllocatedNodes  int `json:"allocatedNodes,omitempty"`
	PendingDeletion int `json:"pendingDeletion,omitempty"`

	LastPlanError string `json:"lastPlanError,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Cluster
// +kubebuilder:rbac:groups=thorium.sh,resources=thoriumclusters,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=thorium.sh,resources=thoriumclusters/status,verbs=get;update;patch

type ThoriumCluster struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ThoriumClusterSpec   `json:"spec,omitempty"`
	Status ThoriumClusterStatus `json:"status,omitempty"`
}

// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true

type ThoriumClusterList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ThoriumCluster `json:"items"`
}

func init() {
	SchemeBuilder.Register(&ThoriumCluster{}, &ThoriumClusterList{})
}

// IsReady mirrors the teacher's Cluster.IsReady phase check.
func (c *ThoriumCluster) IsReady() bool {
	return c != nil && c.Status.Phase == PhaseReady
}

// Validate enforces the invariants a webhook or the scaler's
// reconciler checks before accepting a ThoriumCluster: a recognised
// scaler kind, a kubeconfig secret when targeting K8s, and a sane node
// bound.
func (c *ThoriumCluster) Validate() error {
	switch c.Spec.Scaler {
	case types.ScalerK8s, types.ScalerBareMetal, types.ScalerWindows, types.ScalerKvm, types.ScalerExternal:
	default:
		return thoriumerrors.NewValidation("unknown scaler kind " + string(c.Spec.Scaler))
	}
	if c.Spec.Scaler == types.ScalerK8s && c.Spec.KubeConfigSecret == "" {
		return thoriumerrors.NewValidation("kubeConfigSecret is required for a K8s scaler")
	}
	if c.Spec.MaxNodes > 0 && c.Spec.MinNodes > c.Spec.MaxNodes {
		return thoriumerrors.NewValidation("minNodes cannot exceed maxNodes")
	}
	if c.Spec.FairShareWeight < 0 {
		return thoriumerrors.NewValidation("fairShareWeight cannot be negative")
	}
	return nil
}

func (in *ThoriumCluster) DeepCopyInto(out *ThoriumCluster) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	if in.Spec.Bans != nil {
		out.Spec.Bans = append([]string(nil), in.Spec.Bans...)
	}
}

func (in *ThoriumCluster) DeepCopy() *ThoriumCluster {
	if in == nil {
		return nil
	}
	out := new(ThoriumCluster)
	in.DeepCopyInto(out)
	return out
}

func (in *ThoriumCluster) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

func (in *ThoriumClusterList) DeepCopyInto(out *ThoriumClusterList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]ThoriumCluster, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *ThoriumClusterList) DeepCopy() *ThoriumClusterList {
	if in == nil {
		return nil
	}
	out := new(ThoriumClusterList)
	in.DeepCopyInto(out)
	return out
}

func (in *ThoriumClusterList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}
