// Package v1alpha1 contains the ThoriumCluster custom resource: a
// declarative description of one scaler's target cluster (its scheduler
// backend, node pool bounds, and default fair-share weight), the way an
// operator would reconcile spec §4.9's scaler core against real
// infrastructure. Grounded on the teacher's amd.com/v1 Cluster CRD
// shape (phase-tracked status, +kubebuilder markers, scheme.Builder
// registration), adapted from a kubespray-cluster-lifecycle resource
// into a scaler-target resource.
package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

var (
	// SchemeGroupVersion is group version used to register these objects.
	SchemeGroupVersion = schema.GroupVersion{Group: "thorium.sh", Version: "v1alpha1"}

	// SchemeBuilder is used to add go types to the GroupVersionKind scheme.
	SchemeBuilder = &scheme.Builder{GroupVersion: SchemeGroupVersion}

	// AddToScheme adds the types in this group-version to the given scheme.
	AddToScheme = SchemeBuilder.AddToScheme
)

func Kind(kind string) schema.GroupKind {
	return SchemeGroupVersion.WithKind(kind).GroupKind()
}

func Resource(resource string) schema.GroupResource {
	return SchemeGroupVersion.WithResource(resource).GroupResource()
}
