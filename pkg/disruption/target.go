package disruption

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
	"github.com/red-hat-storage/odf-chaos/pkg/ceph"
	"github.com/red-hat-storage/odf-chaos/pkg/clients"
	"github.com/red-hat-storage/odf-chaos/pkg/types"
)

// ResourceKind is the closed set of disruptable storage daemons.
type ResourceKind string

const (
	KindMgr                     ResourceKind = "mgr"
	KindMon                     ResourceKind = "mon"
	KindOsd                     ResourceKind = "osd"
	KindMds                     ResourceKind = "mds"
	KindCephFSPlugin            ResourceKind = "cephfsplugin"
	KindRBDPlugin               ResourceKind = "rbdplugin"
	KindCephFSPluginProvisioner ResourceKind = "cephfsplugin_provisioner"
	KindRBDPluginProvisioner    ResourceKind = "rbdplugin_provisioner"
	KindOperator                ResourceKind = "operator"
)

// LabelSelector maps a kind to the pod label it is deployed under. An
// unrecognized kind is a typed error rather than a silent missing-key crash.
func (k ResourceKind) LabelSelector() (string, error) {
	switch k {
	case KindMgr:
		return "app=rook-ceph-mgr", nil
	case KindMon:
		return "app=rook-ceph-mon", nil
	case KindOsd:
		return "app=rook-ceph-osd", nil
	case KindMds:
		return "app=rook-ceph-mds", nil
	case KindCephFSPlugin:
		return "app=csi-cephfsplugin", nil
	case KindRBDPlugin:
		return "app=csi-rbdplugin", nil
	case KindCephFSPluginProvisioner:
		return "app=csi-cephfsplugin-provisioner", nil
	case KindRBDPluginProvisioner:
		return "app=csi-rbdplugin-provisioner", nil
	case KindOperator:
		return "app=rook-ceph-operator", nil
	}
	return "", cerrors.Error{
		ErrorCode: cerrors.ErrorTypeTargetSelection,
		Target:    string(k),
		Reason:    "unrecognized resource kind",
	}
}

// IsCephDaemon reports whether the kind is one of the four core Ceph daemons
// that run as OS processes (and, in external mode, outside the cluster).
func (k ResourceKind) IsCephDaemon() bool {
	switch k {
	case KindMgr, KindMon, KindOsd, KindMds:
		return true
	}
	return false
}

// IsProvisioner reports whether the kind is a CSI provisioner deployment,
// whose disruption targets the single elected leader.
func (k ResourceKind) IsProvisioner() bool {
	return k == KindCephFSPluginProvisioner || k == KindRBDPluginProvisioner
}

// csiDriver returns the short CSI driver name of a provisioner kind.
func (k ResourceKind) csiDriver() string {
	if k == KindRBDPluginProvisioner {
		return "rbd"
	}
	return "cephfs"
}

// Target is the resolved, queryable form of a resource kind: the live
// instances plus the selector and count needed to confirm recovery later.
// For provisioner kinds Pods holds only the elected leader while
// ExpectedCount covers the full replica set; the two are deliberately
// decoupled there.
type Target struct {
	Kind          ResourceKind
	Pods          []corev1.Pod
	LabelSelector string
	ExpectedCount int
}

// resolveInternal enumerates the live pods of the kind inside the cluster.
func resolveInternal(kind ResourceKind, leaderType string, details *types.DisruptionDetails, cs clients.ClientSets) (*Target, error) {
	selector, err := kind.LabelSelector()
	if err != nil {
		return nil, err
	}
	podList, err := cs.KubeClient.CoreV1().Pods(details.Namespace).List(context.Background(), metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeTargetSelection, Target: string(kind), Reason: err.Error()}
	}
	if len(podList.Items) == 0 {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeTargetSelection, Target: string(kind), Reason: fmt.Sprintf("no pods found with label %s in namespace %s", selector, details.Namespace)}
	}

	if !kind.IsProvisioner() {
		return &Target{
			Kind:          kind,
			Pods:          podList.Items,
			LabelSelector: selector,
			ExpectedCount: len(podList.Items),
		}, nil
	}

	leader, err := provisionerLeader(kind, leaderType, details, cs, podList.Items)
	if err != nil {
		return nil, err
	}
	// recovery must wait for the whole replica set, not just the leader
	return &Target{
		Kind:          kind,
		Pods:          []corev1.Pod{*leader},
		LabelSelector: selector,
		ExpectedCount: len(podList.Items),
	}, nil
}

// resolveExternal records only a daemon count for the core Ceph daemons,
// which have no pods to enumerate; plugin, provisioner and operator kinds
// run in-cluster regardless of where Ceph itself lives and resolve exactly
// like internal mode.
func resolveExternal(kind ResourceKind, leaderType string, details *types.DisruptionDetails, cs clients.ClientSets, admin ceph.AdminExecutor) (*Target, error) {
	if !kind.IsCephDaemon() {
		return resolveInternal(kind, leaderType, details, cs)
	}
	selector, err := kind.LabelSelector()
	if err != nil {
		return nil, err
	}
	count, err := ceph.GetDaemonCount(admin, string(kind))
	if err != nil {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeTargetSelection, Target: string(kind), Reason: err.Error()}
	}
	if count == 0 {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeTargetSelection, Target: string(kind), Reason: "the external cluster reports no daemons of this kind"}
	}
	return &Target{
		Kind:          kind,
		LabelSelector: selector,
		ExpectedCount: count,
	}, nil
}

// provisionerLeader finds the elected sidecar leader among the provisioner
// replicas by reading the coordination lease the sidecars campaign on.
func provisionerLeader(kind ResourceKind, leaderType string, details *types.DisruptionDetails, cs clients.ClientSets, pods []corev1.Pod) (*corev1.Pod, error) {
	name := leaseName(kind, leaderType, details.Namespace)
	lease, err := cs.KubeClient.CoordinationV1().Leases(details.Namespace).Get(context.Background(), name, metav1.GetOptions{})
	if err != nil {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeTargetSelection,
			Target:    string(kind),
			Reason:    fmt.Sprintf("unable to read the leader lease %s: %s", name, err.Error()),
		}
	}
	if lease.Spec.HolderIdentity == nil || *lease.Spec.HolderIdentity == "" {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeTargetSelection, Target: string(kind), Reason: fmt.Sprintf("lease %s has no holder", name)}
	}
	holder := *lease.Spec.HolderIdentity
	for i := range pods {
		if pods[i].Name == holder {
			return &pods[i], nil
		}
	}
	return nil, cerrors.Error{
		ErrorCode: cerrors.ErrorTypeTargetSelection,
		Target:    string(kind),
		Reason:    fmt.Sprintf("lease holder %s is not among the %d provisioner pods", holder, len(pods)),
	}
}

// leaseName derives the leader-election lease object name for the wanted
// sidecar. The provisioner sidecar campaigns on the sanitized driver name;
// the other sidecars prefix it.
func leaseName(kind ResourceKind, leaderType, namespace string) string {
	driver := fmt.Sprintf("%s.%s.csi.ceph.com", namespace, kind.csiDriver())
	var name string
	switch leaderType {
	case "resizer":
		name = "external-resizer-" + driver
	case "snapshotter":
		name = "external-snapshotter-leader-" + driver
	case "attacher":
		name = "external-attacher-leader-" + driver
	default: // provisioner
		name = driver
	}
	return strings.ReplaceAll(name, ".", "-")
}
