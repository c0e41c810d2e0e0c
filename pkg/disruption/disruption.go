// Package disruption implements targeted fault injection against the storage
// daemons of a Rook/Ceph cluster: resolving a daemon kind into live
// instances, deleting pods, killing OS-level daemon processes, and verifying
// the cluster heals afterwards. Internal mode drives everything through the
// pod APIs and per-node debug pods; external mode reaches independently
// managed RHCS hosts over SSH admin commands.
package disruption

import (
	"context"
	"fmt"
	"time"

	"github.com/palantir/stacktrace"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
	"github.com/red-hat-storage/odf-chaos/pkg/ceph"
	"github.com/red-hat-storage/odf-chaos/pkg/clients"
	"github.com/red-hat-storage/odf-chaos/pkg/log"
	"github.com/red-hat-storage/odf-chaos/pkg/metrics"
	"github.com/red-hat-storage/odf-chaos/pkg/sampler"
	"github.com/red-hat-storage/odf-chaos/pkg/status"
	"github.com/red-hat-storage/odf-chaos/pkg/types"
)

// NodeExec runs a command on a cluster node's host namespace and returns its
// stdout. The production implementation execs through the per-node privileged
// debug pod; tests substitute a canned one.
type NodeExec interface {
	ExecOnNode(nodeName string, command []string) (string, error)
}

// Disruptions drives one fault-injection session against a single resolved
// resource kind. It carries the selected daemon identity between SelectDaemon
// and KillDaemon; it is not safe for concurrent use and must not be reused
// across kinds without calling SetResource again.
type Disruptions struct {
	clients  clients.ClientSets
	details  *types.DisruptionDetails
	nodeExec NodeExec
	admin    ceph.AdminExecutor
	cluster  *types.ExternalCluster

	target *Target

	// selected daemon identity, valid for one kill
	nodeName  string
	daemonPID int
	pids      []int
	daemonID  string
}

// NewInternal builds an engine for a cluster whose Ceph daemons run as pods.
// Passing a nil nodeExec selects the debug-pod channel.
func NewInternal(cs clients.ClientSets, details *types.DisruptionDetails, nodeExec NodeExec) *Disruptions {
	if nodeExec == nil {
		nodeExec = &debugPodExec{clients: cs, details: details}
	}
	return &Disruptions{clients: cs, details: details, nodeExec: nodeExec}
}

// NewExternal builds an engine for an externally managed RHCS cluster whose
// admin host is reachable through the given executor.
func NewExternal(cs clients.ClientSets, details *types.DisruptionDetails, admin ceph.AdminExecutor, cluster *types.ExternalCluster) *Disruptions {
	return &Disruptions{clients: cs, details: details, admin: admin, cluster: cluster}
}

// Mode reports which deployment flavour the engine was built for.
func (d *Disruptions) Mode() types.Mode {
	if d.admin != nil {
		return types.ModeExternal
	}
	return types.ModeInternal
}

// Target returns the currently resolved target, or nil before SetResource.
func (d *Disruptions) Target() *Target {
	return d.target
}

// SetResource resolves the kind into a live target and starts a fresh
// session: any daemon identity selected for a previous kind is discarded.
// leaderType qualifies which sidecar leader a provisioner kind resolves to
// and defaults to the provisioner itself.
func (d *Disruptions) SetResource(kind ResourceKind, leaderType string) error {
	if leaderType == "" {
		leaderType = "provisioner"
	}

	d.target = nil
	d.nodeName = ""
	d.daemonPID = 0
	d.pids = nil
	d.daemonID = ""

	var (
		target *Target
		err    error
	)
	switch d.Mode() {
	case types.ModeExternal:
		target, err = resolveExternal(kind, leaderType, d.details, d.clients, d.admin)
	default:
		target, err = resolveInternal(kind, leaderType, d.details, d.clients)
	}
	if err != nil {
		return stacktrace.Propagate(err, "could not resolve the %s target", kind)
	}

	d.target = target
	log.InfoWithValues("[Info]: Resolved the disruption target", map[string]interface{}{
		"Kind":          string(kind),
		"Instances":     len(target.Pods),
		"ExpectedCount": target.ExpectedCount,
	})
	return nil
}

// DeleteResource force-deletes the indexed target pod and blocks until the
// full replica set is running again. A recovery that does not happen within
// the budget is a hard failure, not a warning.
func (d *Disruptions) DeleteResource(index int) error {
	if d.target == nil {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeChaosInject, Reason: "no resource has been set for this session"}
	}
	if len(d.target.Pods) == 0 {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosInject,
			Target:    string(d.target.Kind),
			Reason:    "the target has no pods to delete, external ceph daemons are disrupted through KillDaemon",
		}
	}
	if index < 0 || index >= len(d.target.Pods) {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosInject,
			Target:    string(d.target.Kind),
			Reason:    fmt.Sprintf("instance index %d is out of range, the target has %d pods", index, len(d.target.Pods)),
		}
	}

	pod := d.target.Pods[index]
	log.Infof("[Chaos]: Deleting the %v pod %v", d.target.Kind, pod.Name)
	gracePeriod := int64(0)
	if err := d.clients.KubeClient.CoreV1().Pods(pod.Namespace).Delete(context.Background(), pod.Name, v1.DeleteOptions{GracePeriodSeconds: &gracePeriod}); err != nil {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosInject,
			Target:    fmt.Sprintf("{podName: %s, namespace: %s}", pod.Name, pod.Namespace),
			Reason:    err.Error(),
		}
	}
	metrics.DisruptionsInjected.WithLabelValues(string(d.target.Kind), string(d.Mode())).Inc()

	log.Infof("[Wait]: Waiting for %v %v pods to be back in Running state", d.target.ExpectedCount, d.target.Kind)
	observed := 0
	recovered, err := sampler.New(
		time.Duration(d.details.DeleteTimeout)*time.Second,
		time.Duration(d.details.DeleteDelay)*time.Second,
		func() (bool, error) {
			count, err := status.RunningPodCount(d.details.Namespace, d.target.LabelSelector, d.clients)
			if err != nil {
				return false, err
			}
			observed = count
			return count >= d.target.ExpectedCount, nil
		})
	if err != nil {
		return stacktrace.Propagate(err, "could not build the recovery sampler")
	}
	if err := recovered.WaitForFuncValue(true); err != nil {
		metrics.RecoveryFailures.WithLabelValues(string(d.target.Kind), string(d.Mode())).Inc()
		return stacktrace.Propagate(err, "%s replicas did not recover, expected %d running pods, observed %d", d.target.Kind, d.target.ExpectedCount, observed)
	}
	metrics.RecoveriesVerified.WithLabelValues(string(d.target.Kind), string(d.Mode())).Inc()
	log.Infof("[Status]: All %v pods recovered after the delete", d.target.Kind)
	return nil
}

// SelectDaemon picks the concrete daemon instance the next kill will hit. In
// internal mode that is the OS process set on one node; in external mode it
// is the named daemon the Ceph admin commands report as active.
func (d *Disruptions) SelectDaemon(nodeName string) error {
	if d.target == nil {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeDaemonSelection, Reason: "no resource has been set for this session"}
	}
	if !d.target.Kind.IsCephDaemon() {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeDaemonSelection,
			Target:    string(d.target.Kind),
			Reason:    "daemon selection only applies to the core ceph daemons",
		}
	}
	if d.Mode() == types.ModeExternal {
		return d.selectExternalDaemon()
	}
	return d.selectInternalDaemon(nodeName)
}

// KillDaemon disrupts the selected daemon, selecting one first if the caller
// has not. Internal mode signals the process and, when checkNewPID is set,
// confirms a replacement process appeared; external mode stops and restarts
// the systemd unit, where signal and checkNewPID do not apply.
func (d *Disruptions) KillDaemon(nodeName string, checkNewPID bool, signal string) error {
	if d.target == nil {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeChaosInject, Reason: "no resource has been set for this session"}
	}
	if d.Mode() == types.ModeExternal {
		return d.killExternalDaemon()
	}
	return d.killInternalDaemon(nodeName, checkNewPID, signal)
}
