package disruption

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/palantir/stacktrace"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
	"github.com/red-hat-storage/odf-chaos/pkg/clients"
	"github.com/red-hat-storage/odf-chaos/pkg/log"
	"github.com/red-hat-storage/odf-chaos/pkg/metrics"
	"github.com/red-hat-storage/odf-chaos/pkg/sampler"
	"github.com/red-hat-storage/odf-chaos/pkg/types"
	"github.com/red-hat-storage/odf-chaos/pkg/utils/exec"
	"github.com/red-hat-storage/odf-chaos/pkg/utils/retry"
)

// selectInternalDaemon lists the PIDs of the targeted daemon kind on one node
// through the node debug channel. Right after a pod delete the replacement
// process may not exist yet, so the listing retries before giving up.
func (d *Disruptions) selectInternalDaemon(nodeName string) error {
	if nodeName == "" {
		if len(d.target.Pods) == 0 {
			return cerrors.Error{
				ErrorCode: cerrors.ErrorTypeDaemonSelection,
				Target:    string(d.target.Kind),
				Reason:    "no node name given and the target has no pods to derive one from",
			}
		}
		nodeName = d.target.Pods[0].Spec.NodeName
	}

	var pids []int
	err := retry.
		Times(d.details.SelectRetries).
		Wait(time.Duration(d.details.SelectRetryDelay) * time.Second).
		Try(func(attempt uint) error {
			out, err := d.nodeExec.ExecOnNode(nodeName, listDaemonCommand(d.target.Kind))
			if err != nil {
				return stacktrace.Propagate(err, "could not list the %s processes on node %s", d.target.Kind, nodeName)
			}
			pids, err = parsePIDs(out, d.target.Kind, nodeName)
			return err
		})
	if err != nil {
		return stacktrace.Propagate(err, "could not select a %s daemon", d.target.Kind)
	}

	d.nodeName = nodeName
	d.pids = pids
	d.daemonPID = pids[0]
	log.InfoWithValues("[Info]: Selected the target daemon process", map[string]interface{}{
		"Kind": string(d.target.Kind), "Node": nodeName, "PID": d.daemonPID, "PIDs": pids})
	return nil
}

// killInternalDaemon signals the selected process on its node and, when
// asked, waits for the runtime to respawn it. The daemon has respawned once
// the PID listing has the original cardinality again with exactly one PID
// the original set did not contain; extra colocated daemons of the same kind
// keep their PIDs across the kill, which is why the check is on sets rather
// than on a single PID.
func (d *Disruptions) killInternalDaemon(nodeName string, checkNewPID bool, signal string) error {
	if d.daemonPID == 0 {
		if err := d.SelectDaemon(nodeName); err != nil {
			return stacktrace.Propagate(err, "could not select a daemon to kill")
		}
	}

	kind, node, killedPID, oldPIDs := d.target.Kind, d.nodeName, d.daemonPID, d.pids
	log.Infof("[Chaos]: Killing the %v process %v on node %v with signal %v", kind, killedPID, node, signal)
	out, err := d.nodeExec.ExecOnNode(node, []string{"kill", "-" + signal, strconv.Itoa(killedPID)})
	if err != nil {
		return stacktrace.Propagate(err, "could not kill the %s process %d on node %s", kind, killedPID, node)
	}
	// kill prints nothing on success, any stdout means the signal missed
	if strings.TrimSpace(out) != "" {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosInject,
			Target:    fmt.Sprintf("{kind: %s, node: %s, pid: %d}", kind, node, killedPID),
			Reason:    fmt.Sprintf("kill produced unexpected output: %s", strings.TrimSpace(out)),
		}
	}
	metrics.DisruptionsInjected.WithLabelValues(string(kind), string(types.ModeInternal)).Inc()

	// the selected identity is spent regardless of the verification outcome
	d.daemonPID = 0
	d.pids = nil

	if !checkNewPID {
		return nil
	}

	log.Infof("[Wait]: Waiting for a replacement %v process to appear on node %v", kind, node)
	pidSampler, err := sampler.New(
		time.Duration(d.details.PIDCheckTimeout)*time.Second,
		time.Duration(d.details.PIDCheckDelay)*time.Second,
		func() ([]int, error) {
			out, err := d.nodeExec.ExecOnNode(node, listDaemonCommand(kind))
			if err != nil {
				return nil, err
			}
			return parsePIDs(out, kind, node)
		})
	if err != nil {
		return stacktrace.Propagate(err, "could not build the replacement-PID sampler")
	}
	for {
		current, err := pidSampler.Next()
		if err != nil {
			metrics.RecoveryFailures.WithLabelValues(string(kind), string(types.ModeInternal)).Inc()
			return stacktrace.Propagate(err, "no replacement %s process appeared on node %s after killing pid %d", kind, node, killedPID)
		}
		if daemonReplaced(oldPIDs, current, killedPID) {
			log.InfoWithValues("[Status]: A replacement daemon process is running", map[string]interface{}{
				"Kind": string(kind), "Node": node, "KilledPID": killedPID, "PIDs": current})
			break
		}
		log.Infof("[Wait]: The %v process set on node %v has not settled yet, before: %v, now: %v", kind, node, oldPIDs, current)
	}
	metrics.RecoveriesVerified.WithLabelValues(string(kind), string(types.ModeInternal)).Inc()
	return nil
}

// listDaemonCommand matches the daemon's full command line. The trailing
// "--" anchors the match so ceph-osd does not also catch helper processes
// mentioning the binary name in their arguments.
func listDaemonCommand(kind ResourceKind) []string {
	return []string{"pgrep", "-f", fmt.Sprintf("ceph-%s --", kind)}
}

// parsePIDs turns pgrep output into a sorted PID list. Empty output and
// non-numeric lines are both selection failures.
func parsePIDs(out string, kind ResourceKind, nodeName string) ([]int, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeDaemonSelection,
			Target:    fmt.Sprintf("{kind: %s, node: %s}", kind, nodeName),
			Reason:    "no running daemon process found on the node",
		}
	}
	pids := make([]int, 0, len(fields))
	for _, field := range fields {
		pid, err := strconv.Atoi(field)
		if err != nil {
			return nil, cerrors.Error{
				ErrorCode: cerrors.ErrorTypeDaemonSelection,
				Target:    fmt.Sprintf("{kind: %s, node: %s}", kind, nodeName),
				Reason:    fmt.Sprintf("unexpected process listing output: %q", out),
			}
		}
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids, nil
}

// daemonReplaced reports whether the current PID set is the old set with the
// killed PID swapped for exactly one new one.
func daemonReplaced(old, current []int, killedPID int) bool {
	if len(current) != len(old) {
		return false
	}
	seen := make(map[int]bool, len(old))
	for _, pid := range old {
		seen[pid] = true
	}
	fresh := 0
	for _, pid := range current {
		if pid == killedPID {
			return false
		}
		if !seen[pid] {
			fresh++
		}
	}
	return fresh == 1
}

// debugPodExec is the production NodeExec: it runs the command inside the
// privileged per-node debug pod, chrooted into the node's root filesystem.
type debugPodExec struct {
	clients clients.ClientSets
	details *types.DisruptionDetails
}

func (e *debugPodExec) ExecOnNode(nodeName string, command []string) (string, error) {
	pod, err := e.debugPodOnNode(nodeName)
	if err != nil {
		return "", err
	}
	execCommandDetails := exec.PodDetails{}
	exec.SetExecCommandAttributes(&execCommandDetails, pod.Name, pod.Spec.Containers[0].Name, pod.Namespace)
	return exec.Exec(&execCommandDetails, e.clients, append([]string{"chroot", "/host"}, command...))
}

// debugPodOnNode lists the debug pods by label and filters on the node in
// code, the field selector is deliberately avoided so the lookup behaves the
// same against every API flavour.
func (e *debugPodExec) debugPodOnNode(nodeName string) (*corev1.Pod, error) {
	namespace := e.details.DebugPodNamespace
	if namespace == "" {
		namespace = e.details.Namespace
	}
	podList, err := e.clients.KubeClient.CoreV1().Pods(namespace).List(context.Background(), metav1.ListOptions{LabelSelector: e.details.DebugPodLabel})
	if err != nil {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeCommandExecution,
			Target:    fmt.Sprintf("{label: %s, namespace: %s}", e.details.DebugPodLabel, namespace),
			Reason:    fmt.Sprintf("unable to list the debug pods: %s", err.Error()),
		}
	}
	for i := range podList.Items {
		if podList.Items[i].Spec.NodeName == nodeName {
			return &podList.Items[i], nil
		}
	}
	return nil, cerrors.Error{
		ErrorCode: cerrors.ErrorTypeCommandExecution,
		Target:    fmt.Sprintf("{label: %s, namespace: %s}", e.details.DebugPodLabel, namespace),
		Reason:    fmt.Sprintf("no debug pod is scheduled on node %s", nodeName),
	}
}
