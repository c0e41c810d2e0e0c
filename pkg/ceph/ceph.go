// Package ceph wraps the handful of Ceph admin commands the external-mode
// disruption flows need. Only the fields we care about are unmarshalled.
package ceph

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
)

// AdminExecutor runs a ceph admin command on the externally managed cluster
// and returns its raw output. The SSH executor implements it for real RHCS
// hosts; tests substitute canned output.
type AdminExecutor interface {
	ExecWithOutput(command string) (string, error)
}

// MgrDump is the subset of `ceph mgr dump` we unmarshal
type MgrDump struct {
	ActiveName string `json:"active_name"`
}

// QuorumStatus is the subset of `ceph quorum_status` we unmarshal
type QuorumStatus struct {
	QuorumLeaderName string `json:"quorum_leader_name"`
}

// mds stat plain output looks like "cephfs:1 {0=cephfs-a=up:active} 1 up:standby"
var activeMdsRegex = regexp.MustCompile(`=([a-zA-Z0-9._-]+)=up:active`)

// GetActiveMgr returns the name of the currently active manager daemon
func GetActiveMgr(admin AdminExecutor) (string, error) {
	out, err := admin.ExecWithOutput("ceph mgr dump --format json")
	if err != nil {
		return "", commandError("ceph mgr dump", err)
	}
	var dump MgrDump
	if err := json.Unmarshal([]byte(out), &dump); err != nil {
		return "", unmarshalError("ceph mgr dump", out, err)
	}
	if dump.ActiveName == "" {
		return "", cerrors.Error{ErrorCode: cerrors.ErrorTypeDaemonSelection, Target: "mgr", Reason: "no active mgr reported"}
	}
	return dump.ActiveName, nil
}

// GetQuorumLeader returns the quorum leader name exactly as the monitors
// report it, with no transformation.
func GetQuorumLeader(admin AdminExecutor) (string, error) {
	out, err := admin.ExecWithOutput("ceph quorum_status --format json")
	if err != nil {
		return "", commandError("ceph quorum_status", err)
	}
	var status QuorumStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		return "", unmarshalError("ceph quorum_status", out, err)
	}
	if status.QuorumLeaderName == "" {
		return "", cerrors.Error{ErrorCode: cerrors.ErrorTypeDaemonSelection, Target: "mon", Reason: "no quorum leader reported"}
	}
	return status.QuorumLeaderName, nil
}

// GetActiveMds extracts the active MDS name from the plain-text
// `ceph mds stat` output.
func GetActiveMds(admin AdminExecutor) (string, error) {
	out, err := admin.ExecWithOutput("ceph mds stat")
	if err != nil {
		return "", commandError("ceph mds stat", err)
	}
	match := activeMdsRegex.FindStringSubmatch(out)
	if match == nil {
		return "", cerrors.Error{
			ErrorCode: cerrors.ErrorTypeDaemonSelection,
			Target:    "mds",
			Reason:    fmt.Sprintf("no active mds found in output: %s", out),
		}
	}
	return match[1], nil
}

// GetDaemonCount reports how many daemons of the given kind the cluster
// knows about, via `ceph <kind> metadata`.
func GetDaemonCount(admin AdminExecutor, daemon string) (int, error) {
	cmd := fmt.Sprintf("ceph %s metadata --format json", daemon)
	out, err := admin.ExecWithOutput(cmd)
	if err != nil {
		return 0, commandError(cmd, err)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		return 0, unmarshalError(cmd, out, err)
	}
	return len(entries), nil
}

func commandError(cmd string, err error) error {
	return cerrors.Error{ErrorCode: cerrors.ErrorTypeCommandExecution, Target: cmd, Reason: err.Error()}
}

func unmarshalError(cmd, out string, err error) error {
	return cerrors.Error{
		ErrorCode: cerrors.ErrorTypeCommandExecution,
		Target:    cmd,
		Reason:    fmt.Sprintf("unmarshal failed: %s, raw output: %s", err.Error(), out),
	}
}
