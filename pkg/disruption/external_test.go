package disruption

import (
	"strconv"
	"testing"

	"github.com/palantir/stacktrace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
	"github.com/red-hat-storage/odf-chaos/pkg/types"
)

// fakeAdmin maps admin command lines to canned output and records the order
// they were issued in.
type fakeAdmin struct {
	outputs map[string]string
	calls   []string
}

func (f *fakeAdmin) ExecWithOutput(command string) (string, error) {
	f.calls = append(f.calls, command)
	out, ok := f.outputs[command]
	if !ok {
		return "", cerrors.Error{ErrorCode: cerrors.ErrorTypeCommandExecution, Target: command, Reason: "no canned output"}
	}
	return out, nil
}

func externalDetails() *types.DisruptionDetails {
	details := testDetails()
	details.Mode = types.ModeExternal
	details.DaemonStopWait = 0
	return details
}

func externalCluster() *types.ExternalCluster {
	return &types.ExternalCluster{Host: "ceph-admin.example.com", User: "cephuser", FSID: "b9f2c3a0-5d1e-4a7b-9c6d-2f0e8a41d523"}
}

func TestSetResource_ExternalCountsDaemons(t *testing.T) {
	admin := &fakeAdmin{outputs: map[string]string{
		"ceph osd metadata --format json": `[{"id": 0}, {"id": 1}, {"id": 2}]`,
	}}
	d := NewExternal(fakeClients(), externalDetails(), admin, externalCluster())

	require.NoError(t, d.SetResource(KindOsd, ""))
	assert.Equal(t, 3, d.Target().ExpectedCount)
	assert.Empty(t, d.Target().Pods)
}

func TestSetResource_ExternalZeroDaemons(t *testing.T) {
	admin := &fakeAdmin{outputs: map[string]string{
		"ceph mds metadata --format json": `[]`,
	}}
	d := NewExternal(fakeClients(), externalDetails(), admin, externalCluster())

	err := d.SetResource(KindMds, "")
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrorTypeTargetSelection, cerrors.GetErrorType(stacktrace.RootCause(err)))
}

func TestSelectDaemon_ExternalQuorumLeaderPassthrough(t *testing.T) {
	admin := &fakeAdmin{outputs: map[string]string{
		"ceph mon metadata --format json":  `[{"name": "a"}, {"name": "b"}, {"name": "c"}]`,
		"ceph quorum_status --format json": `{"quorum_leader_name": "b", "quorum": [0, 1, 2]}`,
	}}
	d := NewExternal(fakeClients(), externalDetails(), admin, externalCluster())
	require.NoError(t, d.SetResource(KindMon, ""))

	require.NoError(t, d.SelectDaemon(""))
	// the leader name is used exactly as reported
	assert.Equal(t, "b", d.daemonID)
}

func TestSelectDaemon_ExternalActiveMgr(t *testing.T) {
	admin := &fakeAdmin{outputs: map[string]string{
		"ceph mgr metadata --format json": `[{"name": "x"}, {"name": "y"}]`,
		"ceph mgr dump --format json":     `{"active_name": "x", "available": true}`,
	}}
	d := NewExternal(fakeClients(), externalDetails(), admin, externalCluster())
	require.NoError(t, d.SetResource(KindMgr, ""))

	require.NoError(t, d.SelectDaemon(""))
	assert.Equal(t, "x", d.daemonID)
}

func TestSelectDaemon_ExternalActiveMds(t *testing.T) {
	admin := &fakeAdmin{outputs: map[string]string{
		"ceph mds metadata --format json": `[{"name": "cephfs-a"}, {"name": "cephfs-b"}]`,
		"ceph mds stat":                   "cephfs:1 {0=cephfs-a=up:active} 1 up:standby",
	}}
	d := NewExternal(fakeClients(), externalDetails(), admin, externalCluster())
	require.NoError(t, d.SetResource(KindMds, ""))

	require.NoError(t, d.SelectDaemon(""))
	assert.Equal(t, "cephfs-a", d.daemonID)
}

func TestSelectDaemon_ExternalOsdDrawsWithinRange(t *testing.T) {
	admin := &fakeAdmin{outputs: map[string]string{
		"ceph osd metadata --format json": `[{"id": 0}, {"id": 1}, {"id": 2}]`,
	}}
	d := NewExternal(fakeClients(), externalDetails(), admin, externalCluster())
	require.NoError(t, d.SetResource(KindOsd, ""))

	// the draw is random, every selection must land on an existing id
	for i := 0; i < 25; i++ {
		require.NoError(t, d.SelectDaemon(""))
		id, err := strconv.Atoi(d.daemonID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, 3)
	}
}

func TestKillDaemon_ExternalStopsAndStartsUnit(t *testing.T) {
	unit := "ceph-b9f2c3a0-5d1e-4a7b-9c6d-2f0e8a41d523@mgr.x"
	admin := &fakeAdmin{outputs: map[string]string{
		"ceph mgr metadata --format json": `[{"name": "x"}]`,
		"ceph mgr dump --format json":     `{"active_name": "x"}`,
		"sudo systemctl stop " + unit:     "",
		"sudo systemctl start " + unit:    "",
	}}
	d := NewExternal(fakeClients(), externalDetails(), admin, externalCluster())
	require.NoError(t, d.SetResource(KindMgr, ""))

	require.NoError(t, d.KillDaemon("", true, "9"))
	assert.Equal(t, []string{
		"ceph mgr metadata --format json",
		"ceph mgr dump --format json",
		"sudo systemctl stop " + unit,
		"sudo systemctl start " + unit,
	}, admin.calls)
	// the identity is spent, the next kill reselects
	assert.Empty(t, d.daemonID)
}

func TestKillDaemon_ExternalUnitWithoutFSID(t *testing.T) {
	admin := &fakeAdmin{outputs: map[string]string{
		"ceph mon metadata --format json":  `[{"name": "a"}]`,
		"ceph quorum_status --format json": `{"quorum_leader_name": "a"}`,
		"sudo systemctl stop ceph-mon@a":   "",
		"sudo systemctl start ceph-mon@a":  "",
	}}
	cluster := externalCluster()
	cluster.FSID = ""
	d := NewExternal(fakeClients(), externalDetails(), admin, cluster)
	require.NoError(t, d.SetResource(KindMon, ""))

	require.NoError(t, d.KillDaemon("", true, "9"))
	assert.Contains(t, admin.calls, "sudo systemctl stop ceph-mon@a")
	assert.Contains(t, admin.calls, "sudo systemctl start ceph-mon@a")
}

func TestKillDaemon_ExternalStopFailure(t *testing.T) {
	admin := &fakeAdmin{outputs: map[string]string{
		"ceph mgr metadata --format json": `[{"name": "x"}]`,
		"ceph mgr dump --format json":     `{"active_name": "x"}`,
		// no canned output for systemctl stop, the stop fails
	}}
	d := NewExternal(fakeClients(), externalDetails(), admin, externalCluster())
	require.NoError(t, d.SetResource(KindMgr, ""))

	err := d.KillDaemon("", true, "9")
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrorTypeCommandExecution, cerrors.GetErrorType(stacktrace.RootCause(err)))
}

func TestSetResource_ExternalProvisionerStaysInCluster(t *testing.T) {
	// CSI provisioners run in-cluster even when ceph itself is external
	cs := fakeClients(
		newPod("csi-rbdplugin-provisioner-0", "csi-rbdplugin-provisioner", "node-1", "Running"),
		newPod("csi-rbdplugin-provisioner-1", "csi-rbdplugin-provisioner", "node-2", "Running"),
		newLease("openshift-storage-rbd-csi-ceph-com", "csi-rbdplugin-provisioner-0"),
	)
	admin := &fakeAdmin{outputs: map[string]string{}}
	d := NewExternal(cs, externalDetails(), admin, externalCluster())

	require.NoError(t, d.SetResource(KindRBDPluginProvisioner, ""))
	require.Len(t, d.Target().Pods, 1)
	assert.Equal(t, "csi-rbdplugin-provisioner-0", d.Target().Pods[0].Name)
	assert.Empty(t, admin.calls)
}
