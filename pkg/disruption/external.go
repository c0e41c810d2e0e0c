package disruption

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/palantir/stacktrace"

	"github.com/red-hat-storage/odf-chaos/pkg/ceph"
	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
	"github.com/red-hat-storage/odf-chaos/pkg/log"
	"github.com/red-hat-storage/odf-chaos/pkg/metrics"
	"github.com/red-hat-storage/odf-chaos/pkg/types"
	"github.com/red-hat-storage/odf-chaos/pkg/utils/common"
)

// selectExternalDaemon resolves which named daemon instance to disrupt on an
// externally managed cluster. The active or leading instance is preferred
// where Ceph names one; osd has no such notion, so an id is drawn uniformly
// from [0, count).
func (d *Disruptions) selectExternalDaemon() error {
	var (
		id  string
		err error
	)
	switch d.target.Kind {
	case KindMgr:
		id, err = ceph.GetActiveMgr(d.admin)
	case KindMon:
		id, err = ceph.GetQuorumLeader(d.admin)
	case KindMds:
		id, err = ceph.GetActiveMds(d.admin)
	default:
		id = strconv.Itoa(rand.Intn(d.target.ExpectedCount))
	}
	if err != nil {
		return stacktrace.Propagate(err, "could not select an active %s daemon", d.target.Kind)
	}
	if id == "" {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeDaemonSelection,
			Target:    common.Target(string(d.target.Kind), d.cluster.Host),
			Reason:    "the cluster reported an empty daemon name",
		}
	}

	d.daemonID = id
	log.Infof("[Info]: Selected the %v daemon %v on the external cluster", d.target.Kind, id)
	return nil
}

// killExternalDaemon stops the daemon's systemd unit, holds the outage open
// for the configured window and starts the unit again. There is no PID to
// verify here; the stop/start pair is the whole disruption.
func (d *Disruptions) killExternalDaemon() error {
	if d.daemonID == "" {
		if err := d.SelectDaemon(""); err != nil {
			return stacktrace.Propagate(err, "could not select a daemon to stop")
		}
	}

	kind, id := d.target.Kind, d.daemonID
	unit := d.systemdUnit(kind, id)
	log.Infof("[Chaos]: Stopping the systemd unit %v", unit)
	if _, err := d.admin.ExecWithOutput("sudo systemctl stop " + unit); err != nil {
		return stacktrace.Propagate(err, "could not stop the %s daemon %s", kind, id)
	}
	metrics.DisruptionsInjected.WithLabelValues(string(kind), string(types.ModeExternal)).Inc()

	log.Infof("[Wait]: Holding the %v.%v outage open for %vs", kind, id, d.details.DaemonStopWait)
	time.Sleep(time.Duration(d.details.DaemonStopWait) * time.Second)

	log.Infof("[Chaos]: Starting the systemd unit %v", unit)
	if _, err := d.admin.ExecWithOutput("sudo systemctl start " + unit); err != nil {
		metrics.RecoveryFailures.WithLabelValues(string(kind), string(types.ModeExternal)).Inc()
		return stacktrace.Propagate(err, "could not start the %s daemon %s back up", kind, id)
	}
	metrics.RecoveriesVerified.WithLabelValues(string(kind), string(types.ModeExternal)).Inc()

	// the identity is spent, the next kill reselects
	d.daemonID = ""
	return nil
}

// systemdUnit builds the daemon's unit name. Cephadm deployments template
// the unit on the cluster fsid; older package-based deployments do not.
func (d *Disruptions) systemdUnit(kind ResourceKind, id string) string {
	if d.cluster != nil && d.cluster.FSID != "" {
		return fmt.Sprintf("ceph-%s@%s.%s", d.cluster.FSID, kind, id)
	}
	return fmt.Sprintf("ceph-%s@%s", kind, id)
}
