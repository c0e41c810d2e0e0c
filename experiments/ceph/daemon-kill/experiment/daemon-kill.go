package experiment

import (
	"github.com/sirupsen/logrus"

	"github.com/red-hat-storage/odf-chaos/chaoslib/ceph/daemon-kill/lib"
	"github.com/red-hat-storage/odf-chaos/pkg/clients"
	"github.com/red-hat-storage/odf-chaos/pkg/disruption"
	"github.com/red-hat-storage/odf-chaos/pkg/environment"
	"github.com/red-hat-storage/odf-chaos/pkg/log"
	"github.com/red-hat-storage/odf-chaos/pkg/ssh"
	"github.com/red-hat-storage/odf-chaos/pkg/status"
	"github.com/red-hat-storage/odf-chaos/pkg/types"
	"github.com/red-hat-storage/odf-chaos/pkg/utils/common"
)

// DaemonKill injects the ceph daemon disruption and derives the run verdict.
// Every failure records the step it happened at, so a Fail verdict always
// says where the run went off the rails.
func DaemonKill(clients clients.ClientSets) *types.ResultDetails {

	experimentsDetails := types.ExperimentDetails{}
	resultDetails := &types.ResultDetails{Verdict: types.AwaitedVerdict}

	//Fetching all the ENV passed for the runner pod
	log.Infof("[PreReq]: Getting the ENV for the %v experiment", "ceph-daemon-kill")
	environment.GetENV(&experimentsDetails, "ceph-daemon-kill")

	kind := disruption.ResourceKind(experimentsDetails.ResourceKind)
	selector, err := kind.LabelSelector()
	if err != nil {
		return failed(resultDetails, "Validating the target resource kind", err)
	}

	engine, err := buildEngine(&experimentsDetails, clients)
	if err != nil {
		return failed(resultDetails, "Building the disruption engine", err)
	}

	//DISPLAY THE EXPERIMENT INFORMATION
	log.InfoWithValues("The experiment information is as follows", logrus.Fields{
		"Run ID":         common.GetRunID(),
		"Resource Kind":  experimentsDetails.ResourceKind,
		"Mode":           string(experimentsDetails.Disruption.Mode),
		"Chaos Duration": experimentsDetails.ChaosDuration,
		"Chaos Interval": experimentsDetails.ChaosInterval,
		"Kill Signal":    experimentsDetails.KillSignal,
		"Ramp Time":      experimentsDetails.RampTime,
	})

	// pod status checks only make sense where the kind runs as pods
	checkPods := engine.Mode() == types.ModeInternal || !kind.IsCephDaemon()

	//PRE-CHAOS RESOURCE STATUS CHECK
	if checkPods {
		log.Info("[Status]: Verify that the target resource is running (pre-chaos)")
		if err := status.CheckApplicationStatus(experimentsDetails.Disruption.Namespace, selector, experimentsDetails.Timeout, experimentsDetails.Delay, clients); err != nil {
			return failed(resultDetails, "Verify that the target resource is running (pre-chaos)", err)
		}
	}

	if err := lib.PrepareDaemonKill(&experimentsDetails, engine, clients, resultDetails); err != nil {
		return failed(resultDetails, "Injecting the ceph-daemon-kill chaos", err)
	}
	log.Info("[Confirmation]: The ceph daemon disruption has completed successfully")

	//POST-CHAOS RESOURCE STATUS CHECK
	if checkPods {
		log.Info("[Status]: Verify that the target resource is running (post-chaos)")
		if err := status.CheckApplicationStatus(experimentsDetails.Disruption.Namespace, selector, experimentsDetails.Timeout, experimentsDetails.Delay, clients); err != nil {
			return failed(resultDetails, "Verify that the target resource is running (post-chaos)", err)
		}
	}

	resultDetails.Verdict = types.PassVerdict
	return resultDetails
}

// buildEngine wires the engine for the deployment mode the run targets. The
// external mode needs the RHCS admin-host connection settings and an SSH
// channel; the internal mode works entirely through the cluster APIs.
func buildEngine(experimentsDetails *types.ExperimentDetails, cs clients.ClientSets) (*disruption.Disruptions, error) {
	details := &experimentsDetails.Disruption
	if details.Mode != types.ModeExternal {
		return disruption.NewInternal(cs, details, nil), nil
	}
	cluster, err := environment.LoadExternalCluster(experimentsDetails.ExternalConfig)
	if err != nil {
		return nil, err
	}
	admin, err := ssh.NewExecutor(cluster)
	if err != nil {
		return nil, err
	}
	return disruption.NewExternal(cs, details, admin, cluster), nil
}

func failed(resultDetails *types.ResultDetails, step string, err error) *types.ResultDetails {
	log.Errorf("%s failed, err: %v", step, err)
	resultDetails.Verdict = types.FailVerdict
	resultDetails.FailStep = step
	return resultDetails
}
