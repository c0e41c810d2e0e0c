package lib

import (
	"strconv"

	"github.com/palantir/stacktrace"

	"github.com/red-hat-storage/odf-chaos/pkg/clients"
	"github.com/red-hat-storage/odf-chaos/pkg/disruption"
	"github.com/red-hat-storage/odf-chaos/pkg/log"
	"github.com/red-hat-storage/odf-chaos/pkg/math"
	"github.com/red-hat-storage/odf-chaos/pkg/status"
	"github.com/red-hat-storage/odf-chaos/pkg/types"
	"github.com/red-hat-storage/odf-chaos/pkg/utils/common"
)

//PrepareDaemonKill contains the preparation steps before chaos injection
func PrepareDaemonKill(experimentsDetails *types.ExperimentDetails, engine *disruption.Disruptions, clients clients.ClientSets, resultDetails *types.ResultDetails) error {

	//Waiting for the ramp time before chaos injection
	if experimentsDetails.RampTime != 0 {
		log.Infof("[Ramp]: Waiting for the %vs ramp time before injecting chaos", strconv.Itoa(experimentsDetails.RampTime))
		common.WaitForDuration(experimentsDetails.RampTime)
	}

	if err := injectChaos(experimentsDetails, engine, clients); err != nil {
		return stacktrace.Propagate(err, "could not inject the %s chaos", experimentsDetails.ExperimentName)
	}

	//Waiting for the ramp time after chaos injection
	if experimentsDetails.RampTime != 0 {
		log.Infof("[Ramp]: Waiting for the %vs ramp time after injecting chaos", strconv.Itoa(experimentsDetails.RampTime))
		common.WaitForDuration(experimentsDetails.RampTime)
	}
	return nil
}

//getIterations derive the iterations value from given parameters
func getIterations(experimentsDetails *types.ExperimentDetails) int {
	iterations := 0
	if experimentsDetails.ChaosInterval != 0 {
		iterations = experimentsDetails.ChaosDuration / experimentsDetails.ChaosInterval
	}
	return math.Maximum(iterations, 1)
}

// injectChaos resolves the target once and then disrupts it serially until
// the chaos duration is spent. Ceph daemons are killed at the process level;
// the remaining kinds are disrupted by deleting their pod. Every iteration
// ends with the recovery already verified, either by the engine itself or by
// the pod status checks below.
func injectChaos(experimentsDetails *types.ExperimentDetails, engine *disruption.Disruptions, clients clients.ClientSets) error {

	kind := disruption.ResourceKind(experimentsDetails.ResourceKind)
	if err := engine.SetResource(kind, experimentsDetails.Disruption.LeaderType); err != nil {
		return stacktrace.Propagate(err, "could not set the target resource")
	}

	iterations := getIterations(experimentsDetails)
	log.Infof("[Info]: The %v disruption will run for %v iterations", kind, iterations)

	for count := 0; count < iterations; count++ {

		if kind.IsCephDaemon() {
			if err := engine.KillDaemon(experimentsDetails.NodeName, experimentsDetails.CheckNewPID, experimentsDetails.KillSignal); err != nil {
				return stacktrace.Propagate(err, "could not kill the %s daemon", kind)
			}
		} else {
			if err := engine.DeleteResource(0); err != nil {
				return stacktrace.Propagate(err, "could not delete the %s pod", kind)
			}
		}

		//Waiting for the chaos interval after chaos injection
		if experimentsDetails.ChaosInterval != 0 && count != iterations-1 {
			log.Infof("[Wait]: Wait for the chaos interval %vs", strconv.Itoa(experimentsDetails.ChaosInterval))
			common.WaitForDuration(experimentsDetails.ChaosInterval)
		}

		// external ceph daemons have no pods to check on
		target := engine.Target()
		if engine.Mode() == types.ModeInternal || !kind.IsCephDaemon() {
			log.Info("[Status]: Verification for the recovery of the disrupted resource")
			if err := status.CheckApplicationStatus(experimentsDetails.Disruption.Namespace, target.LabelSelector, experimentsDetails.Timeout, experimentsDetails.Delay, clients); err != nil {
				return stacktrace.Propagate(err, "could not verify the %s status after the disruption", kind)
			}
		}

		// pods reschedule across iterations, refresh the instance list
		if count != iterations-1 {
			if err := engine.SetResource(kind, experimentsDetails.Disruption.LeaderType); err != nil {
				return stacktrace.Propagate(err, "could not refresh the target resource")
			}
		}
	}
	log.Infof("[Completion]: %v chaos is done", experimentsDetails.ExperimentName)

	return nil
}
