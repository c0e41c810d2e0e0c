package environment

import (
	"io/ioutil"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
	"github.com/red-hat-storage/odf-chaos/pkg/types"
)

// GetENV fetches all the env variables passed to the runner pod and fills
// the experiment details, applying the documented defaults everywhere an
// env is absent.
func GetENV(experimentDetails *types.ExperimentDetails, expName string) {
	experimentDetails.ExperimentName = expName
	experimentDetails.ResourceKind = Getenv("RESOURCE_KIND", "osd")
	experimentDetails.ChaosDuration, _ = strconv.Atoi(Getenv("TOTAL_CHAOS_DURATION", "60"))
	experimentDetails.ChaosInterval, _ = strconv.Atoi(Getenv("CHAOS_INTERVAL", "10"))
	experimentDetails.RampTime, _ = strconv.Atoi(Getenv("RAMP_TIME", "0"))
	experimentDetails.KillSignal = Getenv("KILL_SIGNAL", "9")
	experimentDetails.CheckNewPID, _ = strconv.ParseBool(Getenv("CHECK_NEW_PID", "true"))
	experimentDetails.NodeName = Getenv("TARGET_NODE", "")
	experimentDetails.Timeout, _ = strconv.Atoi(Getenv("STATUS_CHECK_TIMEOUT", "180"))
	experimentDetails.Delay, _ = strconv.Atoi(Getenv("STATUS_CHECK_DELAY", "2"))
	experimentDetails.ExternalConfig = Getenv("EXTERNAL_CLUSTER_CONFIG", "/etc/odf-chaos/external-cluster.yaml")
	experimentDetails.Disruption = GetDisruptionENV()
}

// GetDisruptionENV fills a disruption session's knobs from the environment.
// The recovery and PID-check budgets default to the values the flows were
// tuned against (300s replica recovery, 60s/2s replacement-PID wait).
func GetDisruptionENV() types.DisruptionDetails {
	details := types.DisruptionDetails{}
	details.Namespace = Getenv("STORAGE_NAMESPACE", "openshift-storage")
	details.Mode = types.Mode(Getenv("DEPLOYMENT_MODE", string(types.ModeInternal)))
	details.LeaderType = Getenv("LEADER_TYPE", "provisioner")
	details.DebugPodNamespace = Getenv("DEBUG_POD_NAMESPACE", "default")
	details.DebugPodLabel = Getenv("DEBUG_POD_LABEL", "app=node-debug")
	details.DeleteTimeout, _ = strconv.Atoi(Getenv("DELETE_RECOVERY_TIMEOUT", "300"))
	details.DeleteDelay, _ = strconv.Atoi(Getenv("DELETE_RECOVERY_DELAY", "5"))
	retries, _ := strconv.Atoi(Getenv("SELECT_RETRIES", "5"))
	details.SelectRetries = uint(retries)
	details.SelectRetryDelay, _ = strconv.Atoi(Getenv("SELECT_RETRY_DELAY", "3"))
	details.PIDCheckTimeout, _ = strconv.Atoi(Getenv("PID_CHECK_TIMEOUT", "60"))
	details.PIDCheckDelay, _ = strconv.Atoi(Getenv("PID_CHECK_DELAY", "2"))
	details.DaemonStopWait, _ = strconv.Atoi(Getenv("DAEMON_STOP_WAIT", "60"))
	return details
}

// LoadExternalCluster reads the connection settings of an externally managed
// RHCS cluster from a YAML file.
func LoadExternalCluster(path string) (*types.ExternalCluster, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Target: path, Reason: err.Error()}
	}
	cluster := types.ExternalCluster{Port: 22}
	if err := yaml.Unmarshal(data, &cluster); err != nil {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Target: path, Reason: err.Error()}
	}
	if cluster.Host == "" || cluster.User == "" {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Target: path, Reason: "host and user are required"}
	}
	return &cluster, nil
}

// Getenv fetch the env and set the default value, if any
func Getenv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return value
}
