package types

const (
	// AwaitedVerdict marked the start of the run
	AwaitedVerdict string = "Awaited"
	// PassVerdict marked the verdict as passed in the end of the run
	PassVerdict string = "Pass"
	// FailVerdict marked the verdict as failed in the end of the run
	FailVerdict string = "Fail"
)

// Mode selects how the Ceph cluster under test is deployed.
type Mode string

const (
	// ModeInternal means the Ceph daemons run as pods inside the
	// orchestrated cluster and are reachable via pod APIs and the node
	// debug channel.
	ModeInternal Mode = "internal"
	// ModeExternal means Ceph runs on independently managed RHCS hosts,
	// reachable only over SSH admin commands.
	ModeExternal Mode = "external"
)

// DisruptionDetails carries all the knobs of one disruption session. It is
// handed to the engine explicitly so nothing is read from process-wide state.
type DisruptionDetails struct {
	Namespace         string // storage namespace, e.g. openshift-storage
	Mode              Mode
	LeaderType        string // provisioner leader qualifier
	DebugPodNamespace string
	DebugPodLabel     string // label of the per-node privileged debug pods
	DeleteTimeout     int    // seconds to wait for replica recovery after a pod delete
	DeleteDelay       int
	SelectRetries     uint // attempts for the post-reschedule process listing
	SelectRetryDelay  int
	PIDCheckTimeout   int // seconds to wait for a replacement PID after a kill
	PIDCheckDelay     int
	DaemonStopWait    int // external-mode outage window between stop and start
}

// ExperimentDetails drives the duration-loop chaos flow
type ExperimentDetails struct {
	ExperimentName string
	ResourceKind   string
	ChaosDuration  int
	ChaosInterval  int
	RampTime       int
	KillSignal     string
	CheckNewPID    bool
	NodeName       string
	Timeout        int
	Delay          int
	ExternalConfig string // path to the external-cluster connection YAML
	Disruption     DisruptionDetails
}

// ResultDetails is for collecting the run verdict
type ResultDetails struct {
	Verdict  string
	FailStep string
}

// ExternalCluster describes the admin host of an externally managed RHCS
// cluster, loaded from the cluster connection YAML.
type ExternalCluster struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	KeyFile     string `yaml:"keyFile"`
	ClusterName string `yaml:"clusterName"`
	FSID        string `yaml:"fsid"`
}
