package main

import (
	"net/http"
	"os"
	"strconv"

	"github.com/kyokomi/emoji"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/red-hat-storage/odf-chaos/experiments/ceph/daemon-kill/experiment"
	"github.com/red-hat-storage/odf-chaos/pkg/clients"
	"github.com/red-hat-storage/odf-chaos/pkg/log"
	"github.com/red-hat-storage/odf-chaos/pkg/types"
)

var opts struct {
	kind        string
	mode        string
	signal      string
	node        string
	checkNewPID bool
	duration    int
	interval    int
	config      string
	kubeconfig  string
	metricsAddr string
}

func init() {
	// Log as JSON instead of the default ASCII formatter.
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableSorting:         true,
		DisableLevelTruncation: true,
	})
}

func main() {

	cmd := &cobra.Command{
		Use:          "disruption",
		Short:        "Inject targeted faults into the storage daemons of a Rook/Ceph cluster",
		RunE:         run,
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.kind, "kind", "osd", "resource kind to disrupt (mgr|mon|osd|mds|cephfsplugin|rbdplugin|cephfsplugin_provisioner|rbdplugin_provisioner|operator)")
	flags.StringVar(&opts.mode, "mode", string(types.ModeInternal), "deployment mode of the ceph cluster (internal|external)")
	flags.StringVar(&opts.signal, "signal", "9", "signal number delivered to the daemon process")
	flags.StringVar(&opts.node, "node", "", "node to select the daemon process on, derived from the target pods when empty")
	flags.BoolVar(&opts.checkNewPID, "check-new-pid", true, "verify a replacement daemon process appears after the kill")
	flags.IntVar(&opts.duration, "duration", 60, "total chaos duration in seconds")
	flags.IntVar(&opts.interval, "interval", 10, "interval between disruptions in seconds")
	flags.StringVar(&opts.config, "config", "", "path to the external-cluster connection YAML")
	flags.StringVar(&opts.kubeconfig, "kubeconfig", "", "absolute path to the kubeconfig file, in-cluster config when empty")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "address to expose prometheus metrics on, disabled when empty")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {

	// the experiment layer is env-driven, explicitly passed flags are
	// exported before it reads the environment
	exportFlags(cmd)

	cs := clients.ClientSets{}
	if err := cs.GenerateClientSetFromKubeConfigPath(opts.kubeconfig); err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr)
	}

	result := experiment.DaemonKill(cs)
	if result.Verdict != types.PassVerdict {
		emoji.Printf(":cross_mark: The disruption run failed at: %v\n", result.FailStep)
		os.Exit(1)
	}
	emoji.Println(":check_mark_button: The disruption run passed")
	return nil
}

func exportFlags(cmd *cobra.Command) {
	envFor := map[string]string{
		"kind":          "RESOURCE_KIND",
		"mode":          "DEPLOYMENT_MODE",
		"signal":        "KILL_SIGNAL",
		"node":          "TARGET_NODE",
		"check-new-pid": "CHECK_NEW_PID",
		"duration":      "TOTAL_CHAOS_DURATION",
		"interval":      "CHAOS_INTERVAL",
		"config":        "EXTERNAL_CLUSTER_CONFIG",
	}
	valueFor := map[string]string{
		"kind":          opts.kind,
		"mode":          opts.mode,
		"signal":        opts.signal,
		"node":          opts.node,
		"check-new-pid": strconv.FormatBool(opts.checkNewPID),
		"duration":      strconv.Itoa(opts.duration),
		"interval":      strconv.Itoa(opts.interval),
		"config":        opts.config,
	}
	for flagName, env := range envFor {
		if cmd.Flags().Changed(flagName) {
			os.Setenv(env, valueFor[flagName])
		}
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infof("[Info]: Serving prometheus metrics on %v", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("The metrics listener stopped, err: %v", err)
	}
}
