package clients

import (
	"flag"

	"github.com/pkg/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientSets is a collection of clientSets and kubeConfig needed by the
// disruption flows. KubeClient is the interface type so tests can substitute
// the fake clientset.
type ClientSets struct {
	KubeClient kubernetes.Interface
	KubeConfig *rest.Config
}

// GenerateClientSetFromKubeConfig will generate the kubernetes ClientSet as well as the KubeConfig
func (clientSets *ClientSets) GenerateClientSetFromKubeConfig() error {

	config, err := getKubeConfig()
	if err != nil {
		return err
	}
	k8sClientSet, err := generateK8sClientSet(config)
	if err != nil {
		return err
	}
	clientSets.KubeClient = k8sClientSet
	clientSets.KubeConfig = config
	return nil
}

// GenerateClientSetFromKubeConfigPath builds the clientSet from an explicit
// kubeconfig path, for callers that own their flag parsing. An empty path
// selects the in-cluster config.
func (clientSets *ClientSets) GenerateClientSetFromKubeConfigPath(path string) error {

	config, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return err
	}
	k8sClientSet, err := generateK8sClientSet(config)
	if err != nil {
		return err
	}
	clientSets.KubeClient = k8sClientSet
	clientSets.KubeConfig = config
	return nil
}

// getKubeConfig setup the config for access cluster resource
func getKubeConfig() (*rest.Config, error) {
	kubeconfig := flag.String("kubeconfig", "", "absolute path to the kubeconfig file")
	flag.Parse()
	// It uses in-cluster config, if kubeconfig path is not specified
	config, err := clientcmd.BuildConfigFromFlags("", *kubeconfig)
	return config, err
}

// generateK8sClientSet will generation k8s client
func generateK8sClientSet(config *rest.Config) (*kubernetes.Clientset, error) {
	k8sClientSet, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to generate kubernetes clientSet, err: %v: ", err)
	}
	return k8sClientSet, nil
}
