package exec

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	apiv1 "k8s.io/api/core/v1"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
	"github.com/red-hat-storage/odf-chaos/pkg/clients"
)

// PodDetails contains all the required variables to exec inside a container
type PodDetails struct {
	PodName       string
	Namespace     string
	ContainerName string
}

// Exec runs the provided command inside the target container and returns its
// stdout. Stderr is captured separately and folded into the returned error,
// so callers asserting on "a successful kill prints nothing" only ever see
// command output on stdout.
func Exec(commandDetails *PodDetails, clients clients.ClientSets, command []string) (string, error) {

	pod, err := clients.KubeClient.CoreV1().Pods(commandDetails.Namespace).Get(context.Background(), commandDetails.PodName, v1.GetOptions{})
	if err != nil {
		return "", cerrors.Error{
			ErrorCode: cerrors.ErrorTypeCommandExecution,
			Target:    fmt.Sprintf("{podName: %s, namespace: %s}", commandDetails.PodName, commandDetails.Namespace),
			Reason:    fmt.Sprintf("unable to get the target pod: %s", err.Error()),
		}
	}
	if err := checkPodStatus(pod, commandDetails.ContainerName); err != nil {
		return "", err
	}

	req := clients.KubeClient.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(commandDetails.PodName).
		Namespace(commandDetails.Namespace).
		SubResource("exec")

	parameterCodec := runtime.NewParameterCodec(scheme.Scheme)
	req.VersionedParams(&apiv1.PodExecOptions{
		Command:   command,
		Container: commandDetails.ContainerName,
		Stdin:     false,
		Stdout:    true,
		Stderr:    true,
		TTY:       false,
	}, parameterCodec)

	exec, err := remotecommand.NewSPDYExecutor(clients.KubeConfig, "POST", req.URL())
	if err != nil {
		return "", cerrors.Error{ErrorCode: cerrors.ErrorTypeCommandExecution, Reason: fmt.Sprintf("error while creating Executor: %s", err.Error())}
	}

	var stdout, stderr bytes.Buffer
	err = exec.Stream(remotecommand.StreamOptions{
		Stdin:  nil,
		Stdout: &stdout,
		Stderr: &stderr,
		Tty:    false,
	})
	if err != nil {
		return "", cerrors.Error{
			ErrorCode: cerrors.ErrorTypeCommandExecution,
			Target:    fmt.Sprintf("{podName: %s, namespace: %s}", commandDetails.PodName, commandDetails.Namespace),
			Reason:    fmt.Sprintf("command failed: %s, stderr: %s", err.Error(), stderr.String()),
		}
	}

	return stdout.String(), nil
}

//SetExecCommandAttributes initialise all the pod details to run exec command
func SetExecCommandAttributes(podDetails *PodDetails, PodName, ContainerName, Namespace string) {

	podDetails.ContainerName = ContainerName
	podDetails.Namespace = Namespace
	podDetails.PodName = PodName
}

// checkPodStatus verify the status of given pod & container
func checkPodStatus(pod *apiv1.Pod, containerName string) error {

	if strings.ToLower(string(pod.Status.Phase)) != "running" {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeStatusChecks,
			Target:    fmt.Sprintf("{podName: %s}", pod.Name),
			Reason:    fmt.Sprintf("%v pod is not in running state, phase: %v", pod.Name, pod.Status.Phase),
		}
	}
	for _, container := range pod.Status.ContainerStatuses {
		if container.Name == containerName && !container.Ready {
			return cerrors.Error{
				ErrorCode: cerrors.ErrorTypeStatusChecks,
				Target:    fmt.Sprintf("{podName: %s}", pod.Name),
				Reason:    fmt.Sprintf("%v container of %v pod is not in ready state", container.Name, pod.Name),
			}
		}
	}
	return nil
}
