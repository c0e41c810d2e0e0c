package status

import (
	"context"
	"fmt"
	"time"

	logrus "github.com/sirupsen/logrus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
	"github.com/red-hat-storage/odf-chaos/pkg/clients"
	"github.com/red-hat-storage/odf-chaos/pkg/log"
	"github.com/red-hat-storage/odf-chaos/pkg/utils/retry"
)

// CheckApplicationStatus checks the containers and pods with the matching
// label are ready and running, retrying until the timeout budget is spent
func CheckApplicationStatus(appNs, appLabel string, timeout, delay int, clients clients.ClientSets) error {
	if appLabel == "" {
		log.Info("[Status]: No label provided, skipping the status checks")
		return nil
	}
	log.Info("[Status]: Checking whether the target containers are in ready state")
	if err := CheckContainerStatus(appNs, appLabel, timeout, delay, clients); err != nil {
		return err
	}
	log.Info("[Status]: Checking whether the target pods are in running state")
	return CheckPodStatus(appNs, appLabel, timeout, delay, clients)
}

// CheckPodStatus checks the running status of the pods with the matching label
func CheckPodStatus(appNs, appLabel string, timeout, delay int, clients clients.ClientSets) error {
	return retry.
		Times(uint(timeout / delay)).
		Wait(time.Duration(delay) * time.Second).
		Try(func(attempt uint) error {
			podList, err := clients.KubeClient.CoreV1().Pods(appNs).List(context.Background(), metav1.ListOptions{LabelSelector: appLabel})
			if err != nil {
				return cerrors.Error{ErrorCode: cerrors.ErrorTypeStatusChecks, Target: fmt.Sprintf("{label: %s, namespace: %s}", appLabel, appNs), Reason: err.Error()}
			}
			if len(podList.Items) == 0 {
				return cerrors.Error{ErrorCode: cerrors.ErrorTypeStatusChecks, Target: fmt.Sprintf("{label: %s, namespace: %s}", appLabel, appNs), Reason: "no pods found with matching labels"}
			}
			for _, pod := range podList.Items {
				if pod.Status.Phase != "Running" {
					return cerrors.Error{
						ErrorCode: cerrors.ErrorTypeStatusChecks,
						Target:    fmt.Sprintf("{podName: %s, namespace: %s}", pod.Name, appNs),
						Reason:    fmt.Sprintf("pod is not yet in running state, phase: %s", pod.Status.Phase),
					}
				}
				log.InfoWithValues("[Status]: The status of Pods are as follows", logrus.Fields{
					"Pod": pod.Name, "Status": pod.Status.Phase})
			}
			return nil
		})
}

// CheckContainerStatus checks the readiness of all the containers of the pods
// with the matching label
func CheckContainerStatus(appNs, appLabel string, timeout, delay int, clients clients.ClientSets) error {
	return retry.
		Times(uint(timeout / delay)).
		Wait(time.Duration(delay) * time.Second).
		Try(func(attempt uint) error {
			podList, err := clients.KubeClient.CoreV1().Pods(appNs).List(context.Background(), metav1.ListOptions{LabelSelector: appLabel})
			if err != nil {
				return cerrors.Error{ErrorCode: cerrors.ErrorTypeStatusChecks, Target: fmt.Sprintf("{label: %s, namespace: %s}", appLabel, appNs), Reason: err.Error()}
			}
			if len(podList.Items) == 0 {
				return cerrors.Error{ErrorCode: cerrors.ErrorTypeStatusChecks, Target: fmt.Sprintf("{label: %s, namespace: %s}", appLabel, appNs), Reason: "no pods found with matching labels"}
			}
			for _, pod := range podList.Items {
				for _, container := range pod.Status.ContainerStatuses {
					if container.State.Terminated != nil {
						return cerrors.Error{
							ErrorCode: cerrors.ErrorTypeStatusChecks,
							Target:    fmt.Sprintf("{podName: %s, container: %s}", pod.Name, container.Name),
							Reason:    "container is in terminated state",
						}
					}
					if !container.Ready {
						return cerrors.Error{
							ErrorCode: cerrors.ErrorTypeStatusChecks,
							Target:    fmt.Sprintf("{podName: %s, container: %s}", pod.Name, container.Name),
							Reason:    "container is not yet in ready state",
						}
					}
				}
				log.InfoWithValues("[Status]: The Container status are as follows", logrus.Fields{
					"Pod": pod.Name, "Readiness": true})
			}
			return nil
		})
}

// RunningPodCount returns how many pods matching the label selector are
// currently in Running phase. The disruption engine samples this while
// waiting for replica recovery.
func RunningPodCount(appNs, appLabel string, clients clients.ClientSets) (int, error) {
	podList, err := clients.KubeClient.CoreV1().Pods(appNs).List(context.Background(), metav1.ListOptions{LabelSelector: appLabel})
	if err != nil {
		return 0, cerrors.Error{ErrorCode: cerrors.ErrorTypeStatusChecks, Target: fmt.Sprintf("{label: %s, namespace: %s}", appLabel, appNs), Reason: err.Error()}
	}
	count := 0
	for _, pod := range podList.Items {
		if pod.Status.Phase == "Running" && pod.DeletionTimestamp == nil {
			count++
		}
	}
	return count, nil
}
