package state

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

const (
	configMapPrefix = "gbqetl-job-"
	appLabel        = "app"
	appName         = "gbqetl"
	tableLabel      = "gbqetl/table"
	stateKey        = "state"
)

// KubernetesManager implements the Manager interface using Kubernetes ConfigMaps
type KubernetesManager struct {
	client    kubernetes.Interface
	namespace string
}

// NewKubernetesManager stores job states in namespace through client
func NewKubernetesManager(client kubernetes.Interface, namespace string) *KubernetesManager {
	if namespace == "" {
		namespace = "default"
	}
	return &KubernetesManager{
		client:    client,
		namespace: namespace,
	}
}

// NewInClusterManager builds a KubernetesManager from the pod's service account
func NewInClusterManager(namespace string) (*KubernetesManager, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get in-cluster config: %w", err)
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return NewKubernetesManager(client, namespace), nil
}

var (
	invalidNameChars  = regexp.MustCompile(`[^a-z0-9.-]+`)
	invalidLabelChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// configMapName maps a job ID onto a valid DNS subdomain name
func configMapName(jobID string) string {
	name := invalidNameChars.ReplaceAllString(strings.ToLower(jobID), "-")
	name = configMapPrefix + strings.Trim(name, "-.")
	if len(name) > 253 {
		name = name[:253]
	}
	return strings.TrimRight(name, "-.")
}

// labelValue keeps label values within the 63 character alphanumeric limit
func labelValue(s string) string {
	v := invalidLabelChars.ReplaceAllString(s, "_")
	if len(v) > 63 {
		v = v[:63]
	}
	return strings.Trim(v, "_.-")
}

func (k *KubernetesManager) configMap(state *State) (*corev1.ConfigMap, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      configMapName(state.JobID),
			Namespace: k.namespace,
			Labels: map[string]string{
				appLabel:   appName,
				tableLabel: labelValue(state.Table),
			},
		},
		Data: map[string]string{
			stateKey: string(data),
		},
	}, nil
}

func decodeConfigMap(cm *corev1.ConfigMap) (*State, error) {
	var state State
	if err := json.Unmarshal([]byte(cm.Data[stateKey]), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state from %s: %w", cm.Name, err)
	}
	return &state, nil
}

func (k *KubernetesManager) GetState(ctx context.Context, jobID string) (*State, error) {
	cm, err := k.client.CoreV1().ConfigMaps(k.namespace).Get(ctx, configMapName(jobID), metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ConfigMap: %w", err)
	}
	return decodeConfigMap(cm)
}

func (k *KubernetesManager) CreateState(ctx context.Context, state *State) error {
	cm, err := k.configMap(state)
	if err != nil {
		return err
	}

	if _, err := k.client.CoreV1().ConfigMaps(k.namespace).Create(ctx, cm, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return fmt.Errorf("state already exists for job %s", state.JobID)
		}
		return fmt.Errorf("failed to create ConfigMap: %w", err)
	}
	return nil
}

func (k *KubernetesManager) UpdateState(ctx context.Context, state *State) error {
	cm, err := k.configMap(state)
	if err != nil {
		return err
	}

	if _, err := k.client.CoreV1().ConfigMaps(k.namespace).Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("job %s: %w", state.JobID, ErrNotFound)
		}
		return fmt.Errorf("failed to update ConfigMap: %w", err)
	}
	return nil
}

func (k *KubernetesManager) DeleteState(ctx context.Context, jobID string) error {
	err := k.client.CoreV1().ConfigMaps(k.namespace).Delete(ctx, configMapName(jobID), metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete ConfigMap: %w", err)
	}
	return nil
}

func (k *KubernetesManager) ListStates(ctx context.Context, table string) ([]*State, error) {
	selector := appLabel + "=" + appName
	if table != "" {
		selector += "," + tableLabel + "=" + labelValue(table)
	}

	list, err := k.client.CoreV1().ConfigMaps(k.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ConfigMaps: %w", err)
	}

	var states []*State
	for i := range list.Items {
		state, err := decodeConfigMap(&list.Items[i])
		if err != nil {
			continue // skip invalid states
		}
		if table == "" || state.Table == table {
			states = append(states, state)
		}
	}

	sortStates(states)
	return states, nil
}
