// Package ssh provides the remote command channel for externally managed
// RHCS hosts. It implements ceph.AdminExecutor.
package ssh

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
	"github.com/red-hat-storage/odf-chaos/pkg/types"
)

const dialTimeout = 30 * time.Second

// Executor runs commands on one admin host over SSH. A new session is opened
// per command, so a dropped connection only fails the attempt it belonged to
// and the surrounding sampler/retry loop can carry on.
type Executor struct {
	address string
	config  *ssh.ClientConfig
}

// NewExecutor builds an executor from the external-cluster connection
// settings, reading and parsing the private key up front so a bad key fails
// at construction rather than mid-disruption.
func NewExecutor(cluster *types.ExternalCluster) (*Executor, error) {
	key, err := ioutil.ReadFile(cluster.KeyFile)
	if err != nil {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Target: cluster.KeyFile, Reason: fmt.Sprintf("unable to read the private key: %s", err.Error())}
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Target: cluster.KeyFile, Reason: fmt.Sprintf("unable to parse the private key: %s", err.Error())}
	}

	port := cluster.Port
	if port == 0 {
		port = 22
	}
	return &Executor{
		address: fmt.Sprintf("%s:%d", cluster.Host, port),
		config: &ssh.ClientConfig{
			User:            cluster.User,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         dialTimeout,
		},
	}, nil
}

// ExecWithOutput runs the command on the remote host and returns its stdout.
// Stderr and a non-zero exit status are folded into the returned error.
func (e *Executor) ExecWithOutput(command string) (string, error) {
	client, err := ssh.Dial("tcp", e.address, e.config)
	if err != nil {
		return "", errors.Wrapf(err, "unable to dial %s", e.address)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", errors.Wrapf(err, "unable to open a session on %s", e.address)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if err := session.Run(command); err != nil {
		return "", cerrors.Error{
			ErrorCode: cerrors.ErrorTypeCommandExecution,
			Source:    e.address,
			Target:    command,
			Reason:    fmt.Sprintf("%s, stderr: %s", err.Error(), stderr.String()),
		}
	}
	return stdout.String(), nil
}
