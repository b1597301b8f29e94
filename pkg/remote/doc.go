// Package remote provides the remote-command-execution collaborator:
// a Runner interface that executes shell commands on fleet hosts, and
// an SSH implementation of it. Probes depend only on the interface.
package remote
