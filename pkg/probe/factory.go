package probe

import (
	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/remote"
)

// Factory creates probes with their dependencies.
// This interface enables dependency injection for testing.
type Factory interface {
	CreateReachabilityProbe() Probe
	CreatePortsProbe() Probe
	CreateSSHFactsProbe() Probe
	CreateContainersProbe() Probe
	CreateDatabaseProbe() Probe
	CreateStorageProbe() Probe
}

// DefaultFactory creates probes with production dependencies.
type DefaultFactory struct {
	// Runner executes remote commands for shell-backed probes.
	Runner remote.Runner
}

// NewDefaultFactory creates a factory using the given remote runner.
func NewDefaultFactory(runner remote.Runner) *DefaultFactory {
	return &DefaultFactory{Runner: runner}
}

// CreateReachabilityProbe creates the gating reachability probe.
func (f *DefaultFactory) CreateReachabilityProbe() Probe {
	return &ReachabilityProbe{}
}

// CreatePortsProbe creates the port scan probe.
func (f *DefaultFactory) CreatePortsProbe() Probe {
	return &PortsProbe{}
}

// CreateSSHFactsProbe creates the SSH facts probe.
func (f *DefaultFactory) CreateSSHFactsProbe() Probe {
	return &SSHFactsProbe{Runner: f.Runner}
}

// CreateContainersProbe creates the container inspection probe.
func (f *DefaultFactory) CreateContainersProbe() Probe {
	return &ContainersProbe{Runner: f.Runner}
}

// CreateDatabaseProbe creates the database inspection probe.
func (f *DefaultFactory) CreateDatabaseProbe() Probe {
	return &DatabaseProbe{Runner: f.Runner}
}

// CreateStorageProbe creates the storage inspection probe.
func (f *DefaultFactory) CreateStorageProbe() Probe {
	return &StorageProbe{Runner: f.Runner}
}

// Registry maps every probe kind to its implementation. Dispatch is
// static: the set of kinds is closed and built once per run.
func Registry(f Factory) map[inventory.ProbeKind]Probe {
	return map[inventory.ProbeKind]Probe{
		inventory.ProbeReachability: f.CreateReachabilityProbe(),
		inventory.ProbePorts:        f.CreatePortsProbe(),
		inventory.ProbeSSHFacts:     f.CreateSSHFactsProbe(),
		inventory.ProbeContainers:   f.CreateContainersProbe(),
		inventory.ProbeDatabase:     f.CreateDatabaseProbe(),
		inventory.ProbeStorage:      f.CreateStorageProbe(),
	}
}

// ShellDependent reports whether a probe kind requires shell access and
// is therefore skipped when SSH authentication fails.
func ShellDependent(kind inventory.ProbeKind) bool {
	switch kind {
	case inventory.ProbeContainers, inventory.ProbeDatabase, inventory.ProbeStorage:
		return true
	default:
		return false
	}
}
