package inventory

import (
	"time"
)

// Role classifies a host by its declared function in the fleet.
type Role string

const (
	RoleCompute Role = "compute"
	RoleGPU     Role = "gpu"
	RoleCentral Role = "central"
)

// Identity identifies one host. Immutable once assigned by configuration
// or discovery.
type Identity struct {
	// Addr is the IP address or hostname the host is reached at.
	Addr string `json:"addr" yaml:"addr"`

	// Role is the optional declared role of the host.
	Role Role `json:"role,omitempty" yaml:"role,omitempty"`

	// Network is the optional declared network tag (usually the CIDR the
	// host was discovered in).
	Network string `json:"network,omitempty" yaml:"network,omitempty"`
}

// ProbeKind identifies a discovery concern. The set is closed: dispatch
// happens through a static registry, never by runtime lookup.
type ProbeKind string

const (
	ProbeReachability ProbeKind = "reachability"
	ProbePorts        ProbeKind = "ports"
	ProbeSSHFacts     ProbeKind = "ssh_facts"
	ProbeContainers   ProbeKind = "containers"
	ProbeDatabase     ProbeKind = "database"
	ProbeStorage      ProbeKind = "storage"
)

// Kinds returns all probe kinds in gating order: reachability first,
// then the probes that run concurrently behind the gate.
func Kinds() []ProbeKind {
	return []ProbeKind{
		ProbeReachability,
		ProbePorts,
		ProbeSSHFacts,
		ProbeContainers,
		ProbeDatabase,
		ProbeStorage,
	}
}

// ProbeStatus is the outcome classification of a single probe run.
type ProbeStatus string

const (
	StatusOK          ProbeStatus = "ok"
	StatusUnreachable ProbeStatus = "unreachable"
	StatusAuthFailed  ProbeStatus = "auth_failed"
	StatusTimeout     ProbeStatus = "timeout"
	StatusError       ProbeStatus = "error"
)

// ProbeResult is the immutable outcome of one probe against one host.
// The payload is kind-specific; a probe that found nothing to inspect
// (no docker daemon, no database port open) reports StatusOK with an
// empty payload, which is distinct from StatusError.
type ProbeResult struct {
	Kind       ProbeKind      `json:"kind" yaml:"kind"`
	Status     ProbeStatus    `json:"status" yaml:"status"`
	Payload    map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
	Detail     string         `json:"detail,omitempty" yaml:"detail,omitempty"`
	CapturedAt time.Time      `json:"captured_at" yaml:"captured_at"`
	Duration   time.Duration  `json:"duration_ns,omitempty" yaml:"duration_ns,omitempty"`
}

// OK reports whether the probe completed successfully.
func (r ProbeResult) OK() bool {
	return r.Status == StatusOK
}

// HostRecord holds the merged discovery state for one host: the latest
// probe result per kind and the reachability flag derived from the
// reachability probe. A record is written by exactly one coordinator
// instance per discovery run, so no locking is needed.
type HostRecord struct {
	Identity  Identity                      `json:"identity" yaml:"identity"`
	Reachable bool                          `json:"reachable" yaml:"reachable"`
	Results   map[ProbeKind]ProbeResult     `json:"results" yaml:"results"`
}

// NewHostRecord creates an empty record for the given host.
func NewHostRecord(id Identity) *HostRecord {
	return &HostRecord{
		Identity: id,
		Results:  make(map[ProbeKind]ProbeResult, len(Kinds())),
	}
}

// SetResult stores the result for its probe kind, deriving the
// reachability flag when the reachability result arrives.
func (h *HostRecord) SetResult(res ProbeResult) {
	h.Results[res.Kind] = res
	if res.Kind == ProbeReachability {
		h.Reachable = res.OK()
	}
}

// Result returns the stored result for a probe kind, if present.
func (h *HostRecord) Result(kind ProbeKind) (ProbeResult, bool) {
	res, ok := h.Results[kind]
	return res, ok
}

// Snapshot is the immutable result of one fleet discovery run: one
// HostRecord per requested host plus the set of hosts whose discovery
// failed entirely. A new run produces a new snapshot.
type Snapshot struct {
	ID      string                 `json:"id" yaml:"id"`
	TakenAt time.Time              `json:"taken_at" yaml:"taken_at"`
	Hosts   map[string]*HostRecord `json:"hosts" yaml:"hosts"`
	Failed  []string               `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// HostCount returns the number of host records in the snapshot.
func (s *Snapshot) HostCount() int {
	return len(s.Hosts)
}

// ReachableCount returns the number of hosts marked reachable.
func (s *Snapshot) ReachableCount() int {
	n := 0
	for _, rec := range s.Hosts {
		if rec.Reachable {
			n++
		}
	}
	return n
}
