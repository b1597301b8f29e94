package alerting

import (
	"os"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/Clawue884/sidra-monitoring/pkg/errors"
	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
)

// Direction selects which side of the bounds is unhealthy.
type Direction string

const (
	DirectionGreaterThan Direction = "greater_than"
	DirectionLessThan    Direction = "less_than"
)

var fold = cases.Fold()

// ThresholdRule maps one metric to warning and critical bounds. A value
// exactly at a bound belongs to the higher severity: >= for
// greater_than, <= for less_than. There is no hysteresis; a value
// oscillating around a bound transitions on every crossing.
type ThresholdRule struct {
	Metric   string           `yaml:"metric" json:"metric"`
	Warning  float64          `yaml:"warning" json:"warning"`
	Critical float64          `yaml:"critical" json:"critical"`
	// Direction defaults to greater_than when omitted.
	Direction Direction        `yaml:"direction,omitempty" json:"direction,omitempty"`
	// Roles restricts the rule to hosts with one of these declared
	// roles. Empty means all hosts.
	Roles []inventory.Role `yaml:"roles,omitempty" json:"roles,omitempty"`
}

// Validate rejects rules that could never fire correctly. Invalid rules
// are a configuration error at load time, never silently applied.
func (r ThresholdRule) Validate() error {
	if r.Metric == "" {
		return errors.New(errors.ErrCodeConfig, "threshold rule has empty metric name")
	}
	switch r.Direction {
	case "", DirectionGreaterThan:
		if r.Warning >= r.Critical {
			return errors.Newf(errors.ErrCodeConfig,
				"rule %s: warning bound %.2f must be below critical bound %.2f for greater_than",
				r.Metric, r.Warning, r.Critical)
		}
	case DirectionLessThan:
		if r.Warning <= r.Critical {
			return errors.Newf(errors.ErrCodeConfig,
				"rule %s: warning bound %.2f must be above critical bound %.2f for less_than",
				r.Metric, r.Warning, r.Critical)
		}
	default:
		return errors.Newf(errors.ErrCodeConfig, "rule %s: unknown direction %q", r.Metric, r.Direction)
	}
	return nil
}

// Matches reports whether the rule applies to the given metric and host
// role. Metric and role comparison is case-folded so rules files do not
// have to match the exact casing agents report.
func (r ThresholdRule) Matches(metric string, role inventory.Role) bool {
	if fold.String(r.Metric) != fold.String(metric) {
		return false
	}
	if len(r.Roles) == 0 {
		return true
	}
	for _, want := range r.Roles {
		if fold.String(string(want)) == fold.String(string(role)) {
			return true
		}
	}
	return false
}

// SeverityFor evaluates a metric value against the rule's bounds.
func (r ThresholdRule) SeverityFor(value float64) Severity {
	if r.Direction == DirectionLessThan {
		switch {
		case value <= r.Critical:
			return SeverityCritical
		case value <= r.Warning:
			return SeverityWarning
		}
		return SeverityOK
	}
	switch {
	case value >= r.Critical:
		return SeverityCritical
	case value >= r.Warning:
		return SeverityWarning
	}
	return SeverityOK
}

// rulesFile is the on-disk shape of a rules document.
type rulesFile struct {
	Rules []ThresholdRule `yaml:"rules"`
}

// LoadRules reads and validates a YAML rules file.
func LoadRules(path string) ([]ThresholdRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, "reading rules file", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(data []byte) ([]ThresholdRule, error) {
	var doc rulesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, "parsing rules file", err)
	}
	for _, r := range doc.Rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Rules, nil
}

// DefaultRules covers the metrics every fleet reports. Used when no
// rules file is configured.
func DefaultRules() []ThresholdRule {
	return []ThresholdRule{
		{Metric: "cpu_pct", Warning: 80, Critical: 95},
		{Metric: "mem_pct", Warning: 85, Critical: 95},
		{Metric: "disk_pct", Warning: 85, Critical: 95},
		{Metric: "gpu_temp_c", Warning: 80, Critical: 90, Roles: []inventory.Role{inventory.RoleGPU}},
		{Metric: "gpu_util_pct", Warning: 95, Critical: 99, Roles: []inventory.Role{inventory.RoleGPU}},
	}
}
