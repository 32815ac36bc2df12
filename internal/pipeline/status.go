package pipeline

import (
	"time"

	"git.home.luguber.info/inful/appserve/internal/bundle"
	"git.home.luguber.info/inful/appserve/internal/mode"
)

// BuildSummary describes the most recent build pass.
type BuildSummary struct {
	At         time.Time `json:"at"`
	DurationMS int64     `json:"duration_ms"`
	OK         bool      `json:"ok"`
	Errors     []string  `json:"errors,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// Status is a snapshot of the pipeline for operators.
type Status struct {
	Mode       mode.Mode     `json:"mode"`
	State      State         `json:"state"`
	Builds     int           `json:"builds"`
	HotClients int           `json:"hot_clients"`
	LastBuild  *BuildSummary `json:"last_build,omitempty"`
}

// Status returns a snapshot of the pipeline state and last build.
func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := Status{Mode: p.mode, State: p.state, Builds: p.builds, HotClients: p.hub.Clients()}
	if p.last != nil {
		cp := *p.last
		st.LastBuild = &cp
	}
	return st
}

func (p *Pipeline) record(res bundle.Result, err error, start time.Time) *BuildSummary {
	s := &BuildSummary{
		At:         start,
		DurationMS: time.Since(start).Milliseconds(),
		OK:         err == nil && !res.HasErrors(),
	}
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
	}
	for _, d := range res.Diagnostics {
		switch d.Severity {
		case bundle.SeverityError:
			s.Errors = append(s.Errors, d.String())
		case bundle.SeverityWarning:
			s.Warnings = append(s.Warnings, d.String())
		}
	}
	p.mu.Lock()
	p.builds++
	p.last = s
	p.mu.Unlock()
	return s
}
