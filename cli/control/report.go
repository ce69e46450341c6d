package control

import (
	"time"

	"newspenguin/app"
	"newspenguin/domain"
)

// RunReport is the JSON form of a domain.RunResult.
type RunReport struct {
	RunID     string       `json:"run_id"`
	Outcome   string       `json:"outcome"`
	Previous  string       `json:"previous_watermark,omitempty"`
	Watermark string       `json:"watermark,omitempty"`
	Published []ItemReport `json:"published,omitempty"`
	Failed    []ItemReport `json:"failed,omitempty"`
	Skipped   []ItemReport `json:"skipped,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	Duration  string       `json:"duration"`
	Error     string       `json:"error,omitempty"`
}

type ItemReport struct {
	Title       string `json:"title"`
	Link        string `json:"link,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

func NewRunReport(res domain.RunResult, err error) RunReport {
	r := RunReport{
		RunID:     res.RunID,
		Outcome:   string(res.Outcome),
		Previous:  formatOptional(res.Previous),
		Watermark: formatOptional(res.Watermark),
		StartedAt: res.StartedAt,
		Duration:  res.Duration.String(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	for _, it := range res.Published {
		r.Published = append(r.Published, ItemReport{Title: it.Title, Link: it.Link, PublishedAt: domain.FormatTimestamp(it.PublishedAt)})
	}
	for _, f := range res.Failed {
		r.Failed = append(r.Failed, ItemReport{Title: f.Item.Title, Link: f.Item.Link, PublishedAt: domain.FormatTimestamp(f.Item.PublishedAt), Error: f.Err.Error()})
	}
	for _, s := range res.Skipped {
		r.Skipped = append(r.Skipped, ItemReport{Title: s.Title, Link: s.Link, Error: s.Err.Error()})
	}
	return r
}

// StatusReport is returned by GET /status.
type StatusReport struct {
	Schedule  string     `json:"schedule"`
	Started   bool       `json:"started"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *RunReport `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`

	AppKey    string       `json:"app_key,omitempty"`
	Watermark string       `json:"watermark,omitempty"`
	Lease     *LeaseReport `json:"lease,omitempty"`
	Error     string       `json:"state_error,omitempty"`
}

type LeaseReport struct {
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
	Live       bool      `json:"live"`
}

func newStatusReport(sched app.SchedulerStatus, st app.State, stateErr error) StatusReport {
	r := StatusReport{
		Schedule:  sched.Schedule,
		Started:   sched.Started,
		LastError: sched.LastError,
		AppKey:    st.AppKey,
		Watermark: formatOptional(st.Watermark),
	}
	if !sched.NextRun.IsZero() {
		next := sched.NextRun
		r.NextRun = &next
	}
	if sched.LastRun != nil {
		var lastErr error
		if sched.LastError != "" {
			lastErr = stringError(sched.LastError)
		}
		last := NewRunReport(*sched.LastRun, lastErr)
		r.LastRun = &last
	}
	if st.Lease != nil {
		r.Lease = &LeaseReport{Holder: st.Lease.Holder, AcquiredAt: st.Lease.AcquiredAt, Live: st.LeaseLive}
	}
	if stateErr != nil {
		r.Error = stateErr.Error()
	}
	return r
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return domain.FormatTimestamp(*t)
}

type stringError string

func (e stringError) Error() string { return string(e) }
