package conveyor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kbukum/justconveyor/unit"
)

// Snapshot is a point-in-time view of a running conveyor.
type Snapshot struct {
	StartedAt  time.Time      `json:"started_at"`
	Uptime     string         `json:"uptime"`
	Pipelines  []PipelineInfo `json:"pipelines"`
	Queues     []QueueInfo    `json:"queues"`
	Suppliers  []SupplierInfo `json:"suppliers"`
	Lines      []LineInfo     `json:"lines"`
	InProgress []ContextInfo  `json:"in_progress"`
}

type PipelineInfo struct {
	Name        string      `json:"name"`
	PipelineID  string      `json:"pipeline_id"`
	Shape       string      `json:"shape"`
	RoutingKey  string      `json:"routing_key"`
	ForType     bool        `json:"for_type"`
	Builder     string      `json:"builder,omitempty"`
	Lines       int         `json:"lines"`
	In          int64       `json:"in"`
	Out         int64       `json:"out"`
	Errors      int64       `json:"errors"`
	RatePerSec  float64     `json:"rate_per_sec"`
	WaitTime    TimeProfile `json:"wait_time"`
	ProcessTime TimeProfile `json:"process_time"`
}

type QueueInfo struct {
	Name     string `json:"name"`
	Pipeline string `json:"pipeline"`
	OnQueue  int    `json:"on_queue"`
	Previous int    `json:"previous"`
	Delta    int    `json:"delta"`
}

type SupplierInfo struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	State      string  `json:"state"`
	Supplied   int64   `json:"supplied"`
	Errors     int64   `json:"errors"`
	RatePerSec float64 `json:"rate_per_sec"`
}

type LineInfo struct {
	ID       string `json:"id"`
	Pipeline string `json:"pipeline"`
	State    string `json:"state"`
}

type ContextInfo struct {
	ID      string            `json:"id"`
	Meta    map[string]string `json:"meta"`
	Step    string            `json:"step"`
	Started time.Time         `json:"started"`
	Elapsed string            `json:"elapsed"`
	History []StepInfo        `json:"history"`
}

type StepInfo struct {
	Step     string `json:"step"`
	Duration string `json:"duration"`
	Finished bool   `json:"finished"`
}

// Snapshot collects counters, states and in-flight contexts.
func (c *Conveyor) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{StartedAt: c.startedAt}
	if !c.startedAt.IsZero() {
		s.Uptime = FormatElapsed(time.Since(c.startedAt))
	}

	for _, w := range c.ordered {
		h := w.counters.harvested()
		s.Pipelines = append(s.Pipelines, PipelineInfo{
			Name:        w.pipeline.Name(),
			PipelineID:  w.pipeline.ID(),
			Shape:       w.pipeline.String(),
			RoutingKey:  w.routingKey,
			ForType:     w.forType,
			Builder:     w.builder,
			Lines:       w.lines,
			In:          w.counters.in.Load(),
			Out:         w.counters.out.Load(),
			Errors:      w.counters.errs.Load(),
			RatePerSec:  w.counters.rate.rate(),
			WaitTime:    h.wait,
			ProcessTime: h.process,
		})
		s.Queues = append(s.Queues, QueueInfo{
			Name:     w.queue.Name(),
			Pipeline: w.pipeline.Name(),
			OnQueue:  h.onQueue,
			Previous: h.onQueuePrev,
			Delta:    h.onQueue - h.onQueuePrev,
		})
		for _, l := range w.workers {
			s.Lines = append(s.Lines, LineInfo{ID: l.id, Pipeline: w.pipeline.Name(), State: l.State().String()})
		}
	}

	for _, sup := range c.suppliers {
		s.Suppliers = append(s.Suppliers, SupplierInfo{
			Name:       sup.name,
			Type:       fmt.Sprintf("%T", sup.supplier),
			State:      sup.State().String(),
			Supplied:   sup.supplied.Load(),
			Errors:     sup.errs.Load(),
			RatePerSec: sup.rate.rate(),
		})
	}

	s.InProgress = c.InProgress()
	return s
}

// InProgress lists the transfering contexts currently in a pipeline,
// oldest first.
func (c *Conveyor) InProgress() []ContextInfo {
	var out []ContextInfo
	now := time.Now()
	c.contexts.Range(func(_, v any) bool {
		out = append(out, contextInfo(v.(*unit.TransferingContext), now))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

func contextInfo(tc *unit.TransferingContext, now time.Time) ContextInfo {
	info := ContextInfo{
		ID:      tc.ID,
		Meta:    tc.Meta(),
		Step:    tc.CurrentStep(),
		Started: tc.StartedAt,
		Elapsed: FormatElapsed(now.Sub(tc.StartedAt)),
	}
	for _, pi := range tc.History() {
		d := pi.Duration()
		if !pi.Finished() {
			d = now.Sub(pi.StartedAt)
		}
		info.History = append(info.History, StepInfo{Step: pi.StepName, Duration: FormatElapsed(d), Finished: pi.Finished()})
	}
	return info
}

// FormatElapsed renders d as "1d2h3m4,005s", leaving out leading zero
// units. Seconds are always present.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	days := ms / (24 * 3600 * 1000)
	ms -= days * 24 * 3600 * 1000
	hours := ms / (3600 * 1000)
	ms -= hours * 3600 * 1000
	minutes := ms / (60 * 1000)
	ms -= minutes * 60 * 1000
	seconds := ms / 1000
	ms -= seconds * 1000

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	if days > 0 || hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if days > 0 || hours > 0 || minutes > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	fmt.Fprintf(&b, "%d,%03ds", seconds, ms)
	return b.String()
}
