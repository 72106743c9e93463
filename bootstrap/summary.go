package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/justconveyor/component"
)

// PipelineInfo is a pipeline line of the startup summary.
type PipelineInfo struct {
	Name       string
	Shape      string
	RoutingKey string
	Lines      int
}

// RouteInfo is an HTTP route of the startup summary.
type RouteInfo struct {
	Method string
	Path   string
}

// Summary prints what the host started with.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	pipelines       []PipelineInfo
	suppliers       []string
	routes          []RouteInfo
	out             io.Writer
}

// NewSummary creates a summary that prints to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: os.Stdout}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackPipeline records a registered pipeline.
func (s *Summary) TrackPipeline(name, shape, routingKey string, lines int) {
	s.pipelines = append(s.pipelines, PipelineInfo{Name: name, Shape: shape, RoutingKey: routingKey, Lines: lines})
}

// TrackSupplier records a supplier name.
func (s *Summary) TrackSupplier(name string) {
	s.suppliers = append(s.suppliers, name)
}

// TrackRoute records an HTTP route.
func (s *Summary) TrackRoute(method, path string) {
	s.routes = append(s.routes, RouteInfo{Method: method, Path: path})
}

// Display prints the summary followed by the live health of registry.
func (s *Summary) Display(ctx context.Context, registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n🚀 %s v%s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if registry != nil {
		if descs := registry.Descriptions(); len(descs) > 0 {
			fmt.Fprintf(w, "\n📦 Components\n")
			for i, d := range descs {
				fmt.Fprintf(w, "   %s %s [%s] %s\n", branch(i, len(descs)), d.Name, d.Type, d.Details)
			}
		}
	}

	if len(s.pipelines) > 0 {
		fmt.Fprintf(w, "\n🏭 Pipelines (%d)\n", len(s.pipelines))
		for i, p := range s.pipelines {
			fmt.Fprintf(w, "   %s %s x%d on %q: %s\n", branch(i, len(s.pipelines)), p.Name, p.Lines, p.RoutingKey, p.Shape)
		}
	}

	if len(s.suppliers) > 0 {
		fmt.Fprintf(w, "\n📨 Suppliers\n")
		for i, name := range s.suppliers {
			fmt.Fprintf(w, "   %s %s\n", branch(i, len(s.suppliers)), name)
		}
	}

	if len(s.routes) > 0 {
		fmt.Fprintf(w, "\n🌐 Routes (%d)\n", len(s.routes))
		for i, r := range s.routes {
			fmt.Fprintf(w, "   %s %-7s %s\n", branch(i, len(s.routes)), r.Method, r.Path)
		}
	}

	if registry != nil {
		if results := registry.HealthAll(ctx); len(results) > 0 {
			fmt.Fprintf(w, "\n🏥 Health Check\n")
			for i, h := range results {
				msg := ""
				if h.Message != "" {
					msg = " (" + h.Message + ")"
				}
				fmt.Fprintf(w, "   %s %s %s: %s%s\n", branch(i, len(results)), healthStatusIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
			}
		}
	}

	fmt.Fprintln(w)
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
