package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/diarizer/component"
)

// BusinessComponentInfo represents a business-layer component (service, handler).
type BusinessComponentInfo struct {
	Name         string
	Type         string // "service", "handler"
	Dependencies []string
}

// ClientInfo represents an outbound dependency such as a model sidecar.
type ClientInfo struct {
	Name   string
	Target string
	Type   string // "http", "process"
}

// Summary collects and prints the startup summary. Infrastructure and routes
// are discovered from the component registry; business components and
// clients are tracked explicitly.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	business        []BusinessComponentInfo
	clients         []ClientInfo
	out             io.Writer
}

// NewSummary creates a new startup summary that prints to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: os.Stdout}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackBusinessComponent records a business-layer component.
func (s *Summary) TrackBusinessComponent(name, componentType string, dependencies ...string) {
	s.business = append(s.business, BusinessComponentInfo{
		Name:         name,
		Type:         componentType,
		Dependencies: dependencies,
	})
}

// TrackClient records an outbound dependency.
func (s *Summary) TrackClient(name, target, clientType string) {
	s.clients = append(s.clients, ClientInfo{Name: name, Target: target, Type: clientType})
}

// Display prints the summary including live health from the registry.
func (s *Summary) Display(ctx context.Context, registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n🚀 %s v%s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	var infra []component.Description
	var routes []component.Route
	if registry != nil {
		for _, c := range registry.All() {
			if d, ok := c.(component.Describable); ok {
				desc := d.Describe()
				if desc.Name == "" {
					desc.Name = c.Name()
				}
				infra = append(infra, desc)
			}
			if rp, ok := c.(component.RouteProvider); ok {
				routes = append(routes, rp.Routes()...)
			}
		}
	}

	if len(infra) > 0 {
		fmt.Fprintf(w, "\n📊 Infrastructure\n")
		for i, d := range infra {
			details := d.Details
			if d.Port > 0 {
				details = fmt.Sprintf("%s (:%d)", details, d.Port)
			}
			fmt.Fprintf(w, "   %s [%s] %s: %s\n", branch(i, len(infra)), d.Type, d.Name, details)
		}
	}

	if len(s.business) > 0 {
		fmt.Fprintf(w, "\n💼 Business Layer\n")
		for i, b := range s.business {
			fmt.Fprintf(w, "   %s [%s] %s\n", branch(i, len(s.business)), b.Type, b.Name)
			indent := "│  "
			if i == len(s.business)-1 {
				indent = "   "
			}
			for j, dep := range b.Dependencies {
				fmt.Fprintf(w, "   %s %s %s\n", indent, branch(j, len(b.Dependencies)), dep)
			}
		}
	}

	if len(s.clients) > 0 {
		fmt.Fprintf(w, "\n🔌 Clients\n")
		for i, c := range s.clients {
			fmt.Fprintf(w, "   %s %s → %s [%s]\n", branch(i, len(s.clients)), c.Name, c.Target, c.Type)
		}
	}

	if len(routes) > 0 {
		fmt.Fprintf(w, "\n🌐 Routes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-7s %s → %s\n", branch(i, len(routes)), r.Method, r.Path, r.Handler)
		}
	}

	if registry != nil {
		results := registry.HealthAll(ctx)
		if len(results) > 0 {
			fmt.Fprintf(w, "\n🏥 Health Check\n")
			for i, h := range results {
				msg := ""
				if h.Message != "" {
					msg = " (" + h.Message + ")"
				}
				fmt.Fprintf(w, "   %s %s %s: %s%s\n", branch(i, len(results)), healthStatusIcon(h.Status),
					h.Name, strings.ToLower(string(h.Status)), msg)
			}
			if overall := component.Overall(results); overall == component.StatusHealthy {
				fmt.Fprintf(w, "\n✅ All components healthy (%d/%d)\n", len(results), len(results))
			} else {
				fmt.Fprintf(w, "\n⚠️  Service is %s\n", overall)
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
