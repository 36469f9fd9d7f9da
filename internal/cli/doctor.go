package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/gazer-labs/sqlgazer/internal/sqlparse"
	"github.com/gazer-labs/sqlgazer/internal/warehouse"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run system diagnostics",
		Long: `Run diagnostics against the current configuration.

Checks:
  - configuration validity
  - SQL dialect availability
  - source connectivity
  - sink connectivity`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor(cmd.Context())
		},
	}
}

// DiagnosticCheck represents a single diagnostic check result.
type DiagnosticCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

func (c *CLI) runDoctor(ctx context.Context) error {
	checks := []DiagnosticCheck{
		c.checkConfig(),
		c.checkDialect(),
		c.checkSource(ctx),
		c.checkSink(ctx),
	}

	allPassed := true
	for _, check := range checks {
		if !check.Passed {
			allPassed = false
		}
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"checks":     checks,
			"all_passed": allPassed,
		})
	}

	for _, check := range checks {
		status := "FAIL"
		if check.Passed {
			status = "ok"
		}
		c.printf("%-12s %-6s %s\n", check.Name, status, check.Message)
	}
	if !allPassed {
		c.println("\nsome checks failed")
	}
	return nil
}

func (c *CLI) checkConfig() DiagnosticCheck {
	if err := c.cfg.Validate(); err != nil {
		return DiagnosticCheck{Name: "config", Message: err.Error()}
	}
	return DiagnosticCheck{Name: "config", Passed: true,
		Message: "source=" + c.cfg.Source.Kind + " sink=" + sinkName(c.cfg.Sink.Kind)}
}

func sinkName(kind string) string {
	if kind == "" {
		return "stdout"
	}
	return kind
}

func (c *CLI) checkDialect() DiagnosticCheck {
	if _, err := sqlparse.NewParser(c.cfg.Analysis.Dialect); err != nil {
		return DiagnosticCheck{Name: "dialect", Message: err.Error()}
	}
	return DiagnosticCheck{Name: "dialect", Passed: true, Message: c.cfg.Analysis.Dialect}
}

func (c *CLI) checkSource(ctx context.Context) DiagnosticCheck {
	src, err := c.openSource(ctx)
	if err != nil {
		return DiagnosticCheck{Name: "source", Message: err.Error()}
	}
	defer src.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	result := warehouse.WithRetry(pingCtx, warehouse.DefaultRetryConfig(), func() error {
		return src.Ping(pingCtx)
	})
	if !result.Success {
		return DiagnosticCheck{Name: "source", Message: result.String()}
	}
	return DiagnosticCheck{Name: "source", Passed: true,
		Message: src.Name() + " reachable (" + result.String() + ")"}
}

func (c *CLI) checkSink(ctx context.Context) DiagnosticCheck {
	sink, err := c.openSink(ctx)
	if err != nil {
		return DiagnosticCheck{Name: "sink", Message: err.Error()}
	}
	if sink == nil {
		return DiagnosticCheck{Name: "sink", Passed: true, Message: "stdout only, nothing to check"}
	}
	defer sink.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := sink.CheckConnectivity(pingCtx); err != nil {
		return DiagnosticCheck{Name: "sink", Message: err.Error()}
	}
	return DiagnosticCheck{Name: "sink", Passed: true, Message: c.cfg.Sink.Kind + " reachable"}
}
