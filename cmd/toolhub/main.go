// Command toolhub is the Hub's minimal external-collaborator CLI (§6):
// scan, list, and verify discovery roots without embedding a host process.
// Grounded on the donor's cmd/demo/main.go style — a bare func main, no CLI
// framework, flags parsed by hand.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"toolhub.dev/hub/discovery"
	"toolhub.dev/hub/hub"
	"toolhub.dev/hub/hubconfig"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: toolhub <scan|list|verify> [--config path] [flags]")
		return 1
	}

	fs := flag.NewFlagSet("toolhub", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config.yaml (defaults to $TOOLHUB_CONFIG or ~/.toolhub/config.yaml)")
	detail := fs.String("detail", "normal", "list output detail: short|normal|full")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	cfg, err := hubconfig.Load(*configPath)
	if err != nil {
		if errors.Is(err, hubconfig.ErrConfigNotFound) {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintln(stderr, "toolhub:", err)
		return 1
	}

	ctx := context.Background()

	switch args[0] {
	case "scan":
		return runScan(ctx, cfg, stdout, stderr)
	case "list":
		return runList(ctx, cfg, *detail, stdout, stderr)
	case "verify":
		return runVerify(ctx, cfg, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "toolhub: unknown command %q\n", args[0])
		return 1
	}
}

func runScan(ctx context.Context, cfg hubconfig.Config, stdout, stderr *os.File) int {
	h := hub.New(cfg.ToHubOptions())
	defer h.Shutdown()

	if err := h.InitAllTools(ctx); err != nil {
		fmt.Fprintln(stderr, "toolhub: scan:", err)
		return 1
	}
	fmt.Fprintf(stdout, "scanned: %d tools registered\n", len(h.ListToolMetadata()))
	return 0
}

func runList(ctx context.Context, cfg hubconfig.Config, detail string, stdout, stderr *os.File) int {
	h := hub.New(cfg.ToHubOptions())
	defer h.Shutdown()

	if err := h.InitAllTools(ctx); err != nil {
		fmt.Fprintln(stderr, "toolhub: list:", err)
		return 1
	}

	metas := h.ListToolMetadata()
	switch detail {
	case "short":
		for _, m := range metas {
			fmt.Fprintln(stdout, m.Name)
		}
	case "normal":
		fmt.Fprintln(stdout, "name\tkind\tdescription")
		for _, m := range metas {
			desc, _ := h.GetToolDescription(m.Name)
			fmt.Fprintf(stdout, "%s\t%s\t%s\n", desc.Name, desc.Kind, desc.Description)
		}
	case "full":
		out := make([]hub.ToolDescription, 0, len(metas))
		for _, m := range metas {
			desc, ok := h.GetToolDescription(m.Name)
			if ok {
				out = append(out, desc)
			}
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintln(stderr, "toolhub: list:", err)
			return 1
		}
	default:
		fmt.Fprintf(stderr, "toolhub: unknown --detail %q (want short|normal|full)\n", detail)
		return 1
	}
	return 0
}

// runVerify re-scans with its own OnScanError sink so malformed tool
// directories (bad tool.json, missing SKILL.md frontmatter keys, etc.) are
// reported instead of silently skipped the way a plain scan/list would
// leave them (§7: "Discovery errors are routed to onError and never abort a
// scan").
func runVerify(ctx context.Context, cfg hubconfig.Config, stdout, stderr *os.File) int {
	var scanErrs []error
	opts := cfg.ToHubOptions()
	opts.OnScanError = func(err *discovery.LoadError) {
		scanErrs = append(scanErrs, err)
	}

	h := hub.New(opts)
	defer h.Shutdown()

	if err := h.InitAllTools(ctx); err != nil {
		fmt.Fprintln(stderr, "toolhub: verify:", err)
		return 1
	}

	if len(scanErrs) > 0 {
		for _, e := range scanErrs {
			fmt.Fprintln(stderr, "toolhub: verify:", e)
		}
		return 1
	}

	fmt.Fprintf(stdout, "verified: %d tools, no scan errors\n", len(h.ListToolMetadata()))
	return 0
}
