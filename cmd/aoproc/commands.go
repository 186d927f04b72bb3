package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/aoproc/internal/config"
	"github.com/mattjoyce/aoproc/internal/dispatch"
	"github.com/mattjoyce/aoproc/internal/log"
	"github.com/mattjoyce/aoproc/internal/process"
	"github.com/mattjoyce/aoproc/internal/protocol"
	"github.com/mattjoyce/aoproc/internal/state"
	"github.com/mattjoyce/aoproc/internal/tui"
)

// newLocalProcess builds an in-memory process named after the config.
// Logs go to stderr at warn so they never mix with command output.
func newLocalProcess(cfg *config.Config, stderr io.Writer) *process.Process {
	process.Init("warn", cfg.Service.LogFormat, stderr)
	st := state.NewStore()
	d := dispatch.New(st,
		dispatch.WithProcessName(cfg.Process.Name),
		dispatch.WithLogger(log.WithComponent("dispatch")),
	)
	return process.New(st, d)
}

// runHandle runs one message. The exit code is 2 when the reply is an
// Error response so scripts can branch on it.
func runHandle(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("handle", flag.ContinueOnError)
	fs.SetOutput(stderr)
	from := fs.String("from", "", "Override the message sender")
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "handle takes at most one message argument")
		return 1
	}

	var raw string
	if fs.NArg() == 0 || fs.Arg(0) == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to read stdin: %v\n", err)
			return 1
		}
		raw = string(b)
	} else {
		raw = fs.Arg(0)
	}

	if *from != "" {
		overridden, err := withSender(raw, *from)
		if err != nil {
			fmt.Fprintf(stderr, "Cannot apply --from: %v\n", err)
			return 1
		}
		raw = overridden
	}

	cfg, _, err := config.Discover(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	out := newLocalProcess(cfg, stderr).Handle(raw)
	fmt.Fprintln(stdout, out)

	if resp, err := protocol.DecodeResponse([]byte(out)); err == nil && resp.IsError() {
		return 2
	}
	return 0
}

// withSender rewrites the From field of a raw message object, keeping every
// other field as sent.
func withSender(raw, from string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", fmt.Errorf("message is not a JSON object: %w", err)
	}
	if fields == nil {
		return "", fmt.Errorf("message is not a JSON object")
	}
	b, err := json.Marshal(from)
	if err != nil {
		return "", err
	}
	fields["From"] = b
	out, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func runState(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("state", flag.ContinueOnError)
	fs.SetOutput(stderr)
	url := fs.String("url", "", "Base URL of a running host (default from config api.listen)")
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	base := *url
	if base == "" {
		cfg, _, err := config.Discover(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return 1
		}
		base = defaultBaseURL(cfg.API.Listen)
	}

	body, etag, err := fetchState(context.Background(), base)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to fetch state from %s: %v\n", base, err)
		return 1
	}

	snapshot, err := protocol.DecodeState([]byte(body))
	if err != nil {
		fmt.Fprintf(stderr, "Host returned invalid state: %v\n", err)
		return 1
	}
	pretty, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Failed to format state: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, string(pretty))
	fmt.Fprintf(stdout, "entries: %d\n", len(snapshot))
	if etag != "" {
		fmt.Fprintf(stdout, "fingerprint: %s\n", etag)
	}
	return 0
}

type demoStep struct {
	title string
	msg   string
}

var demoSteps = []demoStep{
	{"Info", `{"From":"demo","Tags":{"Action":"Info"}}`},
	{"Set", `{"From":"demo","Data":"test-value","Tags":{"Action":"Set","Key":"test-key"}}`},
	{"Get", `{"From":"demo","Tags":{"Action":"Get","Key":"test-key"}}`},
	{"Set with an invalid key", `{"From":"demo","Data":"x","Tags":{"Action":"Set","Key":"bad key!"}}`},
	{"List", `{"From":"demo","Tags":{"Action":"List"}}`},
	{"Unknown action", `{"From":"demo","Tags":{"Action":"UnknownAction"}}`},
	{"Remove", `{"From":"demo","Tags":{"Action":"Remove","Key":"test-key"}}`},
	{"Get after Remove", `{"From":"demo","Tags":{"Action":"Get","Key":"test-key"}}`},
	{"Malformed JSON", `{"From":`},
	{"Clear", `{"From":"demo","Tags":{"Action":"Clear"}}`},
}

func runDemo(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, _, err := config.Discover(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	p := newLocalProcess(cfg, stderr)
	theme := tui.NewDefaultTheme()

	fmt.Fprintln(stdout, theme.Title.Render(cfg.Process.Name+" demo"))
	for i, step := range demoSteps {
		fmt.Fprintf(stdout, "\n%s\n", theme.Highlight.Render(fmt.Sprintf("%d. %s", i+1, step.title)))
		fmt.Fprintln(stdout, theme.Dim.Render("   "+step.msg))
		fmt.Fprintln(stdout, "   "+theme.RenderResponse(p.Handle(step.msg)))

		if step.title == "Set" {
			// Seed a few entries directly so List has something to show.
			for k, v := range map[string]string{"name": "Alice", "age": "30", "city": "New York"} {
				if err := p.Store().Set(k, v); err != nil {
					fmt.Fprintf(stderr, "seed %s: %v\n", k, err)
					return 1
				}
			}
		}
	}

	n, _ := p.Store().Size()
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		theme.OK.Render("done"),
		theme.Dim.Render(fmt.Sprintf("  state entries: %d  final state: %s", n, p.GetState())),
	)
	fmt.Fprintf(stdout, "\n%s\n", summary)
	return 0
}

func runConsole(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	fs.SetOutput(stderr)
	url := fs.String("url", "", "Send messages to a running host instead of a local process")
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, _, err := config.Discover(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	var h tui.Handler
	title := cfg.Process.Name + " (local)"
	if *url != "" {
		h = newRemoteProcess(*url)
		title = cfg.Process.Name + " @ " + *url
	} else {
		h = newLocalProcess(cfg, io.Discard)
	}

	prog := tea.NewProgram(tui.NewConsole(h, title), tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		fmt.Fprintf(stderr, "Console failed: %v\n", err)
		return 1
	}
	return 0
}

func runConfigNoun(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Fprintln(stdout, "Usage: aoproc config check [--config PATH]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "check":
		return runConfigCheck(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func runConfigCheck(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("config check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, source, err := config.Discover(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration invalid: %v\n", err)
		return 1
	}

	if source == "" {
		fmt.Fprintln(stdout, "No config file found; using built-in defaults.")
	} else {
		hash, err := config.FileHash(source)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to hash %s: %v\n", source, err)
			return 1
		}
		fmt.Fprintf(stdout, "Config: %s\nHash:   %s\n", source, hash)
	}

	rows := []string{
		fmt.Sprintf("process.name     %s", cfg.Process.Name),
		fmt.Sprintf("service.log      %s/%s", cfg.Service.LogLevel, cfg.Service.LogFormat),
		fmt.Sprintf("api              enabled=%t listen=%s", cfg.API.Enabled, cfg.API.Listen),
		fmt.Sprintf("journal          enabled=%t path=%s retention=%s", cfg.Journal.Enabled, cfg.Journal.Path, cfg.Journal.Retention),
		fmt.Sprintf("events.buffer    %d", cfg.Events.Buffer),
		fmt.Sprintf("lock.path        %s", cfg.Lock.Path),
	}
	fmt.Fprintln(stdout, strings.Join(rows, "\n"))
	fmt.Fprintln(stdout, "OK")
	return 0
}

