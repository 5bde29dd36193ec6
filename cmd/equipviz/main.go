package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/api"
	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/config"
	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/report"
	consolefmt "github.com/Tarrifer/chemical-equipment-visualizer/pkg/report/format"
	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/session"
	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/state"
)

// build-time override (e.g. -ldflags "-X main.version=1.2.3")
var version = "dev"

// Global (root-level) flag variables
var (
	flagVerbose bool
	flagDebug   bool
	flagConfig  string
)

// output flags shared by upload and history
type outputFlags struct {
	format  string
	noColor bool
}

var outFlags outputFlags

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		// If Execute() returns an error, logging may or may not be initialized yet.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root Cobra command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "equipviz",
		Short: "Chemical equipment analysis client",
		Long: strings.TrimSpace(`
EquipViz - Chemical equipment CSV analysis client

Uploads equipment inventory CSV files to the analysis service, shows the
computed summary and type distribution, browses recent uploads, and
downloads PDF reports.`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initLogging()
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (info) logging")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging (overrides --verbose)")
	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: user config dir)")
	cmd.Version = version

	// Add subcommands
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newSignupCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newThemeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func initLogging() {
	var level slog.Level
	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	default:
		level = slog.LevelWarn
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging initialized", "level", level.String())
}

// app bundles the wiring every subcommand needs: loaded config, persisted
// state, and the session controller that owns the API client.
type app struct {
	cfg       *config.Config
	appState  *state.AppState
	statePath string
	tokens    state.TokenStore
	ctrl      *session.Controller
}

func newApp() (*app, error) {
	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	statePath := state.DefaultStatePath()
	appState, err := state.LoadAppState(statePath)
	if err != nil {
		slog.Warn("Failed to load saved state, starting fresh", "path", statePath, "error", err)
		appState = state.NewDefaultAppState()
	}

	tokens := state.NewFallbackTokenStore(
		state.NewFileTokenStore(appState, statePath),
		state.NewMemoryTokenStore(),
	)
	factory := func(token string) *api.Client {
		return api.New(api.Config{
			BaseURL: cfg.BaseURL,
			Token:   token,
			Timeout: cfg.RequestTimeout(),
		})
	}

	return &app{
		cfg:       cfg,
		appState:  appState,
		statePath: statePath,
		tokens:    tokens,
		ctrl:      session.NewController(tokens, factory, slog.Default()),
	}, nil
}

// requireAuth returns the authenticated client or a friendly error when no
// token is stored.
func (a *app) requireAuth() (*api.Client, error) {
	if a.ctrl.CurrentView() != session.ViewDashboard {
		return nil, errors.New("not logged in (run 'equipviz login' first)")
	}
	return a.ctrl.Client(), nil
}

func (a *app) saveState() {
	if err := state.SaveAppState(a.appState, a.statePath); err != nil {
		slog.Warn("Failed to save state", "path", a.statePath, "error", err)
	}
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Authenticate against the analysis service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			username := ""
			if len(args) == 1 {
				username = args[0]
			} else {
				username, err = promptLine("Username: ")
				if err != nil {
					return err
				}
			}
			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout())
			defer cancel()
			if err := a.ctrl.Login(ctx, username, password); err != nil {
				return err
			}

			tok, _ := a.tokens.Token()
			fmt.Printf("Logged in as %s (token %s)\n", username, state.RedactToken(tok))
			return nil
		},
	}
}

func newSignupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup [username]",
		Short: "Create a new account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			a.ctrl.GoToSignup()

			username := ""
			if len(args) == 1 {
				username = args[0]
			} else {
				username, err = promptLine("Username: ")
				if err != nil {
					return err
				}
			}
			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassword("Confirm password: ")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout())
			defer cancel()
			if err := a.ctrl.Signup(ctx, username, password, confirm); err != nil {
				return err
			}

			fmt.Printf("Account %s created, you can now log in\n", username)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			a.ctrl.Logout()
			fmt.Println("Logged out")
			return nil
		},
	}
}

func newUploadCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "upload <csv-file>",
		Short: "Upload an equipment CSV and show the analysis",
		Long: strings.TrimSpace(`
Upload an equipment inventory CSV file for analysis. On success the
aggregate metrics and the equipment type distribution chart are printed.

Examples:
  equipviz upload equipment.csv
  equipviz upload equipment.csv --format json
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			client, err := a.requireAuth()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout())
			defer cancel()

			uploader := session.NewUploader(func() *api.Client { return client }, slog.Default())
			// Uploader errors already carry the "upload failed" prefix.
			res, err := uploader.Upload(ctx, args[0])
			if err != nil {
				return err
			}

			switch strings.ToLower(outFlags.format) {
			case "console":
				formatter := consolefmt.NewConsoleFormatter()
				formatter.EnableColors = !outFlags.noColor
				if err := formatter.RenderSummary(res, os.Stdout); err != nil {
					return err
				}
				fmt.Println()
				return formatter.RenderChart(res, os.Stdout)
			case "json":
				return writeJSON(os.Stdout, res)
			default:
				return fmt.Errorf("unsupported format: %s", outFlags.format)
			}
		},
	}
	addOutputFlags(c)
	return c
}

func newHistoryCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "history",
		Short: "Show recent uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			client, err := a.requireAuth()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout())
			defer cancel()
			entries, err := client.History(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch history: %w", err)
			}

			switch strings.ToLower(outFlags.format) {
			case "console":
				formatter := consolefmt.NewConsoleFormatter()
				formatter.EnableColors = !outFlags.noColor
				return formatter.RenderHistory(entries, os.Stdout)
			case "json":
				return writeJSON(os.Stdout, entries)
			default:
				return fmt.Errorf("unsupported format: %s", outFlags.format)
			}
		},
	}
	addOutputFlags(c)
	return c
}

func newReportCmd() *cobra.Command {
	var outFile string
	c := &cobra.Command{
		Use:   "report",
		Short: "Download the PDF report for the latest dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			client, err := a.requireAuth()
			if err != nil {
				return err
			}

			dest := outFile
			if dest == "" {
				dest = a.cfg.ReportFile
			}

			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout())
			defer cancel()

			dl := report.NewDownloader(func() *api.Client { return client }, slog.Default())
			if err := dl.Download(ctx, dest); err != nil {
				return fmt.Errorf("report download failed: %w", err)
			}

			a.appState.AppendRecentReport(dest, 10)
			a.saveState()
			fmt.Printf("Report saved to %s\n", dest)
			return nil
		},
	}
	c.Flags().StringVarP(&outFile, "out", "o", "", "Destination file (default from config)")
	return c
}

func newThemeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "theme [dark|light]",
		Short: "Show or set the UI theme",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				fmt.Println(a.appState.Theme)
				return nil
			}
			switch args[0] {
			case state.ThemeDark, state.ThemeLight:
				a.appState.Theme = args[0]
			default:
				return fmt.Errorf("unknown theme: %s", args[0])
			}
			a.saveState()
			fmt.Printf("Theme set to %s\n", a.appState.Theme)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connection and session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			fmt.Printf("Service:  %s\n", a.cfg.BaseURL)
			fmt.Printf("State:    %s\n", a.statePath)
			fmt.Printf("Theme:    %s\n", a.appState.Theme)
			if tok, err := a.tokens.Token(); err == nil {
				fmt.Printf("Session:  logged in (token %s)\n", state.RedactToken(tok))
			} else {
				fmt.Println("Session:  not logged in")
			}
			return nil
		},
	}
}

// newVersionCmd prints version info (simple helper).
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("EquipViz version: %s\n", version)
		},
	}
}

func addOutputFlags(c *cobra.Command) {
	c.Flags().StringVarP(&outFlags.format, "format", "f", "console", "Output format: console|json")
	c.Flags().BoolVar(&outFlags.noColor, "no-color", false, "Disable ANSI colors (console format)")
}

func writeJSON(w *os.File, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

// promptLine reads a single line of input from stdin.
func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password without echo when stdin is a terminal,
// falling back to a plain line read otherwise (pipes, tests).
func promptPassword(prompt string) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return promptLine(prompt)
	}
	fmt.Print(prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
