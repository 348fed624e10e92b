package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stageline/internal/app"
	"stageline/internal/domain"
	"stageline/internal/logging"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitBlocked = 2
)

var rootCmd = &cobra.Command{
	Use:   "stl",
	Short: "Stageline CLI",
	Long: `Stageline moves issues through a staged workflow and gates commits on passing tests.
Core concepts:
- Stages: backlog -> todo -> in-progress -> in-review -> done. A move is checked by every validator that applies to the target stage; all blocking reasons are reported at once.
- Specs: units of work inside an issue with their own lifecycle (pending -> in-progress -> in-review -> completed). Leaving review needs an APPROVED or NEEDS_WORK verdict.
- Check: detect changed files, run the tests of the affected targets with coverage, commit on success, record the failure streak otherwise.
- Event log: every change is recorded, view with 'stl log tail'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(viper.GetString("log-level"), os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

var logger = logging.Discard()

// exitError carries a non-default exit code. Silent errors have already been reported.
type exitError struct {
	code   int
	silent bool
	err    error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(reportError(os.Stderr, err))
}

func initConfig() {
	viper.SetEnvPrefix("STAGELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier recorded on events")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("failure-threshold", 0, "failure streak that triggers the reconsider warning (overrides config)")
	for _, name := range []string{"workspace", "json", "actor-id", "log-level", "failure-threshold"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(moveCmd())
	rootCmd.AddCommand(issueCmd())
	rootCmd.AddCommand(specCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(tcrCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(configCmd())
}

func appOptions() app.Options {
	return app.Options{
		Workspace:        viper.GetString("workspace"),
		FailureThreshold: viper.GetInt("failure-threshold"),
		Logger:           logger,
	}
}

func withApp(ctx context.Context, fn func(context.Context, *app.Context) error) error {
	c, err := app.Open(ctx, appOptions())
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func actorID() string {
	return viper.GetString("actor-id")
}

// reportError prints err and maps it to an exit code.
func reportError(w io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.silent && ee.err != nil {
			fmt.Fprintln(w, "error:", ee.err)
		}
		return ee.code
	}
	if ve, ok := domain.AsValidation(err); ok {
		fmt.Fprintf(w, "error: %s cannot move to %s:\n", ve.Subject, ve.Target)
		for _, r := range ve.Reasons {
			fmt.Fprintf(w, "  - %s\n", r)
		}
		return exitFailure
	}
	fmt.Fprintln(w, "error:", err)
	return exitFailure
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readBody reads a file, or stdin when path is "-".
func readBody(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", domain.UsageError{Msg: fmt.Sprintf("read %s: %v", path, err)}
	}
	return string(data), nil
}

func stringPtr(s string) *string {
	return &s
}
