// Package main provides the CLI entrypoint for gradeboard.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gradeboard/internal/api"
	"gradeboard/internal/chartstore"
	"gradeboard/internal/config"
	"gradeboard/internal/instructorui"
	"gradeboard/internal/logging"
	"gradeboard/internal/model"
	"gradeboard/internal/studentui"
)

const (
	defaultAPIURL  = "http://127.0.0.1:5000"
	defaultTimeout = "30s"
)

var (
	apiURL      string
	httpTimeout string

	instructorID string
	studentEmail string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gradeboard",
		Short:         "Terminal dashboard for course grades",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultAPIURL, "base URL of the grade API")
	rootCmd.PersistentFlags().StringVar(&httpTimeout, "timeout", defaultTimeout, "HTTP request timeout")

	rootCmd.AddCommand(newInstructorCmd())
	rootCmd.AddCommand(newStudentCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func newInstructorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instructor",
		Short: "Manage courses and upload score sheets",
		Args:  cobra.NoArgs,
		RunE:  runInstructorCmd,
	}
	cmd.Flags().StringVar(&instructorID, "id", "", "instructor id")
	return cmd
}

func runInstructorCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "id", &instructorID, config.EnvInstructorID, fileCfg.Identity.InstructorID)
	if instructorID == "" {
		return fmt.Errorf("instructor id is required (--id, %s, or config)", config.EnvInstructorID)
	}

	identity := model.Identity{Role: model.RoleInstructor, ID: instructorID}
	client, log, closeLog, err := buildClient(identity)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := chartstore.Open(config.DefaultDBPath(), log)
	if err != nil {
		return fmt.Errorf("failed to open chart store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logErrf("failed to close chart store: %v\n", cerr)
		}
	}()

	m := instructorui.NewModel(client, store, identity, log)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}

func newStudentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "student",
		Short: "View your scores across enrolled courses",
		Args:  cobra.NoArgs,
		RunE:  runStudentCmd,
	}
	cmd.Flags().StringVar(&studentEmail, "email", "", "student email")
	return cmd
}

func runStudentCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "email", &studentEmail, config.EnvStudentEmail, fileCfg.Identity.StudentEmail)

	identity := model.Identity{Role: model.RoleStudent, Email: studentEmail}
	client, log, closeLog, err := buildClient(identity)
	if err != nil {
		return err
	}
	defer closeLog()

	m := studentui.NewModel(client, identity, log)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}

// loadFileConfig reads .env and the TOML config and resolves the
// connection flags against them. Precedence is flag, then environment,
// then config file, then the built-in default.
func loadFileConfig(cmd *cobra.Command) (config.FileConfig, error) {
	config.LoadDotenv()
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "api-url", &apiURL, config.EnvAPIURL, fileCfg.API.BaseURL)
	applyStringConfig(cmd, "timeout", &httpTimeout, config.EnvHTTPTimeout, fileCfg.API.Timeout)
	return fileCfg, nil
}

func buildClient(identity model.Identity) (*api.Client, *zap.Logger, func(), error) {
	timeout, err := time.ParseDuration(httpTimeout)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid --timeout value: %w", err)
	}

	log, err := logging.Open(config.DefaultLogPath())
	if err != nil {
		logErrf("failed to open log file: %v\n", err)
		log = logging.Nop()
	}
	closeLog := func() { _ = log.Sync() }

	log.Info("starting",
		zap.String("role", string(identity.Role)),
		zap.String("api_url", apiURL))
	return api.New(apiURL, timeout, log), log, closeLog, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// applyStringConfig fills target from the environment or the config
// file when the flag was not set on the command line.
func applyStringConfig(cmd *cobra.Command, name string, target *string, envKey string, value *string) {
	if cmd.Flags().Changed(name) {
		return
	}
	if v := os.Getenv(envKey); v != "" {
		*target = v
		return
	}
	if value == nil {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# gradeboard configuration
# Uncomment a value to enable it. CLI flags override config values.

[api]
# base-url = %q   # Base URL of the grade API
# timeout = %q               # HTTP request timeout

[identity]
# instructor-id = "1"          # Default id for 'gradeboard instructor'
# student-email = "a@b.edu"    # Default email for 'gradeboard student'
`,
		defaultAPIURL,
		defaultTimeout,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
