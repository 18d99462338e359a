package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codeboarding/increco/internal/config"
	"github.com/codeboarding/increco/internal/logger"
	"github.com/codeboarding/increco/internal/telemetry"
	"github.com/codeboarding/increco/internal/ui"
)

var (
	// version is set via ldflags at build time:
	// -ldflags "-X main.version=1.0.0". Defaults to "dev" for local builds.
	version = "dev"

	// postHogAPIKey is the PostHog project API key, set via ldflags at
	// build time in the same way as version.
	postHogAPIKey = ""

	postHogEndpoint = "https://us.i.posthog.com"

	telemetryClient telemetry.Client

	commandStartTime time.Time
	executedCmd      *cobra.Command
	executedArgs     []string
)

var rootCmd = &cobra.Command{
	Use:   "increco",
	Short: "Incremental architecture diagram reconciliation",
	Long: `increco keeps a repository's persisted architecture analysis in sync
with its source tree, without re-running a full analysis on every commit.

It detects what changed since the last run, classifies the blast radius
of that change against the current component boundaries, and applies the
cheapest update that stays correct: a path patch, a targeted component
update, or a bounded re-expansion. Only when the change outgrows the
existing architecture does it report that a full re-analysis is needed.`,
	PersistentPreRunE:  initTelemetry,
	PersistentPostRunE: closeTelemetry,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main.
func Execute() {
	initCrashHandler()
	defer logger.HandlePanic()

	rootCmd.SuggestionsMinimumDistance = 2

	err := rootCmd.Execute()
	trackAndCloseTelemetry(err)

	if err != nil {
		os.Exit(1)
	}
}

func initCrashHandler() {
	logger.SetVersion(version)
	if root, err := config.GetProjectRoot(); err == nil {
		logger.SetBasePath(filepath.Join(root, ".increco"))
	}
	if len(os.Args) > 1 {
		logger.SetCommand(strings.Join(os.Args[1:], " "))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().Bool("no-telemetry", false, "Disable telemetry for this command")
	rootCmd.PersistentFlags().String("output", "", "Override the analysis output directory (.increco/analysis by default)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("no-telemetry", rootCmd.PersistentFlags().Lookup("no-telemetry"))
	_ = viper.BindPFlag("output.path", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.SetHelpTemplate(`{{if .Long}}
{{.Long}}
{{else}}
  {{.Short}}
{{end}}
  Usage: {{.UseLine}}
{{if .HasAvailableSubCommands}}
  Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}    {{rpad .Name .NamePadding }} {{.Short}}
{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}
  Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

  Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`)
}

// initConfig loads .env, wires viper's environment handling, and detects
// the project context that GetOutputBasePath depends on.
func initConfig() {
	if err := godotenv.Load(); err != nil {
		// No .env file is the common case; nothing to report.
	}

	viper.SetEnvPrefix("INCRECO")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if _, err := config.DetectAndSetProjectContext(); err != nil && viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "increco: project detection failed: %v\n", err)
	}
}

func initTelemetry(cmd *cobra.Command, args []string) error {
	executedCmd = cmd
	executedArgs = args
	commandStartTime = time.Now()

	if viper.GetBool("no-telemetry") || isCI() {
		telemetryClient = telemetry.NewNoopClient()
		return nil
	}

	cfg, err := telemetry.Load()
	if err != nil {
		telemetryClient = telemetry.NewNoopClient()
		return nil
	}

	if cfg.NeedsConsent() && ui.IsInteractive() {
		if promptTelemetryConsent() {
			cfg.Enable()
		} else {
			cfg.Disable()
		}
		_ = cfg.Save()
	}

	if !cfg.IsEnabled() {
		telemetryClient = telemetry.NewNoopClient()
		return nil
	}

	if postHogAPIKey == "" {
		telemetryClient = telemetry.NewNoopClient()
		return nil
	}

	client, err := telemetry.NewPostHogClient(telemetry.ClientConfig{
		APIKey:   postHogAPIKey,
		Endpoint: postHogEndpoint,
		Version:  version,
		Config:   cfg,
	})
	if err != nil {
		telemetryClient = telemetry.NewNoopClient()
		return nil
	}

	telemetryClient = client
	return nil
}

func promptTelemetryConsent() bool {
	fmt.Println()
	fmt.Println("  increco can collect anonymous usage statistics to improve the product.")
	fmt.Println("  This includes: command names, success/failure, duration, OS, and CLI version.")
	fmt.Println("  No code, file paths, or repository content is collected.")
	fmt.Println()
	fmt.Print("  Enable anonymous telemetry? [y/N]: ")

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func closeTelemetry(cmd *cobra.Command, args []string) error {
	return nil
}

func trackAndCloseTelemetry(cmdErr error) {
	if telemetryClient == nil {
		return
	}
	defer func() {
		_ = telemetryClient.Close()
	}()

	if executedCmd == nil {
		return
	}

	props := telemetry.Properties{
		"command":     executedCmd.Name(),
		"duration_ms": time.Since(commandStartTime).Milliseconds(),
		"success":     cmdErr == nil,
	}
	if cmdErr != nil {
		props["error"] = cmdErr.Error()
	}
	telemetryClient.Track(telemetry.EventCommandExecuted, props)
}

func isCI() bool {
	for _, envVar := range []string{
		"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "GITLAB_CI",
		"CIRCLECI", "TRAVIS", "JENKINS_URL", "BUILDKITE", "DRONE", "TEAMCITY_VERSION",
	} {
		if os.Getenv(envVar) != "" {
			return true
		}
	}
	return false
}
