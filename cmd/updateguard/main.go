// Package main is the CLI entry point for updateguard.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/update_guard/internal/config"
	"github.com/eliteGoblin/focusd/update_guard/internal/daemon"
	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
	"github.com/eliteGoblin/focusd/update_guard/internal/infra"
	"github.com/eliteGoblin/focusd/update_guard/internal/metrics"
	"github.com/eliteGoblin/focusd/update_guard/internal/policy"
	"github.com/eliteGoblin/focusd/update_guard/internal/state"
	"github.com/eliteGoblin/focusd/update_guard/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

const defaultLogPath = "/var/tmp/updateguard.log"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "updateguard",
	Short: "OS upgrade deadline enforcement agent",
	Long: `updateguard enforces a configured OS upgrade deadline. Past the deadline it
terminates blocked applications as they launch and keeps the enforcement
surface from being dismissed.

The only sanctioned ways out are the primary quit action, an OS that
already satisfies the requirement, or a configuration with no path to
compliance.`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runAgent,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the deadline and print the verdict",
	Long:  `Loads the configuration and prints the current verdict without triggering updates or arming enforcement.`,
	RunE:  runCheck,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the LaunchAgent",
	Long: `Copies the binary to its install location and installs a LaunchAgent that
starts updateguard at login and relaunches it periodically.`,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the LaunchAgent",
	RunE:  runUninstall,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	profilePath        string
	jsonConfigPath     string
	printProfileConfig bool
	printJSONConfig    bool
	demoMode           bool
	unitTesting        bool
	logPath            string
	logLevel           string
	metricsAddr        string
	jsonOutput         bool
)

func init() {
	defaults := config.DefaultPaths()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&profilePath, "profile", defaults.Profile, "Managed profile (YAML) path")
	flags.StringVar(&jsonConfigPath, "json-config", defaults.JSON, "JSON configuration path")
	flags.StringVar(&logPath, "log-path", defaultLogPath, "Log file path")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.Flags().BoolVar(&printProfileConfig, "print-profile-config", false, "Print the profile configuration and exit")
	rootCmd.Flags().BoolVar(&printJSONConfig, "print-json-config", false, "Print the JSON configuration and exit")
	rootCmd.Flags().BoolVar(&demoMode, "demo-mode", false, "Never invoke the OS update mechanism")
	rootCmd.Flags().BoolVar(&unitTesting, "unit-testing", false, "Never invoke the OS update mechanism (test harness)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(versionCmd)
}

func configPaths() config.Paths {
	paths := config.DefaultPaths()
	paths.Profile = profilePath
	paths.JSON = jsonConfigPath
	return paths
}

func runAgent(cmd *cobra.Command, args []string) error {
	logger := createLogger(logPath, logLevel)
	defer func() { _ = logger.Sync() }()

	paths := configPaths()
	if err := config.CheckLegacyPath(paths.Legacy, logger.Named("prefs")); err != nil {
		return err
	}

	if printProfileConfig {
		return config.PrintProfile(cmd.OutOrStdout(), paths.Profile)
	}
	if printJSONConfig {
		return config.PrintJSON(cmd.OutOrStdout(), paths.JSON)
	}

	cfg, _, err := config.Load(paths, logger.Named("prefs"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, reg, logger); err != nil {
				logger.Warn("metrics listener failed", zap.Error(err))
			}
		}()
	}

	err = enforce(ctx, cfg, m, logger)
	if errors.Is(err, domain.ErrAlreadySatisfied) {
		return nil
	}
	return err
}

// enforce runs the launch sequence and then the agent until a sanctioned exit.
func enforce(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) error {
	uiLogger := logger.Named("ui")
	utilsLogger := logger.Named("utils")
	updateLogger := logger.Named("softwareupdate")

	clock := infra.RealClock{}
	st := state.New()
	pm := infra.NewProcessManager()
	fs := infra.NewFileSystemManager()
	req := cfg.OSVersionRequirements
	features := cfg.OptionalFeatures

	evaluator := usecase.NewEvaluator(cfg.Deadline(), st, clock, m, logger)
	trigger := usecase.NewUpdateTrigger(usecase.UpdateTriggerConfig{
		DemoMode:                   demoMode,
		UnitTesting:                unitTesting,
		Asynchronous:               features.AsynchronousSoftwareUpdate,
		RequireMajorUpgrade:        req.RequireMajorUpgrade,
		AttemptToFetchMajorUpgrade: features.AttemptToFetchMajorUpgrade,
		ActionButtonPath:           req.ActionButtonPath,
		MajorUpgradeAppPath:        req.MajorUpgradeAppPath,
		MajorUpgradeBackupAppPath:  req.MajorUpgradeBackupAppPath,
	}, infra.NewSoftwareUpdateRunner(req.RequiredMinimumOSVersion, updateLogger), fs, m, updateLogger)

	launcher := daemon.NewLauncher(daemon.LaunchConfig{
		RandomDelay:              cfg.UserExperience.RandomDelay,
		MaxRandomDelay:           cfg.MaxRandomDelay(),
		RequiredMinimumOSVersion: req.RequiredMinimumOSVersion,
	}, evaluator, trigger, infra.NewHostOSVersionProvider(), clock, logger)

	if _, _, err := launcher.Prepare(ctx); err != nil {
		return err
	}

	dispatcher := usecase.NewNotificationDispatcher(infra.NewScriptNotificationCenter(), m, utilsLogger)
	if features.AttemptToBlockApplicationLaunches {
		dispatcher.RequestAuthorization(ctx)
	}

	monitor := usecase.NewBypassMonitor(usecase.MonitorConfig{
		Blocked: policy.NewBlockedApplicationSet(features.BlockedApplicationBundleIDs...),
		SelfPID: pm.GetCurrentPID(),
	}, st, evaluator.IsPastDue, clock, nil, m, uiLogger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	agent := daemon.NewAgent(daemon.AgentConfig{
		RefreshInterval:  cfg.RefreshCycle(),
		BlockLaunches:    features.AttemptToBlockApplicationLaunches,
		BypassPrevention: features.EnforceBypassPrevention,
	}, daemon.AgentDeps{
		Monitor:        monitor,
		Effects:        usecase.NewEffectRunner(pm, dispatcher, m, utilsLogger),
		Evaluator:      evaluator,
		Trigger:        trigger,
		State:          st,
		ProcessManager: pm,
		LaunchWatcher:  infra.NewPollingLaunchWatcher(pm, clock, cfg.LaunchPollInterval(), utilsLogger),
		ScreenLock:     infra.NewScreenLockPoller(clock, uiLogger),
		Signals:        sigChan,
		Clock:          clock,
	}, uiLogger)

	return agent.Run(ctx)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	out := cmd.OutOrStdout()

	cfg, source, err := config.Load(configPaths(), logger)
	if err != nil {
		return err
	}

	req := cfg.OSVersionRequirements
	deadline := cfg.Deadline()
	trigger := usecase.NewUpdateTrigger(usecase.UpdateTriggerConfig{
		DemoMode:                   true,
		RequireMajorUpgrade:        req.RequireMajorUpgrade,
		AttemptToFetchMajorUpgrade: cfg.OptionalFeatures.AttemptToFetchMajorUpgrade,
		ActionButtonPath:           req.ActionButtonPath,
		MajorUpgradeAppPath:        req.MajorUpgradeAppPath,
		MajorUpgradeBackupAppPath:  req.MajorUpgradeBackupAppPath,
	}, nil, infra.NewFileSystemManager(), metrics.NewUnregistered(), logger)
	readiness := trigger.CheckMajorUpgradeReadiness()
	verdict := usecase.Evaluate(deadline, infra.RealClock{}.Now(), readiness.ArtifactPresent, readiness.OverrideConfigured)
	if readiness.Decision == usecase.ReadinessUnrecoverable {
		verdict = domain.VerdictConfigurationError
	}

	fmt.Fprintln(out, "\n=== updateguard Check ===")
	fmt.Fprintf(out, "Configuration: %s\n", source)
	fmt.Fprintf(out, "Required date: %s\n", deadline.RequiredDate.Format("2006-01-02 15:04:05 MST"))
	if deadline.GracePeriodEnd != nil {
		fmt.Fprintf(out, "Grace period end: %s\n", deadline.GracePeriodEnd.Format("2006-01-02 15:04:05 MST"))
	}
	if req.RequiredMinimumOSVersion != "" {
		fmt.Fprintf(out, "Required OS version: %s\n", req.RequiredMinimumOSVersion)
		if current, err := infra.NewHostOSVersionProvider().CurrentVersion(); err == nil {
			ok, _ := infra.VersionSatisfies(current, req.RequiredMinimumOSVersion)
			fmt.Fprintf(out, "Installed OS version: %s (satisfied: %t)\n", current, ok)
		}
	}
	if req.RequireMajorUpgrade {
		fmt.Fprintf(out, "Major upgrade: %s\n", readiness.Decision)
	}
	fmt.Fprintf(out, "Verdict: %s\n", verdict)

	if blocked := cfg.OptionalFeatures.BlockedApplicationBundleIDs; len(blocked) > 0 {
		fmt.Fprintln(out, "\nBlocked applications:")
		for _, id := range policy.NewBlockedApplicationSet(blocked...).List() {
			fmt.Fprintf(out, "  - %s\n", id)
		}
	}
	fmt.Fprintln(out, "=========================")

	if verdict.IsTerminal() {
		return domain.ErrUnrecoverable
	}
	return nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	execMode := infra.DetectExecMode()
	fmt.Printf("Execution mode: %s\n", execMode.Mode)

	currentExecPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Copy binary to appropriate location if not already there
	binaryPath := execMode.BinaryPath
	if currentExecPath != binaryPath {
		if err := os.MkdirAll(filepath.Dir(binaryPath), 0755); err != nil {
			fmt.Printf("Warning: Could not create binary directory: %v\n", err)
			binaryPath = currentExecPath
		} else if err := copyBinary(currentExecPath, binaryPath); err != nil {
			fmt.Printf("Warning: Could not copy binary to %s: %v\n", binaryPath, err)
			binaryPath = currentExecPath
		} else {
			fmt.Printf("Installed binary to %s\n", binaryPath)
		}
	}

	launchdManager := infra.NewLaunchdManager(execMode, infra.DefaultStartInterval, agentArguments(cmd))
	if err := launchdManager.Install(cmd.Context(), binaryPath); err != nil {
		return fmt.Errorf("failed to install LaunchAgent: %w", err)
	}

	fmt.Printf("Installed LaunchAgent at %s\n", launchdManager.GetPlistPath())
	return nil
}

// agentArguments forwards explicitly set configuration flags to the LaunchAgent.
func agentArguments(cmd *cobra.Command) []string {
	var args []string
	for _, name := range []string{"profile", "json-config", "log-path", "log-level"} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			args = append(args, "--"+name, f.Value.String())
		}
	}
	return args
}

func runUninstall(cmd *cobra.Command, args []string) error {
	launchdManager := infra.NewLaunchdManager(infra.DetectExecMode(), infra.DefaultStartInterval, nil)
	if !launchdManager.IsInstalled() {
		fmt.Println("LaunchAgent is not installed")
		return nil
	}
	if err := launchdManager.Uninstall(cmd.Context()); err != nil {
		return fmt.Errorf("failed to uninstall LaunchAgent: %w", err)
	}
	fmt.Printf("Removed LaunchAgent %s\n", launchdManager.GetPlistPath())
	return nil
}

// copyBinary copies the binary file to destination using atomic write pattern.
// Writes to temp file first, syncs, chmods, then renames to avoid corruption.
func copyBinary(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".updateguard-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmpFile, sourceFile); err != nil {
		tmpFile.Close()
		return err
	}
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err = os.Chmod(tmpPath, 0755); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, dst); err != nil {
		return err
	}

	success = true
	return nil
}

func createLogger(path, level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{path}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		config.Level = lvl
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("updateguard %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
