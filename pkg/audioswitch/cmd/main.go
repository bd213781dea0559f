package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stalexteam/audioswitch/pkg/audioswitch"
)

var (
	gitCommit  string
	versionTag string
	buildType  string

	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "audioswitch",
		Short: "Switch audio devices between profiles with global hotkeys",
		Long: `audioswitch runs in the background and switches the default audio input
and output devices to the pair configured for a profile whenever that
profile's hotkey is pressed. Every other device is hidden while a profile
is active.

Without a subcommand it behaves like "audioswitch run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runService,
	}
	rootCmd.Version = versionString()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show verbose logs (useful for debugging)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:           "run",
			Short:         "Listen for profile hotkeys (default)",
			Args:          cobra.NoArgs,
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE:          runService,
		},
		newDevicesCommand(),
		newProfilesCommand(),
		newSwitchCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "audioswitch: %v\n", err)
		os.Exit(1)
	}
}

func versionString() string {
	if versionTag == "" {
		return "audioswitch (dev build)"
	}

	if gitCommit == "" {
		return fmt.Sprintf("audioswitch %s", versionTag)
	}

	return fmt.Sprintf("audioswitch %s (%s)", versionTag, gitCommit)
}

func newLogger() (*zap.SugaredLogger, error) {
	logger, err := audioswitch.NewLogger(buildType, verbose)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return logger, nil
}

func runService(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	named := logger.Named("main")
	named.Debug("Created logger")

	named.Infow("Version info",
		"gitCommit", gitCommit,
		"versionTag", versionTag,
		"buildType", buildType)

	// provide a fair warning if the user's running in verbose mode
	if verbose {
		named.Debug("Verbose flag provided, all log messages will be shown")
	}

	// create the audioswitch instance
	a, err := audioswitch.NewAudioSwitch(logger, verbose)
	if err != nil {
		named.Fatalw("Failed to create audioswitch object", "error", err)
	}

	// if injected by build process, set version info to show up in the tray
	if buildType != "" && (versionTag != "" || gitCommit != "") {
		identifier := gitCommit
		if versionTag != "" {
			identifier = versionTag
		}

		versionString := fmt.Sprintf("Version %s-%s", buildType, identifier)
		a.SetVersion(versionString)
	}

	// onwards, to glory
	if err = a.Initialize(); err != nil {
		named.Fatalw("Failed to initialize audioswitch", "error", err)
	}

	return nil
}
