package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stalexteam/audioswitch/pkg/audioswitch"
)

// consoleNotifier replaces toasts for one-shot commands
type consoleNotifier struct {
	out io.Writer
}

func (n consoleNotifier) Notify(title string, message string) {
	if message == "" {
		fmt.Fprintln(n.out, title)
		return
	}

	fmt.Fprintf(n.out, "%s %s\n", title, message)
}

func loadConfig(logger *zap.SugaredLogger) (*audioswitch.CanonicalConfig, error) {
	config, err := audioswitch.NewConfig(logger, consoleNotifier{out: os.Stderr})
	if err != nil {
		return nil, fmt.Errorf("create config: %w", err)
	}

	if err := config.Load(); err != nil {
		return nil, err
	}

	return config, nil
}

func newDevicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "devices",
		Short:         "List audio endpoints and their IDs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          listDevices,
	}
	cmd.Example = `  # Print the IDs to paste into a profile
  audioswitch devices --all --yaml`

	cmd.Flags().Bool("all", false, "Include hidden endpoints")
	cmd.Flags().Bool("yaml", false, "Print endpoints as YAML profile fields")

	return cmd
}

type endpointListing struct {
	Inputs  []endpointEntry `yaml:"inputs"`
	Outputs []endpointEntry `yaml:"outputs"`
}

type endpointEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

func listDevices(cmd *cobra.Command, _ []string) error {
	includeHidden, _ := cmd.Flags().GetBool("all")
	asYAML, _ := cmd.Flags().GetBool("yaml")

	logger, err := newLogger()
	if err != nil {
		return err
	}

	endpoints, err := audioswitch.ListEndpoints(logger, includeHidden)
	if err != nil {
		return fmt.Errorf("list endpoints: %w", err)
	}

	if asYAML {
		return writeEndpointsYAML(cmd.OutOrStdout(), endpoints)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tNAME\tID")
	for _, endpoint := range endpoints {
		fmt.Fprintf(w, "%s\t%s\t%s\n", endpoint.Role, endpoint.Name, endpoint.ID)
	}

	return w.Flush()
}

func writeEndpointsYAML(out io.Writer, endpoints []audioswitch.EndpointRef) error {
	listing := endpointListing{
		Inputs:  []endpointEntry{},
		Outputs: []endpointEntry{},
	}

	for _, endpoint := range endpoints {
		entry := endpointEntry{ID: endpoint.ID, Name: endpoint.Name}

		if endpoint.Role == audioswitch.RoleInput {
			listing.Inputs = append(listing.Inputs, entry)
		} else {
			listing.Outputs = append(listing.Outputs, entry)
		}
	}

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)

	if err := encoder.Encode(listing); err != nil {
		return fmt.Errorf("encode endpoints: %w", err)
	}

	return encoder.Close()
}

func newProfilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "profiles",
		Short:         "Show the configured profiles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          listProfiles,
	}
}

func listProfiles(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	config, err := loadConfig(logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tHOTKEY\tINPUT\tOUTPUT\tCOLOR\t")
	for _, profile := range config.Profiles() {
		marker := ""
		if profile.Name == config.ActiveProfile {
			marker = "*"
		}

		fmt.Fprintf(w, "%d\t%s%s\t%s\t%s\t%s\t%s\t\n",
			profile.ID, profile.Name, marker, profile.Hotkey, profile.Input.Name, profile.Output.Name, profile.Color)
	}

	if config.NextProfile != nil {
		fmt.Fprintf(w, "\tnext\t%s\t\t\t\t\n", config.NextProfile)
	}

	if config.PreviousProfile != nil {
		fmt.Fprintf(w, "\tprevious\t%s\t\t\t\t\n", config.PreviousProfile)
	}

	return w.Flush()
}

func newSwitchCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "switch [profile-name]",
		Short:         "Activate a profile once and exit",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          switchProfile,
	}
}

func switchProfile(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	config, err := loadConfig(logger)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(args[0])

	for _, profile := range config.Profiles() {
		if !strings.EqualFold(profile.Name, name) {
			continue
		}

		if err := audioswitch.SwitchOnce(logger, profile); err != nil {
			return err
		}

		if err := config.SaveActiveProfile(profile.Name); err != nil {
			logger.Warnw("Failed to persist active profile", "error", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Activated Profile %s\n", profile.Name)

		return nil
	}

	return fmt.Errorf("no profile named %q", name)
}
