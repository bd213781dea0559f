package audioswitch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/stalexteam/audioswitch/pkg/audioswitch/util"
)

// CanonicalConfig provides application-wide access to configuration fields,
// as well as loading/file watching logic for audioswitch's configuration file
type CanonicalConfig struct {
	NextProfile     *Binding
	PreviousProfile *Binding

	// ActiveProfile is the last successfully activated profile, from the internal preferences
	ActiveProfile string

	profiles []Profile

	logger   *zap.SugaredLogger
	notifier Notifier

	userConfigPaths    []string
	internalConfigPath string
	loadedFrom         string

	stopWatcherChannel chan bool
	stopWatcherOnce    sync.Once

	userConfig     *viper.Viper
	internalConfig *viper.Viper
}

type rawBinding struct {
	Modifier string `mapstructure:"modifier"`
	Hotkey   string `mapstructure:"hotkey"`
}

type rawProfile struct {
	ProfileID   uint64     `mapstructure:"profile_id"`
	ProfileName string     `mapstructure:"profile_name"`
	InputID     string     `mapstructure:"input_id"`
	InputName   string     `mapstructure:"input_name"`
	OutputID    string     `mapstructure:"output_id"`
	OutputName  string     `mapstructure:"output_name"`
	Hotkey      rawBinding `mapstructure:"hotkey"`
	Color       string     `mapstructure:"color"`
}

const (
	userConfigFilename = "config.yaml"

	userConfigName     = "config"
	internalConfigName = "preferences"

	configType = "yaml"

	configKey_Profiles        = "profiles"
	configKey_NextProfile     = "next_profile"
	configKey_PreviousProfile = "previous_profile"
	configKey_ActiveProfile   = "active_profile"
)

// ErrInvalidConfig is returned by Load when the config parses but describes an unusable profile set
var ErrInvalidConfig = errors.New("invalid configuration")

// NewConfig creates a config instance and sets up viper instances for audioswitch's config files.
// config.yaml is looked up in the working directory first, then in the XDG config directory
func NewConfig(logger *zap.SugaredLogger, notifier Notifier) (*CanonicalConfig, error) {
	return newConfigWithPaths(logger, notifier,
		[]string{".", filepath.Join(xdg.ConfigHome, "audioswitch")},
		filepath.Join(".", logDirectory),
	)
}

func newConfigWithPaths(
	logger *zap.SugaredLogger,
	notifier Notifier,
	userConfigPaths []string,
	internalConfigPath string,
) (*CanonicalConfig, error) {
	logger = logger.Named("config")

	if len(userConfigPaths) == 0 {
		return nil, errors.New("no config search paths")
	}

	cc := &CanonicalConfig{
		logger:             logger,
		notifier:           notifier,
		userConfigPaths:    userConfigPaths,
		internalConfigPath: internalConfigPath,
		stopWatcherChannel: make(chan bool),
	}

	// distinguish between the user-provided config (config.yaml) and the internal config (logs/preferences.yaml)
	userConfig := viper.New()
	userConfig.SetConfigName(userConfigName)
	userConfig.SetConfigType(configType)
	for _, path := range userConfigPaths {
		userConfig.AddConfigPath(path)
	}

	userConfig.SetDefault(configKey_Profiles, []interface{}{})

	internalConfig := viper.New()
	internalConfig.SetConfigName(internalConfigName)
	internalConfig.SetConfigType(configType)
	internalConfig.AddConfigPath(internalConfigPath)

	internalConfig.SetDefault(configKey_ActiveProfile, "")

	cc.userConfig = userConfig
	cc.internalConfig = internalConfig

	logger.Debugw("Created config instance", "searchPaths", userConfigPaths)

	return cc, nil
}

// Profiles returns a copy of the loaded profiles, in config order
func (cc *CanonicalConfig) Profiles() []Profile {
	return append([]Profile(nil), cc.profiles...)
}

// ConfigFilepath returns the path of the user config file, once found
func (cc *CanonicalConfig) ConfigFilepath() string {
	if cc.loadedFrom != "" {
		return cc.loadedFrom
	}

	return filepath.Join(cc.userConfigPaths[0], userConfigFilename)
}

func (cc *CanonicalConfig) findUserConfig() (string, bool) {
	for _, dir := range cc.userConfigPaths {
		candidate := filepath.Join(dir, userConfigFilename)
		if util.FileExists(candidate) {
			return candidate, true
		}
	}

	return "", false
}

// Load reads audioswitch's config files from disk and tries to parse them
func (cc *CanonicalConfig) Load() error {
	path, found := cc.findUserConfig()

	cc.logger.Debugw("Loading config", "path", path, "searchPaths", cc.userConfigPaths)

	if !found {
		cc.logger.Warnw("Config file not found", "searchPaths", cc.userConfigPaths)
		cc.notifier.Notify("Can't find configuration!",
			fmt.Sprintf("%s must be in the same directory as audioswitch. Please re-launch", userConfigFilename))
		return fmt.Errorf("config file doesn't exist: %s", userConfigFilename)
	}

	if err := cc.userConfig.ReadInConfig(); err != nil {
		cc.logger.Warnw("Viper failed to read user config", "error", err)
		if strings.Contains(err.Error(), "yaml:") {
			cc.notifier.Notify("Invalid configuration!",
				fmt.Sprintf("Please make sure %s is in a valid YAML format.", userConfigFilename))
		} else {
			cc.notifier.Notify("Error loading configuration!", "Please check audioswitch's logs for more details.")
		}
		return fmt.Errorf("read user config: %w", err)
	}

	cc.loadedFrom = cc.userConfig.ConfigFileUsed()

	if err := cc.internalConfig.ReadInConfig(); err != nil {
		cc.logger.Debugw("Viper failed to read internal config", "error", err, "reminder", "this is fine")
	}

	if err := cc.populateFromVipers(); err != nil {
		cc.logger.Warnw("Failed to populate config fields", "error", err)
		cc.notifier.Notify("Invalid configuration!", err.Error())
		return fmt.Errorf("populate config fields: %w", err)
	}

	cc.logger.Info("Loaded config successfully")
	cc.logger.Infow("Config values",
		"path", cc.loadedFrom,
		"profiles", len(cc.profiles),
		"nextProfile", cc.NextProfile,
		"previousProfile", cc.PreviousProfile,
		"activeProfile", cc.ActiveProfile,
	)

	return nil
}

// SaveActiveProfile records the active profile in the internal preferences file
func (cc *CanonicalConfig) SaveActiveProfile(name string) error {
	if err := util.EnsureDirExists(cc.internalConfigPath); err != nil {
		return fmt.Errorf("ensure internal config dir: %w", err)
	}

	cc.internalConfig.Set(configKey_ActiveProfile, name)

	path := filepath.Join(cc.internalConfigPath, internalConfigName+"."+configType)
	if err := cc.internalConfig.WriteConfigAs(path); err != nil {
		cc.logger.Warnw("Failed to write internal config", "path", path, "error", err)
		return fmt.Errorf("write internal config: %w", err)
	}

	cc.ActiveProfile = name
	cc.logger.Debugw("Saved active profile", "profile", name, "path", path)

	return nil
}

// WatchConfigFileChanges starts watching for configuration file changes.
// Profiles are immutable once the listener starts, so a change only prompts the user to restart
func (cc *CanonicalConfig) WatchConfigFileChanges() {
	cc.logger.Debugw("Starting to watch user config file for changes", "path", cc.ConfigFilepath())

	const (
		minTimeBetweenNotifications = time.Millisecond * 500
	)

	lastNotification := time.Time{}

	// establish watch using viper as opposed to doing it ourselves, though our internal cooldown is still required
	cc.userConfig.WatchConfig()
	cc.userConfig.OnConfigChange(func(event fsnotify.Event) {
		if event.Op&fsnotify.Write != fsnotify.Write {
			return
		}

		// many editors write to a file twice
		now := time.Now()
		if lastNotification.Add(minTimeBetweenNotifications).After(now) {
			return
		}
		lastNotification = now

		cc.logger.Infow("Config file modified", "event", event)
		cc.notifier.Notify("Configuration changed", "Restart audioswitch to apply your changes.")
	})

	// wait till they stop us
	<-cc.stopWatcherChannel
	cc.logger.Debug("Stopping user config file watcher")
	cc.userConfig.OnConfigChange(func(fsnotify.Event) {})
}

// StopWatchingConfigFile signals our filesystem watcher to stop
func (cc *CanonicalConfig) StopWatchingConfigFile() {
	cc.stopWatcherOnce.Do(func() {
		close(cc.stopWatcherChannel)
	})
}

func (cc *CanonicalConfig) populateFromVipers() error {
	raw := []rawProfile{}
	if err := cc.userConfig.UnmarshalKey(configKey_Profiles, &raw); err != nil {
		return fmt.Errorf("decode %s: %w", configKey_Profiles, err)
	}

	profiles, err := profilesFromRaw(raw)
	if err != nil {
		return err
	}

	next, err := cc.optionalBinding(configKey_NextProfile)
	if err != nil {
		return err
	}

	previous, err := cc.optionalBinding(configKey_PreviousProfile)
	if err != nil {
		return err
	}

	cc.profiles = profiles
	cc.NextProfile = next
	cc.PreviousProfile = previous

	// a stale name (profile renamed or removed) is dropped rather than failing the load
	active := cc.internalConfig.GetString(configKey_ActiveProfile)
	if active != "" && !funk.Contains(profileNames(profiles), active) {
		cc.logger.Debugw("Ignoring unknown active profile", "profile", active)
		active = ""
	}
	cc.ActiveProfile = active

	cc.logger.Debug("Populated config fields from vipers")

	return nil
}

func (cc *CanonicalConfig) optionalBinding(key string) (*Binding, error) {
	if !cc.userConfig.IsSet(key) {
		return nil, nil
	}

	raw := rawBinding{}
	if err := cc.userConfig.UnmarshalKey(key, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}

	if raw.Hotkey == "" {
		return nil, nil
	}

	binding, err := ParseBinding(raw.Modifier, raw.Hotkey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}

	return &binding, nil
}

func profilesFromRaw(raw []rawProfile) ([]Profile, error) {
	profiles := make([]Profile, 0, len(raw))
	names := []string{}
	ids := []uint64{}

	for idx, r := range raw {
		if r.ProfileName == "" {
			return nil, fmt.Errorf("%w: profile #%d has no profile_name", ErrInvalidConfig, idx+1)
		}

		if funk.ContainsString(names, r.ProfileName) {
			return nil, fmt.Errorf("%w: duplicate profile_name %q", ErrInvalidConfig, r.ProfileName)
		}

		// profile_id is optional, unset ids fall back to the profile's position
		id := r.ProfileID
		if id == 0 {
			id = uint64(idx + 1)
		}

		if funk.Contains(ids, id) {
			return nil, fmt.Errorf("%w: duplicate profile_id %d", ErrInvalidConfig, id)
		}

		if r.InputID == "" || r.OutputID == "" {
			return nil, fmt.Errorf("%w: profile %q needs both input_id and output_id", ErrInvalidConfig, r.ProfileName)
		}

		binding, err := ParseBinding(r.Hotkey.Modifier, r.Hotkey.Hotkey)
		if err != nil {
			return nil, fmt.Errorf("%w: profile %q: %v", ErrInvalidConfig, r.ProfileName, err)
		}

		if r.Color != "" {
			if _, err := parseHexColor(r.Color); err != nil {
				return nil, fmt.Errorf("%w: profile %q: %v", ErrInvalidConfig, r.ProfileName, err)
			}
		}

		names = append(names, r.ProfileName)
		ids = append(ids, id)

		profiles = append(profiles, Profile{
			ID:     id,
			Name:   r.ProfileName,
			Input:  EndpointRef{ID: r.InputID, Name: r.InputName, Role: RoleInput},
			Output: EndpointRef{ID: r.OutputID, Name: r.OutputName, Role: RoleOutput},
			Hotkey: binding,
			Color:  r.Color,
		})
	}

	return profiles, nil
}

func profileNames(profiles []Profile) []string {
	names := make([]string, 0, len(profiles))
	for _, profile := range profiles {
		names = append(names, profile.Name)
	}

	return names
}
