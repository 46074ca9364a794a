package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// ProfilesConfig holds all named profiles and tracks which one is active.
type ProfilesConfig struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile is a named server and guard pair.
type Profile struct {
	Server  string `toml:"server"`
	Guard   string `toml:"guard"`
	NATSURL string `toml:"nats_url,omitempty"`
}

func profileConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "gatewatch")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.toml"), nil
}

func loadProfilesConfig() (ProfilesConfig, error) {
	path, err := profileConfigPath()
	if err != nil {
		return ProfilesConfig{}, err
	}
	var cfg ProfilesConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return ProfilesConfig{Profiles: map[string]Profile{}}, nil
		}
		return ProfilesConfig{}, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return cfg, nil
}

func saveProfilesConfig(cfg ProfilesConfig) error {
	path, err := profileConfigPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

var (
	profileOnce   sync.Once
	cachedProfile Profile
)

// activeProfile returns the active profile, loaded once per process. A
// missing or unreadable file yields the zero profile.
func activeProfile() Profile {
	profileOnce.Do(func() {
		cfg, err := loadProfilesConfig()
		if err != nil || cfg.Active == "" {
			return
		}
		cachedProfile = cfg.Profiles[cfg.Active]
	})
	return cachedProfile
}

var loginCmd = &cobra.Command{
	Use:   "login <guard>",
	Short: "Select the guard this terminal acts as",
	Long: `Select the guard this terminal acts as.

The guard and server are saved as a profile (named after the guard unless
--profile is given) and made active, then a heartbeat puts the guard on
the roster.`,
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("profile")
		natsURL, _ := cmd.Flags().GetString("nats")
		g := args[0]
		if name == "" {
			name = g
		}

		cfg, err := loadProfilesConfig()
		if err != nil {
			return err
		}
		cfg.Profiles[name] = Profile{Server: httpURL, Guard: g, NATSURL: natsURL}
		cfg.Active = name
		if err := saveProfilesConfig(cfg); err != nil {
			return err
		}

		if err := gateClient.Heartbeat(cmd.Context(), g); err != nil {
			fmt.Fprintf(os.Stderr, "warning: heartbeat failed: %v\n", err)
		}
		fmt.Printf("logged in as %s (%s)\n", g, httpURL)
		return nil
	},
}

var heartbeatCmd = &cobra.Command{
	Use:     "heartbeat",
	Short:   "Tell the server the selected guard is on shift",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := requireGuard()
		if err != nil {
			return err
		}
		return gateClient.Heartbeat(cmd.Context(), g)
	},
}

func init() {
	loginCmd.Flags().String("profile", "", "profile name (default: the guard)")
	loginCmd.Flags().String("nats", "", "NATS URL used by 'gw watch'")
}
