package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hostsync/hostsync/pkg/types"
	"github.com/hostsync/hostsync/pkg/utils"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	KeyManifestURL          = "manifest-url"
	KeyDist                 = "dist"
	KeyIdentifiers          = "identifiers"
	KeyAPIKey               = "api-key"
	KeyClientIDs            = "client-ids"
	KeyClientIDNamespace    = "client-id-namespace"
	KeyStateFile            = "state-file"
	KeyInterval             = "interval"
	KeyPlatform             = "platform"
	KeyStopSignal           = "stop-signal"
	KeyHTTPTimeout          = "http-timeout"
	KeyFetchRetryMaxElapsed = "fetch-retry-max-elapsed"

	EnvPrefix       = "hostsync"
	DefaultInterval = time.Minute
	DefaultDist     = "dist"
	stateFileName   = "versions.yaml"
)

// AddFlags registers the agent flags on flags.
func AddFlags(flags *pflag.FlagSet) {
	flags.String(KeyManifestURL, "", "URL of the application manifest")
	flags.String(KeyDist, DefaultDist, "Directory applications are installed under, one sub-directory per identifier")
	flags.StringSlice(KeyIdentifiers, nil, "Identifiers to reconcile (e.g. 1,2,5)")
	flags.String(KeyAPIKey, "", "API key substituted into application configs")
	flags.StringToString(KeyClientIDs, nil, "Client ID per identifier (e.g. 5=abc)")
	flags.String(KeyClientIDNamespace, "", "UUID namespace used to derive client IDs not listed in --client-ids")
	flags.String(KeyStateFile, "", "File recording installed versions, defaults to <dist>/"+stateFileName)
	flags.Duration(KeyInterval, DefaultInterval, "Time between checks")
	flags.String(KeyPlatform, "", "Platform used to select manifest entries, defaults to the running host")
	flags.String(KeyStopSignal, "SIGTERM", "Signal sent to stop an application")
	flags.Duration(KeyHTTPTimeout, 0, "Timeout for manifest and release requests, 0 means none")
	flags.Duration(KeyFetchRetryMaxElapsed, 0, "Retry failed manifest fetches for up to this long, 0 disables retries")
}

// New returns a viper instance reading the optional config file,
// HOSTSYNC_* environment variables and the flags, in increasing precedence.
func New(flags *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load builds validated options from v.
func Load(v *viper.Viper) (*types.Options, error) {
	opts := &types.Options{
		ManifestURL:          strings.TrimSpace(v.GetString(KeyManifestURL)),
		Platform:             v.GetString(KeyPlatform),
		Dist:                 v.GetString(KeyDist),
		Identifiers:          utils.DeduplicateStringSlice(identifiers(v)),
		StateFile:            StateFile(v),
		APIKey:               v.GetString(KeyAPIKey),
		ClientIDs:            v.GetStringMapString(KeyClientIDs),
		ClientIDNamespace:    v.GetString(KeyClientIDNamespace),
		Interval:             v.GetDuration(KeyInterval),
		HTTPTimeout:          v.GetDuration(KeyHTTPTimeout),
		FetchRetryMaxElapsed: v.GetDuration(KeyFetchRetryMaxElapsed),
		StopSignal:           v.GetString(KeyStopSignal),
	}
	if opts.Dist == "" {
		opts.Dist = DefaultDist
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if err := Validate(opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// StateFile returns the configured state file, defaulting to
// <dist>/versions.yaml.
func StateFile(v *viper.Viper) string {
	if f := v.GetString(KeyStateFile); f != "" {
		return f
	}
	dist := v.GetString(KeyDist)
	if dist == "" {
		dist = DefaultDist
	}
	return filepath.Join(dist, stateFileName)
}

// identifiers accepts both a list and a comma separated string, which is
// what an environment variable yields.
func identifiers(v *viper.Viper) []string {
	var out []string
	for _, id := range v.GetStringSlice(KeyIdentifiers) {
		out = append(out, strings.Split(id, ",")...)
	}
	return out
}

// Validate checks the options needed to run a cycle.
func Validate(opts *types.Options) error {
	var errs []error
	if opts.ManifestURL == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyManifestURL))
	} else if u, err := url.Parse(opts.ManifestURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s %q is not an absolute URL", KeyManifestURL, opts.ManifestURL))
	}
	if len(opts.Identifiers) == 0 {
		errs = append(errs, fmt.Errorf("at least one of %s is required", KeyIdentifiers))
	}
	for _, id := range opts.Identifiers {
		if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
			errs = append(errs, fmt.Errorf("identifier %q must be a plain directory name", id))
		}
	}
	if opts.ClientIDNamespace != "" {
		if _, err := uuid.Parse(opts.ClientIDNamespace); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", KeyClientIDNamespace, err))
		}
	}
	return errors.Join(errs...)
}

// ClientIDFunc maps identifiers to client IDs: configured IDs win, anything
// else gets a stable UUIDv5 derived from the identifier.
func ClientIDFunc(opts *types.Options) func(identifier string) string {
	namespace := uuid.NameSpaceOID
	if opts.ClientIDNamespace != "" {
		namespace = uuid.MustParse(opts.ClientIDNamespace)
	}
	return func(identifier string) string {
		if id, ok := opts.ClientIDs[identifier]; ok && id != "" {
			return id
		}
		return uuid.NewSHA1(namespace, []byte(identifier)).String()
	}
}
