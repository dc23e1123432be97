package config

const (
	defaultDataDir           = "~/.local/share/nsac"
	defaultEnvironmentsDir   = "~/.local/share/nsac/envs"
	defaultLogDir            = "~/.local/share/nsac/logs"
	defaultRawMapsDir        = "~/.local/share/nsac/data/raw_maps"
	defaultFilteredMapsDir   = "~/.local/share/nsac/data/filtered_maps"
	defaultInterpreter       = "python3"
	defaultVenvModule        = "venv"
	defaultManifestName      = "requirements.txt"
	defaultLockTimeout       = 10
	defaultInstallTimeout    = 900
	defaultMinFreeSpaceGiB   = 1
	defaultBeatSaverBaseURL  = "https://api.beatsaver.com"
	defaultBeatSaverAgent    = "nsac/dev"
	defaultRequestTimeout    = 30
	defaultBeatSaverPageWait = 0
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:         defaultDataDir,
			EnvironmentsDir: defaultEnvironmentsDir,
			LogDir:          defaultLogDir,
			RawMapsDir:      defaultRawMapsDir,
			FilteredMapsDir: defaultFilteredMapsDir,
		},
		Bootstrap: Bootstrap{
			Interpreter:     defaultInterpreter,
			VenvModule:      defaultVenvModule,
			ManifestName:    defaultManifestName,
			LockTimeout:     defaultLockTimeout,
			InstallTimeout:  defaultInstallTimeout,
			MinFreeSpaceGiB: defaultMinFreeSpaceGiB,
		},
		BeatSaver: BeatSaver{
			BaseURL:        defaultBeatSaverBaseURL,
			UserAgent:      defaultBeatSaverAgent,
			RequestTimeout: defaultRequestTimeout,
			PageDelay:      defaultBeatSaverPageWait,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
