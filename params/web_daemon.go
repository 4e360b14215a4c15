package params

type WebDaemonConfig struct {
	ListenerConfig `mapstructure:",squash" yaml:",inline"`
	// SiteDir is served at the root path.
	SiteDir string `mapstructure:"site_dir" yaml:"site_dir"`
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: DefaultWebListenerConfig(),
		SiteDir:        DefaultSiteConfig().OutputDir,
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
		SiteDir: "",
	}
}
