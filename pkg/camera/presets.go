package camera

// Preset names for common frame sizes.
const (
	PresetQVGA = "qvga"
	PresetVGA  = "vga"
	PresetSVGA = "svga"
	PresetHD   = "hd"
	PresetUXGA = "uxga"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetQVGA: DefaultConfig(),
		PresetVGA:  withSize(640, 480),
		PresetSVGA: withSize(800, 600),
		PresetHD:   withSize(1280, 720),
		PresetUXGA: UXGAConfig(),
	}
}

// PresetNames returns the list of available preset names, smallest first.
func PresetNames() []string {
	return []string{PresetQVGA, PresetVGA, PresetSVGA, PresetHD, PresetUXGA}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// UXGAConfig returns the full sensor resolution.
// The sensor cannot keep up at 30 FPS here.
func UXGAConfig() Config {
	cfg := withSize(SensorMaxWidth, SensorMaxHeight)
	cfg.Framerate = 15
	return cfg
}

func withSize(w, h int) Config {
	cfg := DefaultConfig()
	cfg.Width = w
	cfg.Height = h
	return cfg
}
