package camera

import "fmt"

// Config holds capture settings shared by all sources.
type Config struct {
	Width     int `json:"width" yaml:"width"`         // Frame width in pixels
	Height    int `json:"height" yaml:"height"`       // Frame height in pixels
	Framerate int `json:"framerate" yaml:"framerate"` // Target FPS, 0 = as fast as possible
	Quality   int `json:"quality" yaml:"quality"`     // Capture JPEG quality 1-100

	// ConvertQuality is used when a raw frame has to be transcoded to JPEG
	// on its way to a stream client.
	ConvertQuality int `json:"convert_quality" yaml:"convert_quality"`

	// PoolSize is how many frames may be checked out at once.
	PoolSize int `json:"pool_size" yaml:"pool_size"`
}

// Sensor limits for the OV2640 class of camera modules.
const (
	SensorMaxWidth  = 1600
	SensorMaxHeight = 1200
)

// DefaultConvertQuality is the transcode quality for raw frames.
const DefaultConvertQuality = 80

// DefaultConfig returns the QVGA configuration the device runs with.
func DefaultConfig() Config {
	return Config{
		Width:          320,
		Height:         240,
		Framerate:      30,
		Quality:        85,
		ConvertQuality: DefaultConvertQuality,
		PoolSize:       1,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < 16 || c.Width > SensorMaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 16 and %d", SensorMaxWidth))
	}
	if c.Height < 16 || c.Height > SensorMaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 16 and %d", SensorMaxHeight))
	}
	if c.Framerate < 0 || c.Framerate > 120 {
		errors = append(errors, "framerate must be between 0 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.ConvertQuality < 1 || c.ConvertQuality > 100 {
		errors = append(errors, "convert_quality must be between 1 and 100")
	}
	if c.PoolSize < 1 || c.PoolSize > 8 {
		errors = append(errors, "pool_size must be between 1 and 8")
	}

	return errors
}
