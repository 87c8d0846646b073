package rectify

// Config holds configuration for page boundary detection and warping.
type Config struct {
	Margin        int     // black padding added before morphological closing
	KernelSize    int     // diameter of the elliptical structuring element
	EpsilonFactor float64 // polygon tolerance as a fraction of the contour perimeter
	Width         int     // destination canvas width; 0 keeps the source width
	Height        int     // destination canvas height; 0 keeps the source height
	DebugDir      string  // if non-empty, writes mask and overlay PNGs here
}

// DefaultConfig returns the defaults used for scanned form pages.
func DefaultConfig() Config {
	return Config{
		Margin:        20,
		KernelSize:    15,
		EpsilonFactor: 0.04,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Margin < 0 {
		c.Margin = 0
	}
	if c.KernelSize <= 0 {
		c.KernelSize = d.KernelSize
	}
	if c.EpsilonFactor <= 0 {
		c.EpsilonFactor = d.EpsilonFactor
	}
	return c
}
