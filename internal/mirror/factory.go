package mirror

import (
	"fmt"
	"path"

	"github.com/abhibansal60/led-catalog/internal/config"
	"github.com/abhibansal60/led-catalog/internal/exchange"
)

// NewMirrorFromConfig creates a Mirror implementation based on the
// mirror config type. Type "none" (or empty) returns (nil, nil):
// mirroring disabled.
func NewMirrorFromConfig(cfg config.MirrorConfig) (exchange.Mirror, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "http":
		if cfg.HTTPBaseURL == "" {
			return nil, fmt.Errorf("http_base_url required for http mirror")
		}
		if err := validSlot(cfg.Slot); err != nil {
			return nil, err
		}
		return NewHTTPMirror(cfg.HTTPBaseURL, cfg.Slot), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3_bucket required for s3 mirror")
		}
		if err := validSlot(cfg.Slot); err != nil {
			return nil, err
		}
		return NewS3Mirror(cfg)
	case "memory":
		return NewMemoryMirror(), nil
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}
}

// validSlot rejects slot names that could escape the mirror namespace.
func validSlot(slot string) error {
	if slot == "" || slot == "." || slot == ".." || path.Base(slot) != slot {
		return fmt.Errorf("invalid mirror slot %q: must be a simple name", slot)
	}
	return nil
}
