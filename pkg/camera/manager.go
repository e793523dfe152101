package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Manager owns the active capture settings. Updates are validated, handed
// to OnConfigChange and only stored once the source accepted them.
type Manager struct {
	mu     sync.RWMutex
	config Config

	// OnConfigChange applies new settings to the running source.
	OnConfigChange func(cfg Config) error
}

func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates cfg and applies it. A source that rejects the
// settings leaves the previous config in place.
func (m *Manager) SetConfig(cfg Config) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OnConfigChange != nil {
		if err := m.OnConfigChange(cfg); err != nil {
			return fmt.Errorf("camera: apply %dx%d@%d: %w", cfg.Width, cfg.Height, cfg.Framerate, err)
		}
	}
	m.config = cfg
	return nil
}

// UpdateConfig merges a partial JSON-style update. "preset" is applied
// first and keeps the current device; unknown keys are rejected.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	if v, ok := params["preset"]; ok {
		name, _ := v.(string)
		preset := GetPreset(name)
		if preset == nil {
			return fmt.Errorf("camera: unknown preset %q", name)
		}
		device := cfg.Device
		cfg = *preset
		cfg.Device = device
	}

	var errs []error
	for key, value := range params {
		switch key {
		case "preset":
		case "device":
			s, ok := value.(string)
			if !ok {
				errs = append(errs, fmt.Errorf("device: want string, got %T", value))
				continue
			}
			cfg.Device = s
		case "width":
			errs = append(errs, setInt(&cfg.Width, key, value))
		case "height":
			errs = append(errs, setInt(&cfg.Height, key, value))
		case "framerate":
			errs = append(errs, setInt(&cfg.Framerate, key, value))
		case "quality":
			errs = append(errs, setInt(&cfg.Quality, key, value))
		default:
			errs = append(errs, fmt.Errorf("unknown field %q", key))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return m.SetConfig(cfg)
}

// GetConfigJSON returns the active settings keyed by their JSON names.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	data, err := json.Marshal(m.GetConfig())
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func setInt(dst *int, key string, v interface{}) error {
	switch val := v.(type) {
	case int:
		*dst = val
	case int64:
		*dst = int(val)
	case float64:
		if val != float64(int(val)) {
			return fmt.Errorf("%s: %v is not a whole number", key, val)
		}
		*dst = int(val)
	case json.Number:
		i, err := val.Int64()
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = int(i)
	default:
		return fmt.Errorf("%s: want number, got %T", key, v)
	}
	return nil
}
