package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"momentum-backtest/internal/api/models"
	"momentum-backtest/internal/config"
)

var errPresetNotFound = errors.New("preset not found")

// PresetHandler serves strategy configuration presets: YAML files in a
// directory, each overlaid on the defaults like any config file.
type PresetHandler struct {
	dir string
	log *zap.Logger
}

// NewPresetHandler uses PRESET_DIR, falling back to ./configs.
func NewPresetHandler(dir string, logger *zap.Logger) *PresetHandler {
	if dir == "" {
		dir = os.Getenv("PRESET_DIR")
	}
	if dir == "" {
		dir = "./configs"
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresetHandler{dir: dir, log: logger.Named("presets")}
}

// Dir returns the preset directory.
func (h *PresetHandler) Dir() string { return h.dir }

// ListPresets handles GET /api/v1/presets
func (h *PresetHandler) ListPresets(c *gin.Context) {
	presets := []models.PresetInfo{}

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		h.log.Debug("preset directory unavailable", zap.String("dir", h.dir), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"presets": presets})
		return
	}
	for _, entry := range entries {
		id, ok := presetID(entry.Name())
		if entry.IsDir() || !ok {
			continue
		}
		path := filepath.Join(h.dir, entry.Name())
		cfg, err := config.Load(path)
		if err != nil {
			h.log.Warn("skipping invalid preset", zap.String("file", path), zap.Error(err))
			continue
		}
		presets = append(presets, models.PresetInfo{
			ID:                id,
			File:              entry.Name(),
			RSIEntryThreshold: cfg.RSIEntryThreshold,
			RSIExitThreshold:  cfg.RSIExitThreshold,
			MaxPositions:      cfg.MaxPositions,
			RiskPerTrade:      cfg.RiskPerTrade,
		})
	}
	c.JSON(http.StatusOK, gin.H{"presets": presets})
}

// Load returns the named preset. An empty id returns base unchanged.
func (h *PresetHandler) Load(id string, base config.Config) (config.Config, error) {
	if id == "" {
		return base.WithOverrides(nil), nil
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return config.Config{}, fmt.Errorf("%w: %q", errPresetNotFound, id)
	}
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(h.dir, id+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := config.LoadUnchecked(path)
		if err != nil {
			return config.Config{}, err
		}
		return *cfg, nil
	}
	return config.Config{}, fmt.Errorf("%w: %q", errPresetNotFound, id)
}

func presetID(name string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext), true
		}
	}
	return "", false
}
