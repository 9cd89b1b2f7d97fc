// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置，布局相关设置会持久化到 config.json
type AppConfig struct {
	// 基础配置（始终来自环境变量）
	Port               string `json:"port"`
	DataDir            string `json:"data_dir"`
	LogDir             string `json:"log_dir"`
	StructuresDir      string `json:"structures_dir"`
	StorageBackend     string `json:"storage_backend"`
	SQLitePath         string `json:"sqlite_path"`
	DebugMode          bool   `json:"debug_mode"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`

	// 可在运行时修改的画布设置
	Layout LayoutConfig `json:"layout"`
}

// LayoutConfig 新场景的默认摆放参数与默认结构模板
type LayoutConfig struct {
	HorizontalSpacing  float64 `json:"horizontal_spacing"`
	LaneY              float64 `json:"lane_y"`
	DefaultStructureID string  `json:"default_structure_id,omitempty"`
}

// Config 存储从环境变量读取的配置
type Config struct {
	Port               string
	DataDir            string
	LogDir             string
	StructuresDir      string
	StorageBackend     string
	SQLitePath         string
	DebugMode          bool
	HorizontalSpacing  float64
	LaneY              float64
	RateLimitPerMinute int
}

// Load 从 .env 和环境变量加载配置
func Load() (*Config, error) {
	// .env 是可选的
	_ = godotenv.Load()

	dataDir := getEnvPath("DATA_DIR", "data")
	config := &Config{
		Port:               getEnv("PORT", "8080"),
		DataDir:            dataDir,
		LogDir:             getEnvPath("LOG_DIR", "logs"),
		StructuresDir:      getEnv("STRUCTURES_DIR", filepath.Join(dataDir, "structures")),
		StorageBackend:     getEnv("STORAGE_BACKEND", "file"),
		SQLitePath:         getEnv("SQLITE_PATH", filepath.Join(dataDir, "storymap.sqlite")),
		DebugMode:          getEnvBool("DEBUG_MODE", true),
		HorizontalSpacing:  getEnvFloat("HORIZONTAL_SPACING", 250),
		LaneY:              getEnvFloat("DEFAULT_LANE_Y", 100),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 300),
	}

	if config.HorizontalSpacing <= 0 {
		return nil, fmt.Errorf("HORIZONTAL_SPACING must be positive, got %v", config.HorizontalSpacing)
	}
	switch config.StorageBackend {
	case "file", "sqlite":
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be file or sqlite, got %q", config.StorageBackend)
	}
	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的目录，并确保目录存在
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "warning: create dir %s: %v\n", path, err)
		}
	}
	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvFloat 获取数值类型环境变量，无法解析时使用默认值
func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func fromBase(base *Config) *AppConfig {
	return &AppConfig{
		Port:               base.Port,
		DataDir:            base.DataDir,
		LogDir:             base.LogDir,
		StructuresDir:      base.StructuresDir,
		StorageBackend:     base.StorageBackend,
		SQLitePath:         base.SQLitePath,
		DebugMode:          base.DebugMode,
		RateLimitPerMinute: base.RateLimitPerMinute,
		Layout: LayoutConfig{
			HorizontalSpacing: base.HorizontalSpacing,
			LaneY:             base.LaneY,
		},
	}
}

// InitConfig 初始化配置管理器：环境变量提供基础配置，config.json 中保存的布局设置优先
func InitConfig(dataDir string) error {
	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	configFile = filepath.Join(dataDir, "config.json")
	current := fromBase(baseConfig)

	if data, err := os.ReadFile(configFile); err == nil {
		var saved AppConfig
		if json.Unmarshal(data, &saved) == nil && saved.Layout.HorizontalSpacing > 0 {
			current.Layout = saved.Layout
		}
	}
	currentConfig = current

	return saveLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		baseConfig, err := Load()
		if err != nil {
			baseConfig = &Config{Port: "8080", DataDir: "data", LogDir: "logs", StorageBackend: "file", HorizontalSpacing: 250, LaneY: 100, RateLimitPerMinute: 300}
		}
		return fromBase(baseConfig)
	}

	configCopy := *currentConfig
	return &configCopy
}

// UpdateLayout 更新画布设置并保存
func UpdateLayout(layout LayoutConfig) error {
	if layout.HorizontalSpacing <= 0 {
		return fmt.Errorf("horizontal spacing must be positive")
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("config not initialized")
	}
	currentConfig.Layout = layout
	return saveLocked()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveLocked()
}

func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("no config to save")
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(configFile, data, 0644)
}
