package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/woodguard/internal/spectral"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDMonitor string
	MQTTClientIDWeb     string
	MQTTClientIDConsole string

	// Topics
	TopicDetection string
	TopicPhase     string

	// Hardware
	I2CBus         string // "" selects the first bus
	I2CClockHz     int64
	MPUI2CAddr     uint16
	PowerGPIO      string // "" means the sensor is always powered
	StatusLEDGPIO  string
	DisplayEnabled bool

	// Acquisition
	SampleRateHz   int
	MaxSamples     int
	FFTSize        int
	BlockSize      int // bytes, multiple of 6
	EmptyBackoffMs int

	// Phases
	PhaseDurationMs int
	TotalPhases     int
	CycleBudget     int
	AttemptSettleMs int
	PhaseDelayMs    int

	// Sensor lifecycle
	PowerOnSettleMs  int
	PowerOffSettleMs int
	SetupSettleMs    int
	StabilizeMs      int

	// Classification
	SawBand      spectral.Band
	AxeBand      spectral.Band
	ChainsawBand spectral.Band
	Threshold    float64

	// Storage
	DBPath string

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Web Server
	WebServerPort int

	// Logging
	LogLevel    string
	LogSpectrum bool
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access; Get takes the read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDMonitor: "woodguard-monitor",
		MQTTClientIDWeb:     "woodguard-web",
		MQTTClientIDConsole: "woodguard-console",

		TopicDetection: "woodguard/detection",
		TopicPhase:     "woodguard/phase",

		I2CClockHz: 100000,
		MPUI2CAddr: 0x68,

		SampleRateHz:   1000,
		MaxSamples:     1024,
		FFTSize:        1024,
		BlockSize:      960,
		EmptyBackoffMs: 100,

		PhaseDurationMs: 10000,
		TotalPhases:     60,
		CycleBudget:     60,
		AttemptSettleMs: 1000,
		PhaseDelayMs:    5000,

		PowerOnSettleMs:  500,
		PowerOffSettleMs: 3000,
		SetupSettleMs:    2000,
		StabilizeMs:      1000,

		SawBand:      spectral.Band{Category: spectral.Saw, MinHz: 5, MaxHz: 20},
		AxeBand:      spectral.Band{Category: spectral.Axe, MinHz: 20, MaxHz: 50},
		ChainsawBand: spectral.Band{Category: spectral.Chainsaw, MinHz: 50, MaxHz: 250},
		Threshold:    spectral.DefaultThreshold,

		DBPath: "woodguard.db",

		GPSBaudRate: 9600,

		WebServerPort: 8080,

		LogLevel: "info",
	}
}

// Load reads the configuration file on top of Default and validates it.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_DETECTION":
		c.TopicDetection = value
	case "TOPIC_PHASE":
		c.TopicPhase = value

	// Hardware
	case "I2C_BUS":
		c.I2CBus = value
	case "I2C_CLOCK_HZ":
		hz, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid I2C_CLOCK_HZ %q: %w", value, perr)
		}
		if hz < 10000 || hz > 1000000 {
			return fmt.Errorf("I2C_CLOCK_HZ must be 10000-1000000, got %d", hz)
		}
		c.I2CClockHz = hz
	case "MPU_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid MPU_I2C_ADDR %q: %w", value, perr)
		}
		if addr != 0x68 && addr != 0x69 {
			return fmt.Errorf("MPU_I2C_ADDR must be 0x68 or 0x69, got 0x%02X", addr)
		}
		c.MPUI2CAddr = uint16(addr)
	case "POWER_GPIO":
		c.PowerGPIO = value
	case "STATUS_LED_GPIO":
		c.StatusLEDGPIO = value
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = parseBool(key, value)

	// Acquisition
	case "SAMPLE_RATE_HZ":
		c.SampleRateHz, err = parseInt(key, value, 4, 1000)
	case "MAX_SAMPLES":
		c.MaxSamples, err = parseInt(key, value, 1, 65536)
	case "FFT_SIZE":
		c.FFTSize, err = parseInt(key, value, 4, 65536)
	case "BLOCK_SIZE":
		c.BlockSize, err = parseInt(key, value, 6, 1020)
	case "EMPTY_BACKOFF_MS":
		c.EmptyBackoffMs, err = parseInt(key, value, 0, 60000)

	// Phases
	case "PHASE_DURATION_MS":
		c.PhaseDurationMs, err = parseInt(key, value, 1, 3600000)
	case "TOTAL_PHASES":
		c.TotalPhases, err = parseInt(key, value, 1, 1000000)
	case "CYCLE_BUDGET":
		c.CycleBudget, err = parseInt(key, value, 0, 1000000)
	case "ATTEMPT_SETTLE_MS":
		c.AttemptSettleMs, err = parseInt(key, value, 0, 60000)
	case "PHASE_DELAY_MS":
		c.PhaseDelayMs, err = parseInt(key, value, 0, 86400000)

	// Sensor lifecycle
	case "POWER_ON_SETTLE_MS":
		c.PowerOnSettleMs, err = parseInt(key, value, 0, 60000)
	case "POWER_OFF_SETTLE_MS":
		c.PowerOffSettleMs, err = parseInt(key, value, 0, 60000)
	case "SETUP_SETTLE_MS":
		c.SetupSettleMs, err = parseInt(key, value, 0, 60000)
	case "STABILIZE_MS":
		c.StabilizeMs, err = parseInt(key, value, 0, 60000)

	// Classification
	case "SAW_BAND":
		c.SawBand, err = parseBand(key, value, spectral.Saw)
	case "AXE_BAND":
		c.AxeBand, err = parseBand(key, value, spectral.Axe)
	case "CHAINSAW_BAND":
		c.ChainsawBand, err = parseBand(key, value, spectral.Chainsaw)
	case "THRESHOLD":
		th, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid THRESHOLD %q: %w", value, perr)
		}
		if th < 0 {
			return fmt.Errorf("THRESHOLD must not be negative, got %g", th)
		}
		c.Threshold = th

	// Storage
	case "DB_PATH":
		c.DBPath = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, perr)
		}
		c.GPSBaudRate = rate

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)

	// Logging
	case "LOG_LEVEL":
		switch value {
		case "debug", "info", "warn", "error":
			c.LogLevel = value
		default:
			return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", value)
		}
	case "LOG_SPECTRUM":
		c.LogSpectrum, err = parseBool(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseInt(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

// parseBand reads "min:max" in Hz.
func parseBand(key, value string, cat spectral.Category) (spectral.Band, error) {
	lo, hi, ok := strings.Cut(value, ":")
	if !ok {
		return spectral.Band{}, fmt.Errorf("%s must be min:max in Hz, got %q", key, value)
	}
	minHz, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return spectral.Band{}, fmt.Errorf("invalid %s minimum %q: %w", key, lo, err)
	}
	maxHz, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return spectral.Band{}, fmt.Errorf("invalid %s maximum %q: %w", key, hi, err)
	}
	return spectral.Band{Category: cat, MinHz: minHz, MaxHz: maxHz}, nil
}

// internalRateHz is the MPU-6050 output rate with the DLPF enabled.
const internalRateHz = 1000

// validate checks cross-field constraints.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.BlockSize%6 != 0 {
		return fmt.Errorf("BLOCK_SIZE must be a multiple of 6 (one accelerometer frame), got %d", c.BlockSize)
	}
	if c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("FFT_SIZE must be a power of two, got %d", c.FFTSize)
	}
	if c.MaxSamples > c.FFTSize {
		return fmt.Errorf("MAX_SAMPLES (%d) must not exceed FFT_SIZE (%d)", c.MaxSamples, c.FFTSize)
	}
	// The accelerometer only runs at 1 kHz / (1 + SMPLRT_DIV).
	if internalRateHz%c.SampleRateHz != 0 {
		return fmt.Errorf("SAMPLE_RATE_HZ must divide %d evenly, got %d", internalRateHz, c.SampleRateHz)
	}
	nyquist := float64(c.SampleRateHz) / 2
	for _, b := range c.Bands() {
		if b.MaxHz > nyquist {
			return fmt.Errorf("%s band ends above the Nyquist frequency %g Hz", b.Category, nyquist)
		}
	}
	if err := spectral.ValidateBands(c.Bands()); err != nil {
		return err
	}
	if c.GPSSerialPort != "" && c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE is required with GPS_SERIAL_PORT")
	}
	return nil
}

// Bands returns the configured saw, axe and chainsaw bands.
func (c *Config) Bands() []spectral.Band {
	return []spectral.Band{c.SawBand, c.AxeBand, c.ChainsawBand}
}

// Ms converts a millisecond setting to a duration.
func Ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
