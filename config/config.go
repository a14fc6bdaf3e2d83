// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sustainable-computing-io/gpucounters/internal/hwinfo"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

// Config represents the complete application configuration
type (
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}

	// Counters locates the counter catalog definitions
	Counters struct {
		File string `yaml:"file"`
	}

	// Samples locates the raw hardware counter samples
	Samples struct {
		File string `yaml:"file"`
	}

	Monitor struct {
		Interval  time.Duration `yaml:"interval"`  // Interval between sample reads; 0 reads once
		Staleness time.Duration `yaml:"staleness"` // Time after which computed values are considered stale
	}

	Web struct {
		Config          string   `yaml:"configFile"`
		ListenAddresses []string `yaml:"listenAddresses"`
	}

	// Exporter configuration
	StdoutExporter struct {
		Enabled  *bool         `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
	}

	PrometheusExporter struct {
		Enabled         *bool    `yaml:"enabled"`
		DebugCollectors []string `yaml:"debugCollectors"`
	}

	Exporter struct {
		Stdout     StdoutExporter     `yaml:"stdout"`
		Prometheus PrometheusExporter `yaml:"prometheus"`
	}

	// Debug configuration
	PprofDebug struct {
		Enabled *bool `yaml:"enabled"`
	}

	Debug struct {
		Pprof PprofDebug `yaml:"pprof"`
	}

	Config struct {
		Log      Log           `yaml:"log"`
		Hardware hwinfo.Static `yaml:"hardware"`
		Counters Counters      `yaml:"counters"`
		Samples  Samples       `yaml:"samples"`
		Monitor  Monitor       `yaml:"monitor"`
		Exporter Exporter      `yaml:"exporter"`
		Web      Web           `yaml:"web"`
		Debug    Debug         `yaml:"debug"`
	}
)

type SkipValidation int

const (
	// SkipCountersValidation skips the check that the catalog file is readable
	SkipCountersValidation SkipValidation = 1
	// SkipSamplesValidation skips the check that the samples file is readable
	SkipSamplesValidation SkipValidation = 2
)

// DefaultListenAddress is the address the API server listens on by default
const DefaultListenAddress = ":28283"

const (
	// Flags
	LogLevelFlag  = "log.level"
	LogFormatFlag = "log.format"

	CountersFileFlag = "counters.file"
	SamplesFileFlag  = "samples.file"

	HardwareShaderEnginesFlag = "hardware.shader-engines"
	HardwareSIMDsFlag         = "hardware.simds"
	HardwarePrimPipesFlag     = "hardware.prim-pipes"
	HardwareSUClocksFlag      = "hardware.su-clocks-prim"
	HardwareTSFrequencyFlag   = "hardware.timestamp-frequency"

	MonitorIntervalFlag = "monitor.interval"
	MonitorStaleness    = "monitor.staleness" // not a flag

	pprofEnabledFlag = "debug.pprof"

	WebConfigFlag        = "web.config-file"
	WebListenAddressFlag = "web.listen-address"

	// Exporters
	ExporterStdoutEnabledFlag  = "exporter.stdout"
	ExporterStdoutIntervalFlag = "exporter.stdout.interval"

	ExporterPrometheusEnabledFlag = "exporter.prometheus"
	// NOTE: not a flag
	ExporterPrometheusDebugCollectors = "exporter.prometheus.debug-collectors"
)

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Hardware: hwinfo.Static{
			ShaderEngines: 1,
			SIMDs:         1,
			PrimPipes:     1,
			SUClocks:      1,
			TSFrequency:   100_000_000,
		},
		Monitor: Monitor{
			Interval:  5 * time.Second,
			Staleness: 500 * time.Millisecond,
		},
		Exporter: Exporter{
			Stdout: StdoutExporter{
				Enabled:  ptr.To(false),
				Interval: 5 * time.Second,
			},
			Prometheus: PrometheusExporter{
				Enabled:         ptr.To(true),
				DebugCollectors: []string{"go"},
			},
		},
		Debug: Debug{
			Pprof: PprofDebug{
				Enabled: ptr.To(false),
			},
		},
		Web: Web{
			ListenAddresses: []string{DefaultListenAddress},
		},
	}
}

// Load loads configuration from an io.Reader
func Load(r io.Reader, skips ...SkipValidation) (*Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(skips...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile loads configuration from a file
func FromFile(filePath string, skips ...SkipValidation) (cfg *Config, err error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return Load(file, skips...)
}

type ConfigUpdaterFn func(*Config, ...SkipValidation) error

// RegisterFlags registers command-line flags with kingpin app
// and returns ConfigUpdaterFn that updates the config from parsed flags
// as command line arguments override config file settings
func RegisterFlags(app *kingpin.Application) ConfigUpdaterFn {
	// track flags that were explicitly set
	flagsSet := map[string]bool{}

	app.PreAction(func(ctx *kingpin.ParseContext) error {
		// Clear the map in case this function is called multiple times
		flagsSet = map[string]bool{}

		for _, element := range ctx.Elements {
			if flag, ok := element.Clause.(*kingpin.FlagClause); ok && element.Value != nil {
				flagsSet[flag.Model().Name] = true
			}
		}
		return nil
	})

	// Logging
	logLevel := app.Flag(LogLevelFlag, "Logging level: debug, info, warn, error").Default("info").Enum("debug", "info", "warn", "error")
	logFormat := app.Flag(LogFormatFlag, "Logging format: text or json").Default("text").Enum("text", "json")

	// inputs
	countersFile := app.Flag(CountersFileFlag, "Path to the counter catalog definitions (YAML)").String()
	samplesFile := app.Flag(SamplesFileFlag, "Path to the raw hardware counter samples (YAML)").String()

	// hardware
	shaderEngines := app.Flag(HardwareShaderEnginesFlag, "Number of shader engines").Uint32()
	simds := app.Flag(HardwareSIMDsFlag, "Number of SIMD units").Uint32()
	primPipes := app.Flag(HardwarePrimPipesFlag, "Number of primitive pipes").Uint32()
	suClocks := app.Flag(HardwareSUClocksFlag, "Scan-converter clocks per primitive").Uint32()
	tsFrequency := app.Flag(HardwareTSFrequencyFlag, "GPU timestamp frequency in Hz").Uint64()

	// monitor
	monitorInterval := app.Flag(MonitorIntervalFlag,
		"Interval for reading samples and computing counters; 0 to read once").Default("5s").Duration()

	enablePprof := app.Flag(pprofEnabledFlag, "Enable pprof debug endpoints").Default("false").Bool()
	webConfig := app.Flag(WebConfigFlag, "Web config file path").Default("").String()
	webListenAddresses := app.Flag(WebListenAddressFlag, "Web server listen addresses").Default(DefaultListenAddress).Strings()

	// exporters
	stdoutExporterEnabled := app.Flag(ExporterStdoutEnabledFlag, "Enable stdout exporter").Default("false").Bool()
	stdoutInterval := app.Flag(ExporterStdoutIntervalFlag, "Interval between stdout tables").Default("5s").Duration()

	prometheusExporterEnabled := app.Flag(ExporterPrometheusEnabledFlag, "Enable Prometheus exporter").Default("true").Bool()

	return func(cfg *Config, skips ...SkipValidation) error {
		// Logging settings
		if flagsSet[LogLevelFlag] {
			cfg.Log.Level = *logLevel
		}

		if flagsSet[LogFormatFlag] {
			cfg.Log.Format = *logFormat
		}

		if flagsSet[CountersFileFlag] {
			cfg.Counters.File = *countersFile
		}
		if flagsSet[SamplesFileFlag] {
			cfg.Samples.File = *samplesFile
		}

		// hardware settings
		if flagsSet[HardwareShaderEnginesFlag] {
			cfg.Hardware.ShaderEngines = *shaderEngines
		}
		if flagsSet[HardwareSIMDsFlag] {
			cfg.Hardware.SIMDs = *simds
		}
		if flagsSet[HardwarePrimPipesFlag] {
			cfg.Hardware.PrimPipes = *primPipes
		}
		if flagsSet[HardwareSUClocksFlag] {
			cfg.Hardware.SUClocks = *suClocks
		}
		if flagsSet[HardwareTSFrequencyFlag] {
			cfg.Hardware.TSFrequency = *tsFrequency
		}

		// monitor settings
		if flagsSet[MonitorIntervalFlag] {
			cfg.Monitor.Interval = *monitorInterval
		}

		if flagsSet[pprofEnabledFlag] {
			cfg.Debug.Pprof.Enabled = enablePprof
		}

		if flagsSet[WebConfigFlag] {
			cfg.Web.Config = *webConfig
		}

		if flagsSet[WebListenAddressFlag] {
			cfg.Web.ListenAddresses = *webListenAddresses
		}

		if flagsSet[ExporterStdoutEnabledFlag] {
			cfg.Exporter.Stdout.Enabled = stdoutExporterEnabled
		}
		if flagsSet[ExporterStdoutIntervalFlag] {
			cfg.Exporter.Stdout.Interval = *stdoutInterval
		}

		if flagsSet[ExporterPrometheusEnabledFlag] {
			cfg.Exporter.Prometheus.Enabled = prometheusExporterEnabled
		}

		cfg.sanitize()
		return cfg.Validate(skips...)
	}
}

func (c *Config) sanitize() {
	c.Log.Level = strings.TrimSpace(c.Log.Level)
	c.Log.Format = strings.TrimSpace(c.Log.Format)
	c.Counters.File = strings.TrimSpace(c.Counters.File)
	c.Samples.File = strings.TrimSpace(c.Samples.File)
	c.Hardware.DeviceName = strings.TrimSpace(c.Hardware.DeviceName)
	c.Hardware.Vendor = strings.TrimSpace(c.Hardware.Vendor)
	c.Web.Config = strings.TrimSpace(c.Web.Config)
	for i := range c.Web.ListenAddresses {
		c.Web.ListenAddresses[i] = strings.TrimSpace(c.Web.ListenAddresses[i])
	}

	for i := range c.Exporter.Prometheus.DebugCollectors {
		c.Exporter.Prometheus.DebugCollectors[i] = strings.TrimSpace(c.Exporter.Prometheus.DebugCollectors[i])
	}
}

// Validate checks for configuration errors
func (c *Config) Validate(skips ...SkipValidation) error {
	validationSkipped := make(map[SkipValidation]bool, len(skips))
	for _, v := range skips {
		validationSkipped[v] = true
	}
	var errs []string
	{ // log level
		validLogLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}

		if _, valid := validLogLevels[c.Log.Level]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
		}
	}
	{ // log format
		validFormats := map[string]bool{
			"text": true,
			"json": true,
		}
		if _, valid := validFormats[c.Log.Format]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
		}
	}
	{ // hardware
		if err := c.Hardware.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	{ // counter catalog
		if !validationSkipped[SkipCountersValidation] {
			if c.Counters.File == "" {
				errs = append(errs, fmt.Sprintf("%s must be specified", CountersFileFlag))
			} else if err := canReadFile(c.Counters.File); err != nil {
				errs = append(errs, fmt.Sprintf("invalid counters file. path: %q: %s", c.Counters.File, err.Error()))
			}
		}
	}
	{ // samples
		if !validationSkipped[SkipSamplesValidation] {
			if c.Samples.File == "" {
				errs = append(errs, fmt.Sprintf("%s must be specified", SamplesFileFlag))
			} else if err := canStatFile(c.Samples.File); err != nil {
				errs = append(errs, fmt.Sprintf("invalid samples file. path: %q: %s", c.Samples.File, err.Error()))
			}
		}
	}
	{ // Web config file
		if c.Web.Config != "" {
			if err := canReadFile(c.Web.Config); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web config file. path: %q: %s", c.Web.Config, err.Error()))
			}
		}
	}
	{ // Web listen addresses
		if len(c.Web.ListenAddresses) == 0 {
			errs = append(errs, "at least one web listen address must be specified")
		}
		for _, addr := range c.Web.ListenAddresses {
			if addr == "" {
				errs = append(errs, "web listen address cannot be empty")
				continue
			}
			if err := validateListenAddress(addr); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web listen address %q: %s", addr, err.Error()))
			}
		}
	}
	{ // Monitor
		if c.Monitor.Interval < 0 {
			errs = append(errs, fmt.Sprintf("invalid monitor interval: %s can't be negative", c.Monitor.Interval))
		}
		if c.Monitor.Staleness < 0 {
			errs = append(errs, fmt.Sprintf("invalid monitor staleness: %s can't be negative", c.Monitor.Staleness))
		}
	}
	{ // stdout exporter
		if ptr.Deref(c.Exporter.Stdout.Enabled, false) && c.Exporter.Stdout.Interval <= 0 {
			errs = append(errs, fmt.Sprintf("invalid stdout exporter interval: %s must be positive", c.Exporter.Stdout.Interval))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, ", "))
	}

	return nil
}

func canReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		// ignored on purpose
		_ = f.Close()
	}()
	buf := make([]byte, 8)
	_, err = f.Read(buf)
	if err != nil {
		return err
	}

	return nil
}

// canStatFile accepts empty files; a sample file may be truncated between writes
func canStatFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func validateListenAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	// host can be empty for listening on all interfaces
	return validatePort(port)
}

func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric, got %s", port)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", portNum)
	}
	return nil
}

func (c *Config) String() string {
	bytes, err := yaml.Marshal(c)
	if err == nil {
		return string(bytes)
	}
	// NOTE:  this code path should not happen but if it does (i.e if yaml marshal) fails
	// for some reason, manually build the string
	return c.manualString()
}

func (c *Config) manualString() string {
	cfgs := []struct {
		Name  string
		Value string
	}{
		{LogLevelFlag, c.Log.Level},
		{LogFormatFlag, c.Log.Format},
		{CountersFileFlag, c.Counters.File},
		{SamplesFileFlag, c.Samples.File},
		{"hardware", c.Hardware.String()},
		{MonitorIntervalFlag, c.Monitor.Interval.String()},
		{MonitorStaleness, c.Monitor.Staleness.String()},
		{ExporterStdoutEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Stdout.Enabled, false))},
		{ExporterStdoutIntervalFlag, c.Exporter.Stdout.Interval.String()},
		{ExporterPrometheusEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Prometheus.Enabled, false))},
		{ExporterPrometheusDebugCollectors, strings.Join(c.Exporter.Prometheus.DebugCollectors, ", ")},
		{pprofEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Debug.Pprof.Enabled, false))},
		{WebConfigFlag, c.Web.Config},
		{WebListenAddressFlag, strings.Join(c.Web.ListenAddresses, ", ")},
	}
	sb := strings.Builder{}

	for _, cfg := range cfgs {
		sb.WriteString(cfg.Name)
		sb.WriteString(": ")
		sb.WriteString(cfg.Value)
		sb.WriteString("\n")
	}

	return sb.String()
}
