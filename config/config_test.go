// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

// skipInputs skips the checks on the catalog and samples files
var skipInputs = []SkipValidation{SkipCountersValidation, SkipSamplesValidation}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "", cfg.Web.Config)
	assert.Equal(t, []string{DefaultListenAddress}, cfg.Web.ListenAddresses)
	assert.Equal(t, 5*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 500*time.Millisecond, cfg.Monitor.Staleness)
	assert.False(t, *cfg.Exporter.Stdout.Enabled)
	assert.True(t, *cfg.Exporter.Prometheus.Enabled)
	assert.Equal(t, []string{"go"}, cfg.Exporter.Prometheus.DebugCollectors)
	assert.False(t, *cfg.Debug.Pprof.Enabled)
	assert.NoError(t, cfg.Hardware.Validate())

	assert.NoError(t, cfg.Validate(skipInputs...))
}

func TestLoadFromYAML(t *testing.T) {
	catalog := writeFile(t, "catalog.yaml", "public: []\n")
	samples := writeFile(t, "samples.yaml", "")

	cfg, err := Load(strings.NewReader(`
log:
  level: debug
  format: json
hardware:
  deviceName: gfx1030
  vendor: amd
  numShaderEngines: 4
  numSimds: 80
  numPrimPipes: 4
  suClocksPrim: 2
  timestampFrequency: 100000000
counters:
  file: ` + catalog + `
samples:
  file: ` + samples + `
monitor:
  interval: 1s
  staleness: 100ms
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "gfx1030", cfg.Hardware.DeviceName)
	assert.Equal(t, uint32(4), cfg.Hardware.ShaderEngines)
	assert.Equal(t, uint32(80), cfg.Hardware.SIMDs)
	assert.Equal(t, uint32(2), cfg.Hardware.SUClocks)
	assert.Equal(t, uint64(100_000_000), cfg.Hardware.TSFrequency)
	assert.Equal(t, catalog, cfg.Counters.File)
	assert.Equal(t, samples, cfg.Samples.File)
	assert.Equal(t, time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 100*time.Millisecond, cfg.Monitor.Staleness)
}

func TestLoadEmptyFromYAML(t *testing.T) {
	cfg, err := Load(strings.NewReader(""), skipInputs...)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().String(), cfg.String())
}

func TestLoadInvalidConfigFromYAML(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
log:
  level: FATAL
  format: json
`), skipInputs...)
	assert.ErrorContains(t, err, "invalid configuration: invalid log level: FATAL")
	assert.Nil(t, cfg)
}

func TestInvalidYAML(t *testing.T) {
	_, err := Load(strings.NewReader("log:\n  level: debug\ninvalid yaml\n"), skipInputs...)
	assert.ErrorContains(t, err, "failed to parse config")
}

// ErrorReader is a mock io.Reader that always returns an error
type ErrorReader struct{}

func (r *ErrorReader) Read(p []byte) (n int, err error) {
	return 0, os.ErrInvalid
}

func TestReadError(t *testing.T) {
	_, err := Load(&ErrorReader{})
	assert.ErrorIs(t, err, os.ErrInvalid)
}

func TestFromFile(t *testing.T) {
	t.Run("real file", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "log:\n  level: debug\n")

		cfg, err := FromFile(path, skipInputs...)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "text", cfg.Log.Format)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := FromFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorContains(t, err, "failed to open config file")
	})
}

func TestWhitespaceHandling(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
log:
  level: "  debug  "
  format: "  json  "
hardware:
  deviceName: "  gfx90a "
web:
  listenAddresses: ["  :9090  "]
exporter:
  prometheus:
    debugCollectors: ["  go  ", "  process  "]
`), skipInputs...)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "gfx90a", cfg.Hardware.DeviceName)
	assert.Equal(t, []string{":9090"}, cfg.Web.ListenAddresses)
	assert.ElementsMatch(t, []string{"go", "process"}, cfg.Exporter.Prometheus.DebugCollectors)
}

func TestInvalidConfigurationValues(t *testing.T) {
	tt := []struct {
		name   string
		mutate func(*Config)
		skips  []SkipValidation
		errs   []string
	}{{
		name:   "invalid log format",
		mutate: func(c *Config) { c.Log.Format = "xml" },
		skips:  skipInputs,
		errs:   []string{"invalid log format: xml"},
	}, {
		name: "zero hardware values",
		mutate: func(c *Config) {
			c.Hardware.ShaderEngines = 0
			c.Hardware.TSFrequency = 0
		},
		skips: skipInputs,
		errs: []string{
			"number of shader engines must be > 0",
			"timestamp frequency must be > 0",
		},
	}, {
		name:   "missing inputs",
		mutate: func(c *Config) {},
		errs:   []string{"counters.file must be specified", "samples.file must be specified"},
	}, {
		name: "unreadable inputs",
		mutate: func(c *Config) {
			c.Counters.File = "/does/not/exist/catalog.yaml"
			c.Samples.File = os.TempDir()
		},
		errs: []string{`invalid counters file. path: "/does/not/exist/catalog.yaml"`, "is a directory"},
	}, {
		name:   "negative monitor durations",
		mutate: func(c *Config) { c.Monitor.Interval, c.Monitor.Staleness = -time.Second, -time.Second },
		skips:  skipInputs,
		errs:   []string{"invalid monitor interval: -1s", "invalid monitor staleness: -1s"},
	}, {
		name: "stdout enabled without interval",
		mutate: func(c *Config) {
			c.Exporter.Stdout.Enabled = ptr.To(true)
			c.Exporter.Stdout.Interval = 0
		},
		skips: skipInputs,
		errs:  []string{"invalid stdout exporter interval: 0s must be positive"},
	}, {
		name:   "no listen address",
		mutate: func(c *Config) { c.Web.ListenAddresses = nil },
		skips:  skipInputs,
		errs:   []string{"at least one web listen address must be specified"},
	}, {
		name:   "bad listen addresses",
		mutate: func(c *Config) { c.Web.ListenAddresses = []string{"", "localhost", ":http", ":70000"} },
		skips:  skipInputs,
		errs: []string{
			"web listen address cannot be empty",
			`invalid web listen address "localhost": invalid address format`,
			"port must be numeric, got http",
			"port must be between 1 and 65535, got 70000",
		},
	}, {
		name:   "unreadable web config",
		mutate: func(c *Config) { c.Web.Config = "/does/not/exist/web.yaml" },
		skips:  skipInputs,
		errs:   []string{`invalid web config file. path: "/does/not/exist/web.yaml"`},
	}}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate(tc.skips...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration: ")
			for _, e := range tc.errs {
				assert.Contains(t, err.Error(), e)
			}
		})
	}
}

func TestValidateWithSkip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Samples.File = writeFile(t, "samples.yaml", "")

	assert.ErrorContains(t, cfg.Validate(), "counters.file must be specified")
	assert.NoError(t, cfg.Validate(SkipCountersValidation))
}

func TestCommandLinePrecedence(t *testing.T) {
	catalog := writeFile(t, "catalog.yaml", "public: []\n")

	cfg, err := Load(strings.NewReader(`
log:
  level: warn
hardware:
  numShaderEngines: 4
  numSimds: 80
exporter:
  stdout:
    enabled: false
  prometheus:
    enabled: false
    debugCollectors:
      - go
debug:
  pprof:
    enabled: false
`), skipInputs...)
	require.NoError(t, err)

	app := kingpin.New("test", "Test application")
	updateConfig := RegisterFlags(app)

	_, err = app.Parse([]string{
		"--exporter.stdout",
		"--exporter.stdout.interval=1s",
		"--debug.pprof",
		"--hardware.simds=120",
		"--counters.file=" + catalog,
		"--monitor.interval=0",
		"--web.listen-address=127.0.0.1:9999",
	})
	require.NoError(t, err)
	require.NoError(t, updateConfig(cfg, SkipSamplesValidation))

	assert.True(t, *cfg.Exporter.Stdout.Enabled, "stdout exporter should be enabled from flag")
	assert.Equal(t, time.Second, cfg.Exporter.Stdout.Interval)
	assert.False(t, *cfg.Exporter.Prometheus.Enabled, "prometheus exporter should remain disabled from yaml")
	assert.Equal(t, []string{"go"}, cfg.Exporter.Prometheus.DebugCollectors)
	assert.True(t, *cfg.Debug.Pprof.Enabled, "pprof should be enabled from flag")

	assert.Equal(t, "warn", cfg.Log.Level, "unset flags keep the file value")
	assert.Equal(t, uint32(4), cfg.Hardware.ShaderEngines)
	assert.Equal(t, uint32(120), cfg.Hardware.SIMDs)
	assert.Equal(t, catalog, cfg.Counters.File)
	assert.Equal(t, time.Duration(0), cfg.Monitor.Interval)
	assert.Equal(t, []string{"127.0.0.1:9999"}, cfg.Web.ListenAddresses)
}

func TestFlagsValidate(t *testing.T) {
	app := kingpin.New("test", "Test application")
	updateConfig := RegisterFlags(app)

	_, err := app.Parse([]string{"--hardware.shader-engines=0"})
	require.NoError(t, err)

	err = updateConfig(DefaultConfig(), skipInputs...)
	assert.ErrorContains(t, err, "number of shader engines must be > 0")
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Counters.File = "/etc/gpucounters/catalog.yaml"

	s := cfg.String()
	for _, want := range []string{
		"level: info",
		"numShaderEngines: 1",
		"timestampFrequency: 100000000",
		"file: /etc/gpucounters/catalog.yaml",
		"interval: 5s",
		"listenAddresses:",
	} {
		assert.Contains(t, s, want)
	}

	parsed := &Config{}
	require.NoError(t, yaml.Unmarshal([]byte(s), parsed))
	assert.Equal(t, cfg, parsed)

	manual := cfg.manualString()
	assert.Contains(t, manual, "log.level: info\n")
	assert.Contains(t, manual, "counters.file: /etc/gpucounters/catalog.yaml\n")
	assert.Contains(t, manual, "exporter.prometheus: true\n")
}

func TestBuilder(t *testing.T) {
	t.Run("Build", func(t *testing.T) {
		got, err := (&Builder{}).Build(skipInputs...)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().String(), got.String())
	})

	t.Run("Use", func(t *testing.T) {
		exp := DefaultConfig()
		exp.Log.Level = "warn"

		got, err := (&Builder{}).Use(exp).Build(skipInputs...)
		require.NoError(t, err)
		assert.Equal(t, exp.String(), got.String())
	})

	t.Run("MergeWithInvalidYAML", func(t *testing.T) {
		cfg, err := (&Builder{}).Merge().Merge(`invalid yaml: [invalid`).Build(skipInputs...)
		assert.ErrorContains(t, err, "failed to parse YAML from inline")
		assert.Nil(t, cfg)
	})

	t.Run("MultipleMerges", func(t *testing.T) {
		cfg, err := (&Builder{}).Merge(
			"log:\n  level: debug\n",
			"monitor:\n  interval: 3h\n",
			"log:\n  level: info\n",
		).Build(skipInputs...)
		require.NoError(t, err)

		exp := DefaultConfig()
		exp.Monitor.Interval = 3 * time.Hour
		assert.Equal(t, exp.String(), cfg.String())
	})

	t.Run("MergeFalseOverridesTrue", func(t *testing.T) {
		cfg, err := (&Builder{}).Merge("exporter:\n  prometheus:\n    enabled: false\n").Build(skipInputs...)
		require.NoError(t, err)

		exp := DefaultConfig()
		exp.Exporter.Prometheus.Enabled = ptr.To(false)
		assert.Equal(t, exp.String(), cfg.String())
	})

	t.Run("MergeArrays", func(t *testing.T) {
		cfg, err := (&Builder{}).Merge("exporter:\n  prometheus:\n    debugCollectors: [\"go\", \"process\"]\n").Build(skipInputs...)
		require.NoError(t, err)
		assert.Equal(t, []string{"go", "process"}, cfg.Exporter.Prometheus.DebugCollectors)
	})

	t.Run("MergeFiles", func(t *testing.T) {
		base := writeFile(t, "base.yaml", "hardware:\n  numShaderEngines: 4\n  numSimds: 80\n")
		site := writeFile(t, "site.yaml", "hardware:\n  numSimds: 120\n")

		cfg, err := (&Builder{}).MergeFiles(base, site).Build(skipInputs...)
		require.NoError(t, err)
		assert.Equal(t, uint32(4), cfg.Hardware.ShaderEngines)
		assert.Equal(t, uint32(120), cfg.Hardware.SIMDs)
	})

	t.Run("MergeMissingFile", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		_, err := (&Builder{}).MergeFiles(missing).Build(skipInputs...)
		assert.ErrorContains(t, err, "failed to read config "+missing)
	})

	t.Run("ValidatesResult", func(t *testing.T) {
		_, err := (&Builder{}).Merge("log:\n  format: xml\n").Build(skipInputs...)
		assert.ErrorContains(t, err, "invalid log format: xml")
	})
}
