// Package config loads the runtime's hot-reloadable run parameters and
// implements the string-option interpolation escapes of spec.md §6, using
// viper the way the teacher's internal/config/config.go loads GlobalConfig.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RunParameters is spec.md §6's run-parameter table: the admission
// threshold and worker pool size, the only two tunables the core itself
// owns (everything else — graph description, component options — is a
// source-level, out-of-scope concern per spec.md §1).
type RunParameters struct {
	MaxRunning int64 `mapstructure:"max_running"`
	NumThreads int   `mapstructure:"num_threads"`
}

// paramsRoot mirrors the teacher's configRoot wrapper pattern: one
// top-level key namespacing the whole file.
type paramsRoot struct {
	Visionflow RunParameters `mapstructure:"visionflow"`
}

// Load reads RunParameters from path (if non-empty) with environment
// override (VISIONFLOW_MAX_RUNNING, VISIONFLOW_NUM_THREADS) and built-in
// defaults, following the teacher's Load/setDefaults split.
func Load(path string) (*RunParameters, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %q: %w", path, err)
		}
	}

	var root paramsRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal run parameters: %w", err)
	}
	params := root.Visionflow
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid run parameters: %w", err)
	}
	return &params, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("visionflow.max_running", 8)
	v.SetDefault("visionflow.num_threads", 4)
}

// Validate rejects run parameters the admission gate and worker pool
// cannot operate under.
func (p RunParameters) Validate() error {
	if p.MaxRunning <= 0 {
		return fmt.Errorf("max_running must be positive, got %d", p.MaxRunning)
	}
	if p.NumThreads <= 0 {
		return fmt.Errorf("num_threads must be positive, got %d", p.NumThreads)
	}
	return nil
}

// Interpolate expands the string-option escapes of spec.md §6: %N (source
// name), %i (short pipeline id), and the strftime-style timestamp escapes
// %Y %m %d %H %M %S, evaluated against at.
func Interpolate(s, sourceName, pipelineID string, at time.Time) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'N':
			b.WriteString(sourceName)
		case 'i':
			b.WriteString(pipelineID)
		case 'Y':
			b.WriteString(strconv.Itoa(at.Year()))
		case 'm':
			b.WriteString(pad2(int(at.Month())))
		case 'd':
			b.WriteString(pad2(at.Day()))
		case 'H':
			b.WriteString(pad2(at.Hour()))
		case 'M':
			b.WriteString(pad2(at.Minute()))
		case 'S':
			b.WriteString(pad2(at.Second()))
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
