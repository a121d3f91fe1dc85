package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore applies the per-level sampling rates from cfg. Levels without
// a rate pass through unsampled and Error or above is never sampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	sampled := make(map[zapcore.Level]bool, len(cfg.Levels))
	cores := make([]zapcore.Core, 0, len(cfg.Levels)+1)

	for level, rate := range cfg.Levels {
		if level >= zapcore.ErrorLevel {
			continue
		}
		sampled[level] = true
		only := level
		cores = append(cores, zapcore.NewSamplerWithOptions(
			&levelCore{Core: core, match: func(l zapcore.Level) bool { return l == only }},
			cfg.Tick.Duration(),
			rate.Initial,
			rate.Thereafter,
		))
	}

	cores = append(cores, &levelCore{Core: core, match: func(l zapcore.Level) bool { return !sampled[l] }})
	return zapcore.NewTee(cores...)
}

// levelCore only accepts entries whose level satisfies match.
type levelCore struct {
	zapcore.Core
	match func(zapcore.Level) bool
}

func (c *levelCore) Enabled(lvl zapcore.Level) bool {
	return c.match(lvl) && c.Core.Enabled(lvl)
}

func (c *levelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), match: c.match}
}
