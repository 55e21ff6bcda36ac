package logging

type Config struct {
	Format string
	Level  string
	Output string
}

const (
	// FormatPretty leaves diagnostics to the command's own text
	// output; no structured log stream is produced.
	FormatPretty = "pretty"
	// FormatJSONL emits one JSON object per event, for audit trails
	// shipped alongside evidence artifacts.
	FormatJSONL = "jsonl"
)

func DefaultConfig() Config {
	return Config{
		Format: FormatPretty,
		Level:  LevelInfo,
		Output: "stderr",
	}
}

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

func levelPriority(level string) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1 // default to info
	}
}
