package gates

import (
	"fmt"
	"regexp"

	"github.com/google/cel-go/cel"
)

// CheckParams validates a rule's parameter block without evaluating the
// gate, so lint can reject regexes and CEL predicates that would
// otherwise surface as engine failures at audit time. One string per
// problem, empty when the params are sound.
func CheckParams(engine string, params map[string]any) []string {
	switch engine {
	case EngineTextual:
		return checkTextualParams(params)
	case EngineProcessState:
		return checkProcessParams(params)
	case EngineRepoContext:
		return checkRepoContextParams(params)
	case EngineJudged:
		if paramString(params, "question") == "" {
			return []string{fmt.Sprintf("%s: missing required param %q", EngineJudged, "question")}
		}
	case EngineStructural:
		// Plain strings against parsed syntax; nothing compiles here.
	}
	return nil
}

func checkTextualParams(params map[string]any) []string {
	var problems []string
	pattern := paramString(params, "pattern")
	if pattern == "" {
		problems = append(problems, fmt.Sprintf("%s: missing required param %q", EngineTextual, "pattern"))
	} else if _, err := regexp.Compile(pattern); err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", EngineTextual, err))
	}
	if mode := paramString(params, "mode"); mode != "" && mode != "forbid" && mode != "require" {
		problems = append(problems, fmt.Sprintf("%s: unknown mode %q", EngineTextual, mode))
	}
	return problems
}

func checkProcessParams(params map[string]any) []string {
	predicate := paramString(params, "predicate")
	if predicate == "" {
		return nil
	}
	env, err := cel.NewEnv(
		cel.Variable("state", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", EngineProcessState, err)}
	}
	if _, issues := env.Compile(predicate); issues != nil && issues.Err() != nil {
		return []string{fmt.Sprintf("%s: CEL compile error: %v", EngineProcessState, issues.Err())}
	}
	return nil
}

func checkRepoContextParams(params map[string]any) []string {
	switch check := paramString(params, "check"); check {
	case "unused-public-symbols", "undeclared-capabilities", "duplicate-symbols":
		return nil
	case "":
		return []string{fmt.Sprintf("%s: missing required param %q", EngineRepoContext, "check")}
	default:
		return []string{fmt.Sprintf("%s: unknown check %q", EngineRepoContext, check)}
	}
}
