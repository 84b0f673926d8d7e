// Package buildstr formats the human-readable status lines spec.md §6
// describes: "name [<< sources] [>> targets]" for a build, "targets" for
// a clear. These exist purely for status reporting - nothing in the core
// parses them back.
//
// Grounded directly on original_source/aql/nodes/aql_node.py's
// _getTraceArg/_joinArgs/_getBuildStr/_getClearStr: per-arg truncation
// (single line, 64 chars in brief mode, 256 otherwise) and the
// "first ... last" elision once a brief-mode join would exceed 128
// characters. The Python original also basename-only's file paths in
// brief mode by inspecting each value's runtime type (FileValueBase vs.
// plain string); Go's builder.Builder.GetBuildStrArgs already returns
// plain strings the builder chose to report, so that basename decision
// belongs to the builder (see Basename, a small helper a builder can use
// when assembling its own args) rather than to this package, which has
// no way to tell a path string from any other string.
package buildstr

import (
	"path/filepath"
	"strings"
)

const (
	briefArgLen = 64
	fullArgLen  = 256
	joinBudget  = 128
)

// Basename returns filepath.Base(path) - a convenience for a Builder
// implementation that wants brief-mode path arguments, matching the
// Python original's os.path.basename call for FileValueBase args.
func Basename(path string) string { return filepath.Base(path) }

// ArgsProvider is the subset of Node/BatchNode buildstr needs: the three
// string groups a Builder reports via GetBuildStrArgs.
type ArgsProvider interface {
	GetBuildStrArgs(brief bool) (name, sources, targets []string)
}

// Build returns the full build status line for node.
func Build(node ArgsProvider, brief bool) string {
	name, sources, targets := node.GetBuildStrArgs(brief)
	return BuildFromArgs(name, sources, targets, brief)
}

// BuildFromArgs is Build's pure, dependency-free core: useful for
// testing and for callers that already have the three string groups.
func BuildFromArgs(name, sources, targets []string, brief bool) string {
	result := joinArgs(name, brief)
	if s := joinArgs(sources, brief); s != "" {
		result += " << " + s
	}
	if t := joinArgs(targets, brief); t != "" {
		result += " >> " + t
	}
	return result
}

// Clear returns the clear status line for node: just its targets.
func Clear(node ArgsProvider, brief bool) string {
	_, _, targets := node.GetBuildStrArgs(brief)
	return ClearFromArgs(targets, brief)
}

// ClearFromArgs is Clear's pure core.
func ClearFromArgs(targets []string, brief bool) string {
	return joinArgs(targets, brief)
}

// truncateArg normalizes one argument: trimmed, cut at the first
// newline, and length-capped with an ellipsis, the cap depending on
// brief mode.
func truncateArg(value string, brief bool) string {
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, '\n'); i != -1 {
		value = value[:i]
	}

	maxLen := fullArgLen
	if brief {
		maxLen = briefArgLen
	}
	if len(value) > maxLen {
		value = value[:maxLen] + "..."
	}
	return value
}

// joinArgs truncates and joins values, eliding the middle of a long
// brief-mode list as "first ... last" once the joined length would
// exceed joinBudget - exactly _joinArgs's wish_size elision, which only
// engages in brief mode with at least three arguments.
func joinArgs(values []string, brief bool) string {
	args := make([]string, 0, len(values))
	for _, v := range values {
		if t := truncateArg(v, brief); t != "" {
			args = append(args, t)
		}
	}

	if !brief || len(args) < 3 {
		return strings.Join(args, " ")
	}

	first := args[0]
	last := args[len(args)-1]
	middle := args[1 : len(args)-1]

	elided := []string{first}
	size := len(first) + len(last)
	for _, arg := range middle {
		size += len(arg)
		if size > joinBudget {
			elided = append(elided, "...")
			break
		}
		elided = append(elided, arg)
	}
	elided = append(elided, last)

	return strings.Join(elided, " ")
}
