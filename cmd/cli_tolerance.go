package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// bareFlagsAnnotation marks commands whose positional arguments are only
// URLs, so a bare `json` or `raw` there can safely mean the flag.
const bareFlagsAnnotation = "pricecli/bare-flags"

// flagAliases maps words people reach for to the flag pricecli registers.
var flagAliases = map[string]string{
	"backend":   "api",
	"base-url":  "api",
	"api-url":   "api",
	"verbosity": "log-level",
	"keyword":   "query",
	"cat":       "category",
	"min":       "min-price",
	"max":       "max-price",
	"price-min": "min-price",
	"price-max": "max-price",
	"top":       "limit",
	"workers":   "concurrency",
	"temp":      "temperature",
	"url":       "search-url",
	"quantity":  "qty",
}

// argVocabulary is the set of flags and commands the rewriter may correct
// tokens into, read from the registered command tree.
type argVocabulary struct {
	root       *cobra.Command
	flags      map[string]*pflag.Flag
	shorthands map[string]*pflag.Flag
	flagNames  []string
}

func allowBareFlags(c *cobra.Command) {
	if c.Annotations == nil {
		c.Annotations = make(map[string]string)
	}
	c.Annotations[bareFlagsAnnotation] = "true"
}

func vocabularyOf(root *cobra.Command) argVocabulary {
	root.InitDefaultHelpCmd()
	v := argVocabulary{
		root:       root,
		flags:      make(map[string]*pflag.Flag),
		shorthands: make(map[string]*pflag.Flag),
	}

	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.InitDefaultHelpFlag()
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if _, seen := v.flags[f.Name]; !seen {
				v.flags[f.Name] = f
				v.flagNames = append(v.flagNames, f.Name)
			}
			if f.Shorthand != "" {
				v.shorthands[f.Shorthand] = f
			}
		})
		for _, child := range c.Commands() {
			walk(child)
		}
	}
	walk(root)
	sort.Strings(v.flagNames)
	return v
}

func takesValue(f *pflag.Flag) bool {
	return f.NoOptDefVal == ""
}

func normalizeCLIArgs(args []string) ([]string, []string) {
	return vocabularyOf(rootCmd).rewrite(args)
}

// rewrite corrects near-miss flag spellings and command typos. Flag values
// and everything after `--` pass through untouched.
func (v argVocabulary) rewrite(args []string) ([]string, []string) {
	out := make([]string, 0, len(args))
	var notes []string
	scope := v.root
	bare := true

	for i := 0; i < len(args); i++ {
		tok := args[i]
		if tok == "--" {
			out = append(out, args[i:]...)
			break
		}

		if fixed, f := v.rewriteFlag(tok); f != nil || strings.HasPrefix(tok, "-") {
			if fixed != tok {
				notes = append(notes, fmt.Sprintf("interpreted `%s` as `%s`; use `%s` next time.", tok, fixed, fixed))
			}
			out = append(out, fixed)
			if f != nil && takesValue(f) && !strings.Contains(fixed, "=") && i+1 < len(args) {
				i++
				out = append(out, args[i])
			}
			continue
		}

		if scope != nil {
			if next, name, ok := resolveChild(scope, tok); ok {
				if name != tok {
					notes = append(notes, fmt.Sprintf("interpreted command `%s` as `%s`; use `%s` next time.", tok, name, name))
				}
				out = append(out, name)
				scope = childScope(next)
				bare = next.Annotations[bareFlagsAnnotation] == "true"
				continue
			}
		}

		if bare {
			if f, ok := v.exactFlag(tok); ok {
				fixed := "--" + f.Name
				notes = append(notes, fmt.Sprintf("interpreted `%s` as `%s`; use `%s` next time.", tok, fixed, fixed))
				out = append(out, fixed)
				if takesValue(f) && i+1 < len(args) {
					i++
					out = append(out, args[i])
				}
				continue
			}
		}
		out = append(out, tok)
	}
	return out, notes
}

// rewriteFlag handles `--name[=v]`, `-name[=v]`, `-x` and `name=v`. It
// returns the flag the token resolves to, or nil when it doesn't name one.
func (v argVocabulary) rewriteFlag(tok string) (string, *pflag.Flag) {
	switch {
	case strings.HasPrefix(tok, "--"):
		name, rest := splitFlag(tok[2:])
		if f, ok := v.resolveFlag(name); ok {
			return "--" + f.Name + rest, f
		}
	case strings.HasPrefix(tok, "-") && len(tok) == 2:
		if f, ok := v.shorthands[tok[1:]]; ok {
			return tok, f
		}
	case strings.HasPrefix(tok, "-"):
		name, rest := splitFlag(tok[1:])
		if f, ok := v.resolveFlag(name); ok {
			return "--" + f.Name + rest, f
		}
	case strings.Contains(tok, "="):
		name, rest := splitFlag(tok)
		if f, ok := v.resolveFlag(name); ok {
			return "--" + f.Name + rest, f
		}
	}
	return tok, nil
}

func (v argVocabulary) exactFlag(raw string) (*pflag.Flag, bool) {
	name := canonicalFlagWord(raw)
	if alias, ok := flagAliases[name]; ok {
		name = alias
	}
	f, ok := v.flags[name]
	return f, ok
}

func (v argVocabulary) resolveFlag(raw string) (*pflag.Flag, bool) {
	if f, ok := v.exactFlag(raw); ok {
		return f, true
	}
	if name, ok := closestMatch(canonicalFlagWord(raw), v.flagNames, 2); ok {
		return v.flags[name], true
	}
	return nil, false
}

func canonicalFlagWord(raw string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-")
}

// firstCommand returns the first positional token, skipping flag values.
func (v argVocabulary) firstCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		tok := args[i]
		if tok == "--" {
			return ""
		}
		if !strings.HasPrefix(tok, "-") {
			return tok
		}
		fixed, f := v.rewriteFlag(tok)
		if f != nil && takesValue(f) && !strings.Contains(fixed, "=") {
			i++
		}
	}
	return ""
}

func firstCommand(args []string) string {
	return vocabularyOf(rootCmd).firstCommand(args)
}

// resolveChild finds the subcommand of scope that tok names, by name, alias
// or a close spelling. The returned token keeps an exact alias as typed.
func resolveChild(scope *cobra.Command, tok string) (*cobra.Command, string, bool) {
	name := strings.ToLower(strings.TrimSpace(tok))
	var names []string
	byName := make(map[string]*cobra.Command)
	for _, child := range scope.Commands() {
		if !child.IsAvailableCommand() && child.Name() != "help" {
			continue
		}
		if child.Name() == name || child.HasAlias(name) {
			return child, name, true
		}
		names = append(names, child.Name())
		byName[child.Name()] = child
	}
	if suggestion, ok := closestMatch(name, names, 2); ok {
		return byName[suggestion], suggestion, true
	}
	return nil, "", false
}

// childScope is where the next command token is looked up after c: help
// takes a sibling command, everything else its own subcommands.
func childScope(c *cobra.Command) *cobra.Command {
	if c.Name() == "help" && c.HasParent() {
		return c.Parent()
	}
	if c.HasAvailableSubCommands() {
		return c
	}
	return nil
}

func commandSuggestions(scope *cobra.Command, bad string) []string {
	var names []string
	for _, child := range scope.Commands() {
		if child.IsAvailableCommand() {
			names = append(names, child.Name())
		}
	}
	if suggestion, ok := closestMatch(strings.ToLower(bad), names, 3); ok {
		return []string{fmt.Sprintf("Did you mean `%s %s`?", scope.CommandPath(), suggestion)}
	}
	if len(names) > 0 {
		return []string{fmt.Sprintf("Available: %s.", strings.Join(names, ", "))}
	}
	return []string{fmt.Sprintf("Run `%s --help`.", scope.CommandPath())}
}

func splitFlag(value string) (string, string) {
	if name, val, ok := strings.Cut(value, "="); ok {
		return name, "=" + val
	}
	return value, ""
}

func closestMatch(target string, candidates []string, maxDistance int) (string, bool) {
	best := ""
	bestDist := maxDistance + 1
	for _, candidate := range candidates {
		if d := levenshtein(target, candidate); d < bestDist {
			bestDist = d
			best = candidate
		}
	}
	return best, bestDist <= maxDistance
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
