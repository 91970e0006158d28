package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/cart"
	"github.com/tayloree/pricecli/internal/catalog"
	"golang.org/x/term"
)

const (
	// ExitSuccess is returned when the command succeeds.
	ExitSuccess = 0
	// ExitNotFound is returned when the requested products, URLs or cart lines are not available.
	ExitNotFound = 1
	// ExitInvalidArgs is returned when the command input is invalid.
	ExitInvalidArgs = 2
	// ExitUpstream is returned when the backend is unreachable or fails.
	ExitUpstream = 3
	// ExitInternal is returned for unexpected internal failures.
	ExitInternal = 4
)

const (
	codeInvalidArgs = "INVALID_ARGS"
	codeNotFound    = "NOT_FOUND"
	codeUpstream    = "UPSTREAM_ERROR"
	codeInternal    = "INTERNAL_ERROR"
)

var exitCodes = map[string]int{
	codeInvalidArgs: ExitInvalidArgs,
	codeNotFound:    ExitNotFound,
	codeUpstream:    ExitUpstream,
	codeInternal:    ExitInternal,
}

type cliError struct {
	Code        string
	Message     string
	Suggestions []string
	ExitCode    int
}

func (e *cliError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func newCLIError(code, message string, suggestions ...string) *cliError {
	return &cliError{Code: code, Message: message, Suggestions: suggestions, ExitCode: exitCodes[code]}
}

func invalidArgsError(message string, suggestions ...string) error {
	return newCLIError(codeInvalidArgs, message, suggestions...)
}

func notFoundError(message string, suggestions ...string) error {
	return newCLIError(codeNotFound, message, suggestions...)
}

func upstreamError(action string, err error) error {
	return newCLIError(codeUpstream, fmt.Sprintf("%s: %v", action, err), upstreamHints(err)...)
}

func upstreamHints(err error) []string {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr) && apiErr.Status < 500:
		return []string{"The backend rejected the request; check the ids and values you passed."}
	case errors.Is(err, api.ErrTransport):
		return []string{"Check that the backend is running, or point --api at it."}
	default:
		return []string{"Retry in a moment."}
	}
}

// classifyCLIError maps the errors pricecli's packages return onto exit
// codes. Anything unrecognised is internal.
func classifyCLIError(err error) *cliError {
	if err == nil {
		return nil
	}

	var typed *cliError
	if errors.As(err, &typed) {
		return typed
	}

	var apiErr *api.Error
	msg := strings.TrimSpace(err.Error())
	switch {
	case errors.As(err, &apiErr),
		errors.Is(err, api.ErrTransport),
		errors.Is(err, api.ErrDecode),
		errors.Is(err, context.DeadlineExceeded):
		return newCLIError(codeUpstream, msg, upstreamHints(err)...)
	case errors.Is(err, cart.ErrItemNotFound):
		return newCLIError(codeNotFound, msg, "pricecli cart")
	case errors.Is(err, cart.ErrUnknownProduct),
		errors.Is(err, catalog.ErrNoProductURLs):
		return newCLIError(codeNotFound, msg)
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, catalog.ErrNoSearchTarget):
		return newCLIError(codeInvalidArgs, msg)
	default:
		return newCLIError(codeInternal, msg, "Run `pricecli --help` for usage details.")
	}
}

// flagError turns pflag's parse failures into INVALID_ARGS with the flag's
// own usage line as the hint.
func flagError(cmd *cobra.Command, err error) error {
	var (
		missing  *pflag.NotExistError
		noValue  *pflag.ValueRequiredError
		badValue *pflag.InvalidValueError
	)
	hint := fmt.Sprintf("Run `%s --help` for the flags it accepts.", cmd.CommandPath())
	switch {
	case errors.As(err, &noValue):
		f := noValue.GetFlag()
		return invalidArgsError(err.Error(), fmt.Sprintf("`--%s` expects a value: %s", f.Name, f.Usage))
	case errors.As(err, &badValue):
		f := badValue.GetFlag()
		return invalidArgsError(err.Error(), fmt.Sprintf("`--%s`: %s", f.Name, f.Usage), hint)
	case errors.As(err, &missing):
		return invalidArgsError(err.Error(), hint)
	default:
		return invalidArgsError(err.Error(), hint)
	}
}

// usageArgs wraps a cobra positional validator so a wrong argument count is
// reported as INVALID_ARGS with the command's usage line.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return invalidArgsError(err.Error(), "usage: "+cmd.UseLine())
		}
		return nil
	}
}

// noPositionalArgs rejects any argument as an unknown subcommand of cmd.
func noPositionalArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	return invalidArgsError(
		fmt.Sprintf("unknown command %q for %q", args[0], cmd.CommandPath()),
		commandSuggestions(cmd, args[0])...,
	)
}

// scrapeArgs accepts only absolute http(s) URLs, so a mistyped command is
// reported instead of being crawled as a store.
func scrapeArgs(cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		u, err := url.Parse(arg)
		if err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			continue
		}
		return invalidArgsError(
			fmt.Sprintf("unknown command %q for %q", arg, cmd.CommandPath()),
			commandSuggestions(cmd, arg)...,
		)
	}
	return nil
}

type jsonErrorPayload struct {
	Error jsonErrorBody `json:"error"`
}

type jsonErrorBody struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
	ExitCode    int      `json:"exitCode"`
}

func printCLIErrorJSON(w io.Writer, err *cliError) error {
	if err == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(jsonErrorPayload{Error: jsonErrorBody(*err)})
}

func formatCLIErrorText(err *cliError) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "error[%s]: %s", strings.ToLower(err.Code), err.Message)
	if len(err.Suggestions) > 0 {
		b.WriteString("\nsuggestions:")
		for _, suggestion := range err.Suggestions {
			b.WriteString("\n  " + suggestion)
		}
	}
	return b.String()
}

func isTTY(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func hasJSONPreference(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if arg == "--json" || strings.HasPrefix(arg, "--json=") {
			return true
		}
	}
	return false
}

func hasHelpRequest(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if arg == "-h" || arg == "--help" {
			return true
		}
	}
	return false
}

// shouldAutoJSON switches piped runs to JSON, except for help and shell
// completion output which are meant to be read as text.
func shouldAutoJSON(args []string, stdoutIsTTY bool) bool {
	if stdoutIsTTY || len(args) == 0 {
		return false
	}
	if hasJSONPreference(args) || hasHelpRequest(args) {
		return false
	}
	switch firstCommand(args) {
	case "completion", "help":
		return false
	default:
		return true
	}
}

type quickStartJSON struct {
	Name     string   `json:"name"`
	Usage    string   `json:"usage"`
	Commands []string `json:"commands"`
	Examples []string `json:"examples"`
}

func quickStart(root *cobra.Command) quickStartJSON {
	qs := quickStartJSON{
		Name:  root.Name(),
		Usage: root.Name() + " [URL...] [flags] | <command> [flags]",
		Examples: []string{
			`pricecli --query "ssd 1tb" --limit 10`,
			`pricecli search "rtx 4060" --max-price 2500`,
			"pricecli cart add 7 --qty 2",
		},
	}
	for _, c := range root.Commands() {
		if c.IsAvailableCommand() {
			qs.Commands = append(qs.Commands, c.Name())
		}
	}
	return qs
}

func printQuickStart(w io.Writer, asJSON bool) error {
	qs := quickStart(rootCmd)
	if asJSON {
		return json.NewEncoder(w).Encode(qs)
	}

	var flags []string
	visit := func(f *pflag.Flag) {
		if f.Name != "help" && !f.Hidden {
			flags = append(flags, "--"+f.Name)
		}
	}
	rootCmd.PersistentFlags().VisitAll(visit)
	rootCmd.LocalNonPersistentFlags().VisitAll(visit)

	_, err := fmt.Fprintf(w, "%s\nusage: %s\ncommands: %s\nexamples:\n  %s\nflags: %s\n",
		qs.Name,
		qs.Usage,
		strings.Join(qs.Commands, ", "),
		strings.Join(qs.Examples, "\n  "),
		strings.Join(flags, " "),
	)
	return err
}
