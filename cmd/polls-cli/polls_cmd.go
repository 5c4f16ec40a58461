package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

func requireFlag(stderr io.Writer, name, value string) bool {
	if strings.TrimSpace(value) == "" {
		fmt.Fprintf(stderr, "Error: --%s is required\n", name)
		return false
	}
	return true
}

// flagSet reports whether the named flag appeared on the command line.
func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func runCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("create", stderr)
	var (
		from, content, currency, minBalance string
		options                             uint
		start, end                          uint64
	)
	fs.StringVar(&from, "from", "", "creator bech32 address")
	fs.StringVar(&content, "content", "", "content reference (e.g. an IPFS CID)")
	fs.UintVar(&options, "options", 2, "number of options")
	fs.StringVar(&currency, "currency", "native", "voting currency (native or asset:<id>)")
	fs.Uint64Var(&start, "start", 0, "first block votes are accepted")
	fs.Uint64Var(&end, "end", 0, "block at which the poll closes")
	fs.StringVar(&minBalance, "min-balance", "0", "minimum balance required to vote")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlag(stderr, "from", from) || !requireFlag(stderr, "content", content) {
		return 1
	}
	if options > 255 {
		fmt.Fprintln(stderr, "Error: --options must be at most 255")
		return 1
	}
	params := map[string]interface{}{
		"from":       from,
		"contentRef": content,
		"options":    options,
		"currency":   currency,
		"start":      start,
		"end":        end,
		"minBalance": minBalance,
	}
	return invoke("polls_create", params, true, stdout, stderr)
}

func runUpdate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("update", stderr)
	var (
		from, content, currency, minBalance string
		id, start, end                      uint64
		options                             uint
	)
	fs.StringVar(&from, "from", "", "creator bech32 address")
	fs.StringVar(&currency, "currency", "native", "voting currency")
	fs.Uint64Var(&id, "id", 0, "poll id")
	fs.StringVar(&content, "content", "", "new content reference")
	fs.UintVar(&options, "options", 0, "option count (must match the existing poll)")
	fs.Uint64Var(&start, "start", 0, "new start block")
	fs.Uint64Var(&end, "end", 0, "new end block")
	fs.StringVar(&minBalance, "min-balance", "", "new minimum balance")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlag(stderr, "from", from) {
		return 1
	}
	if id == 0 {
		fmt.Fprintln(stderr, "Error: --id is required")
		return 1
	}
	params := map[string]interface{}{
		"from":     from,
		"currency": currency,
		"id":       id,
	}
	if flagSet(fs, "content") {
		params["contentRef"] = content
	}
	if flagSet(fs, "options") {
		params["options"] = options
	}
	if flagSet(fs, "start") {
		params["start"] = start
	}
	if flagSet(fs, "end") {
		params["end"] = end
	}
	if flagSet(fs, "min-balance") {
		params["minBalance"] = minBalance
	}
	return invoke("polls_update", params, true, stdout, stderr)
}

func runVote(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("vote", stderr)
	var (
		from, currency string
		id             uint64
		option         int
	)
	fs.StringVar(&from, "from", "", "voter bech32 address")
	fs.StringVar(&currency, "currency", "native", "voting currency")
	fs.Uint64Var(&id, "id", 0, "poll id")
	fs.IntVar(&option, "option", -1, "option index")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlag(stderr, "from", from) {
		return 1
	}
	if id == 0 {
		fmt.Fprintln(stderr, "Error: --id is required")
		return 1
	}
	if option < 0 || option > 255 {
		fmt.Fprintln(stderr, "Error: --option must be within 0..255")
		return 1
	}
	params := map[string]interface{}{
		"from":     from,
		"currency": currency,
		"id":       id,
		"option":   option,
	}
	return invoke("polls_vote", params, true, stdout, stderr)
}

func runCancel(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("cancel", stderr)
	var (
		from, currency string
		id             uint64
	)
	fs.StringVar(&from, "from", "", "creator bech32 address")
	fs.StringVar(&currency, "currency", "native", "voting currency")
	fs.Uint64Var(&id, "id", 0, "poll id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlag(stderr, "from", from) {
		return 1
	}
	if id == 0 {
		fmt.Fprintln(stderr, "Error: --id is required")
		return 1
	}
	params := map[string]interface{}{"from": from, "currency": currency, "id": id}
	return invoke("polls_emergencyCancel", params, true, stdout, stderr)
}

func runGet(args []string, stdout, stderr io.Writer) int {
	return runPollQuery("get", "polls_get", args, stdout, stderr)
}

func runVoters(args []string, stdout, stderr io.Writer) int {
	return runPollQuery("voters", "polls_voters", args, stdout, stderr)
}

func runResult(args []string, stdout, stderr io.Writer) int {
	return runPollQuery("result", "polls_winningOption", args, stdout, stderr)
}

// runPollQuery sends a read-only call addressed by currency and id.
func runPollQuery(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr)
	var (
		currency string
		id       uint64
	)
	fs.StringVar(&currency, "currency", "native", "voting currency")
	fs.Uint64Var(&id, "id", 0, "poll id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if id == 0 {
		fmt.Fprintln(stderr, "Error: --id is required")
		return 1
	}
	return invoke(method, map[string]interface{}{"currency": currency, "id": id}, false, stdout, stderr)
}

func runList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("list", stderr)
	var (
		currency string
		cursor   uint64
		limit    int
	)
	fs.StringVar(&currency, "currency", "native", "voting currency")
	fs.Uint64Var(&cursor, "cursor", 0, "resume from this cursor")
	fs.IntVar(&limit, "limit", 20, "page size")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	params := map[string]interface{}{"currency": currency, "limit": limit}
	if cursor > 0 {
		params["cursor"] = cursor
	}
	return invoke("polls_list", params, false, stdout, stderr)
}

func runVoteOf(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("vote-of", stderr)
	var (
		voter, currency string
		id              uint64
	)
	fs.StringVar(&voter, "voter", "", "voter bech32 address")
	fs.StringVar(&currency, "currency", "native", "voting currency")
	fs.Uint64Var(&id, "id", 0, "poll id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlag(stderr, "voter", voter) {
		return 1
	}
	params := map[string]interface{}{"voter": voter, "currency": currency, "id": id}
	return invoke("polls_voteOf", params, false, stdout, stderr)
}
