package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/Bullochman/hivegrid/internal/app"
	"github.com/Bullochman/hivegrid/internal/config"
)

const usage = `usage: hivectl <command> [flags] [args]

grid:      list | view | coords
mutations: assign NAME COL ROW | move FROM TO | swap NAME1 NAME2 | unassign NAME
           delete NAME | edit -name NEW [-old OLD] [-rank R] [-hq N] [-power P] [-notes T]
           auto [-sort rank,power] | import [-policy always|dominance] FILE.csv
           migrate -plan PLAN.yaml [-archive LABEL] [FILE.csv] | clear [-mode assignments|all]
           set-name NAME | set-mg X Y
history:   state [-normalize] | snapshots | restore [-rev N] | audit [-limit N]
           archive [-label LABEL [-rev N]]
index:     db [roster|audits|snapshots] [-limit N]

common flags: -data DIR -layout hive.yaml -disable_db`

// usageError exits with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error { return usageError{msg: fmt.Sprintf(format, args...)} }

type cli struct {
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	cmds := map[string]func([]string) error{
		"list":      c.listCmd,
		"view":      c.viewCmd,
		"coords":    c.coordsCmd,
		"assign":    c.assignCmd,
		"move":      c.moveCmd,
		"swap":      c.swapCmd,
		"unassign":  c.unassignCmd,
		"delete":    c.deleteCmd,
		"edit":      c.editCmd,
		"auto":      c.autoCmd,
		"import":    c.importCmd,
		"migrate":   c.migrateCmd,
		"clear":     c.clearCmd,
		"set-name":  c.setNameCmd,
		"set-mg":    c.setMGCmd,
		"state":     c.stateCmd,
		"snapshots": c.snapshotsCmd,
		"restore":   c.restoreCmd,
		"audit":     c.auditCmd,
		"archive":   c.archiveCmd,
		"db":        c.dbCmd,
	}
	name := args[0]
	fn, ok := cmds[name]
	if !ok {
		if name != "help" && name != "-h" && name != "--help" {
			fmt.Fprintf(stderr, "unknown command %q\n", name)
		}
		fmt.Fprintln(stderr, usage)
		return 2
	}
	err := fn(args[1:])
	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 2
	case errors.As(err, &ue):
		fmt.Fprintln(stderr, ue.msg)
		return 2
	default:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}

type common struct {
	dataDir    *string
	layoutPath *string
	disableDB  *bool
}

func (c *cli) flags(name string) (*flag.FlagSet, *common) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs, &common{
		dataDir:    fs.String("data", ".", "directory holding hive_config.json"),
		layoutPath: fs.String("layout", "", "hive.yaml layout defaults (optional)"),
		disableDB:  fs.Bool("disable_db", false, "skip the SQLite index"),
	}
}

// open wires the same stack as the server so CLI edits produce the same
// exports, snapshots and audit entries.
func (c *cli) open(cm *common) (*app.Runtime, error) {
	env, err := config.LoadServer()
	if err != nil {
		return nil, err
	}
	return app.Open(app.Options{
		DataDir:      *cm.dataDir,
		LayoutPath:   *cm.layoutPath,
		Source:       "cli",
		SnapshotKeep: env.SnapshotKeep,
		DisableDB:    *cm.disableDB || env.DisableDB,
		R2:           env.R2,
		Logger:       log.New(c.stderr, "[hivectl] ", log.LstdFlags),
	})
}

func (c *cli) printf(format string, args ...any) { fmt.Fprintf(c.stdout, format, args...) }

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// positional checks the argument count after flags.
func positional(fs *flag.FlagSet, n int, form string) ([]string, error) {
	if fs.NArg() != n {
		return nil, usagef("usage: hivectl %s %s", fs.Name(), form)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = strings.TrimSpace(fs.Arg(i))
	}
	return out, nil
}

// parseFlags turns flag errors into usage errors. The flag package has
// already printed the details.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{msg: "usage: hivectl " + fs.Name() + " -h for flags"}
	}
	return nil
}
