// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sqlite3-fiddle runs SQL against a SQLite database and prints the
// results.
package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/threez/sqlite3-fiddle/sqlite3"
)

// CLI defines the command-line interface using Kong
var CLI struct {
	DB          string        `name:"db" short:"d" env:"SQLITE3_FIDDLE_DB" default:":memory:" help:"Database file or URI"`
	Verbose     bool          `name:"verbose" short:"v" help:"Verbose output"`
	ReadOnly    bool          `name:"readonly" help:"Open the database read-only"`
	BusyTimeout time.Duration `name:"busy-timeout" default:"5s" help:"How long to wait for locks held by other connections"`
	Trace       bool          `name:"trace" help:"Log every statement as it starts running"`

	Exec    ExecCmd    `cmd:"" help:"Execute one or more SQL statements"`
	Query   QueryCmd   `cmd:"" help:"Run a query and print its rows"`
	Shell   ShellCmd   `cmd:"" help:"Start the sqlite3 shell on the database"`
	Version VersionCmd `cmd:"" help:"Print the SQLite library version"`
}

// ExecCmd executes SQL statements, reading them from stdin if SQL is "-".
type ExecCmd struct {
	Args []string `name:"arg" short:"a" help:"Positional parameter values, bound as text"`
	SQL  string   `arg:"" help:"SQL text, or - to read from stdin"`
}

func (e *ExecCmd) Run(log *logrus.Entry) error {
	sql, err := readSQL(e.SQL)
	if err != nil {
		return err
	}
	c, err := openDB(log)
	if err != nil {
		return err
	}
	defer c.Close()

	if err = c.Exec(sql, textArgs(e.Args)...); err != nil {
		return errors.Wrap(err, "exec")
	}
	n, _ := c.TotalChanges()
	log.WithField("changes", n).Info("done")
	return nil
}

// QueryCmd runs the first statement in SQL and prints its rows.
type QueryCmd struct {
	Args   []string `name:"arg" short:"a" help:"Positional parameter values, bound as text"`
	Map    bool     `name:"map" short:"m" help:"Print each row as column=value pairs"`
	Header bool     `name:"header" default:"true" negatable:"" help:"Print column names"`
	SQL    string   `arg:"" help:"SQL text, or - to read from stdin"`
}

func (q *QueryCmd) Run(log *logrus.Entry) error {
	sql, err := readSQL(q.SQL)
	if err != nil {
		return err
	}
	var opts []sqlite3.Option
	if q.Map {
		opts = append(opts, sqlite3.ResultsAsMap())
	}
	c, err := openDB(log, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	rs, err := c.Query(sql, textArgs(q.Args)...)
	if err != nil {
		return errors.Wrap(err, "query")
	}
	defer rs.Close()
	return printRows(os.Stdout, rs, q.Header)
}

// printRows writes all remaining rows of rs to w.
func printRows(w io.Writer, rs *sqlite3.ResultSet, header bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if cols, err := rs.Columns(); err == nil && header {
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	err := rs.Each(func(rec sqlite3.Record) error {
		fields := make([]string, 0, rec.Len())
		for _, key := range rec.Keys() {
			v, _ := rec.Get(key)
			if _, isMap := rec.(sqlite3.RowMap); isMap {
				fields = append(fields, key+"="+v.String())
			} else {
				fields = append(fields, v.String())
			}
		}
		_, err := fmt.Fprintln(tw, strings.Join(fields, "\t"))
		return err
	})
	if err != nil {
		return errors.Wrap(err, "query")
	}
	return tw.Flush()
}

// ShellCmd hands the database over to the sqlite3 command-line shell.
type ShellCmd struct {
	Args []string `arg:"" optional:"" passthrough:"" help:"Extra arguments for sqlite3"`
}

func (s *ShellCmd) Run(log *logrus.Entry) error {
	args := append([]string{"sqlite3"}, s.Args...)
	if CLI.ReadOnly {
		args = append(args, "-readonly")
	}
	args = append(args, CLI.DB)
	if rc := shell(args); rc != 0 {
		log.WithField("status", rc).Debug("sqlite3 exited")
		os.Exit(rc)
	}
	return nil
}

// shell executes the sqlite3 command with the specified arguments.
func shell(args []string) int {
	path, err := exec.LookPath("sqlite3")
	if err != nil {
		return 127 // sqlite3 not found
	}
	cmd := exec.Command(path)
	cmd.Args = args
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exit, ok := err.(*exec.ExitError); ok {
			return exit.ExitCode()
		}
		return 127
	}
	return 0
}

// VersionCmd prints the library version.
type VersionCmd struct{}

func (v *VersionCmd) Run() error {
	fmt.Println(sqlite3.Version())
	return nil
}

// readSQL returns sql, or the contents of stdin if sql is "-".
func readSQL(sql string) (string, error) {
	if sql != "-" {
		return sql, nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", errors.Wrap(err, "read stdin")
	}
	return string(b), nil
}

func textArgs(args []string) []interface{} {
	vals := make([]interface{}, len(args))
	for i, a := range args {
		vals[i] = a
	}
	return vals
}

// openDB opens CLI.DB with the global flags applied and installs the REGEXP
// function.
func openDB(log *logrus.Entry, opts ...sqlite3.Option) (*sqlite3.Conn, error) {
	opts = append(opts,
		sqlite3.WithLogger(log),
		sqlite3.WithBusyTimeout(CLI.BusyTimeout),
	)
	if CLI.ReadOnly {
		opts = append(opts, sqlite3.ReadOnly())
	}
	c, err := sqlite3.Open(CLI.DB, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", CLI.DB)
	}
	if CLI.Trace {
		err = c.SetTracer(func(sql string) {
			log.WithField("sql", sql).Info("trace")
		})
		if err != nil {
			c.Close()
			return nil, errors.Wrap(err, "set tracer")
		}
	}
	if err = c.CreateFunction("regexp", 2, regexpFunc(), sqlite3.Deterministic()); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "register regexp")
	}
	return c, nil
}

// regexpFunc implements "x REGEXP pattern", which SQLite rewrites to
// regexp(pattern, x). Compiled patterns are cached per connection.
func regexpFunc() sqlite3.Function {
	cache := make(map[string]*regexp.Regexp)
	return func(args []sqlite3.Value) (sqlite3.Value, error) {
		if args[0].IsNull() || args[1].IsNull() {
			return sqlite3.NullValue(), nil
		}
		pat := args[0].Text()
		re := cache[pat]
		if re == nil {
			var err error
			if re, err = regexp.Compile(pat); err != nil {
				return sqlite3.Value{}, err
			}
			cache[pat] = re
		}
		return sqlite3.BoolValue(re.MatchString(args[1].Text())), nil
	}
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sqlite3-fiddle"),
		kong.Description("Run SQL against a SQLite database"),
		kong.UsageOnError(),
	)

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	switch {
	case CLI.Verbose:
		logger.SetLevel(logrus.DebugLevel)
	case CLI.Trace:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.WarnLevel)
	}
	log := logger.WithField("cmd", ctx.Command())

	err := ctx.Run(log)
	ctx.FatalIfErrorf(err)
}
