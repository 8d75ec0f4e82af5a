package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/INLOpen/nvattr/compressors"
	"github.com/INLOpen/nvattr/core"
	"github.com/INLOpen/nvattr/metrics"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

func newFlagSet(env *environment, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

// idFlag registers a required --id flag accepting decimal or 0x-prefixed values.
func idFlag(fs *pflag.FlagSet) *uint8 {
	return fs.Uint8("id", 0, "attribute id (0-255, decimal or 0x hex)")
}

func requireFlags(fs *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		if !fs.Changed(name) {
			return fmt.Errorf("%s: --%s is required", fs.Name(), name)
		}
	}
	return nil
}

func runFormat(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "format")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := openStore(ctx, env, true)
	if err != nil {
		return err
	}
	defer s.Close()

	layout := s.Layout()
	fmt.Fprintf(env.stdout, "formatted %d bytes: %d slots, value region [%d, %d)\n",
		layout.Size, layout.Slots, layout.ValueStart(), layout.ValueEnd())
	return nil
}

func runSet(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "set")
	id := idFlag(fs)
	hexValue := fs.String("hex", "", "value as hex bytes")
	strValue := fs.String("string", "", "value as a string")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, "id"); err != nil {
		return err
	}

	var value []byte
	switch {
	case fs.Changed("hex") && fs.Changed("string"):
		return errors.New("set: --hex and --string are mutually exclusive")
	case fs.Changed("hex"):
		v, err := hex.DecodeString(*hexValue)
		if err != nil {
			return fmt.Errorf("set: --hex: %w", err)
		}
		value = v
	case fs.Changed("string"):
		value = []byte(*strValue)
	default:
		return errors.New("set: one of --hex or --string is required")
	}

	s, err := openStore(ctx, env, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Set(ctx, core.AttributeID(*id), value); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "set 0x%02X (%d bytes)\n", *id, len(value))
	return nil
}

func runGet(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "get")
	id := idFlag(fs)
	forceDump := fs.Bool("dump", false, "hex dump even when stdout is not a terminal")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, "id"); err != nil {
		return err
	}

	s, err := openStore(ctx, env, false)
	if err != nil {
		return err
	}
	defer s.Close()

	_, value, err := s.Get(ctx, core.AttributeID(*id))
	if err != nil {
		return err
	}
	if *forceDump || isTerminal(env.stdout) {
		_, err = io.WriteString(env.stdout, hex.Dump(value))
		return err
	}
	_, err = env.stdout.Write(value)
	return err
}

// isTerminal reports whether w is a terminal, in which case raw bytes
// would garble the screen.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runList(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := openStore(ctx, env, false)
	if err != nil {
		return err
	}
	defer s.Close()

	ids, err := s.Attributes(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLENGTH\tSTATUS")
	it := ids.Iterator()
	for it.HasNext() {
		id := core.AttributeID(it.Next())
		length, _, err := s.Get(ctx, id)
		switch {
		case err == nil:
			fmt.Fprintf(tw, "0x%02X\t%d\tok\n", id, length)
		case core.IsIntegrity(err):
			fmt.Fprintf(tw, "0x%02X\t-\tcorrupt\n", id)
		default:
			return err
		}
	}
	return tw.Flush()
}

func runVerify(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "verify")
	showMetrics := metricsFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := openStore(ctx, env, false)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.Verify(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "written: %d, unused: %d, cursor: %d\n", report.Written, report.Unused, report.Cursor)
	printIDs := func(label string, ids []core.AttributeID) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(env.stdout, "%s:", label)
		for _, id := range ids {
			fmt.Fprintf(env.stdout, " 0x%02X", id)
		}
		fmt.Fprintln(env.stdout)
	}
	printIDs("corrupt records", report.CorruptRecords)
	printIDs("corrupt values", report.CorruptValues)
	printIDs("correctable values", report.Correctable)
	printIDs("values past cursor", report.BeyondCursor)
	if report.CursorDamaged {
		fmt.Fprintln(env.stdout, "arena cursor damaged")
	}
	if *showMetrics {
		if err := printMetrics(env.stdout, s.Metrics()); err != nil {
			return err
		}
	}
	if !report.Healthy() {
		return errors.New("verify: medium is damaged")
	}
	fmt.Fprintln(env.stdout, "ok")
	return nil
}

func runStat(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "stat")
	showMetrics := metricsFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := openStore(ctx, env, false)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "size\t%d\n", st.Size)
	fmt.Fprintf(tw, "value region\t[%d, %d)\n", st.ValueStart, st.ValueEnd)
	fmt.Fprintf(tw, "cursor\t%d\n", st.Cursor)
	fmt.Fprintf(tw, "used\t%d\n", st.BytesUsed)
	fmt.Fprintf(tw, "free\t%d\n", st.BytesFree)
	fmt.Fprintf(tw, "attributes\t%d\n", st.Attributes)
	fmt.Fprintf(tw, "crc16 polynomial\t0x%04X\n", st.CRC16Polynomial)
	fmt.Fprintf(tw, "error correction\t%v\n", st.ErrorCorrection)
	if err := tw.Flush(); err != nil {
		return err
	}
	if *showMetrics {
		return printMetrics(env.stdout, s.Metrics())
	}
	return nil
}

func metricsFlag(fs *pflag.FlagSet) *bool {
	return fs.Bool("metrics", false, "print this run's store counters and latency quantiles")
}

// printMetrics writes the collector's counters and per-operation latency
// quantiles. The CLI serves no expvar endpoint.
func printMetrics(w io.Writer, c *metrics.Collector) error {
	counters := c.Snapshot()
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nCOUNTER\tVALUE")
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%d\n", name, counters[name])
	}
	fmt.Fprintln(tw, "\nOPERATION\tCOUNT\tP50\tP99")
	for _, op := range c.Operations() {
		p50, _ := c.Quantile(op, 0.5)
		p99, _ := c.Quantile(op, 0.99)
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", op, c.Count(op), seconds(p50), seconds(p99))
	}
	return tw.Flush()
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func runSnapshot(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "snapshot")
	out := fs.String("out", "", "output file (default: <snapshot.dir>/<id>"+core.SnapshotFileSuffix+")")
	compression := fs.String("compression", env.cfg.Snapshot.Compression, "none, snappy, lz4 or zstd")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := compressors.ForName(*compression)
	if err != nil {
		return err
	}

	s, err := openStore(ctx, env, false)
	if err != nil {
		return err
	}
	defer s.Close()

	dir := env.cfg.Snapshot.Dir
	if *out != "" {
		dir = filepath.Dir(*out)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "snapshot-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	manifest, err := s.Snapshot(ctx, tmp, c)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = filepath.Join(dir, manifest.ID+core.SnapshotFileSuffix)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "snapshot %s written to %s (%s)\n", manifest.ID, path, manifest.Compression)
	return nil
}

func runRestore(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet(env, "restore")
	in := fs.String("in", "", "snapshot file to restore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, "in"); err != nil {
		return err
	}
	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := openStore(ctx, env, false)
	if err != nil {
		return err
	}
	defer s.Close()

	manifest, err := s.Restore(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "restored snapshot %s taken %s\n", manifest.ID, manifest.Created().UTC().Format("2006-01-02T15:04:05Z"))
	return nil
}
