// Command pointstore ingests, queries and inspects point cloud blobs.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/hupe1980/pointstore"
)

const (
	flagStore      = "store"
	flagConfig     = "config"
	flagDebug      = "debug"
	flagJSONLog    = "json-log"
	flagInput      = "input"
	flagOutput     = "output"
	flagLeafSize   = "max-points-per-leaf"
	flagMaxDepth   = "max-depth"
	flagOverview   = "overview-points"
	flagCompress   = "compression"
	flagFormat     = "format"
	flagWorkers    = "workers"
	flagIOLimit    = "io-limit"
	flagBBox       = "bbox"
	flagLimit      = "limit"
	flagFilter     = "filter"
	flagLOD        = "lod"
	flagParallel   = "parallel"
	flagCoordsOnly = "coords-only"
	flagStats      = "stats"
)

type app struct {
	cfg    Config
	logger *pointstore.Logger
	stdout io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdout io.Writer) *cli.App {
	a := &app{stdout: stdout}
	return &cli.App{
		Name:   "pointstore",
		Usage:  "ingest and query spatially indexed point clouds",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagStore,
				Aliases: []string{"s"},
				Usage:   "local directory, s3://bucket/prefix or minio://host/bucket/prefix",
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.BoolFlag{Name: flagDebug, Usage: "enable debug logging"},
			&cli.BoolFlag{Name: flagJSONLog, Usage: "log as JSON"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := LoadConfig(c.String(flagConfig))
			if err != nil {
				return err
			}
			if c.IsSet(flagStore) {
				cfg.Store = c.String(flagStore)
			}
			a.cfg = cfg

			level := slog.LevelInfo
			if c.Bool(flagDebug) {
				level = slog.LevelDebug
			}
			if c.Bool(flagJSONLog) {
				a.logger = pointstore.NewJSONLogger(level)
			} else {
				a.logger = pointstore.NewTextLogger(level)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "partition a LAS or CSV file into a cloud blob",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagInput, Aliases: []string{"i"}, Required: true, Usage: "input `FILE` (.las, .csv)"},
					&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Required: true, Usage: "blob `NAME`"},
					&cli.IntFlag{Name: flagLeafSize, Usage: "split threshold per leaf"},
					&cli.IntFlag{Name: flagMaxDepth, Usage: "maximum tree depth"},
					&cli.IntFlag{Name: flagOverview, Usage: "overview sample size per internal node"},
					&cli.StringFlag{Name: flagCompress, Usage: "none, lz4, zstd or snappy"},
					&cli.StringFlag{Name: flagFormat, Usage: "xyzi or xyzit"},
					&cli.IntFlag{Name: flagWorkers, Usage: "concurrent chunk encoders"},
					&cli.Int64Flag{Name: flagIOLimit, Usage: "write limit in bytes per second"},
				},
				Action: a.ingest,
			},
			{
				Name:      "query",
				Usage:     "print the points of a cloud inside a box as CSV",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagBBox, Usage: "minx,miny,minz,maxx,maxy,maxz (default: whole cloud)"},
					&cli.IntFlag{Name: flagLimit, Usage: "maximum number of points"},
					&cli.StringSliceFlag{Name: flagFilter, Usage: "attr:min:max, e.g. intensity:100: (repeatable)"},
					&cli.IntFlag{Name: flagLOD, Value: pointstore.FullDetail, Usage: "read overviews at this depth"},
					&cli.IntFlag{Name: flagParallel, Usage: "concurrent chunk decodes"},
					&cli.BoolFlag{Name: flagCoordsOnly, Usage: "omit attributes"},
					&cli.BoolFlag{Name: flagStats, Usage: "print query statistics to stderr"},
				},
				Action: a.query,
			},
			{
				Name:      "info",
				Usage:     "describe a cloud",
				ArgsUsage: "NAME",
				Action:    a.info,
			},
			{
				Name:      "ls",
				Usage:     "list blobs in the store",
				ArgsUsage: "[PREFIX]",
				Action:    a.list,
			},
		},
	}
}

func (a *app) ingestConfig(c *cli.Context) IngestConfig {
	ic := a.cfg.Ingest
	if c.IsSet(flagLeafSize) {
		ic.MaxPointsPerLeaf = c.Int(flagLeafSize)
	}
	if c.IsSet(flagMaxDepth) {
		ic.MaxDepth = c.Int(flagMaxDepth)
	}
	if c.IsSet(flagOverview) {
		ic.OverviewPoints = c.Int(flagOverview)
	}
	if c.IsSet(flagCompress) {
		ic.Compression = c.String(flagCompress)
	}
	if c.IsSet(flagFormat) {
		ic.Format = c.String(flagFormat)
	}
	if c.IsSet(flagWorkers) {
		ic.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagIOLimit) {
		ic.IOLimit = c.Int64(flagIOLimit)
	}
	return ic
}

func (a *app) ingest(c *cli.Context) error {
	opts, err := a.ingestConfig(c).Options()
	if err != nil {
		return err
	}
	opts = append(opts, pointstore.WithLogger(a.logger))

	store, err := openStore(c.Context, a.cfg.Store)
	if err != nil {
		return err
	}
	buf, err := readPoints(c.String(flagInput))
	if err != nil {
		return err
	}
	res, err := pointstore.Ingest(c.Context, store, c.String(flagOutput), buf, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: %s points, %d nodes, %d leaves, depth %d, %s in %s\n",
		c.String(flagOutput), humanize.Comma(int64(res.Points)), res.Nodes, res.Leaves, res.Depth,
		humanize.IBytes(uint64(res.Bytes)), res.Duration.Round(1e6))
	return nil
}

func (a *app) openCloud(c *cli.Context) (*pointstore.Cloud, error) {
	name := c.Args().First()
	if name == "" {
		return nil, fmt.Errorf("%s: missing cloud name", c.Command.Name)
	}
	store, err := openStore(c.Context, a.cfg.Store)
	if err != nil {
		return nil, err
	}
	return pointstore.Open(c.Context, store, name,
		pointstore.WithLogger(a.logger),
		pointstore.WithChunkCache(a.cfg.Query.ChunkCache))
}

func (a *app) query(c *cli.Context) error {
	cloud, err := a.openCloud(c)
	if err != nil {
		return err
	}
	defer cloud.Close()

	box := cloud.Bounds()
	if s := c.String(flagBBox); s != "" {
		if box, err = parseBBox(s); err != nil {
			return err
		}
	}

	parallel := a.cfg.Query.Parallelism
	if c.IsSet(flagParallel) {
		parallel = c.Int(flagParallel)
	}
	var stats pointstore.Stats
	opts := []pointstore.QueryOption{
		pointstore.WithLimit(c.Int(flagLimit)),
		pointstore.WithLOD(c.Int(flagLOD)),
		pointstore.WithParallelism(parallel),
		pointstore.WithStats(&stats),
	}
	if c.Bool(flagCoordsOnly) {
		opts = append(opts, pointstore.WithCoordinatesOnly())
	}
	for _, f := range c.StringSlice(flagFilter) {
		attr, lo, hi, err := parseFilter(f)
		if err != nil {
			return err
		}
		opts = append(opts, pointstore.WithFilter(pointstore.Range(attr, lo, hi)))
	}

	if _, err := writeCSV(a.stdout, cloud.Query(c.Context, box, opts...), cloud.Info().Format.HasTime()); err != nil {
		return err
	}
	if c.Bool(flagStats) {
		fmt.Fprintf(os.Stderr, "visited %d, pruned %d, decoded %d (%s), returned %d\n",
			stats.Visited, stats.Pruned, stats.Decoded, humanize.IBytes(uint64(stats.BytesRead)), stats.Returned)
	}
	return nil
}

func (a *app) info(c *cli.Context) error {
	cloud, err := a.openCloud(c)
	if err != nil {
		return err
	}
	defer cloud.Close()

	info := cloud.Info()
	levels := make([]string, len(cloud.Levels()))
	for i, n := range cloud.Levels() {
		levels[i] = humanize.Comma(int64(n))
	}
	fmt.Fprintf(a.stdout, "name:        %s\n", info.Name)
	fmt.Fprintf(a.stdout, "dataset:     %s\n", info.DatasetID)
	fmt.Fprintf(a.stdout, "created:     %s (%s)\n", info.CreatedAt.UTC().Format("2006-01-02 15:04:05"), humanize.Time(info.CreatedAt))
	fmt.Fprintf(a.stdout, "size:        %s\n", humanize.IBytes(uint64(info.Size)))
	fmt.Fprintf(a.stdout, "points:      %s\n", humanize.Comma(int64(info.Points)))
	fmt.Fprintf(a.stdout, "format:      %s, %s\n", info.Format, info.Compression)
	fmt.Fprintf(a.stdout, "bounds:      %s\n", info.Bounds)
	fmt.Fprintf(a.stdout, "scale:       %g %g %g\n", info.Scale.X, info.Scale.Y, info.Scale.Z)
	fmt.Fprintf(a.stdout, "nodes:       %d (%d leaves, depth %d of %d)\n", info.Nodes, info.Leaves, info.Depth, info.MaxDepth)
	fmt.Fprintf(a.stdout, "levels:      %s\n", strings.Join(levels, " "))
	fmt.Fprintf(a.stdout, "occupancy:   min %.0f, max %.0f, mean %.1f, stddev %.1f\n",
		info.Occupancy.Min, info.Occupancy.Max, info.Occupancy.Mean, info.Occupancy.StdDev)
	return nil
}

func (a *app) list(c *cli.Context) error {
	store, err := openStore(c.Context, a.cfg.Store)
	if err != nil {
		return err
	}
	names, err := store.List(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(a.stdout, n)
	}
	return nil
}
