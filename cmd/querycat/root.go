package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/cli"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/config"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/plan"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/query"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/source"
)

type options struct {
	configFile string
	input      string
	output     string
	explain    bool
	dsn        string
	table      string
	key        string
	pipeline   cli.Pipeline
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "querycat [file]",
		Short: "Query an array of JSON or YAML records, or a PostgreSQL table",
		Long: `querycat reads records from a file (or stdin when the file is "-" or
omitted) and applies the step flags in the order they are given:

  querycat farmers.json --where name=Brown --hop animals --where 'weight>30' --order-by weight:desc`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := "-"
			if len(args) == 1 {
				file = args[0]
			}
			return run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), v, opts, file)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file")
	flags.StringVar(&opts.input, "format", "", "input format: json or yaml (default from file extension)")
	flags.StringVar(&opts.output, "output", "json", "output format: json or yaml")
	flags.BoolVar(&opts.explain, "explain", false, "print the plan before and after optimization instead of running it")
	flags.StringVar(&opts.dsn, "dsn", "", "PostgreSQL connection string; reads --table instead of a file")
	flags.StringVar(&opts.table, "table", "", "table to read with --dsn")
	flags.StringVar(&opts.key, "key", "id", "column ordering the pages of --table")
	flags.Int("chunk-size", 0, "elements per chunk")
	flags.Int("page-size", 0, "rows per page of --table")
	flags.String("log-level", "", "debug, info, warn or error")
	for flag, key := range map[string]string{"chunk-size": "chunk_size", "page-size": "page_size", "log-level": "log_level"} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	flags.Var(opts.pipeline.Flag(cli.Where), string(cli.Where), "filter, e.g. name=Brown or weight>30")
	flags.Var(opts.pipeline.Flag(cli.Hop), string(cli.Hop), "traverse into the collection at a path")
	flags.Var(opts.pipeline.Flag(cli.OrderBy), string(cli.OrderBy), "sort by a path, e.g. weight:desc")
	flags.Var(opts.pipeline.Flag(cli.Take), string(cli.Take), "keep the first n elements")
	flags.Var(opts.pipeline.Flag(cli.Map), string(cli.Map), "replace every element by the value at a path")
	flags.Var(opts.pipeline.Flag(cli.Count), string(cli.Count), "replace the elements by their number")
	flags.Lookup(string(cli.Count)).NoOptDefVal = "true"

	return cmd
}

func run(ctx context.Context, stdin io.Reader, stdout io.Writer, v *viper.Viper, opts *options, file string) error {
	cfg, err := config.Load(v, opts.configFile)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	output, err := cli.ParseFormat(opts.output)
	if err != nil {
		return err
	}

	src, closeSource, err := openSource(ctx, stdin, cfg, opts, file)
	if err != nil {
		return err
	}
	defer closeSource()

	exec := query.NewExecutor(query.WithLogger(logger))
	q := cli.Apply(query.From[any](src, query.WithExecutor(exec)), opts.pipeline.Steps())
	logger.Debug("query built", zap.String("steps", opts.pipeline.String()), zap.Strings("datasets", q.ImplicatedDatasets()))

	if opts.explain {
		compiled := q.Plan()
		optimized := compiled.Optimize()
		_, err := fmt.Fprintf(stdout, "%s\n%s\n%s", compiled.Explain(), optimized.Explain(), plan.Diff(compiled, optimized))
		return err
	}

	result, err := q.Gen(ctx)
	if err != nil {
		return err
	}
	return cli.Encode(stdout, result, output)
}

func openSource(ctx context.Context, stdin io.Reader, cfg *config.Config, opts *options, file string) (plan.SourceExpression, func(), error) {
	if opts.dsn != "" {
		if opts.table == "" {
			return nil, nil, errors.New("--dsn needs --table")
		}
		conn, err := pgx.Connect(ctx, opts.dsn)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect")
		}
		table := source.NewTable(conn, opts.table, opts.key, source.WithPageSize(uint64(cfg.PageSize)))
		return table, func() { _ = conn.Close(context.Background()) }, nil
	}

	format := cli.DetectFormat(file)
	if opts.input != "" {
		var err error
		if format, err = cli.ParseFormat(opts.input); err != nil {
			return nil, nil, err
		}
	}

	r := stdin
	dataset := "stdin"
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open input")
		}
		defer f.Close()
		r = f
		dataset = filepath.Base(file)
	}
	records, err := cli.LoadRecords(r, format)
	if err != nil {
		return nil, nil, err
	}
	return source.NewMemory(records, source.WithDataset(dataset), source.WithChunkSize(cfg.ChunkSize)), func() {}, nil
}
