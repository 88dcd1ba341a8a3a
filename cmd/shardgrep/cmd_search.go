package main

import (
	"fmt"
	"os"

	"github.com/prxssh/shardgrep"
	"github.com/spf13/cobra"
	"storj.io/common/memory"
)

// runFlags are shared by every role.
type runFlags struct {
	configPath string
	workers    int
	chunkSize  string
	masterAddr string
	rank       int
	print      bool
}

var (
	searchFlags runFlags
	masterFlags runFlags
	workerFlags runFlags
)

// searchCmd runs every rank in this process
var searchCmd = &cobra.Command{
	Use:   "search <pattern> <input-dir> [output-dir]",
	Short: "Search a corpus with all workers in this process",
	Long: `Searches every regular file in input-dir for pattern and writes the
merged report to output-dir/output.txt, plus one partial report per worker.

Example:
  shardgrep search "connection reset" /var/log/app out --workers 8`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRole(cmd, &searchFlags, shardgrep.RoleLocal, args)
	},
}

// masterCmd coordinates workers running in other processes
var masterCmd = &cobra.Command{
	Use:   "master <pattern> <input-dir> [output-dir]",
	Short: "Coordinate a search whose workers run as separate processes",
	Long: `Validates the pattern and corpus, then waits for every rank to report
on --addr. Once all ranks have reported, the merged report is written.

There is no timeout: a rank that never reports stalls the master until it is
interrupted.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRole(cmd, &masterFlags, shardgrep.RoleMaster, args)
	},
}

// workerCmd scans one rank's shard
var workerCmd = &cobra.Command{
	Use:   "worker <pattern> <input-dir> [output-dir]",
	Short: "Scan one rank's shard and report to the master",
	Long: `Computes this rank's shard from --rank and --workers, scans it, writes
output-dir/output-rank<rank>.txt and reports to the master at --addr.

Example:
  shardgrep worker needle /data out --rank 2 --workers 4 --addr master:6969`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRole(cmd, &workerFlags, shardgrep.RoleWorker, args)
	},
}

func init() {
	bindFlags(searchCmd, &searchFlags)
	searchCmd.Flags().BoolVar(&searchFlags.print, "print", false, "also print the report to stdout")

	bindFlags(masterCmd, &masterFlags)
	masterCmd.Flags().StringVar(&masterFlags.masterAddr, "addr", "", "address to listen on for worker reports")
	masterCmd.Flags().BoolVar(&masterFlags.print, "print", false, "also print the report to stdout")

	bindFlags(workerCmd, &workerFlags)
	workerCmd.Flags().StringVar(&workerFlags.masterAddr, "addr", "", "address of the master")
	workerCmd.Flags().IntVar(&workerFlags.rank, "rank", 0, "rank of this worker")
}

func bindFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "number of workers (default: number of CPUs)")
	cmd.Flags().StringVar(&f.chunkSize, "chunk-size", "", "read size per scan step, e.g. 64KiB")
}

func runRole(cmd *cobra.Command, f *runFlags, role shardgrep.Role, args []string) error {
	opts := []shardgrep.Option{
		shardgrep.WithRole(role),
		shardgrep.WithPattern(args[0]),
		shardgrep.WithInputDir(args[1]),
		shardgrep.WithLogger(logger),
	}
	if len(args) == 3 {
		opts = append(opts, shardgrep.WithOutputDir(args[2]))
	}
	if f.workers != 0 {
		opts = append(opts, shardgrep.WithWorkers(f.workers))
	}
	if f.masterAddr != "" {
		opts = append(opts, shardgrep.WithMasterAddr(f.masterAddr))
	}
	if cmd.Flags().Changed("rank") {
		opts = append(opts, shardgrep.WithRank(f.rank))
	}
	if f.chunkSize != "" {
		size, err := memory.ParseString(f.chunkSize)
		if err != nil {
			return fmt.Errorf("invalid --chunk-size %q: %w", f.chunkSize, err)
		}
		opts = append(opts, shardgrep.WithChunkSize(memory.Size(size)))
	}

	ctx := cmd.Context()
	if metricsEndpoint != "" {
		mp, shutdown, err := initMetrics(ctx, metricsEndpoint)
		if err != nil {
			logger.Warn("metrics exporter init failed", "err", err)
		} else {
			defer flush(ctx, shutdown)
			opts = append(opts, shardgrep.WithMeterProvider(mp))
		}
	}

	cfg := shardgrep.NewConfig(opts...)
	if f.configPath != "" {
		var err error
		if cfg, err = shardgrep.LoadConfig(f.configPath, opts...); err != nil {
			return err
		}
	}

	rep, err := shardgrep.Run(ctx, cfg)
	if err != nil {
		return err
	}

	if f.print && rep != nil {
		if _, err := rep.WriteTo(os.Stdout); err != nil {
			return fmt.Errorf("failed to print report: %w", err)
		}
	}

	return nil
}
