package cli

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/jobs"
	"github.com/anstrom/netsweep/internal/scanning"
	"github.com/anstrom/netsweep/internal/services"
)

var (
	sweepProgress bool
	sweepAll      bool
	probeSegment  string
	probePorts    = newPortsValue(scanning.DefaultPortRange)
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <cidr|segment-id>",
	Short: "Sweep a network for live hosts",
	Long: `Check every host address of a network for liveness. A CIDR argument is
swept without storing anything; a segment id sweeps the stored segment and
saves the result, keeping port data from earlier probes.`,
	Example: `  netsweep sweep 192.168.1.0/24
  netsweep sweep 0b0f8d2e-7d43-4a8e-9d7f-6f1f5b0b9b31 --progress
  netsweep sweep 10.0.0.0/28 --all --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runSweep,
}

var probeCmd = &cobra.Command{
	Use:   "probe <ip>",
	Short: "Detail-probe a single host with nmap",
	Long: `Probe one IPv4 host for open ports, services and operating system.
With --segment the record is stored in that segment; otherwise the result is
only printed. Requires nmap on PATH or engine.nmap_binary.`,
	Example: `  netsweep probe 192.168.1.10
  netsweep probe 192.168.1.10 --ports 20-443
  netsweep probe 192.168.1.10 --segment 0b0f8d2e-7d43-4a8e-9d7f-6f1f5b0b9b31`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

var quickCheckCmd = &cobra.Command{
	Use:   "quick-check <ip>...",
	Short: "Check liveness of specific addresses",
	Example: `  netsweep quick-check 192.168.1.1 192.168.1.10
  netsweep quick-check 10.0.0.1 --output json`,
	Args: cobra.RangeArgs(1, services.MaxQuickCheckAddresses),
	RunE: runQuickCheck,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(quickCheckCmd)

	sweepCmd.Flags().BoolVar(&sweepProgress, "progress", false, "Print progress to stderr")
	sweepCmd.Flags().BoolVar(&sweepAll, "all", false, "List inactive addresses too")

	probeCmd.Flags().Var(probePorts, "ports", "Port range to probe, e.g. 22 or 1-1024 (default from config)")
	probeCmd.Flags().StringVar(&probeSegment, "segment", "", "Store the result in this segment")
}

// progressPrinter writes "done/total" lines, at most one per percent.
func progressPrinter(w io.Writer) scanning.ProgressFunc {
	last := -1
	return func(done, total int) {
		if total == 0 {
			return
		}
		pct := done * 100 / total
		if pct == last && done != total {
			return
		}
		last = pct
		fmt.Fprintf(w, "\r%d/%d addresses (%d%%)", done, total, pct)
		if done == total {
			fmt.Fprintln(w)
		}
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}
	target := args[0]

	return withEngine(func(ctx context.Context, e *engine) error {
		var progress scanning.ProgressFunc
		if sweepProgress {
			progress = progressPrinter(os.Stderr)
		}

		if _, err := netip.ParsePrefix(target); err == nil {
			hosts, err := e.scans.SweepNetwork(ctx, target, progress)
			if err != nil {
				return err
			}
			return printSweep(cmd.OutOrStdout(), target, hosts)
		}

		summary, err := e.scans.Sweep(ctx, target, progress)
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return printJSON(cmd.OutOrStdout(), summary)
		}
		return renderTable(cmd.OutOrStdout(),
			[]string{"Segment", "CIDR", "Addresses", "Active", "Inactive", "Duration"},
			[][]string{{
				summary.SegmentID,
				summary.CIDR,
				fmt.Sprint(summary.Total),
				fmt.Sprint(summary.Active),
				fmt.Sprint(summary.Inactive),
				summary.Duration.Round(time.Millisecond).String(),
			}})
	})
}

// printSweep shows live hosts of an unsaved sweep, or every address with --all.
func printSweep(w io.Writer, cidr string, hosts []db.HostRecord) error {
	shown := hosts
	if !sweepAll {
		shown = make([]db.HostRecord, 0, len(hosts))
		for i := range hosts {
			if hosts[i].IsActive {
				shown = append(shown, hosts[i])
			}
		}
	}
	if err := printHosts(w, shown); err != nil {
		return err
	}
	if outputFormat == formatTable {
		active := db.CountActive(hosts)
		_, err := fmt.Fprintf(w, "%s: %d of %d addresses active\n", cidr, active, len(hosts))
		return err
	}
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}

	return withEngine(func(ctx context.Context, e *engine) error {
		ports := probePorts.resolve(e.cfg.DefaultPortRange())

		var (
			job jobs.Job
			err error
		)
		if probeSegment != "" {
			job, err = e.scans.StartHostProbe(ctx, probeSegment, args[0], ports)
		} else {
			job, err = e.scans.StartAdhocProbe(ctx, args[0], ports)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Probing %s ports %s...\n", args[0], ports)
		final, err := waitForJob(ctx, e.tracker, job.Key, nil)
		if err != nil {
			return err
		}
		if final.State == jobs.StateError {
			return fmt.Errorf("probe of %s failed: %s", args[0], final.Error)
		}

		rec, ok := final.Result.(*db.HostRecord)
		if !ok || rec == nil {
			return fmt.Errorf("probe of %s returned no record", args[0])
		}
		return printHostDetail(cmd.OutOrStdout(), rec)
	})
}

func runQuickCheck(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}

	return withEngine(func(ctx context.Context, e *engine) error {
		hosts, err := e.scans.QuickCheck(ctx, args)
		if err != nil {
			return err
		}
		return printHosts(cmd.OutOrStdout(), hosts)
	})
}
