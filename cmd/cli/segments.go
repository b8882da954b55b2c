package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/services"
)

const maxDescriptionLength = 40

var (
	segmentName        string
	segmentCIDR        string
	segmentDescription string
)

var segmentsCmd = &cobra.Command{
	Use:     "segments",
	Aliases: []string{"segment", "seg"},
	Short:   "Manage network segments",
	Long: `Network segments are named IPv4 networks whose sweep results netsweep
keeps. Segments are read from and written to the configured store.`,
	Example: `  netsweep segments list
  netsweep segments add --name office --cidr 192.168.1.0/24
  netsweep segments show <id>
  netsweep segments delete <id>`,
}

var segmentsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List segments",
	Args:    cobra.NoArgs,
	RunE:    runSegmentsList,
}

var segmentsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a segment",
	Long: `Add a named segment. The CIDR is stored in canonical form and must not
duplicate an existing segment.`,
	Example: `  netsweep segments add --name office --cidr 192.168.1.0/24
  netsweep segments add --name lab --cidr 10.20.0.0/22 --description "lab racks"`,
	Args: cobra.NoArgs,
	RunE: runSegmentsAdd,
}

var segmentsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm", "remove"},
	Short:   "Delete a segment and its host records",
	Args:    cobra.ExactArgs(1),
	RunE:    runSegmentsDelete,
}

var segmentsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a segment and its stored hosts",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentsShow,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show host counts across all segments",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(segmentsCmd)
	rootCmd.AddCommand(statsCmd)

	segmentsCmd.AddCommand(segmentsListCmd)
	segmentsCmd.AddCommand(segmentsAddCmd)
	segmentsCmd.AddCommand(segmentsDeleteCmd)
	segmentsCmd.AddCommand(segmentsShowCmd)

	segmentsAddCmd.Flags().StringVar(&segmentName, "name", "", "Segment name (required)")
	segmentsAddCmd.Flags().StringVar(&segmentCIDR, "cidr", "", "IPv4 network in CIDR notation (required)")
	segmentsAddCmd.Flags().StringVar(&segmentDescription, "description", "", "Free-form description")
	_ = segmentsAddCmd.MarkFlagRequired("name")
	_ = segmentsAddCmd.MarkFlagRequired("cidr")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func segmentRows(segs []db.NetworkSegment) [][]string {
	rows := make([][]string, 0, len(segs))
	for i := range segs {
		s := &segs[i]
		rows = append(rows, []string{
			s.ID,
			s.Name,
			s.CIDR,
			truncate(s.Description, maxDescriptionLength),
			s.CreatedAt.Local().Format(timeLayout),
		})
	}
	return rows
}

var segmentHeader = []string{"ID", "Name", "CIDR", "Description", "Created"}

func runSegmentsList(cmd *cobra.Command, _ []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}
	return withSegmentService(func(ctx context.Context, svc *services.SegmentService) error {
		segs, err := svc.List(ctx)
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			if segs == nil {
				segs = []db.NetworkSegment{}
			}
			return printJSON(cmd.OutOrStdout(), segs)
		}
		if len(segs) == 0 {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "No segments configured.")
			return err
		}
		return renderTable(cmd.OutOrStdout(), segmentHeader, segmentRows(segs))
	})
}

func runSegmentsAdd(cmd *cobra.Command, _ []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}
	return withSegmentService(func(ctx context.Context, svc *services.SegmentService) error {
		seg, err := svc.Create(ctx, services.CreateSegmentInput{
			Name:        segmentName,
			CIDR:        segmentCIDR,
			Description: segmentDescription,
		})
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return printJSON(cmd.OutOrStdout(), seg)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added segment %s (%s) with id %s\n", seg.Name, seg.CIDR, seg.ID)
		return err
	})
}

func runSegmentsDelete(cmd *cobra.Command, args []string) error {
	return withSegmentService(func(ctx context.Context, svc *services.SegmentService) error {
		if err := svc.Delete(ctx, args[0]); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted segment %s\n", args[0])
		return err
	})
}

func runSegmentsShow(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}
	return withSegmentService(func(ctx context.Context, svc *services.SegmentService) error {
		detail, err := svc.Detail(ctx, args[0])
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return printJSON(cmd.OutOrStdout(), detail)
		}

		out := cmd.OutOrStdout()
		s := detail.Segment
		fmt.Fprintf(out, "Segment:     %s\n", s.Name)
		fmt.Fprintf(out, "ID:          %s\n", s.ID)
		fmt.Fprintf(out, "CIDR:        %s\n", s.CIDR)
		if s.Description != "" {
			fmt.Fprintf(out, "Description: %s\n", s.Description)
		}
		fmt.Fprintf(out, "Addresses:   %d (%d active, %d inactive)\n\n",
			detail.TotalIPs, detail.ActiveIPs, detail.InactiveIPs)

		if len(detail.Hosts) == 0 {
			_, err := fmt.Fprintln(out, "No sweep results yet.")
			return err
		}
		return printHosts(out, detail.Hosts)
	})
}

func runStats(cmd *cobra.Command, _ []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}
	return withSegmentService(func(ctx context.Context, svc *services.SegmentService) error {
		stats, err := svc.Stats(ctx)
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return printJSON(cmd.OutOrStdout(), stats)
		}
		return renderTable(cmd.OutOrStdout(),
			[]string{"Segments", "Addresses", "Active", "Inactive"},
			[][]string{{
				strconv.Itoa(stats.TotalNetworks),
				strconv.Itoa(stats.TotalIPs),
				strconv.Itoa(stats.ActiveIPs),
				strconv.Itoa(stats.InactiveIPs),
			}})
	})
}
