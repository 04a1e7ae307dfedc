package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/maddox/harmony-api/internal/harmony"
)

func newDiscoverCmd() *cobra.Command {
	var (
		timeout time.Duration
		port    int
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the Harmony hubs answering on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if noColor {
				color.NoColor = true
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			hubs, err := discoverHubs(ctx, harmony.DiscoveryOptions{Port: port})
			if err != nil {
				return err
			}
			printHubs(cmd.OutOrStdout(), hubs)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "how long to listen for hubs")
	cmd.Flags().IntVar(&port, "port", 0, "local TCP port hubs connect back to (0 picks a free port)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

// discoverHubs runs discovery until ctx ends and returns every hub seen.
func discoverHubs(ctx context.Context, opts harmony.DiscoveryOptions) ([]harmony.HubInfo, error) {
	d := harmony.NewDiscovery(opts)
	if err := d.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting discovery: %w", err)
	}
	<-ctx.Done()
	d.Stop()
	return d.Hubs(), nil
}

func printHubs(w io.Writer, hubs []harmony.HubInfo) {
	if len(hubs) == 0 {
		fmt.Fprintln(w, color.YellowString("No hubs found"))
		return
	}

	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)

	fmt.Fprintf(w, "Found %d hub(s)\n", len(hubs))
	for _, h := range hubs {
		name := h.FriendlyName
		if name == "" {
			name = h.IP
		}
		details := []string{"uuid " + h.UUID}
		if h.RemoteID != "" {
			details = append(details, "remote "+h.RemoteID)
		}
		if h.FirmwareVersion != "" {
			details = append(details, "firmware "+h.FirmwareVersion)
		}
		fmt.Fprintf(w, "  %s  %s  %s\n", bold.Sprint(name), color.GreenString(h.IP), gray.Sprint(strings.Join(details, ", ")))
	}
}
