package main

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newWatchCmd(g *globalOpts) *cobra.Command {
	var job string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a job's live events as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := g.dial()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := commandContext(cmd)
			snap, err := client.GetSnapshot(ctx, job)
			if err != nil {
				return errors.Wrap(err, "snapshot")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if err := enc.Encode(snap); err != nil {
				return err
			}

			stream, err := client.WatchJob(ctx, job)
			if err != nil {
				return errors.Wrap(err, "watch")
			}
			for {
				ev, err := stream.Recv()
				if err == io.EOF || status.Code(err) == codes.Canceled {
					return nil
				}
				if err != nil {
					return errors.Wrap(err, "receive")
				}
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "job id")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}
