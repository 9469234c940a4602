package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/BearBump/CrewTrack/internal/api/tracking_api"
	"github.com/BearBump/CrewTrack/internal/geo"
	"github.com/BearBump/CrewTrack/internal/models"
)

// trackingClient is the part of tracking_api.Client the simulator drives.
type trackingClient interface {
	AdvanceCheckpoint(ctx context.Context, in *tracking_api.AdvanceCheckpointRequest, opts ...grpc.CallOption) (*tracking_api.AdvanceCheckpointResponse, error)
	IngestLocation(ctx context.Context, in *tracking_api.IngestLocationRequest, opts ...grpc.CallOption) error
}

type simulation struct {
	jobID    string
	jobType  models.JobType
	origin   models.GeoPoint
	pickup   *models.GeoPoint
	dest     models.GeoPoint
	steps    int
	interval time.Duration
	sleep    func(time.Duration)
	log      func(format string, args ...any)
}

func newSimulateCmd(g *globalOpts) *cobra.Command {
	var (
		job, jobType     string
		from, pickup, to string
		steps            int
		interval         time.Duration
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a crew through every checkpoint of a job, streaming GPS on the road",
		Example: `  trackctl simulate --job 3f2c... --job-type move \
    --from 52.37,4.89 --pickup 52.36,4.91 --to 52.09,5.12 --steps 20 --interval 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jt, err := parseJobType(jobType)
			if err != nil {
				return err
			}
			origin, err := parsePoint(from)
			if err != nil {
				return err
			}
			dest, err := parsePoint(to)
			if err != nil {
				return err
			}
			sim := simulation{
				jobID: job, jobType: jt, origin: origin, dest: dest,
				steps: steps, interval: interval, sleep: time.Sleep,
				log: func(format string, args ...any) { fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...) },
			}
			if jt == models.JobTypeMove {
				if pickup == "" {
					return errors.New("--pickup is required for move jobs")
				}
				p, err := parsePoint(pickup)
				if err != nil {
					return err
				}
				sim.pickup = &p
			}

			client, closeFn, err := g.dial()
			if err != nil {
				return err
			}
			defer closeFn()
			return sim.run(commandContext(cmd), client)
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "job id")
	cmd.Flags().StringVar(&jobType, "job-type", "move", "move or delivery")
	cmd.Flags().StringVar(&from, "from", "", "crew start position lat,lng")
	cmd.Flags().StringVar(&pickup, "pickup", "", "pickup position lat,lng (moves)")
	cmd.Flags().StringVar(&to, "to", "", "destination position lat,lng")
	cmd.Flags().IntVar(&steps, "steps", 10, "GPS samples per road leg")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "pause between samples")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (s simulation) run(ctx context.Context, c trackingClient) error {
	if s.steps <= 0 {
		s.steps = 1
	}
	var (
		sessionID string
		position  = s.origin
	)
	for _, cp := range models.Sequence(s.jobType) {
		req := &tracking_api.AdvanceCheckpointRequest{Status: cp}
		if sessionID == "" {
			req.JobID, req.JobType = s.jobID, s.jobType
		} else {
			req.SessionID = sessionID
		}
		lat, lng := position.Lat, position.Lng
		req.Lat, req.Lng = &lat, &lng

		resp, err := c.AdvanceCheckpoint(ctx, req)
		if err != nil {
			return errors.Wrapf(err, "advance to %s", cp)
		}
		if resp.Session != nil {
			sessionID = resp.Session.ID
		}
		s.log("checkpoint %-24s applied=%t session=%s", cp, resp.Applied, sessionID)

		var target *models.GeoPoint
		switch models.LegOf(s.jobType, cp) {
		case models.LegPickup:
			target = s.pickup
		case models.LegDestination:
			target = &s.dest
		}
		if target == nil {
			continue
		}
		start := position
		for i := 1; i <= s.steps; i++ {
			s.sleep(s.interval)
			position = geo.Interpolate(start, *target, float64(i)/float64(s.steps))
			if err := c.IngestLocation(ctx, &tracking_api.IngestLocationRequest{
				SessionID: sessionID, Lat: position.Lat, Lng: position.Lng,
			}); err != nil {
				return errors.Wrap(err, "ingest location")
			}
		}
		s.log("arrived near %.5f,%.5f after %d samples", position.Lat, position.Lng, s.steps)
	}
	return nil
}
