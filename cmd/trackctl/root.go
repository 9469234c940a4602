package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/BearBump/CrewTrack/internal/api/tracking_api"
	"github.com/BearBump/CrewTrack/internal/auth"
	"github.com/BearBump/CrewTrack/internal/models"
)

type globalOpts struct {
	addr  string
	token string
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}
	root := &cobra.Command{
		Use:   "trackctl",
		Short: "Operate and simulate CrewTrack jobs from the terminal",
		Long: `trackctl mints tokens, drives a simulated crew through a job's checkpoints,
watches a job's live stream and submits client sign-offs against a running
track-api.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.addr, "addr", envOr("TRACKCTL_ADDR", "localhost:50051"), "track-api gRPC address")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("TRACKCTL_TOKEN"), "bearer token for the call")

	root.AddCommand(newTokenCmd())
	root.AddCommand(newSimulateCmd(g))
	root.AddCommand(newWatchCmd(g))
	root.AddCommand(newSignOffCmd(g))
	return root
}

// dial opens a plaintext connection; trackctl targets local and in-cluster
// deployments.
func (g *globalOpts) dial() (*tracking_api.Client, func(), error) {
	if g.token == "" {
		return nil, nil, errors.New("--token (or TRACKCTL_TOKEN) is required")
	}
	conn, err := grpc.NewClient(g.addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(auth.PerRPCToken{Token: g.token, Insecure: true}),
	)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dial %s", g.addr)
	}
	return tracking_api.NewClient(conn), func() { _ = conn.Close() }, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseJobType(s string) (models.JobType, error) {
	t := models.JobType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", errors.Errorf("job type must be move or delivery, got %q", s)
	}
	return t, nil
}

// parsePoint reads "lat,lng".
func parsePoint(s string) (models.GeoPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.GeoPoint{}, errors.Errorf("point must be lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.GeoPoint{}, errors.Wrapf(err, "latitude %q", parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.GeoPoint{}, errors.Wrapf(err, "longitude %q", parts[1])
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return models.GeoPoint{}, errors.Errorf("point %q out of range", s)
	}
	return models.GeoPoint{Lat: lat, Lng: lng}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
