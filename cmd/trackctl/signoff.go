package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/BearBump/CrewTrack/internal/api/tracking_api"
	"github.com/BearBump/CrewTrack/internal/models"
)

func newSignOffCmd(g *globalOpts) *cobra.Command {
	var (
		job, jobType  string
		signer        string
		signatureFile string
		answersFile   string
		allPositive   bool
		rating        int
	)
	cmd := &cobra.Command{
		Use:   "signoff",
		Short: "Submit the client sign-off for a finished job",
		Example: `  trackctl signoff --job 3f2c... --name "Ann Lee" --signature sig.png --all-positive --rating 5
  trackctl signoff --job 3f2c... --name "Ann Lee" --signature sig.png --answers answers.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jt, err := parseJobType(jobType)
			if err != nil {
				return err
			}
			sig, err := signatureDataURL(signatureFile)
			if err != nil {
				return err
			}
			var a models.Attestations
			switch {
			case answersFile != "":
				raw, err := os.ReadFile(answersFile)
				if err != nil {
					return errors.Wrap(err, "read answers")
				}
				if err := json.Unmarshal(raw, &a); err != nil {
					return errors.Wrap(err, "parse answers")
				}
			case allPositive:
				a = positiveAttestations(rating)
			default:
				return errors.New("either --answers or --all-positive is required")
			}

			client, closeFn, err := g.dial()
			if err != nil {
				return err
			}
			defer closeFn()

			so, err := client.SubmitSignOff(commandContext(cmd), &tracking_api.SubmitSignOffRequest{
				JobID:        job,
				JobType:      jt,
				SignerName:   signer,
				Signature:    sig,
				Attestations: a,
			})
			if err != nil {
				return errors.Wrap(err, "submit sign-off")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(so)
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "job id")
	cmd.Flags().StringVar(&jobType, "job-type", "move", "move or delivery")
	cmd.Flags().StringVar(&signer, "name", "", "signer's name")
	cmd.Flags().StringVar(&signatureFile, "signature", "", "signature image file (png or jpeg)")
	cmd.Flags().StringVar(&answersFile, "answers", "", "JSON file with the attestation answers")
	cmd.Flags().BoolVar(&allPositive, "all-positive", false, "answer every confirmation affirmatively")
	cmd.Flags().IntVar(&rating, "rating", 5, "satisfaction rating used with --all-positive")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

// signatureDataURL reads an image file into a data URL.
func signatureDataURL(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read signature")
	}
	ct := http.DetectContentType(raw)
	if ct != "image/png" && ct != "image/jpeg" {
		return "", errors.Errorf("signature must be a png or jpeg image, got %s", ct)
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

func positiveAttestations(rating int) models.Attestations {
	yes := true
	return models.Attestations{
		AllItemsReceived:     true,
		ConditionAccepted:    true,
		NoDamages:            true,
		NoPropertyDamage:     true,
		WalkthroughCompleted: true,
		CrewProfessional:     true,
		CrewOnTime:           true,
		ItemsPlacedCorrectly: true,
		FurnitureReassembled: true,
		FloorsProtected:      true,
		PackagingRemoved:     true,
		ValuablesAccounted:   true,
		InvoiceReviewed:      true,
		SatisfactionRating:   rating,
		WouldRecommend:       &yes,
	}
}
