// Package auth verifies the bearer tokens minted by the external auth service
// and by IssueTrackingToken, and carries the caller identity through request
// contexts.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/models"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleCrew   Role = "crew"
	RoleClient Role = "client"
)

// Identity is the verified caller.
type Identity struct {
	Subject string
	Role    Role
	// TeamID is set for crew callers.
	TeamID string
	// JobID and JobType scope a client tracking token to one job.
	JobID   string
	JobType models.JobType
}

type claims struct {
	jwt.RegisteredClaims
	Role    Role           `json:"role"`
	TeamID  string         `json:"team_id,omitempty"`
	JobID   string         `json:"job_id,omitempty"`
	JobType models.JobType `json:"job_type,omitempty"`
}

// Authenticator signs and verifies HS256 tokens with a shared secret.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func New(secret, issuer string) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if issuer == "" {
		issuer = "crewtrack"
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

func (a *Authenticator) Issue(id Identity, ttl time.Duration) (string, error) {
	if !validRole(id.Role) {
		return "", errors.Errorf("unknown role %q", id.Role)
	}
	now := a.now().UTC()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:    id.Role,
		TeamID:  id.TeamID,
		JobID:   id.JobID,
		JobType: id.JobType,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
	return s, errors.Wrap(err, "sign token")
}

// IssueTrackingToken mints the per-job token a client uses to watch and sign
// off one job.
func (a *Authenticator) IssueTrackingToken(jobID string, jobType models.JobType, ttl time.Duration) (string, error) {
	if jobID == "" {
		return "", models.Invalid("jobId", "is required")
	}
	if !jobType.Valid() {
		return "", models.Invalid("jobType", "must be move or delivery")
	}
	return a.Issue(Identity{Subject: "client:" + jobID, Role: RoleClient, JobID: jobID, JobType: jobType}, ttl)
}

func (a *Authenticator) Verify(token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	if !validRole(c.Role) {
		return nil, errors.Wrap(ErrUnauthenticated, "unknown role")
	}
	if c.Role == RoleClient && c.JobID == "" {
		return nil, errors.Wrap(ErrUnauthenticated, "tracking token without job")
	}
	if c.Role == RoleCrew && c.TeamID == "" {
		return nil, errors.Wrap(ErrUnauthenticated, "crew token without team")
	}
	return &Identity{
		Subject: c.Subject,
		Role:    c.Role,
		TeamID:  c.TeamID,
		JobID:   c.JobID,
		JobType: c.JobType,
	}, nil
}

func validRole(r Role) bool {
	return r == RoleAdmin || r == RoleCrew || r == RoleClient
}

func (id *Identity) IsAdmin() bool { return id != nil && id.Role == RoleAdmin }

// CanWrite reports whether the caller may drive the job's session.
func (id *Identity) CanWrite(job *models.Job) bool {
	switch {
	case id == nil || job == nil:
		return false
	case id.Role == RoleAdmin:
		return true
	case id.Role == RoleCrew:
		return job.CrewTeamID != nil && *job.CrewTeamID == id.TeamID
	}
	return false
}

// CanRead reports whether the caller may observe the job. Clients are scoped
// to the job of their tracking token.
func (id *Identity) CanRead(job *models.Job) bool {
	if id != nil && id.Role == RoleClient {
		return job != nil && id.JobID == job.ID
	}
	return id.CanWrite(job)
}

// CanSignOff is true only for the client holding the job's tracking token, or
// an admin collecting the signature on the client's behalf.
func (id *Identity) CanSignOff(jobID string, jobType models.JobType) bool {
	switch {
	case id == nil:
		return false
	case id.Role == RoleAdmin:
		return true
	case id.Role == RoleClient:
		return id.JobID == jobID && (id.JobType == "" || id.JobType == jobType)
	}
	return false
}

// CrewTeam returns the team to enforce on checkpoint writes, nil for admins.
func (id *Identity) CrewTeam() *string {
	if id == nil || id.Role != RoleCrew {
		return nil
	}
	t := id.TeamID
	return &t
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// BearerToken strips the "Bearer " scheme from an Authorization value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
