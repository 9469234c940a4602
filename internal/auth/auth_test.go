package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/BearBump/CrewTrack/internal/models"
)

var t0 = time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

func newAuth(t *testing.T) *Authenticator {
	t.Helper()
	a, err := New("s3cret", "crewtrack-test")
	require.NoError(t, err)
	a.now = func() time.Time { return t0 }
	return a
}

func strp(s string) *string { return &s }

func TestIssueAndVerify(t *testing.T) {
	a := newAuth(t)
	tok, err := a.Issue(Identity{Subject: "u1", Role: RoleCrew, TeamID: "team-a"}, time.Hour)
	require.NoError(t, err)

	id, err := a.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, RoleCrew, id.Role)
	require.Equal(t, "team-a", id.TeamID)
	require.Equal(t, "team-a", *id.CrewTeam())
}

func TestVerify_Rejects(t *testing.T) {
	a := newAuth(t)

	expired, err := a.Issue(Identity{Role: RoleAdmin}, -time.Minute)
	require.NoError(t, err)
	_, err = a.Verify(expired)
	require.ErrorIs(t, err, ErrUnauthenticated)

	other, _ := New("different", "crewtrack-test")
	forged, err := other.Issue(Identity{Role: RoleAdmin}, time.Hour)
	require.NoError(t, err)
	_, err = a.Verify(forged)
	require.ErrorIs(t, err, ErrUnauthenticated)

	// alg none must never verify
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"role": "admin", "iss": "crewtrack-test", "exp": t0.Add(time.Hour).Unix()})
	s, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Verify(s)
	require.ErrorIs(t, err, ErrUnauthenticated)

	crewNoTeam, err := a.Issue(Identity{Role: RoleCrew}, time.Hour)
	require.NoError(t, err)
	_, err = a.Verify(crewNoTeam)
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = a.Verify("")
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = a.Issue(Identity{Role: "root"}, time.Hour)
	require.Error(t, err)
}

func TestTrackingToken_ScopesClientToJob(t *testing.T) {
	a := newAuth(t)
	tok, err := a.IssueTrackingToken("j1", models.JobTypeMove, 72*time.Hour)
	require.NoError(t, err)
	id, err := a.Verify(tok)
	require.NoError(t, err)

	require.True(t, id.CanRead(&models.Job{ID: "j1"}))
	require.False(t, id.CanRead(&models.Job{ID: "j2"}))
	require.False(t, id.CanWrite(&models.Job{ID: "j1"}))
	require.True(t, id.CanSignOff("j1", models.JobTypeMove))
	require.False(t, id.CanSignOff("j1", models.JobTypeDelivery))
	require.Nil(t, id.CrewTeam())

	_, err = a.IssueTrackingToken("", models.JobTypeMove, time.Hour)
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestPolicy(t *testing.T) {
	job := &models.Job{ID: "j1", CrewTeamID: strp("team-a")}
	admin := &Identity{Role: RoleAdmin}
	crewA := &Identity{Role: RoleCrew, TeamID: "team-a"}
	crewB := &Identity{Role: RoleCrew, TeamID: "team-b"}
	var anon *Identity

	require.True(t, admin.CanWrite(job))
	require.True(t, crewA.CanWrite(job))
	require.True(t, crewA.CanRead(job))
	require.False(t, crewB.CanWrite(job))
	require.False(t, crewB.CanSignOff("j1", models.JobTypeMove))
	require.False(t, anon.CanRead(job))
	require.False(t, anon.IsAdmin())
	require.True(t, admin.IsAdmin())
}

func TestMiddleware(t *testing.T) {
	a := newAuth(t)
	tok, err := a.Issue(Identity{Role: RoleAdmin, Subject: "ops"}, time.Hour)
	require.NoError(t, err)

	var seen *Identity
	h := Middleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	require.Equal(t, "ops", seen.Subject)

	seen = nil
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x?token="+tok, nil))
	require.NotNil(t, seen)

	seen = nil
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Nil(t, seen)

	rec := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnaryServerInterceptor(t *testing.T) {
	a := newAuth(t)
	tok, err := a.Issue(Identity{Role: RoleCrew, TeamID: "team-a"}, time.Hour)
	require.NoError(t, err)

	icpt := UnaryServerInterceptor(a)
	var got *Identity
	handler := func(ctx context.Context, req any) (any, error) {
		got, _ = FromContext(ctx)
		return nil, nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+tok))
	_, err = icpt(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x"}, handler)
	require.NoError(t, err)
	require.Equal(t, "team-a", got.TeamID)

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer nope"))
	_, err = icpt(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x"}, handler)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", BearerToken("Bearer abc"))
	require.Equal(t, "abc", BearerToken("bearer  abc "))
	require.Empty(t, BearerToken("Basic abc"))
	require.Empty(t, BearerToken(""))
}
