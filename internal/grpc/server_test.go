package grpcserver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"issueInsightsTracker/internal/auth"
	"issueInsightsTracker/internal/config"
	"issueInsightsTracker/internal/issues"
	"issueInsightsTracker/models"
)

func TestServer_HealthFollowsCheck(t *testing.T) {
	tokens, err := auth.NewTokens(config.AuthConfig{SecretKey: "k", Algorithm: "HS256", AccessTokenExpireMinutes: 5})
	require.NoError(t, err)

	var down atomic.Bool
	check := func(context.Context) error {
		if down.Load() {
			return errors.New("db unreachable")
		}
		return nil
	}
	s, err := New("127.0.0.1:0", tokens, check, nil, nil)
	require.NoError(t, err)
	go func() { _ = s.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(s.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err, "health check must not require a token")
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	down.Store(true)
	s.refresh(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

type userMap map[int64]*models.User

func (m userMap) GetByID(_ context.Context, id int64) (*models.User, error) { return m[id], nil }

type dashFunc func(caller *models.User) (*issues.DashboardStats, error)

func (f dashFunc) Dashboard(_ context.Context, caller *models.User) (*issues.DashboardStats, error) {
	return f(caller)
}

func TestInsights_DashboardStatsRequiresToken(t *testing.T) {
	tokens, err := auth.NewTokens(config.AuthConfig{SecretKey: "k", Algorithm: "HS256", AccessTokenExpireMinutes: 5})
	require.NoError(t, err)
	alice := &models.User{ID: 7, Email: "alice@example.com", Role: models.RoleReporter}

	var seen atomic.Int64
	dash := dashFunc(func(caller *models.User) (*issues.DashboardStats, error) {
		seen.Store(caller.ID)
		st := issues.Summarize([]models.Issue{
			{Status: models.IssueStatusOpen, Severity: models.IssueSeverityHigh},
			{Status: models.IssueStatusDone, Severity: models.IssueSeverityLow},
		})
		return &st, nil
	})
	s, err := New("127.0.0.1:0", tokens, nil, NewInsightsServer(userMap{alice.ID: alice}, dash, nil), nil)
	require.NoError(t, err)
	go func() { _ = s.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(s.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	call := func(ctx context.Context) (*structpb.Struct, error) {
		out := new(structpb.Struct)
		err := conn.Invoke(ctx, DashboardStatsMethod, &emptypb.Empty{}, out)
		return out, err
	}

	_, err = call(ctx)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ghost, err := tokens.Issue(&models.User{ID: 99, Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = call(metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+ghost))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	tok, err := tokens.Issue(alice)
	require.NoError(t, err)
	out, err := call(metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, seen.Load())
	fields := out.AsMap()
	assert.EqualValues(t, 2, fields["total_issues"])
	assert.EqualValues(t, 1, fields["open_issues"])
	assert.Equal(t, map[string]any{"low": 1.0, "medium": 0.0, "high": 1.0, "critical": 0.0}, fields["severity_breakdown"])
}
