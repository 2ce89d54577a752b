package grpcserver

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"issueInsightsTracker/internal/apperr"
	"issueInsightsTracker/internal/auth"
	"issueInsightsTracker/internal/issues"
	"issueInsightsTracker/models"
)

// DashboardStatsMethod is the full gRPC method name of the dashboard call.
const DashboardStatsMethod = "/issuetracker.v1.Insights/DashboardStats"

// DashboardSource computes the dashboard for a caller. *issues.Service satisfies it.
type DashboardSource interface {
	Dashboard(ctx context.Context, caller *models.User) (*issues.DashboardStats, error)
}

// InsightsServer exposes the dashboard over gRPC. Callers authenticate with
// the same bearer tokens as the HTTP API.
type InsightsServer interface {
	DashboardStats(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

type insightsServer struct {
	users auth.UserLookup
	dash  DashboardSource
	log   *zap.Logger
}

// NewInsightsServer returns the dashboard service backed by users and dash.
func NewInsightsServer(users auth.UserLookup, dash DashboardSource, log *zap.Logger) InsightsServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &insightsServer{users: users, dash: dash, log: log}
}

func (s *insightsServer) DashboardStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		s.log.Error("load caller", zap.Int64("user_id", p.UserID), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	if u == nil {
		return nil, status.Error(codes.Unauthenticated, "user not found")
	}
	st, err := s.dash.Dashboard(ctx, u)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindForbidden {
			return nil, status.Error(codes.PermissionDenied, apperr.DetailOf(err, "forbidden"))
		}
		s.log.Error("dashboard", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return dashboardStruct(st)
}

func dashboardStruct(st *issues.DashboardStats) (*structpb.Struct, error) {
	severity := make(map[string]any, len(st.SeverityBreakdown))
	for k, v := range st.SeverityBreakdown {
		severity[string(k)] = v
	}
	byStatus := make(map[string]any, len(st.StatusBreakdown))
	for k, v := range st.StatusBreakdown {
		byStatus[string(k)] = v
	}
	out, err := structpb.NewStruct(map[string]any{
		"total_issues":       st.TotalIssues,
		"open_issues":        st.OpenIssues,
		"severity_breakdown": severity,
		"status_breakdown":   byStatus,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode dashboard")
	}
	return out, nil
}

// RegisterInsightsServer attaches srv to s.
func RegisterInsightsServer(s grpc.ServiceRegistrar, srv InsightsServer) {
	s.RegisterService(&insightsServiceDesc, srv)
}

func dashboardStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InsightsServer).DashboardStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DashboardStatsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InsightsServer).DashboardStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var insightsServiceDesc = grpc.ServiceDesc{
	ServiceName: "issuetracker.v1.Insights",
	HandlerType: (*InsightsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "DashboardStats", Handler: dashboardStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "issuetracker/v1/insights.proto",
}
