package server

import (
	"context"
	"log/slog"
	"strings"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"

	"github.com/edgetether/tether/internal/gate"
	"github.com/edgetether/tether/internal/proxy"
)

// AuthzServer implements Envoy's ext_authz Authorization service over
// the gate, for deployments where Envoy fronts the origin instead of
// the built-in proxy. Both surfaces share one decision procedure and
// one response contract.
type AuthzServer struct {
	authv3.UnimplementedAuthorizationServer

	gate           *gate.Gate
	clientIPHeader string
	logger         *slog.Logger
}

// NewAuthzServer creates a new ext_authz server over the gate
func NewAuthzServer(g *gate.Gate, clientIPHeader string, logger *slog.Logger) *AuthzServer {
	if clientIPHeader == "" {
		clientIPHeader = proxy.DefaultClientIPHeader
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthzServer{
		gate: g,
		// Envoy presents request headers with lowercased names
		clientIPHeader: strings.ToLower(clientIPHeader),
		logger:         logger,
	}
}

// Check implements the ext_authz check endpoint. A transport failure
// denies with a 500 instead of erroring the RPC, so a filter
// configured with failure_mode_allow cannot wave requests through.
func (s *AuthzServer) Check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	httpReq := req.GetAttributes().GetRequest().GetHttp()
	if httpReq == nil {
		return s.deniedResponse(codes.InvalidArgument, typev3.StatusCode_Forbidden,
			proxy.BodyForbidden, "no HTTP request attributes"), nil
	}

	headers := httpReq.GetHeaders()
	cookieHeader, hasCookie := headers["cookie"]

	input := &gate.Input{
		Host:            httpReq.GetHost(),
		CookieHeader:    cookieHeader,
		HasCookieHeader: hasCookie,
		ClientAddress:   headers[s.clientIPHeader],
		Method:          httpReq.GetMethod(),
		Path:            httpReq.GetPath(),
	}

	decision, err := s.gate.Check(ctx, input)
	if err != nil {
		// Could not decide: fail closed rather than guess
		s.logger.LogAttrs(ctx, slog.LevelError,
			"identity lookup unreachable",
			slog.String("host", input.Host),
			slog.String("error", err.Error()),
		)
		return s.deniedResponse(codes.Internal, typev3.StatusCode_InternalServerError,
			proxy.BodyInternalError, "identity lookup failed"), nil
	}

	if !decision.Admitted() {
		resp := s.deniedResponse(codes.PermissionDenied, typev3.StatusCode_Forbidden,
			proxy.DenialBody(decision.Reason), string(decision.Reason))
		denied := resp.GetDeniedResponse()
		denied.Headers = append(denied.Headers, &corev3.HeaderValueOption{
			Header: &corev3.HeaderValue{
				Key:   proxy.DecisionIDHeader,
				Value: decision.ID,
			},
		})
		return resp, nil
	}

	// Admitted: the request continues to the origin untouched
	return &authv3.CheckResponse{
		Status: &status.Status{
			Code: int32(codes.OK),
		},
		HttpResponse: &authv3.CheckResponse_OkResponse{
			OkResponse: &authv3.OkHttpResponse{},
		},
	}, nil
}

// deniedResponse creates a denial response with a fixed HTTP status and body
func (s *AuthzServer) deniedResponse(code codes.Code, httpStatus typev3.StatusCode, body, message string) *authv3.CheckResponse {
	return &authv3.CheckResponse{
		Status: &status.Status{
			Code:    int32(code),
			Message: message,
		},
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Status: &typev3.HttpStatus{Code: httpStatus},
				Body:   body,
				Headers: []*corev3.HeaderValueOption{
					{
						Header: &corev3.HeaderValue{
							Key:   "Content-Type",
							Value: "text/plain; charset=utf-8",
						},
					},
				},
			},
		},
	}
}
