package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/chazu/microc/buildcache"
	"github.com/chazu/microc/compiler"
	"github.com/chazu/microc/pkg/bytecode"
)

// CompileServiceName is the fully-qualified name of the compile service.
const CompileServiceName = "microc.v1.CompileService"

// Procedure paths of the compile service.
const (
	CheckProcedure   = "/" + CompileServiceName + "/Check"
	CompileProcedure = "/" + CompileServiceName + "/Compile"
	RunProcedure     = "/" + CompileServiceName + "/Run"
)

// CheckRequest asks for the diagnostics of a source file.
type CheckRequest struct {
	Source       string `json:"source"`
	StrictScopes bool   `json:"strictScopes,omitempty"`
}

// CheckResponse lists the problems found. Ok is true when there are none.
type CheckResponse struct {
	Ok          bool         `json:"ok"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// CompileRequest asks for the bytecode of a source file.
type CompileRequest struct {
	Source       string `json:"source"`
	StrictScopes bool   `json:"strictScopes,omitempty"`
	Listing      bool   `json:"listing,omitempty"`
}

// CompileResponse carries the compiled program, or diagnostics on failure.
type CompileResponse struct {
	Ok          bool           `json:"ok"`
	Code        []int          `json:"code,omitempty"`
	Symbols     map[string]int `json:"symbols,omitempty"`
	GlobalCells int            `json:"globalCells,omitempty"`
	Listing     string         `json:"listing,omitempty"`
	Cached      bool           `json:"cached,omitempty"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
}

// RunRequest asks to compile a source file and run it on the reference
// machine.
type RunRequest struct {
	Source       string `json:"source"`
	StrictScopes bool   `json:"strictScopes,omitempty"`
	Input        string `json:"input,omitempty"`
	MaxSteps     int    `json:"maxSteps,omitempty"`
}

// RunResponse carries the program output. Error is set when the machine
// stopped abnormally; Output then holds what was printed before.
type RunResponse struct {
	Ok          bool         `json:"ok"`
	Output      string       `json:"output"`
	Steps       int          `json:"steps"`
	Error       string       `json:"error,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// CompileService implements the compile service handlers.
type CompileService struct {
	worker   *Worker
	cache    *buildcache.Cache
	maxSteps int
	timeout  time.Duration
}

// NewCompileService creates a CompileService. The cache may be nil.
func NewCompileService(worker *Worker, cache *buildcache.Cache, maxSteps int, timeout time.Duration) *CompileService {
	return &CompileService{
		worker:   worker,
		cache:    cache,
		maxSteps: maxSteps,
		timeout:  timeout,
	}
}

// Check parses and type-checks a source file.
func (s *CompileService) Check(
	ctx context.Context,
	req *connect.Request[CheckRequest],
) (*connect.Response[CheckResponse], error) {
	if strings.TrimSpace(req.Msg.Source) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	opts := compiler.Options{StrictScopes: req.Msg.StrictScopes}

	result, err := s.worker.Do(ctx, func(context.Context) (any, error) {
		prog, err := compiler.Parse(req.Msg.Source)
		if err != nil {
			return Diagnose(err), nil
		}
		return Diagnose(prog.Check(opts)), nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	diags := result.([]Diagnostic)
	return connect.NewResponse(&CheckResponse{Ok: len(diags) == 0, Diagnostics: diags}), nil
}

// Compile builds a source file into bytecode.
func (s *CompileService) Compile(
	ctx context.Context,
	req *connect.Request[CompileRequest],
) (*connect.Response[CompileResponse], error) {
	if strings.TrimSpace(req.Msg.Source) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	result, err := s.worker.Do(ctx, func(context.Context) (any, error) {
		return s.compile(req.Msg), nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*CompileResponse)), nil
}

func (s *CompileService) compile(req *CompileRequest) *CompileResponse {
	opts := compiler.Options{StrictScopes: req.StrictScopes}
	prog, err := compiler.Parse(req.Source)
	if err != nil {
		return &CompileResponse{Diagnostics: Diagnose(err)}
	}

	// The listing is not cached, so listing requests always rebuild.
	if req.Listing {
		out, err := compiler.Build(prog, opts)
		if err != nil {
			return &CompileResponse{Diagnostics: Diagnose(err)}
		}
		return &CompileResponse{
			Ok:          true,
			Code:        out.Code,
			Symbols:     out.Symbols,
			GlobalCells: out.GlobalCells,
			Listing:     out.Listing,
		}
	}

	obj, cached, err := buildcache.Build(s.cache, prog, opts)
	if err != nil {
		return &CompileResponse{Diagnostics: Diagnose(err)}
	}
	return &CompileResponse{
		Ok:          true,
		Code:        obj.Code,
		Symbols:     obj.Symbols,
		GlobalCells: obj.GlobalCells,
		Cached:      cached,
	}
}

// Run builds a source file and executes it with the given input.
func (s *CompileService) Run(
	ctx context.Context,
	req *connect.Request[RunRequest],
) (*connect.Response[RunResponse], error) {
	if strings.TrimSpace(req.Msg.Source) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	maxSteps := req.Msg.MaxSteps
	if maxSteps <= 0 || (s.maxSteps > 0 && maxSteps > s.maxSteps) {
		maxSteps = s.maxSteps
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.worker.Do(ctx, func(ctx context.Context) (any, error) {
		opts := compiler.Options{StrictScopes: req.Msg.StrictScopes}
		prog, err := compiler.Parse(req.Msg.Source)
		if err != nil {
			return &RunResponse{Diagnostics: Diagnose(err)}, nil
		}
		obj, _, err := buildcache.Build(s.cache, prog, opts)
		if err != nil {
			return &RunResponse{Diagnostics: Diagnose(err)}, nil
		}

		var out bytes.Buffer
		res, err := bytecode.Run(ctx, obj.Code, bytecode.Options{
			Input:    strings.NewReader(req.Msg.Input),
			Output:   &out,
			MaxSteps: maxSteps,
		})
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		resp := &RunResponse{Ok: err == nil, Output: out.String()}
		if res != nil {
			resp.Steps = res.Steps
		}
		if err != nil {
			resp.Error = err.Error()
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, connect.NewError(connect.CodeDeadlineExceeded, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*RunResponse)), nil
}

// NewCompileServiceHandler builds an HTTP handler serving every procedure
// of svc. It returns the path prefix to mount the handler on.
func NewCompileServiceHandler(svc *CompileService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	check := connect.NewUnaryHandler(CheckProcedure, svc.Check, opts...)
	compile := connect.NewUnaryHandler(CompileProcedure, svc.Compile, opts...)
	run := connect.NewUnaryHandler(RunProcedure, svc.Run, opts...)

	return "/" + CompileServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case CheckProcedure:
			check.ServeHTTP(w, r)
		case CompileProcedure:
			compile.ServeHTTP(w, r)
		case RunProcedure:
			run.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// CompileServiceClient calls a remote compile service.
type CompileServiceClient struct {
	check   *connect.Client[CheckRequest, CheckResponse]
	compile *connect.Client[CompileRequest, CompileResponse]
	run     *connect.Client[RunRequest, RunResponse]
}

// NewCompileServiceClient creates a client for the service at baseURL.
func NewCompileServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *CompileServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &CompileServiceClient{
		check:   connect.NewClient[CheckRequest, CheckResponse](httpClient, baseURL+CheckProcedure, opts...),
		compile: connect.NewClient[CompileRequest, CompileResponse](httpClient, baseURL+CompileProcedure, opts...),
		run:     connect.NewClient[RunRequest, RunResponse](httpClient, baseURL+RunProcedure, opts...),
	}
}

// Check calls CompileService.Check.
func (c *CompileServiceClient) Check(ctx context.Context, req *CheckRequest) (*CheckResponse, error) {
	resp, err := c.check.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Compile calls CompileService.Compile.
func (c *CompileServiceClient) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	resp, err := c.compile.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Run calls CompileService.Run.
func (c *CompileServiceClient) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	resp, err := c.run.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
