package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nexum-io/nexum/cmd/engine/service"
	"github.com/nexum-io/nexum/common/logger"
	"github.com/nexum-io/nexum/common/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// serviceName is the fully qualified gRPC service name
const serviceName = "nexum.NexumService"

// NexumServer is the server-side contract of NexumService
type NexumServer interface {
	RegisterWorkflow(ctx context.Context, req *WorkflowIR) (*RegisterResponse, error)
	StartExecution(ctx context.Context, req *StartRequest) (*StartResponse, error)
	GetStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error)
	PollTask(ctx context.Context, req *PollRequest) (*PollResponse, error)
	CompleteTask(ctx context.Context, req *CompleteRequest) (*CompleteResponse, error)
	FailTask(ctx context.Context, req *FailRequest) (*FailResponse, error)
}

// Service binds the engine services to the wire surface
type Service struct {
	registry   *service.RegistryService
	executions *service.ExecutionService
	queue      *service.QueueService
	logger     *logger.Logger
}

// NewService creates the NexumService implementation
func NewService(
	registry *service.RegistryService,
	executions *service.ExecutionService,
	queue *service.QueueService,
	log *logger.Logger,
) *Service {
	return &Service{
		registry:   registry,
		executions: executions,
		queue:      queue,
		logger:     log,
	}
}

// RegisterWorkflow stores a workflow version and reports compatibility
func (s *Service) RegisterWorkflow(ctx context.Context, req *WorkflowIR) (*RegisterResponse, error) {
	result, err := s.registry.Register(ctx, req.WorkflowID, req.VersionHash, req.IRJSON)
	if err != nil {
		return nil, toStatus(err)
	}

	return &RegisterResponse{
		OK:            true,
		Compatibility: result.Compatibility,
		Message:       result.Message,
	}, nil
}

// StartExecution creates an execution and schedules its root nodes
func (s *Service) StartExecution(ctx context.Context, req *StartRequest) (*StartResponse, error) {
	executionID, err := s.executions.Start(ctx, req.WorkflowID, req.VersionHash, json.RawMessage(req.InputJSON))
	if err != nil {
		return nil, toStatus(err)
	}

	return &StartResponse{ExecutionID: executionID}, nil
}

// GetStatus returns the status projection for one execution
func (s *Service) GetStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	exec, err := s.executions.Status(ctx, req.ExecutionID)
	if err != nil {
		return nil, toStatus(err)
	}

	completed := string(exec.CompletedNodes)
	if completed == "" {
		completed = "{}"
	}

	return &StatusResponse{
		Status:             string(exec.Status),
		CompletedNodesJSON: completed,
	}, nil
}

// PollTask leases the oldest claimable task for a version hash
func (s *Service) PollTask(ctx context.Context, req *PollRequest) (*PollResponse, error) {
	task, err := s.queue.Poll(ctx, req.WorkerID, req.VersionHash)
	if err != nil {
		return nil, toStatus(err)
	}

	if task == nil {
		return &PollResponse{HasTask: false}, nil
	}

	return &PollResponse{
		HasTask:     true,
		TaskID:      task.TaskID,
		NodeID:      task.NodeID,
		ExecutionID: task.ExecutionID,
		InputJSON:   string(task.InputJSON),
	}, nil
}

// CompleteTask commits a worker's output and advances the DAG
func (s *Service) CompleteTask(ctx context.Context, req *CompleteRequest) (*CompleteResponse, error) {
	if err := s.queue.Complete(ctx, req.TaskID, json.RawMessage(req.OutputJSON)); err != nil {
		return nil, toStatus(err)
	}
	return &CompleteResponse{}, nil
}

// FailTask applies the retry policy to a worker-reported failure
func (s *Service) FailTask(ctx context.Context, req *FailRequest) (*FailResponse, error) {
	if err := s.queue.Fail(ctx, req.TaskID, req.ErrorMessage); err != nil {
		return nil, toStatus(err)
	}
	return &FailResponse{}, nil
}

// toStatus maps engine sentinel errors onto gRPC status codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, models.ErrFailedPrecondition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, models.ErrDataLoss):
		return status.Error(codes.DataLoss, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ServiceDesc is the hand-rolled grpc service descriptor; it plays the
// role protoc-generated registration code usually does.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*NexumServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterWorkflow", Handler: registerWorkflowHandler},
		{MethodName: "StartExecution", Handler: startExecutionHandler},
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "PollTask", Handler: pollTaskHandler},
		{MethodName: "CompleteTask", Handler: completeTaskHandler},
		{MethodName: "FailTask", Handler: failTaskHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proto/nexum.proto",
}

func registerWorkflowHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(WorkflowIR)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NexumServer).RegisterWorkflow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RegisterWorkflow"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NexumServer).RegisterWorkflow(ctx, req.(*WorkflowIR))
	}
	return interceptor(ctx, in, info, handler)
}

func startExecutionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StartRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NexumServer).StartExecution(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/StartExecution"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NexumServer).StartExecution(ctx, req.(*StartRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NexumServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NexumServer).GetStatus(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pollTaskHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PollRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NexumServer).PollTask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/PollTask"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NexumServer).PollTask(ctx, req.(*PollRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func completeTaskHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CompleteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NexumServer).CompleteTask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/CompleteTask"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NexumServer).CompleteTask(ctx, req.(*CompleteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func failTaskHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FailRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NexumServer).FailTask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/FailTask"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NexumServer).FailTask(ctx, req.(*FailRequest))
	}
	return interceptor(ctx, in, info, handler)
}
