package rpc

// Message types for NexumService. Shapes and field numbers mirror
// proto/nexum.proto; encoding lives in wire.go.

// WorkflowIR is the RegisterWorkflow request
type WorkflowIR struct {
	WorkflowID  string
	VersionHash string
	IRJSON      string
}

// RegisterResponse reports registration outcome and compatibility class
type RegisterResponse struct {
	OK            bool
	Compatibility string
	Message       string
}

// StartRequest is the StartExecution request
type StartRequest struct {
	WorkflowID  string
	VersionHash string
	InputJSON   string
}

// StartResponse carries the minted execution id
type StartResponse struct {
	ExecutionID string
}

// StatusRequest is the GetStatus request
type StatusRequest struct {
	ExecutionID string
}

// StatusResponse is the execution status projection
type StatusResponse struct {
	Status             string
	CompletedNodesJSON string
}

// PollRequest is the PollTask request
type PollRequest struct {
	WorkerID    string
	VersionHash string
}

// PollResponse carries at most one leased task
type PollResponse struct {
	HasTask     bool
	TaskID      string
	NodeID      string
	ExecutionID string
	InputJSON   string
}

// CompleteRequest is the CompleteTask request
type CompleteRequest struct {
	TaskID     string
	OutputJSON string
}

// CompleteResponse is empty
type CompleteResponse struct{}

// FailRequest is the FailTask request
type FailRequest struct {
	TaskID       string
	ErrorMessage string
}

// FailResponse is empty
type FailResponse struct{}
