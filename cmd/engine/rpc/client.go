package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a thin Go client for NexumService. SDKs have their own
// generated stubs; this one serves engine tooling and tests.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to an engine instance
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	return &Client{conn: conn}, nil
}

// Close tears down the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp wireMessage) error {
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, resp)
}

// RegisterWorkflow registers a workflow version
func (c *Client) RegisterWorkflow(ctx context.Context, req *WorkflowIR) (*RegisterResponse, error) {
	resp := new(RegisterResponse)
	if err := c.invoke(ctx, "RegisterWorkflow", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// StartExecution starts an execution
func (c *Client) StartExecution(ctx context.Context, req *StartRequest) (*StartResponse, error) {
	resp := new(StartResponse)
	if err := c.invoke(ctx, "StartExecution", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetStatus fetches the status projection
func (c *Client) GetStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	resp := new(StatusResponse)
	if err := c.invoke(ctx, "GetStatus", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PollTask claims a task
func (c *Client) PollTask(ctx context.Context, req *PollRequest) (*PollResponse, error) {
	resp := new(PollResponse)
	if err := c.invoke(ctx, "PollTask", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CompleteTask commits a task output
func (c *Client) CompleteTask(ctx context.Context, req *CompleteRequest) (*CompleteResponse, error) {
	resp := new(CompleteResponse)
	if err := c.invoke(ctx, "CompleteTask", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// FailTask reports a task failure
func (c *Client) FailTask(ctx context.Context, req *FailRequest) (*FailResponse, error) {
	resp := new(FailResponse)
	if err := c.invoke(ctx, "FailTask", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
