package rentl

import (
	"context"

	"github.com/trevorWieland/rentl-sub001/internal/invoke"
)

// Invoker executes one model call. When provided via WithInvoker it
// replaces the built-in HTTP client wholesale, e.g. for local inference
// or scripted test doubles. Implementations must be safe for concurrent
// use; per-agent endpoint and model settings arrive on each request.
// Uses public request/response structs (not internal/invoke types) so
// external consumers never import internal packages; New() wraps the
// Invoker in an adapter for internal use.
type Invoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (InvokeResponse, error)
}

// invokerAdapter wraps a public Invoker to satisfy invoke.Client.
type invokerAdapter struct {
	inv Invoker
}

func (a *invokerAdapter) Invoke(ctx context.Context, req invoke.Request) (*invoke.Response, error) {
	pub := InvokeRequest{
		Model:        req.Model,
		System:       req.System,
		User:         req.User,
		OutputSchema: req.OutputSchema,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	}
	for _, tool := range req.Tools {
		pub.Tools = append(pub.Tools, InvokeTool{Name: tool.Name, Description: tool.Description})
	}
	resp, err := a.inv.Invoke(ctx, pub)
	if err != nil {
		return nil, err
	}
	return &invoke.Response{
		Content:      resp.Content,
		Model:        resp.Model,
		PromptTokens: resp.PromptTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}
