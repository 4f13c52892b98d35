package overtime

import "context"

type Service interface {
	Start(ctx context.Context, staffID string) (Response, error)
	Stop(ctx context.Context, staffID string) (Response, error)
	Current(ctx context.Context, staffID string) (*Response, error)

	Approve(ctx context.Context, req ReviewRequest) (Response, error)
	Reject(ctx context.Context, req ReviewRequest) (Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}
