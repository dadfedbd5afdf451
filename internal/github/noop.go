package gh

import (
	"context"
)

// NewNoopFactory returns a Factory that builds clients reporting that no
// Pages site exists. It is used when no token is available.
func NewNoopFactory() Factory {
	return noopFactory{}
}

type noopFactory struct{}

func (noopFactory) New(ctx context.Context, token string) (Client, error) {
	return noopClient{}, nil
}

type noopClient struct{}

func (noopClient) GetPagesSite(ctx context.Context, owner, repo string) (PagesSite, error) {
	return PagesSite{}, ErrPagesNotFound
}

func (noopClient) GetBranchSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	return "", ErrBranchNotFound
}
