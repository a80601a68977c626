package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syftbox-sh/syftbox/internal/client/config"
	"github.com/syftbox-sh/syftbox/internal/client/datasite"
)

type Client struct {
	ds *datasite.Datasite
}

func New(config *config.Config) (*Client, error) {
	ds, err := datasite.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create datasite: %w", err)
	}

	return &Client{
		ds: ds,
	}, nil
}

func (c *Client) Start(ctx context.Context) error {
	// ds.Start blocks for the life of the process, returning once ctx is
	// canceled (or a non-recoverable startup error occurs).
	err := c.ds.Start(ctx)

	slog.Info("stopping client")
	c.ds.Stop()

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
