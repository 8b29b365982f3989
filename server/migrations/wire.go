//go:build wireinject
// +build wireinject

package migrations

import (
	"context"

	"github.com/google/wire"

	"github.com/titpetric/cmsmigrate/client"
	"github.com/titpetric/cmsmigrate/inject"
	"github.com/titpetric/cmsmigrate/remote"
)

func New(ctx context.Context, config *Config) (*Server, func(), error) {
	wire.Build(
		inject.Inject,
		client.Inject,
		wire.FieldsOf(new(*Config), "Management"),
		NewStore,
		NewOAuth,
		NewManager,
		remote.NewBackend,
		NewServer,
	)
	return nil, nil, nil
}
