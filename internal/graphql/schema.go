package graphql

import (
	"context"
	_ "embed"

	gql "github.com/graph-gophers/graphql-go"
)

//go:embed schema.graphql
var Schema string

type viewerKey struct{}

// WithViewer кладет в контекст идентификатор зрителя, полученный из токена
func WithViewer(ctx context.Context, viewerID string) context.Context {
	return context.WithValue(ctx, viewerKey{}, viewerID)
}

// ViewerFrom возвращает идентификатор зрителя или "" для анонима
func ViewerFrom(ctx context.Context) string {
	id, _ := ctx.Value(viewerKey{}).(string)
	return id
}

// NewSchema разбирает схему и привязывает к ней резолвер
func NewSchema(r *Resolver) (*gql.Schema, error) {
	return gql.ParseSchema(Schema, r,
		gql.MaxDepth(12),
		gql.MaxParallelism(20),
	)
}
