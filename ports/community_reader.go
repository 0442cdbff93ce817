package ports

import (
	"context"

	"gobiodiv/domain/community"
)

// CommunityReader loads a community dataset (abundances plus site
// attributes) from some source
type CommunityReader interface {
	ReadCommunity(ctx context.Context) (*community.Dataset, error)
}
