package sources

import "context"

// Source is the remote content service books are harvested from.
type Source interface {
	GetBookInfo(ctx context.Context, id string) (*BookInfo, error)
	GetChapters(ctx context.Context, id string) ([]Chapter, error)
	GetTOC(ctx context.Context, id string) ([]TocNode, error)
}
