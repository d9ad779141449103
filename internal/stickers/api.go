package stickers

import "context"

// Api is the sticker store boundary: insert one, list all newest first,
// count. Implemented by the postgres Repo and the in-memory test repo.
type Api interface {
	Add(ctx context.Context, sticker Sticker) (Sticker, error)
	List(ctx context.Context) ([]Sticker, error)
	Count(ctx context.Context) (int, error)
}
