package question

import "context"

// GenericFiller tops up a short distribution with uncategorized questions
// from the same upstream. It reuses the fetcher's retry policy and bypasses
// the cache: fill amounts vary per request, so entries would rarely be reused.
type GenericFiller struct {
	fetcher FetchProvider
}

var _ ShortfallFiller = (*GenericFiller)(nil)

func NewGenericFiller(fetcher FetchProvider) *GenericFiller {
	return &GenericFiller{fetcher: fetcher}
}

func (g *GenericFiller) Fill(ctx context.Context, missing int, difficulty string) ([]Question, error) {
	if missing <= 0 {
		return nil, nil
	}
	return g.fetcher.Fetch(ctx, Request{Amount: missing, Difficulty: difficulty})
}
