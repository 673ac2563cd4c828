package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"

	pfirestore "github.com/stitchfield/api/internal/platform/firestore"
)

// countMatching runs a server-side count aggregation over the query.
func countMatching(ctx context.Context, op string, query firestore.Query) (int64, error) {
	results, err := query.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, pfirestore.WrapError(op, err)
	}
	raw, ok := results["total"]
	if !ok {
		return 0, fmt.Errorf("%s: count aggregation missing total", op)
	}
	value, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("%s: unexpected count aggregation type %T", op, raw)
	}
	return value.GetIntegerValue(), nil
}

// pageWindow translates 1-based page/limit values into a Firestore offset window.
func pageWindow(query firestore.Query, page, limit int) firestore.Query {
	if limit <= 0 {
		return query
	}
	if page < 1 {
		page = 1
	}
	return query.Offset((page - 1) * limit).Limit(limit)
}
