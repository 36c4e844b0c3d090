package d1

import (
	"context"

	"github.com/mesh-intelligence/xanote/internal/metrics"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

const backendName = "d1"

type statement struct {
	query  string
	handle func() (*Client, error)
}

func (s *statement) exec(ctx context.Context, args []any) (*QueryResult, error) {
	client, err := s.handle()
	if err != nil {
		return nil, err
	}
	return client.Query(ctx, s.query, args)
}

func (s *statement) Get(ctx context.Context, args ...any) (types.Row, error) {
	res, err := s.exec(ctx, args)
	metrics.StatementsTotal.WithLabelValues(backendName, "get", metrics.Status(err)).Inc()
	if err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		return nil, nil
	}
	return types.NormalizeRow(res.Results[0]), nil
}

func (s *statement) All(ctx context.Context, args ...any) ([]types.Row, error) {
	res, err := s.exec(ctx, args)
	metrics.StatementsTotal.WithLabelValues(backendName, "all", metrics.Status(err)).Inc()
	if err != nil {
		return nil, err
	}
	rows := make([]types.Row, 0, len(res.Results))
	for _, r := range res.Results {
		rows = append(rows, types.NormalizeRow(r))
	}
	return rows, nil
}

func (s *statement) Run(ctx context.Context, args ...any) (types.Result, error) {
	res, err := s.exec(ctx, args)
	metrics.StatementsTotal.WithLabelValues(backendName, "run", metrics.Status(err)).Inc()
	if err != nil {
		return types.Result{}, err
	}
	return types.Result{Changes: res.Meta.Changes, LastInsertID: res.Meta.LastRowID}, nil
}
