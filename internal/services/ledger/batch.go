package ledger

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// CreateTransactionMany records every input independently, each in its own
// database transaction, with at most BatchWorkers in flight. A failed item
// does not stop the batch. Once ctx is done, items not yet started are marked
// failed and the context error is returned alongside the partial result.
func (s *Service) CreateTransactionMany(ctx context.Context, inputs []TransactionInput) (BatchResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.CreateTransactionMany")
	defer span.End()

	items := make([]BatchItem, len(inputs))
	sem := semaphore.NewWeighted(int64(s.workers))

	var g errgroup.Group

	for i, in := range inputs {
		items[i].Index = i

		err := sem.Acquire(ctx, 1)
		if err != nil {
			for j := i; j < len(inputs); j++ {
				items[j].Index = j
				items[j].Error = err.Error()
			}

			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			res, err := s.CreateTransaction(ctx, in)
			if err != nil {
				s.logger.Warn("batch item failed",
					zap.Int("index", i),
					zap.String("external_id", in.ExternalTransactionID),
					zap.Error(err),
				)
				items[i].Error = err.Error()

				return nil
			}

			tx := res.Transaction
			items[i].Transaction = &tx
			items[i].Replayed = res.Replayed

			return nil
		})
	}

	_ = g.Wait()

	var out BatchResult

	out.Items = items

	for _, it := range items {
		switch {
		case it.Error != "":
			out.Failed++
		case it.Replayed:
			out.Replayed++
		default:
			out.Succeeded++
		}
	}

	s.metrics.AddBatchItems("ok", out.Succeeded)
	s.metrics.AddBatchItems("replayed", out.Replayed)
	s.metrics.AddBatchItems("failed", out.Failed)

	return out, ctx.Err()
}
