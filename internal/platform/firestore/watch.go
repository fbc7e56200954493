package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
)

// DocumentUpdate carries one observed state of a watched document.
type DocumentUpdate struct {
	Snapshot *firestore.DocumentSnapshot
	Exists   bool
}

// WatchDocument attaches a snapshot listener to the given document reference
// and streams every observed state until ctx is cancelled or the listener
// fails. The updates channel is closed when the watch ends; a terminal error,
// if any, is delivered on the returned error channel. Context cancellation is
// not reported as an error.
func WatchDocument(ctx context.Context, ref *firestore.DocumentRef, buffer int) (<-chan DocumentUpdate, <-chan error) {
	if buffer < 0 {
		buffer = 0
	}
	updates := make(chan DocumentUpdate, buffer)
	errCh := make(chan error, 1)

	if ref == nil {
		close(updates)
		errCh <- errors.New("firestore: document ref is required")
		close(errCh)
		return updates, errCh
	}

	go func() {
		defer close(updates)
		defer close(errCh)

		iter := ref.Snapshots(ctx)
		defer iter.Stop()

		for {
			snapshot, err := iter.Next()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
					return
				}
				errCh <- WrapError(ref.Path+".watch", err)
				return
			}
			update := DocumentUpdate{Snapshot: snapshot, Exists: snapshot != nil && snapshot.Exists()}
			select {
			case updates <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	return updates, errCh
}
