package swapd

import (
	"context"
	"errors"

	"github.com/voltwallet/swapd/swapdb"
)

// subscribeFunc opens a push-update subscription for a single swap id.
type subscribeFunc func(ctx context.Context, swapId string) (
	<-chan *ServerUpdate, <-chan error, error)

// trackerConfig contains the collaborators of a swap status tracker.
type trackerConfig struct {
	store swapdb.SwapStore

	// subscribe opens the push channel. It is taken from config so that
	// callers can wrap it, for example with reconnect logic.
	subscribe subscribeFunc
}

// tracker drives the state machine of a single swap. It consumes the push
// channel of the server, persists every transition and dispatches to the
// settlement coordinator. One tracker exists per active swap, trackers for
// different swaps are fully independent.
type tracker struct {
	cfg *trackerConfig

	swap *swapdb.Swap

	coordinator *coordinator

	log *PrefixLog

	// dispatched records the distinct states that have already been
	// handed to the coordinator. A duplicate push of the same status must
	// not re-trigger settlement actions.
	dispatched map[swapdb.SwapState]struct{}
}

// newTracker returns a tracker for the given stored swap.
func newTracker(cfg *trackerConfig, swap *swapdb.Swap,
	coordinator *coordinator) *tracker {

	return &tracker{
		cfg:         cfg,
		swap:        swap,
		coordinator: coordinator,
		log: &PrefixLog{
			Logger: log,
			SwapId: swap.Id,
		},
		dispatched: make(map[swapdb.SwapState]struct{}),
	}
}

// run subscribes to the swap's updates and blocks until a terminal state is
// reached, the subscription fails or the context is cancelled. A transport
// error is surfaced and the subscription is not reopened, the last persisted
// state remains intact and a later run resumes from it.
func (t *tracker) run(ctx context.Context) error {
	if t.swap.State.IsFinal() {
		t.log.Infof("Swap already in terminal state %v, not tracking",
			t.swap.State)
		return nil
	}

	// The subscription lives exactly as long as this tracker. Cancelling
	// on return tears down the push channel once the swap settled, so
	// long-running callers don't accumulate connections.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updateChan, errChan, err := t.cfg.subscribe(ctx, t.swap.Id)
	if err != nil {
		return err
	}

	t.log.Infof("Tracking %v swap from state %v", t.swap.Kind,
		t.swap.State)

	for {
		select {
		case update, ok := <-updateChan:
			if !ok {
				// The subscription's read loop ended, the
				// error channel tells us why.
				updateChan = nil
				continue
			}

			if err := t.handleUpdate(ctx, update); err != nil {
				t.log.Errorf("Handling update %v: %v",
					update.State, err)
			}

			if update.State.IsFinal() {
				t.log.Infof("Swap reached terminal state %v",
					update.State)
				return nil
			}

		case err := <-errChan:
			if errors.Is(err, errServerSubscriptionComplete) {
				t.log.Infof("Swap subscription: %v", err)
				return nil
			}

			return err

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleUpdate persists a single state transition and dispatches it to the
// settlement coordinator at most once per distinct state.
func (t *tracker) handleUpdate(ctx context.Context,
	update *ServerUpdate) error {

	t.log.Infof("Server update: %v received, timestamp: %v", update.State,
		update.Timestamp)

	// Persist before we react, so that a crash mid-reaction cannot lose
	// the transition itself.
	err := t.cfg.store.UpdateState(
		ctx, t.swap.Id, t.swap.Kind, update.State,
		update.FailureReason,
	)
	if err != nil {
		return err
	}

	t.swap.State = update.State
	if t.swap.FailureReason == "" {
		t.swap.FailureReason = update.FailureReason
	}

	if _, ok := t.dispatched[update.State]; ok {
		t.log.Infof("Duplicate status %v, settlement not re-triggered",
			update.State)
		return nil
	}
	t.dispatched[update.State] = struct{}{}

	return t.coordinator.stateChanged(ctx, update)
}
