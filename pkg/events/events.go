package events

import (
	"sort"
	"sync"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/google/uuid"
	"github.com/penumbra-zone/cnidarium-core/pkg/log"
)

// Type is a committed event's fully-qualified type name (spec §4.4). Every
// type a component or action records against a Delta is named here so the
// taxonomy lives in one place rather than as scattered string literals.
type Type string

const (
	TypeNullifierSpent    Type = "nullifier_spent"
	TypeDelegatorVoteCast Type = "delegator_vote_cast"
	TypeDelegate          Type = "delegate"
	TypeUndelegate        Type = "undelegate"
	TypeSwapClaimed       Type = "swap_claimed"
	TypePositionOpened    Type = "position_opened"
	TypePositionClosed    Type = "position_closed"
	TypeProposalSubmitted Type = "proposal_submitted"
	TypeIbcAction         Type = "ibc_action"
	TypeBlockCommitted    Type = "block_committed"
	TypeEpochEnded        Type = "epoch_ended"
)

// SortAttributes reorders ev's attributes lexicographically by key in
// place and returns ev, satisfying spec §4.4's requirement that an event's
// attribute list be in a deterministic order before it becomes externally
// visible. Components and actions may record attributes in whatever order
// is convenient; the driver applies this to each transaction's events in
// deliver_tx, and Broker.PublishBlock applies it again at commit.
func SortAttributes(ev abcitypes.Event) abcitypes.Event {
	sort.SliceStable(ev.Attributes, func(i, j int) bool {
		return ev.Attributes[i].Key < ev.Attributes[j].Key
	})
	return ev
}

// SortAll applies SortAttributes to every event in evs in place and
// returns evs, for use on a Delta's full event list right before it
// leaves the driver (e.g. in FinalizeBlock's response).
func SortAll(evs []abcitypes.Event) []abcitypes.Event {
	for i := range evs {
		evs[i] = SortAttributes(evs[i])
	}
	return evs
}

// Subscriber is a channel that receives committed events.
type Subscriber chan abcitypes.Event

// Broker fans newly-committed block events out to external consumers (an
// indexer, a block explorer) — distinct from pkg/store's internal
// snapshotNotifier, which exists only to let the mempool cache the latest
// Snapshot. Adapted from the teacher's Broker: same non-blocking
// publish/fan-out/graceful-shutdown shape, now carrying abcitypes.Event
// instead of a cluster-orchestration Event struct.
type Broker struct {
	subscribers map[Subscriber]string // subscriber -> subscription ID, for correlation in logs
	mu          sync.RWMutex
	eventCh     chan abcitypes.Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]string),
		eventCh:     make(chan abcitypes.Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel. Each
// subscription is assigned a UUID purely for log correlation (spec §5: the
// event broker is not consensus state, so this ID never needs to be
// deterministic across replicas).
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	id := uuid.NewString()
	b.subscribers[sub] = id
	log.WithComponent("events").Debug().Str("subscriber_id", id).Msg("subscriber attached")
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.subscribers[sub]
	delete(b.subscribers, sub)
	close(sub)
	log.WithComponent("events").Debug().Str("subscriber_id", id).Msg("subscriber detached")
}

// PublishBlock sorts and fans out every event committed in a block.
func (b *Broker) PublishBlock(evs []abcitypes.Event) {
	for _, ev := range SortAll(evs) {
		b.publish(ev)
	}
}

func (b *Broker) publish(ev abcitypes.Event) {
	select {
	case b.eventCh <- ev:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case ev := <-b.eventCh:
			b.broadcast(ev)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(ev abcitypes.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
