package memory

import (
	"container/heap"
	"time"
)

type trackedNonce struct {
	deadline time.Time
	id       string
}

type trackedNonces []*trackedNonce

func (tn trackedNonces) Len() int {
	return len(tn)
}

func (tn trackedNonces) Less(i, j int) bool {
	return tn[i].deadline.Before(tn[j].deadline)
}

func (tn trackedNonces) Swap(i, j int) {
	tn[i], tn[j] = tn[j], tn[i]
}

func (tn *trackedNonces) Push(e any) {
	*tn = append(*tn, e.(*trackedNonce))
}

func (tn *trackedNonces) Pop() any {
	n := len(*tn)
	e := (*tn)[n-1]
	(*tn)[n-1] = nil
	*tn = (*tn)[:n-1]
	return e
}

type evictionQueue struct {
	items trackedNonces
}

func newEvictionQueue() *evictionQueue {
	eq := new(evictionQueue)
	heap.Init(&eq.items)
	return eq
}

func (eq *evictionQueue) Push(id string, deadline time.Time) {
	heap.Push(&eq.items, &trackedNonce{
		deadline: deadline,
		id:       id,
	})
}

func (eq *evictionQueue) Pop() *trackedNonce {
	return heap.Pop(&eq.items).(*trackedNonce)
}

func (eq *evictionQueue) Peek() *trackedNonce {
	return eq.items[0]
}

func (eq *evictionQueue) Len() int {
	return eq.items.Len()
}
