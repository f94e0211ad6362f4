/*
Package mempool implements the Mempool Service (spec §4.5): it subscribes
to the storage engine's snapshot notification channel, keeps the latest
committed Snapshot cached, and runs the full transaction pipeline against
an ephemeral fork of that cached snapshot for every CheckTx request.

The service's internal loop biases toward snapshot updates over pending
CheckTx requests: on every iteration it first drains any notification
already queued, non-blocking, before selecting between a new notification
and the next request. A block that just committed is visible to the next
CheckTx even if a burst of requests arrived first (spec §9 "mempool loop
bias").
*/
package mempool
