// Package engine performs one synchronization run from a Trello board to a
// Discord channel.
//
// A run is a small state machine:
//
//	init -> fetching -> filtering -> delivering -> checkpointing -> done
//	  \         \                        \               \
//	   +---------+------------------------+---------------+--> aborted
//
// Run Flow:
//  1. Load the board's checkpoint; with none stored, start from now
//  2. Capture the fetch instant, then fetch every action newer than the checkpoint
//  3. Filter the page (mutes, vacuous and companion updates)
//  4. Reverse into chronological order
//  5. Render and deliver one message at a time
//  6. Store the fetch instant as the new checkpoint
//
// The fetch instant is captured before the request is sent, so an action
// created while the request is in flight is fetched again by the next run.
// Delivery is at-least-once: a crash between delivery and checkpointing
// replays the batch.
//
// CRITICAL PATTERNS:
//
// No in-process retry:
// A source failure aborts the run with the checkpoint untouched. The next
// scheduled run is the retry.
//
// Rejected messages are lost:
// A message the webhook refuses is reported and skipped; the checkpoint still
// advances so one bad message cannot wedge the board.
package engine
