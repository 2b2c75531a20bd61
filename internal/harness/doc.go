// Package harness runs synchronization scenarios end to end.
//
// A scenario describes a board's action log, a stored checkpoint, the mutes
// of the run and how the Discord webhook behaves. The harness serves the
// action log from a fake Trello API, records messages on a fake webhook, and
// runs the real engine against a fresh checkpoint database with a frozen
// clock.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	board_id: board-1                 # optional
//	now: 2024-03-01T12:00:00Z
//	checkpoint: 2024-03-01T10:00:00Z  # optional, none stored when omitted
//	actions: ../fixtures/board.json   # relative to the scenario file
//	config:
//	  muted_action_types: [commentCard]
//	  muted_update_fields: [pos]
//	  muted_update_lists: [Archive]
//	  aliases: { alice: "Alice (PM)" }
//	source:
//	  unavailable: true
//	  status: 503
//	sink:
//	  fail_on: [1]                    # zero-based delivery attempts
//	expect:
//	  checkpoint: advanced            # or unchanged
//	  error: DELIVERY_FAILED          # run error code, empty for a clean run
//	  messages:
//	    - "`bob` joined card `Fix login`."
//	assertions:
//	  - type: message_order
//	    texts: ["created card", "joined card"]
//	  - type: dropped
//	    reason: vacuous_update
//	    count: 1
//	  - type: history
//	    count: 1
//	    state: done
//
// # Golden Files
//
// RunWithGolden writes a snapshot of the run (state, error, checkpoint
// outcome, then the delivered messages) and compares it against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// # Determinism
//
// The clock is frozen at the scenario's now, so the fetch instant and the
// new checkpoint equal now. The run id is fixed. Fixtures are served newest
// first, as the real API does, and filtered by the requested "since" and
// "filter" parameters.
package harness
