package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardhook/internal/filter"
	"github.com/roach88/boardhook/internal/render"
	"github.com/roach88/boardhook/internal/trello"
)

func TestPreview_FiltersOrdersAndRenders(t *testing.T) {
	muted := trello.Action{
		ID:            "c0",
		Type:          trello.TypeCreateCard,
		Date:          t0,
		MemberCreator: &trello.Member{Username: "alice"},
	}
	page := []trello.Action{
		comment("a3", "third", t0.Add(3*time.Minute)),
		comment("a2", "", t0.Add(2*time.Minute)),
		comment("a1", "first", t0.Add(1*time.Minute)),
		muted,
	}
	cfg := filter.NewConfig([]string{trello.TypeCreateCard}, nil, nil)

	res := Preview(page, cfg, render.Default(), nil)

	assert.NotContains(t, res.RequestedTypes, trello.TypeCreateCard)
	assert.Equal(t, 4, res.Filter.Input)
	assert.Equal(t, 3, res.Filter.Kept)
	assert.Equal(t, 1, res.Filter.Dropped[filter.ReasonMutedType])

	require.Len(t, res.Items, 3)
	assert.Equal(t, "a1", res.Items[0].ActionID)
	assert.Equal(t, "`alice` commented card `Fix login`: first.", res.Items[0].Message)
	assert.Equal(t, "a2", res.Items[1].ActionID)
	assert.Empty(t, res.Items[1].Message)
	assert.NotEmpty(t, res.Items[1].Error)
	assert.Equal(t, "a3", res.Items[2].ActionID)

	assert.Equal(t, []string{
		"`alice` commented card `Fix login`: first.",
		"`alice` commented card `Fix login`: third.",
	}, res.Messages())
}

func TestPreview_LeavesPageUntouched(t *testing.T) {
	page := []trello.Action{
		comment("a2", "second", t0.Add(2*time.Minute)),
		comment("a1", "first", t0.Add(1*time.Minute)),
	}

	Preview(page, filter.Config{}, render.Default(), nil)

	assert.Equal(t, "a2", page[0].ID)
	assert.Equal(t, "a1", page[1].ID)
}

func TestPreview_EmptyPage(t *testing.T) {
	res := Preview(nil, filter.Config{}, render.Default(), nil)

	assert.Empty(t, res.Items)
	assert.Empty(t, res.Messages())
	assert.NotEmpty(t, res.RequestedTypes)
}

func TestPreview_MixedCompanionDiffReportsRealChange(t *testing.T) {
	update := trello.Action{
		ID:   "u1",
		Type: trello.TypeUpdateCard,
		Date: t0,
		Data: trello.Data{
			Old:  trello.NewDiff(trello.FieldIDMembers, []any{}, "name", "Old title"),
			Card: map[string]any{"id": "card-1", "name": "New title"},
		},
		MemberCreator: &trello.Member{Username: "alice"},
	}

	res := Preview([]trello.Action{update}, filter.Config{}, render.Default(), nil)

	require.Len(t, res.Items, 1)
	assert.False(t, res.Items[0].Suppressed)
	assert.Equal(t, []string{"`alice` updated the card `New title`'s name to `New title`."}, res.Messages())
}
