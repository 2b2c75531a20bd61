package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardhook/internal/trello"
)

// loadPage reads the shared action fixture in chronological order.
func loadPage(t *testing.T) []trello.Action {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "trello", "testdata", "actions.json"))
	require.NoError(t, err)

	var page []trello.Action
	require.NoError(t, json.Unmarshal(data, &page))
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page
}

func renderPage(t *testing.T, reg *Registry, page []trello.Action) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, a := range page {
		msg, ok, err := reg.Render(a)
		require.NoError(t, err, a.String())
		require.True(t, ok, a.String())
		fmt.Fprintf(&buf, "%s: %s\n", a.Type, msg)
	}
	return buf.Bytes()
}

func TestDefault_CatalogueGolden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "catalogue", renderPage(t, Default(), loadPage(t)))
}

func TestDefault_CatalogueAliasedGolden(t *testing.T) {
	reg := Default(WithAliases(map[string]string{
		"alice": "Alice (PM)",
		"bob":   "robert",
	}))
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "catalogue_aliased", renderPage(t, reg, loadPage(t)))
}

func TestDefault_RegistersEveryKnownType(t *testing.T) {
	assert.Equal(t, []string{
		trello.TypeAddMemberToCard,
		trello.TypeCommentCard,
		trello.TypeCreateCard,
		trello.TypeMoveCardToBoard,
		trello.TypeRemoveMemberFromCard,
		trello.TypeUpdateCard,
		trello.TypeUpdateCheckItemState,
	}, Default().Types())
}

func membership(typ string) trello.Action {
	return trello.Action{
		ID:   "m1",
		Type: typ,
		Display: trello.Display{Entities: map[string]trello.Entity{
			trello.EntityCard:          {Text: "Release"},
			trello.EntityMemberCreator: {Username: "admin"},
			trello.EntityMember:        {Username: "carol"},
		}},
		Member:        &trello.Member{Username: "carol"},
		MemberCreator: &trello.Member{Username: "admin"},
	}
}

func TestMembership_NamesSubjectNotInstigator(t *testing.T) {
	msg, err := AddMemberToCard(membership(trello.TypeAddMemberToCard))
	require.NoError(t, err)
	assert.Equal(t, "`carol` joined card `Release`.", msg)

	msg, err = RemoveMemberFromCard(membership(trello.TypeRemoveMemberFromCard))
	require.NoError(t, err)
	assert.Equal(t, "`carol` left card `Release`.", msg)
}

func TestMembership_FallsBackToMemberEntity(t *testing.T) {
	a := membership(trello.TypeAddMemberToCard)
	a.Member = nil

	msg, err := AddMemberToCard(a)
	require.NoError(t, err)
	assert.Equal(t, "`carol` joined card `Release`.", msg)
}

func TestMembership_MissingSubject(t *testing.T) {
	a := membership(trello.TypeAddMemberToCard)
	a.Member = nil
	delete(a.Display.Entities, trello.EntityMember)

	_, err := AddMemberToCard(a)
	assert.ErrorIs(t, err, ErrMalformedAction)
}

func cardUpdate(old *trello.Diff, card map[string]any) trello.Action {
	return trello.Action{
		ID:   "u1",
		Type: trello.TypeUpdateCard,
		Data: trello.Data{Old: old, Card: card},
		Display: trello.Display{Entities: map[string]trello.Entity{
			trello.EntityCard:          {Text: "Release"},
			trello.EntityMemberCreator: {Username: "dave"},
		}},
	}
}

func TestUpdateCard_Values(t *testing.T) {
	render := UpdateCard(nil)

	tests := []struct {
		name  string
		field string
		value any
		want  string
	}{
		{"string", "desc", "Ship it", "`dave` updated the card `Release`'s desc to `Ship it`."},
		{"integral float", "pos", float64(1310720), "`dave` updated the card `Release`'s pos to `1310720`."},
		{"bool", "closed", true, "`dave` updated the card `Release`'s closed to `true`."},
		{"null", "due", nil, "`dave` updated the card `Release`'s due to `none`."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := cardUpdate(trello.NewDiff(tt.field, "before"), map[string]any{tt.field: tt.value})
			msg, err := render(a)
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg)
		})
	}
}

func TestUpdateCard_ListMove(t *testing.T) {
	a := cardUpdate(trello.NewDiff("idList", "l1"), map[string]any{"idList": "l2"})
	a.Data.ListAfter = &trello.Ref{ID: "l2", Name: "Done"}

	msg, err := UpdateCard(nil)(a)
	require.NoError(t, err)
	assert.Equal(t, "`dave` moved card `Release` to list `Done`.", msg)
}

func TestUpdateCard_ListMoveWithoutDestination(t *testing.T) {
	a := cardUpdate(trello.NewDiff("idList", "l1"), nil)

	_, err := UpdateCard(nil)(a)
	var me *MalformedError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "data.listAfter.name", me.Field)
}

func TestUpdateCard_CompanionOnlySkips(t *testing.T) {
	for _, field := range []string{"idMembers", "idLabels"} {
		t.Run(field, func(t *testing.T) {
			a := cardUpdate(trello.NewDiff(field, []any{}), map[string]any{field: []any{"m1"}})
			msg, err := UpdateCard(nil)(a)
			require.NoError(t, err)
			assert.Equal(t, Skip, msg)
		})
	}
}

func TestUpdateCard_MixedDiffReportsFirstRealField(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	a := cardUpdate(trello.NewDiff("idMembers", []any{}, "name", "Old title", "idLabels", []any{}),
		map[string]any{"name": "New title"})

	msg, err := UpdateCard(logger)(a)
	require.NoError(t, err)
	assert.Equal(t, "`dave` updated the card `Release`'s name to `New title`.", msg)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "idMembers")
	assert.Contains(t, logs.String(), "idLabels")
}

func TestReportedField(t *testing.T) {
	field, dropped := reportedField([]string{"idLabels", "desc", "idMembers", "pos"})
	assert.Equal(t, "desc", field)
	assert.Equal(t, []string{"idLabels", "idMembers", "pos"}, dropped)

	field, dropped = reportedField([]string{"idMembers"})
	assert.Empty(t, field)
	assert.Equal(t, []string{"idMembers"}, dropped)
}

func TestUpdateCard_LogsDroppedFields(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	a := cardUpdate(trello.NewDiff("name", "a", "desc", "b", "pos", 1), map[string]any{"name": "A", "desc": "B"})

	msg, err := UpdateCard(logger)(a)
	require.NoError(t, err)
	assert.Equal(t, "`dave` updated the card `Release`'s name to `A`.", msg)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "desc")
	assert.Contains(t, logs.String(), "pos")
}

func TestUpdateCard_MissingNewValue(t *testing.T) {
	a := cardUpdate(trello.NewDiff("desc", "old"), map[string]any{})

	_, err := UpdateCard(nil)(a)
	var me *MalformedError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "data.card.desc", me.Field)
}

func TestCommentCard_FallsBackToDataText(t *testing.T) {
	a := trello.Action{
		Type:          trello.TypeCommentCard,
		Data:          trello.Data{Text: "lgtm", Card: map[string]any{"name": "Release"}},
		MemberCreator: &trello.Member{Username: "erin"},
	}

	msg, err := CommentCard(a)
	require.NoError(t, err)
	assert.Equal(t, "`erin` commented card `Release`: lgtm.", msg)
}

func TestCreateCard_MissingList(t *testing.T) {
	a := trello.Action{
		Type:          trello.TypeCreateCard,
		Data:          trello.Data{Card: map[string]any{"name": "Release"}},
		MemberCreator: &trello.Member{Username: "erin"},
	}

	_, err := CreateCard(a)
	assert.ErrorIs(t, err, ErrMalformedAction)
}
