package trello

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff_PreservesUpstreamOrder(t *testing.T) {
	var d Diff
	require.NoError(t, json.Unmarshal([]byte(`{"pos": 1, "name": "x", "idList": "l1", "desc": ""}`), &d))

	assert.Equal(t, []string{"pos", "name", "idList", "desc"}, d.Keys())
	assert.Equal(t, 4, d.Len())

	v, ok := d.Get("name")
	require.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestDiff_Delete(t *testing.T) {
	d := NewDiff("pos", 1, "name", "x", "idList", "l1")

	assert.True(t, d.Delete("name"))
	assert.False(t, d.Delete("name"))
	assert.Equal(t, []string{"pos", "idList"}, d.Keys())

	assert.True(t, d.Delete("pos"))
	assert.True(t, d.Delete("idList"))
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.Keys())
}

func TestDiff_NilReceiver(t *testing.T) {
	var d *Diff
	assert.Equal(t, 0, d.Len())
	assert.Nil(t, d.Keys())
	assert.False(t, d.Delete("x"))
	assert.Nil(t, d.Clone())
	_, ok := d.Get("x")
	assert.False(t, ok)
}

func TestDiff_MarshalKeepsOrder(t *testing.T) {
	d := NewDiff("zeta", 1, "alpha", "a")
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"a"}`, string(out))
}

func TestDiff_RejectsNonObject(t *testing.T) {
	var d Diff
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &d))
}

func TestDiff_NewDiffPanicsOnOddArgs(t *testing.T) {
	assert.Panics(t, func() { NewDiff("a") })
}

func TestAction_DecodeFixture(t *testing.T) {
	var actions []Action
	require.NoError(t, json.Unmarshal(loadFixture(t), &actions))
	require.Len(t, actions, 7)

	move := actions[0]
	assert.Equal(t, TypeUpdateCard, move.Type)
	assert.Equal(t, []string{"idList"}, move.Data.Old.Keys())
	require.NotNil(t, move.Data.ListAfter)
	assert.Equal(t, "Doing", move.Data.ListAfter.Name)

	join := actions[4]
	assert.Equal(t, TypeAddMemberToCard, join.Type)
	require.NotNil(t, join.Member)
	assert.Equal(t, "bob", join.Member.Username)
	creator, ok := join.Entity(EntityMemberCreator)
	require.True(t, ok)
	assert.Equal(t, "alice", creator.Username)
	assert.Equal(t, "5d0000000000000000000001", join.CardID())
}

func TestAction_CloneIsIndependent(t *testing.T) {
	var actions []Action
	require.NoError(t, json.Unmarshal(loadFixture(t), &actions))
	orig := actions[1]

	c := orig.Clone()
	c.Data.Old.Delete("name")
	c.Data.Card["name"] = "changed"
	c.Display.Entities[EntityCard] = Entity{Text: "changed"}
	c.MemberCreator.Username = "mallory"

	assert.Equal(t, []string{"name", "pos"}, orig.Data.Old.Keys())
	assert.Equal(t, "Fix login", orig.Data.Card["name"])
	card, _ := orig.Entity(EntityCard)
	assert.Equal(t, "Fix login", card.Text)
	assert.Equal(t, "alice", orig.MemberCreator.Username)
}

func TestAction_CardIDFallsBackToDisplay(t *testing.T) {
	a := Action{Display: Display{Entities: map[string]Entity{EntityCard: {ID: "c1"}}}}
	assert.Equal(t, "c1", a.CardID())
	assert.Equal(t, "", Action{}.CardID())
}
