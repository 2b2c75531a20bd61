package trello

import (
	"fmt"
	"time"
)

// Action type tags known to this package.
const (
	TypeCreateCard           = "createCard"
	TypeMoveCardToBoard      = "moveCardToBoard"
	TypeAddMemberToCard      = "addMemberToCard"
	TypeRemoveMemberFromCard = "removeMemberFromCard"
	TypeCommentCard          = "commentCard"
	TypeUpdateCheckItemState = "updateCheckItemStateOnCard"
	TypeUpdateCard           = "updateCard"
)

// Display entity keys used by the renderers.
const (
	EntityMemberCreator = "memberCreator"
	EntityCard          = "card"
	EntityList          = "list"
	EntityComment       = "comment"
	EntityCheckItem     = "checkitem"
	EntityMember        = "member"
)

// Card field names that carry special meaning in update diffs.
const (
	FieldIDList    = "idList"
	FieldIDMembers = "idMembers"
	FieldIDLabels  = "idLabels"
)

// IsCompanionField reports whether an update touching only this field is a
// side effect of a membership or label action rather than a change of its own.
func IsCompanionField(field string) bool {
	return field == FieldIDMembers || field == FieldIDLabels
}

// IsMembershipType reports whether t adds or removes a card member.
func IsMembershipType(t string) bool {
	return t == TypeAddMemberToCard || t == TypeRemoveMemberFromCard
}

// Action is one immutable event from a board's action log.
type Action struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Date            time.Time `json:"date"`
	IDMemberCreator string    `json:"idMemberCreator,omitempty"`
	Data            Data      `json:"data"`
	Display         Display   `json:"display"`

	// Member is the subject of membership actions. It can differ from the
	// instigator, e.g. when a board admin adds someone else to a card.
	Member *Member `json:"member,omitempty"`

	// MemberCreator is the instigator as returned by the API. Renderers
	// prefer the display entity of the same name.
	MemberCreator *Member `json:"memberCreator,omitempty"`
}

// Data is the type-dependent payload of an action.
type Data struct {
	// Old holds the previous values of the fields an updateCard changed.
	Old *Diff `json:"old,omitempty"`

	// Card holds the card's current values, keyed like Old.
	Card map[string]any `json:"card,omitempty"`

	List        *Ref   `json:"list,omitempty"`
	ListBefore  *Ref   `json:"listBefore,omitempty"`
	ListAfter   *Ref   `json:"listAfter,omitempty"`
	Board       *Ref   `json:"board,omitempty"`
	BoardSource *Ref   `json:"boardSource,omitempty"`
	Text        string `json:"text,omitempty"`
	IDMember    string `json:"idMember,omitempty"`
}

// Ref identifies a board, list or similar named object.
type Ref struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	ShortLink string `json:"shortLink,omitempty"`
}

// Display carries entity names pre-resolved by the API (display=true).
type Display struct {
	TranslationKey string            `json:"translationKey,omitempty"`
	Entities       map[string]Entity `json:"entities,omitempty"`
}

// Entity is one pre-resolved display reference.
type Entity struct {
	Type     string `json:"type,omitempty"`
	ID       string `json:"id,omitempty"`
	Text     string `json:"text,omitempty"`
	Username string `json:"username,omitempty"`
	State    string `json:"state,omitempty"`
}

// Member is a board member reference.
type Member struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

// Entity returns the display entity stored under name.
func (a Action) Entity(name string) (Entity, bool) {
	e, ok := a.Display.Entities[name]
	return e, ok
}

// CardID returns the id of the card the action refers to, or "".
func (a Action) CardID() string {
	if id, ok := a.Data.Card["id"].(string); ok && id != "" {
		return id
	}
	if e, ok := a.Entity(EntityCard); ok {
		return e.ID
	}
	return ""
}

// Clone returns a deep copy of the mutable parts of a.
func (a Action) Clone() Action {
	out := a
	if a.Data.Old != nil {
		out.Data.Old = a.Data.Old.Clone()
	}
	if a.Data.Card != nil {
		out.Data.Card = make(map[string]any, len(a.Data.Card))
		for k, v := range a.Data.Card {
			out.Data.Card[k] = v
		}
	}
	out.Data.List = a.Data.List.clone()
	out.Data.ListBefore = a.Data.ListBefore.clone()
	out.Data.ListAfter = a.Data.ListAfter.clone()
	out.Data.Board = a.Data.Board.clone()
	out.Data.BoardSource = a.Data.BoardSource.clone()
	if a.Display.Entities != nil {
		out.Display.Entities = make(map[string]Entity, len(a.Display.Entities))
		for k, v := range a.Display.Entities {
			out.Display.Entities[k] = v
		}
	}
	if a.Member != nil {
		m := *a.Member
		out.Member = &m
	}
	if a.MemberCreator != nil {
		m := *a.MemberCreator
		out.MemberCreator = &m
	}
	return out
}

// String identifies the action in log lines.
func (a Action) String() string {
	return fmt.Sprintf("%s(%s@%s)", a.Type, a.ID, a.Date.UTC().Format(time.RFC3339))
}

func (r *Ref) clone() *Ref {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
