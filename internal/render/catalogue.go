package render

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/boardhook/internal/trello"
)

// Default returns a Registry with a renderer for every known action type.
func Default(opts ...Option) *Registry {
	logger := newSettings(opts).logger
	return NewBuilder().
		Register(trello.TypeCreateCard, CreateCard).
		Register(trello.TypeMoveCardToBoard, MoveCardToBoard).
		Register(trello.TypeAddMemberToCard, AddMemberToCard).
		Register(trello.TypeRemoveMemberFromCard, RemoveMemberFromCard).
		Register(trello.TypeCommentCard, CommentCard).
		Register(trello.TypeUpdateCheckItemState, UpdateCheckItemState).
		Register(trello.TypeUpdateCard, UpdateCard(logger)).
		Build(opts...)
}

// CreateCard renders "`alice` created card `x` in list `y`."
func CreateCard(a trello.Action) (string, error) {
	creator, card, err := creatorAndCard(a)
	if err != nil {
		return "", err
	}
	list, ok := a.Entity(trello.EntityList)
	if !ok || list.Text == "" {
		if a.Data.List == nil || a.Data.List.Name == "" {
			return "", missing("display.entities.list")
		}
		list.Text = a.Data.List.Name
	}
	return fmt.Sprintf("`%s` created card `%s` in list `%s`.", creator, card, list.Text), nil
}

// MoveCardToBoard renders a card imported from another board.
func MoveCardToBoard(a trello.Action) (string, error) {
	creator, card, err := creatorAndCard(a)
	if err != nil {
		return "", err
	}
	if a.Data.List == nil || a.Data.List.Name == "" {
		return "", missing("data.list.name")
	}
	return fmt.Sprintf("`%s` imported card `%s` to list `%s` from another board.",
		creator, card, a.Data.List.Name), nil
}

// AddMemberToCard names the member who joined, not whoever added them.
func AddMemberToCard(a trello.Action) (string, error) {
	member, card, err := memberAndCard(a)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("`%s` joined card `%s`.", member, card), nil
}

// RemoveMemberFromCard names the member who left, not whoever removed them.
func RemoveMemberFromCard(a trello.Action) (string, error) {
	member, card, err := memberAndCard(a)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("`%s` left card `%s`.", member, card), nil
}

// CommentCard quotes the comment text after the card name.
func CommentCard(a trello.Action) (string, error) {
	creator, card, err := creatorAndCard(a)
	if err != nil {
		return "", err
	}
	text := a.Data.Text
	if e, ok := a.Entity(trello.EntityComment); ok && e.Text != "" {
		text = e.Text
	}
	if text == "" {
		return "", missing("display.entities.comment")
	}
	return fmt.Sprintf("`%s` commented card `%s`: %s.", creator, card, text), nil
}

// UpdateCheckItemState renders a checklist item being ticked or unticked.
func UpdateCheckItemState(a trello.Action) (string, error) {
	creator, card, err := creatorAndCard(a)
	if err != nil {
		return "", err
	}
	item, ok := a.Entity(trello.EntityCheckItem)
	if !ok || item.Text == "" {
		return "", missing("display.entities.checkitem")
	}
	if item.State == "" {
		return "", missing("display.entities.checkitem.state")
	}
	return fmt.Sprintf("`%s` marked item `%s` as %s in card `%s`.", creator, item.Text, item.State, card), nil
}

// UpdateCard returns the renderer for generic card updates. Only the first
// field of the diff that is not a membership or label field is reported; the
// rest are logged to logger and dropped. A diff of membership and label
// fields alone renders to Skip.
func UpdateCard(logger *slog.Logger) Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return func(a trello.Action) (string, error) {
		keys := a.Data.Old.Keys()
		if len(keys) == 0 {
			return "", missing("data.old")
		}
		field, dropped := reportedField(keys)
		if field == "" {
			return Skip, nil
		}
		if len(dropped) > 0 {
			logger.Warn("update reports only its first field",
				"action_id", a.ID,
				"field", field,
				"dropped", dropped,
			)
		}

		creator, card, err := creatorAndCard(a)
		if err != nil {
			return "", err
		}

		if field == trello.FieldIDList {
			if a.Data.ListAfter == nil || a.Data.ListAfter.Name == "" {
				return "", missing("data.listAfter.name")
			}
			return fmt.Sprintf("`%s` moved card `%s` to list `%s`.", creator, card, a.Data.ListAfter.Name), nil
		}

		value, ok := a.Data.Card[field]
		if !ok {
			return "", missing("data.card." + field)
		}
		return fmt.Sprintf("`%s` updated the card `%s`'s %s to `%s`.", creator, card, field, formatValue(value)), nil
	}
}

// reportedField picks the first non-companion key. dropped holds every other
// key in diff order.
func reportedField(keys []string) (field string, dropped []string) {
	for _, k := range keys {
		if field == "" && !trello.IsCompanionField(k) {
			field = k
			continue
		}
		dropped = append(dropped, k)
	}
	return field, dropped
}

func creatorAndCard(a trello.Action) (creator, card string, err error) {
	if creator = instigator(a); creator == "" {
		return "", "", missing("display.entities.memberCreator")
	}
	if card = cardName(a); card == "" {
		return "", "", missing("display.entities.card")
	}
	return creator, card, nil
}

func memberAndCard(a trello.Action) (member, card string, err error) {
	if member = subject(a); member == "" {
		return "", "", missing("member")
	}
	if card = cardName(a); card == "" {
		return "", "", missing("display.entities.card")
	}
	return member, card, nil
}

func instigator(a trello.Action) string {
	if e, ok := a.Entity(trello.EntityMemberCreator); ok && e.Username != "" {
		return e.Username
	}
	if a.MemberCreator != nil {
		return a.MemberCreator.Username
	}
	return ""
}

func subject(a trello.Action) string {
	if a.Member != nil && a.Member.Username != "" {
		return a.Member.Username
	}
	if e, ok := a.Entity(trello.EntityMember); ok {
		return e.Username
	}
	return ""
}

func cardName(a trello.Action) string {
	if e, ok := a.Entity(trello.EntityCard); ok && e.Text != "" {
		return e.Text
	}
	name, _ := a.Data.Card["name"].(string)
	return name
}

// formatValue prints a decoded JSON value the way a person would type it.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "none"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
