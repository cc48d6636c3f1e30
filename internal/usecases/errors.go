package usecases

import (
	"errors"
	"fmt"
)

// Error kinds the transport layer dispatches on. Concrete errors wrap one
// of these, so callers match with errors.Is against either level.
var (
	ErrPermissionDenied = errors.New("user is not authorized to this action")
	ErrInvalidState     = errors.New("chat state does not permit this operation")
	ErrConflict         = errors.New("data consistency violation")

	ErrPrivateWithSelf      = fmt.Errorf("%w: can't open a private chat with yourself", ErrInvalidState)
	ErrEmptyMembers         = fmt.Errorf("%w: no new members to apply", ErrInvalidState)
	ErrWrongChatType        = fmt.Errorf("%w: operation is not defined for this chat type", ErrInvalidState)
	ErrMembersNotInChat     = fmt.Errorf("%w: some of the members are not in the chat", ErrInvalidState)
	ErrSenderNotMember      = fmt.Errorf("%w: sender is not a chat member", ErrPermissionDenied)
	ErrNotChatMember        = fmt.Errorf("%w: user is not a chat member", ErrPermissionDenied)
	ErrNotChatAdmin         = fmt.Errorf("%w: user is not a chat admin", ErrPermissionDenied)
	ErrMultiplePrivateChats = fmt.Errorf("%w: multiple private chats exist for one pair of users", ErrConflict)
	ErrTooManyMembers       = fmt.Errorf("%w: private chat has more than two members", ErrConflict)
)
