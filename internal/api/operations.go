package api

import (
	"context"
	"encoding/json"

	"flchat/internal/chat"
	"flchat/internal/contact"
	"flchat/internal/user"
)

type emailVars struct {
	Email string `json:"email"`
}

type tokenVars struct {
	RefreshToken string `json:"refreshToken"`
}

type conversationVars struct {
	ConversationID int `json:"conversationId"`
}

type sendMessageVars struct {
	Destination string `json:"destination"`
	Message     string `json:"message"`
}

type createMpcVars struct {
	MpcName string   `json:"mpcName"`
	Emails  []string `json:"emails"`
}

type addToMpcVars struct {
	Email string `json:"email"`
	MpcID int    `json:"mpcId"`
}

type titleVars struct {
	Title string `json:"title"`
}

// RegisterOperations exposes the user, chat and contact services.
func RegisterOperations(s *Server, users *user.Service, chats *chat.Service, contacts *contact.Service) {
	s.Handle("hello", Public, func(context.Context, *user.User, json.RawMessage) (interface{}, error) {
		return "hello", nil
	})

	// Accounts and tokens
	s.Handle("register", Public, func(ctx context.Context, _ *user.User, vars json.RawMessage) (interface{}, error) {
		req, err := decode[user.RegisterRequest](vars)
		if err != nil {
			return nil, err
		}
		u, err := users.Register(ctx, &req)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true, "user": u}, nil
	})

	s.Handle("login", Public, func(ctx context.Context, _ *user.User, vars json.RawMessage) (interface{}, error) {
		req, err := decode[user.LoginRequest](vars)
		if err != nil {
			return nil, err
		}
		return users.Login(ctx, &req)
	})

	s.Handle("refresh", Public, func(ctx context.Context, _ *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[tokenVars](vars)
		if err != nil {
			return nil, err
		}
		access, err := users.Refresh(ctx, v.RefreshToken)
		if err != nil {
			return nil, err
		}
		return map[string]string{"accessToken": access}, nil
	})

	s.Handle("logout", Public, func(ctx context.Context, _ *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[tokenVars](vars)
		if err != nil {
			return nil, err
		}
		if err := users.Logout(ctx, v.RefreshToken); err != nil {
			return nil, err
		}
		return map[string]bool{"success": true}, nil
	})

	s.Handle("updateUser", Authenticated, func(ctx context.Context, caller *user.User, vars json.RawMessage) (interface{}, error) {
		req, err := decode[user.UpdateRequest](vars)
		if err != nil {
			return nil, err
		}
		u, err := users.Update(ctx, caller, &req)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true, "user": u}, nil
	})

	s.Handle("deleteUser", Authenticated, func(ctx context.Context, caller *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[emailVars](vars)
		if err != nil {
			return nil, err
		}
		u, err := users.Delete(ctx, caller, v.Email)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true, "user": u}, nil
	})

	// Chats
	s.Handle("sendMessage", Authenticated, func(ctx context.Context, caller *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[sendMessageVars](vars)
		if err != nil {
			return nil, err
		}
		c, m, err := chats.SendToDestination(ctx, caller, v.Destination, v.Message)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"conversation": c, "message": m}, nil
	})

	s.Handle("createMpc", Authenticated, func(ctx context.Context, caller *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[createMpcVars](vars)
		if err != nil {
			return nil, err
		}
		targets := make([]*user.User, 0, len(v.Emails))
		for _, email := range v.Emails {
			u, err := users.GetByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			targets = append(targets, u)
		}
		c, err := chats.CreateGroupChat(ctx, caller, v.MpcName, targets)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"conversation": c}, nil
	})

	s.Handle("addToMpc", Authenticated, func(ctx context.Context, caller *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[addToMpcVars](vars)
		if err != nil {
			return nil, err
		}
		c, err := chats.AddUserToGroup(ctx, caller, v.MpcID, v.Email)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"conversation": c}, nil
	})

	s.Handle("messages", Authenticated, func(ctx context.Context, caller *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[conversationVars](vars)
		if err != nil {
			return nil, err
		}
		return chats.Messages(ctx, caller, v.ConversationID)
	})

	s.Handle("conversationParticipants", Authenticated, func(ctx context.Context, caller *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[conversationVars](vars)
		if err != nil {
			return nil, err
		}
		return chats.Participants(ctx, caller, v.ConversationID)
	})

	// Contacts
	s.Handle("addContact", Authenticated, func(ctx context.Context, caller *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[emailVars](vars)
		if err != nil {
			return nil, err
		}
		list, err := contacts.AddContact(ctx, caller, v.Email)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"contacts": list}, nil
	})

	// Self-scoped reads
	s.Handle("me", Authenticated, func(_ context.Context, caller *user.User, _ json.RawMessage) (interface{}, error) {
		return caller, nil
	})
	s.Handle("myContacts", Authenticated, func(ctx context.Context, caller *user.User, _ json.RawMessage) (interface{}, error) {
		return contacts.Contacts(ctx, caller)
	})
	for name, kind := range map[string]chat.Kind{
		"myChats":         "",
		"myPersonalChats": chat.KindPersonal,
		"myMultiChats":    chat.KindGroup,
	} {
		kind := kind // per-iteration copy; go.mod targets go 1.21 (pre-1.22 loop semantics)
		s.Handle(name, Authenticated, func(ctx context.Context, caller *user.User, _ json.RawMessage) (interface{}, error) {
			return chats.ConversationsFor(ctx, caller, kind)
		})
	}

	// Admin reads
	s.Handle("user", Admin, func(ctx context.Context, _ *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[emailVars](vars)
		if err != nil {
			return nil, err
		}
		return users.GetByEmail(ctx, v.Email)
	})
	s.Handle("users", Admin, func(ctx context.Context, _ *user.User, _ json.RawMessage) (interface{}, error) {
		return users.List(ctx)
	})
	s.Handle("conversation", Admin, func(ctx context.Context, _ *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[titleVars](vars)
		if err != nil {
			return nil, err
		}
		return chats.ByTitle(ctx, v.Title)
	})
	s.Handle("conversations", Admin, func(ctx context.Context, _ *user.User, _ json.RawMessage) (interface{}, error) {
		return chats.All(ctx)
	})
}
