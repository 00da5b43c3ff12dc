package coophub

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/smartcoophub/client-go/internal/realtime"
)

// Socket event names.
const (
	eventMessage    = "message"
	eventNewMessage = "new_message"
	eventJoin       = "join_conversation"
	eventLeave      = "leave_conversation"
)

type sendMessageBody struct {
	Content string `json:"content" validate:"required,max=5000"`
}

type startConversationBody struct {
	ParticipantID string `json:"participantId" validate:"required"`
}

type conversationRef struct {
	ConversationID string `json:"conversationId"`
}

// Conversations lists the caller's chat threads.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	env, err := c.get(ctx, "/chat/conversations", nil, nil)
	if err != nil {
		return nil, err
	}
	convs, _, err := decodeList[Conversation](env, "conversations")
	return convs, err
}

// StartConversation opens (or returns the existing) thread with a user.
func (c *Client) StartConversation(ctx context.Context, participantID string) (*Conversation, error) {
	body := startConversationBody{ParticipantID: participantID}
	if err := c.validate.Struct(body); err != nil {
		return nil, err
	}
	env, err := c.send(ctx, http.MethodPost, "/chat/conversations", body, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem[Conversation](env, "conversation")
}

// Messages returns a conversation's history.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	if err := requireID("conversationId", conversationID); err != nil {
		return nil, err
	}
	env, err := c.get(ctx, pathf("/chat/conversations/%s/messages", conversationID), nil, nil)
	if err != nil {
		return nil, err
	}
	msgs, _, err := decodeList[Message](env, "messages")
	return msgs, err
}

// SendMessage posts a message to a conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (*Message, error) {
	if err := requireID("conversationId", conversationID); err != nil {
		return nil, err
	}
	body := sendMessageBody{Content: content}
	if err := c.validate.Struct(body); err != nil {
		return nil, err
	}
	env, err := c.send(ctx, http.MethodPost, pathf("/chat/conversations/%s/messages", conversationID), body, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem[Message](env, "message")
}

// ConnectChat opens the realtime socket and waits until it is connected.
// The socket then reconnects on its own until Close or DisconnectChat.
// Calling ConnectChat on a live socket returns immediately.
func (c *Client) ConnectChat(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	c.socketMu.Lock()
	// Close clears c.socket under socketMu; a socket started after it leaks.
	if err := c.checkClosed(); err != nil {
		c.socketMu.Unlock()
		return err
	}
	socket := c.socket
	if socket == nil {
		socket = realtime.NewSocket(realtime.Config{
			BaseURL:     c.apiClient.BaseURL(),
			TokenSource: c.session.Token,
			Handler:     c.handleChatEvent,
			Logger:      c.logger.Named("realtime"),
		})
		socket.OnReconnect(c.rejoinConversations)
		if err := socket.Start(context.Background()); err != nil {
			c.socketMu.Unlock()
			return err
		}
		c.socket = socket
	}
	c.socketMu.Unlock()

	select {
	case <-socket.Connected():
		return nil
	case <-socket.Done():
		c.dropSocket(socket)
		if err := socket.LastError(); err != nil {
			return fmt.Errorf("connect chat: %w", err)
		}
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DisconnectChat closes the realtime socket. Subscriptions are kept and
// resume on the next ConnectChat.
func (c *Client) DisconnectChat() error {
	c.socketMu.Lock()
	socket := c.socket
	c.socket = nil
	c.socketMu.Unlock()
	if socket == nil {
		return nil
	}
	return socket.Stop()
}

func (c *Client) dropSocket(socket *realtime.Socket) {
	c.socketMu.Lock()
	if c.socket == socket {
		c.socket = nil
	}
	c.socketMu.Unlock()
	_ = socket.Stop()
}

// OnChatMessage registers fn for messages pushed to conversationID, or to
// every conversation when conversationID is empty. The returned function
// unsubscribes; fn is never called after it returns.
//
// Callbacks run on the socket's reader goroutine and should not block.
func (c *Client) OnChatMessage(conversationID string, fn func(*Message)) (unsubscribe func()) {
	unsubscribe = c.subs.subscribe(conversationID, fn)
	if conversationID != allConversations {
		if err := c.emit(context.Background(), eventJoin, conversationRef{ConversationID: conversationID}); err != nil && !errors.Is(err, ErrNotConnected) {
			c.logger.Warn("failed to join conversation", zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}
	return unsubscribe
}

// JoinConversation asks the server to push a conversation's messages.
func (c *Client) JoinConversation(ctx context.Context, conversationID string) error {
	if err := requireID("conversationId", conversationID); err != nil {
		return err
	}
	return c.emit(ctx, eventJoin, conversationRef{ConversationID: conversationID})
}

// LeaveConversation stops pushes for a conversation.
func (c *Client) LeaveConversation(ctx context.Context, conversationID string) error {
	if err := requireID("conversationId", conversationID); err != nil {
		return err
	}
	return c.emit(ctx, eventLeave, conversationRef{ConversationID: conversationID})
}

func (c *Client) emit(ctx context.Context, event string, data any) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	c.socketMu.Lock()
	socket := c.socket
	c.socketMu.Unlock()
	if socket == nil {
		return ErrNotConnected
	}
	return socket.Emit(ctx, event, data)
}

// rejoinConversations runs after every (re)connect so subscribed
// conversations keep receiving pushes.
func (c *Client) rejoinConversations(ctx context.Context) {
	c.socketMu.Lock()
	socket := c.socket
	c.socketMu.Unlock()
	if socket == nil {
		return
	}
	for _, id := range c.subs.conversations() {
		if err := socket.Emit(ctx, eventJoin, conversationRef{ConversationID: id}); err != nil {
			c.logger.Warn("failed to rejoin conversation", zap.String("conversation_id", id), zap.Error(err))
		}
	}
}

func (c *Client) handleChatEvent(_ context.Context, ev realtime.Event) {
	switch ev.Name {
	case eventMessage, eventNewMessage:
	default:
		return
	}
	msg, err := unwrapItem[Message](ev.Data, "message")
	if err != nil {
		c.logger.Debug("dropping malformed chat message", zap.Error(err))
		return
	}
	c.subs.notify(msg)
}
