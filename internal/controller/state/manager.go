// Package state keeps per-chat dialog state of the bot.
package state

import (
	"sync"
)

type Manager struct {
	mu    sync.RWMutex
	chats map[int64]*ChatData // chatID -> ChatData
}

func NewManager() *Manager {
	return &Manager{
		chats: make(map[int64]*ChatData),
	}
}

func (sm *Manager) GetState(chatID int64) ChatState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if chat, exists := sm.chats[chatID]; exists {
		return chat.State
	}
	return StateNone
}

// SetState sets the state of a chat. StateNone drops the chat's entry.
func (sm *Manager) SetState(chatID int64, state ChatState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if state == StateNone {
		delete(sm.chats, chatID)
		return
	}

	if chat, exists := sm.chats[chatID]; exists {
		chat.State = state
		return
	}
	sm.chats[chatID] = &ChatData{
		State: state,
		Data:  make(map[string]string),
	}
}

func (sm *Manager) GetData(chatID int64, key string) (string, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if chat, exists := sm.chats[chatID]; exists {
		value, ok := chat.Data[key]
		return value, ok
	}
	return "", false
}

func (sm *Manager) SetData(chatID int64, key, value string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.chats[chatID]; !exists {
		sm.chats[chatID] = &ChatData{
			State: StateNone,
			Data:  make(map[string]string),
		}
	}
	sm.chats[chatID].Data[key] = value
}

// Begin puts a chat into state with the given data, replacing what it had
func (sm *Manager) Begin(chatID int64, state ChatState, data map[string]string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	chat := &ChatData{State: state, Data: make(map[string]string, len(data))}
	for k, v := range data {
		chat.Data[k] = v
	}
	sm.chats[chatID] = chat
}

// Take returns the value of key when the chat is in state, and clears the
// chat. It reports false, leaving the chat as is, otherwise.
func (sm *Manager) Take(chatID int64, state ChatState, key string) (string, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	chat, exists := sm.chats[chatID]
	if !exists || chat.State != state {
		return "", false
	}
	value, ok := chat.Data[key]
	if !ok {
		return "", false
	}
	delete(sm.chats, chatID)
	return value, true
}

func (sm *Manager) ClearState(chatID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.chats, chatID)
}
