package protocol

import "combatkeep.ai/internal/sim/item"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	// PlayerID lets a returning client keep its identity across sessions.
	PlayerID string `json:"player_id,omitempty"`
	MaxQueue int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	Arena           string `json:"arena"`
	InventorySlots  int    `json:"inventory_slots"`
	MaxStack        int    `json:"max_stack"`
	TagSeconds      int    `json:"tag_seconds"`
}

// ATTACK (client -> server). Target is a player id, or "mob:<name>" for a
// non-player target.
type AttackMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Target          string `json:"target"`
	Ranged          bool   `json:"ranged,omitempty"`
}

// DIE (client -> server): the sender dies and drops its inventory.
type DieMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Cause           string `json:"cause,omitempty"`
}

type RespawnMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

type MoveMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [3]float64 `json:"pos"`
}

// GIVE (client -> server): debug grant used by bots to stock inventories.
type GiveMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Item            string `json:"item"`
	Count           int    `json:"count"`
}

// STATE (server -> client)
type StateMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	PlayerID        string        `json:"player_id"`
	Dead            bool          `json:"dead"`
	InCombat        bool          `json:"in_combat"`
	Pos             [3]float64    `json:"pos"`
	Inventory       []*item.Stack `json:"inventory"`
	Kept            []*item.Stack `json:"kept,omitempty"`
	GroundItems     int           `json:"ground_items"`
}

// CHAT (server -> client)
type ChatMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Text            string `json:"text"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewChat(text string) ChatMsg {
	return ChatMsg{Type: TypeChat, ProtocolVersion: Version, Text: text}
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
