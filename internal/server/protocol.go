package server

import (
	"github.com/gmforge/battlemap/internal/model"
)

// Request is one newline-delimited JSON command from an editor client.
type Request struct {
	Op       string           `json:"op"`
	Password string           `json:"password,omitempty"`
	MapID    string           `json:"map_id,omitempty"`
	Round    int              `json:"round,omitempty"`
	ActionID string           `json:"action_id,omitempty"`
	TokenID  string           `json:"token_id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Data     map[string]any   `json:"data,omitempty"`
	Speed    float64          `json:"speed,omitempty"`
	Object   *model.MapObject `json:"object,omitempty"`
	ObjectID string           `json:"object_id,omitempty"`
}

// Response answers one request.
type Response struct {
	OK       bool               `json:"ok"`
	Error    string             `json:"error,omitempty"`
	ActionID string             `json:"action_id,omitempty"`
	Round    int                `json:"round,omitempty"`
	Active   bool               `json:"active"`
	Speed    float64            `json:"speed,omitempty"`
	Timeline *model.Timeline    `json:"timeline,omitempty"`
	Objects  []*model.MapObject `json:"objects,omitempty"`
}

// Supported request ops.
const (
	OpAuth          = "auth"
	OpStartCombat   = "start_combat"
	OpEndCombat     = "end_combat"
	OpNextRound     = "next_round"
	OpPreviousRound = "previous_round"
	OpGoToRound     = "goto_round"
	OpAddAction     = "add_action"
	OpUpdateAction  = "update_action"
	OpRemoveAction  = "remove_action"
	OpExecuteRound  = "execute_round"
	OpSetSpeed      = "set_speed"
	OpTimeline      = "timeline"
	OpAddObject     = "add_object"
	OpDeleteObject  = "delete_object"
	OpListObjects   = "list_objects"
)
