package match

// Outbound frame types emitted by a session.
const (
	FrameMatchStarted     = "match_started"
	FramePositionUpdate   = "position_update"
	FrameMoveRejected     = "move_rejected"
	FrameMatchOver        = "match_over"
	FrameRematchOffered   = "rematch_offered"
	FrameRematchWithdrawn = "rematch_withdrawn"
)

// StartedPayload announces a new match to one participant, from that
// participant's perspective.
type StartedPayload struct {
	SessionID string `json:"session_id"`
	Side      string `json:"side"`
	Opponent  string `json:"opponent"`
	Position  string `json:"position"`
}

// PositionPayload carries the board state after an accepted move.
type PositionPayload struct {
	Position   string `json:"position"`
	SideToMove string `json:"side_to_move"`
	InCheck    bool   `json:"in_check"`
	Message    string `json:"message,omitempty"`
}

// RejectedPayload explains a refused move to the side that sent it.
type RejectedPayload struct {
	Reason string `json:"reason"`
}

// OverPayload announces the end of a match to both participants.
type OverPayload struct {
	Outcome       string `json:"outcome"`
	Winner        string `json:"winner,omitempty"`
	Reason        string `json:"reason"`
	FinalPosition string `json:"final_position"`
}
