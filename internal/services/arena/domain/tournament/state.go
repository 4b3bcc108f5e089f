package tournament

import "sort"

// PlayerState is a player as shown to clients.
type PlayerState struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// PairingState is one current-round pairing as shown to clients.
// Result holds the winner's display name, "draw", or is empty while
// the pairing is open.
type PairingState struct {
	First  string `json:"first"`
	Second string `json:"second,omitempty"`
	Bye    bool   `json:"bye,omitempty"`
	Result string `json:"result,omitempty"`
}

// State is the public projection broadcast on every mutation.
type State struct {
	Status    Status         `json:"status"`
	Round     int            `json:"round"`
	Players   []PlayerState  `json:"players"`
	Pairings  []PairingState `json:"pairings"`
	Standings []PlayerState  `json:"standings"`
}

// PublicState projects the tournament for clients: no connection
// handles, standings sorted by score descending.
func (t *Tournament) PublicState() State {
	state := State{
		Status:    t.status,
		Round:     len(t.rounds),
		Players:   make([]PlayerState, 0, len(t.players)),
		Standings: make([]PlayerState, 0, len(t.players)),
	}

	for _, player := range t.sortedPlayers() {
		ps := PlayerState{
			ID:    player.Participant.Identity.ID,
			Name:  player.Participant.Identity.Name,
			Score: player.Score,
		}
		state.Standings = append(state.Standings, ps)
	}
	state.Players = append(state.Players, state.Standings...)
	sort.SliceStable(state.Players, func(i, j int) bool {
		return t.players[state.Players[i].ID].joinOrder < t.players[state.Players[j].ID].joinOrder
	})

	if len(t.rounds) > 0 {
		round := t.rounds[len(t.rounds)-1]
		for _, pairing := range round.Pairings {
			ps := PairingState{
				First: pairing.First.Participant.Identity.Name,
				Bye:   pairing.Bye,
			}
			if pairing.Second != nil {
				ps.Second = pairing.Second.Participant.Identity.Name
			}
			if pairing.Result != nil {
				switch {
				case pairing.Result.Draw:
					ps.Result = "draw"
				case pairing.First.Participant.Identity.ID == pairing.Result.WinnerID:
					ps.Result = pairing.First.Participant.Identity.Name
				case pairing.Second != nil:
					ps.Result = pairing.Second.Participant.Identity.Name
				}
			}
			state.Pairings = append(state.Pairings, ps)
		}
	}
	return state
}
