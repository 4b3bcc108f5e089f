package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/gambit.space/internal/services/arena/auth"
	"github.com/louisbranch/gambit.space/internal/services/arena/domain/match"
	"github.com/louisbranch/gambit.space/internal/services/arena/domain/tournament"
	"github.com/louisbranch/gambit.space/internal/services/arena/rules"
)

const (
	tokenCookieName = "gs_token"

	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type submitMovePayload struct {
	SessionID string `json:"session_id"`
	Move      string `json:"move"`
}

type sessionPayload struct {
	SessionID string `json:"session_id"`
}

type reportResultPayload struct {
	WinnerID string `json:"winner_id"`
	LoserID  string `json:"loser_id"`
	IsDraw   bool   `json:"is_draw"`
}

// wsPeer serializes frame writes onto one websocket connection. It is
// the live-connection handle handed to sessions and the tournament.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// Send implements match.Peer. Write failures are dropped; a dead
// connection surfaces through its own read loop.
func (p *wsPeer) Send(frameType string, payload any) {
	_ = p.writeFrame(wsFrame{Type: frameType, Payload: mustJSON(payload)})
}

type wsClaimsContextKey struct{}

func newHandler(svc *Service, api *apiHandler, tokens *auth.TokenManager) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	api.register(mux)

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, svc)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		token := accessTokenFromRequest(r)
		if token == "" {
			log.Printf("arena: websocket unauthorized: missing token remote=%s", r.RemoteAddr)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		claims, err := tokens.Verify(token)
		if err != nil {
			log.Printf("arena: websocket unauthorized: remote=%s err=%v", r.RemoteAddr, err)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), wsClaimsContextKey{}, claims)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})

	return mux
}

// accessTokenFromRequest accepts the token as a query parameter, a
// cookie, or a bearer header, in that order.
func accessTokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func handleWSConn(conn *websocket.Conn, svc *Service) {
	defer func() {
		_ = conn.Close()
	}()

	var claims auth.Claims
	if request := conn.Request(); request != nil {
		if resolved, ok := request.Context().Value(wsClaimsContextKey{}).(auth.Claims); ok {
			claims = resolved
		}
	}
	if claims.UserID == "" {
		return
	}

	peer := newWSPeer(json.NewEncoder(conn))
	svc.Connect(claims.UserID, claims.Username, peer)
	defer svc.Disconnect(claims.UserID)

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		dispatchFrame(svc, claims.UserID, peer, frame)
	}
}

func dispatchFrame(svc *Service, userID string, peer *wsPeer, frame wsFrame) {
	switch frame.Type {
	case "find_match":
		if err := svc.FindMatch(userID); err != nil {
			log.Printf("arena: find match user=%s err=%v", userID, err)
			_ = writeWSError(peer, frame.RequestID, "UNAVAILABLE", "matchmaking failed")
		}
	case "cancel_find_match":
		svc.CancelFindMatch(userID)
	case "submit_move":
		var payload submitMovePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid move payload")
			return
		}
		if err := svc.SubmitMove(userID, payload.SessionID, payload.Move); err != nil {
			// Turn and legality rejections already reached the mover
			// as a move_rejected frame. Unknown sessions and outsiders
			// get an error frame since no session sent them anything.
			switch {
			case errors.Is(err, ErrUnknownSession):
				_ = writeWSError(peer, frame.RequestID, "NOT_FOUND", "unknown session")
			case errors.Is(err, match.ErrNotParticipant):
				_ = writeWSError(peer, frame.RequestID, "FORBIDDEN", err.Error())
			}
		}
	case "resign":
		handleSessionFrame(svc.Resign, userID, peer, frame)
	case "rematch_propose":
		handleSessionFrame(svc.RematchPropose, userID, peer, frame)
	case "rematch_accept":
		handleSessionFrame(svc.RematchAccept, userID, peer, frame)
	case "tournament_join":
		if err := svc.TournamentJoin(userID); err != nil {
			_ = writeWSError(peer, frame.RequestID, tournamentErrorCode(err), err.Error())
		}
	case "tournament_leave":
		svc.TournamentLeave(userID)
	case "tournament_start":
		if err := svc.TournamentStart(); err != nil {
			_ = writeWSError(peer, frame.RequestID, tournamentErrorCode(err), err.Error())
		}
	case "tournament_report_result":
		var payload reportResultPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid result payload")
			return
		}
		if err := svc.TournamentReport(userID, payload.WinnerID, payload.LoserID, payload.IsDraw); err != nil {
			_ = writeWSError(peer, frame.RequestID, tournamentErrorCode(err), err.Error())
		}
	case "tournament_get_state":
		_ = peer.writeFrame(wsFrame{
			Type:      "tournament_state",
			RequestID: frame.RequestID,
			Payload:   mustJSON(svc.TournamentState()),
		})
	default:
		_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
	}
}

func handleSessionFrame(op func(userID, sessionID string) error, userID string, peer *wsPeer, frame wsFrame) {
	var payload sessionPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid session payload")
		return
	}
	if err := op(userID, payload.SessionID); err != nil {
		_ = writeWSError(peer, frame.RequestID, sessionErrorCode(err), err.Error())
	}
}

func sessionErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownSession):
		return "NOT_FOUND"
	case errors.Is(err, match.ErrNotParticipant):
		return "FORBIDDEN"
	case errors.Is(err, match.ErrMatchActive), errors.Is(err, match.ErrMatchOver):
		return "FAILED_PRECONDITION"
	case errors.Is(err, match.ErrNotYourTurn), errors.Is(err, rules.ErrIllegalMove):
		return "INVALID_ARGUMENT"
	default:
		return "INTERNAL"
	}
}

func tournamentErrorCode(err error) string {
	switch {
	case errors.Is(err, tournament.ErrFull),
		errors.Is(err, tournament.ErrAlreadyJoined),
		errors.Is(err, tournament.ErrAlreadyStarted),
		errors.Is(err, tournament.ErrInsufficientPlayers),
		errors.Is(err, tournament.ErrNotPlaying):
		return "FAILED_PRECONDITION"
	case errors.Is(err, tournament.ErrUnknownPairing), errors.Is(err, tournament.ErrNotInPairing):
		return "INVALID_ARGUMENT"
	case errors.Is(err, errConnectionGone):
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

func writeWSError(peer *wsPeer, requestID string, code string, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      "error",
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{
				Code:    code,
				Message: message,
			},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("arena: marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
