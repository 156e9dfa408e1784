package services

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"time"

	"relaychat/config"
	"relaychat/internal/domain/call"

	"github.com/google/uuid"
)

// fallbackSTUN is served when nothing is configured at all.
var fallbackSTUN = []string{"stun:stun.l.google.com:19302"}

// ICEService hands out the ICE server list for a peer connection. TURN
// entries use the time limited REST credential scheme understood by coturn
// (use-auth-secret).
type ICEService struct {
	stunURLs   []string
	turnURLs   []string
	turnSecret []byte
	turnTTL    time.Duration
	clock      func() time.Time
}

func NewICEService(cfg *config.Config) *ICEService {
	stun := cfg.ICEStunURLs
	if len(stun) == 0 {
		stun = fallbackSTUN
	}
	return &ICEService{
		stunURLs:   stun,
		turnURLs:   cfg.TurnURLs,
		turnSecret: []byte(cfg.TurnSecret),
		turnTTL:    cfg.TurnTTL,
		clock:      time.Now,
	}
}

// Servers returns the list for userID and how long the TURN credential is
// valid, in seconds. Without TURN configuration the STUN-only list is
// returned with a zero ttl.
func (s *ICEService) Servers(userID uuid.UUID) ([]call.ICEServer, int64) {
	servers := []call.ICEServer{{URLs: append([]string(nil), s.stunURLs...)}}
	if len(s.turnURLs) == 0 || len(s.turnSecret) == 0 || s.turnTTL <= 0 {
		return servers, 0
	}

	expiry := s.clock().Add(s.turnTTL).Unix()
	username := strconv.FormatInt(expiry, 10) + ":" + userID.String()
	servers = append(servers, call.ICEServer{
		URLs:       append([]string(nil), s.turnURLs...),
		Username:   username,
		Credential: turnCredential(s.turnSecret, username),
	})
	return servers, int64(s.turnTTL.Seconds())
}

func turnCredential(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
