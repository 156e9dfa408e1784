package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"relaychat/internal/events"
	"relaychat/internal/metrics"
	"relaychat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// publishQueueSize bounds the frames waiting to reach the other instances.
const publishQueueSize = 1024

// Publisher forwards encoded envelopes to the other server instances.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Hub maps user ids to their live clients and implements events.Emitter.
// A nil *Hub is a valid emitter that drops everything.
type Hub struct {
	mu    sync.RWMutex
	users map[uuid.UUID]map[*Client]struct{}
	total int

	publisher  Publisher
	instanceID string
	outbound   chan publishJob
	stop       chan struct{}
	queueSize  int
	logger     *logger.Logger
}

type publishJob struct {
	ctx     context.Context
	channel string
	payload []byte
}

var _ events.Emitter = (*Hub)(nil)

func NewHub(l *logger.Logger) *Hub {
	return &Hub{
		users:     make(map[uuid.UUID]map[*Client]struct{}),
		queueSize: publishQueueSize,
		logger:    logger.OrNop(l),
	}
}

// AttachPublisher makes every Emit and Broadcast also reach the other
// instances through pub. instanceID tags envelopes so an instance can skip
// its own frames when they come back. Frames are published one at a time
// in emit order; Close stops the publishing goroutine.
func (h *Hub) AttachPublisher(pub Publisher, instanceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publisher = pub
	h.instanceID = instanceID
	if h.outbound == nil {
		h.outbound = make(chan publishJob, h.queueSize)
		h.stop = make(chan struct{})
		go h.publishLoop(h.outbound, h.stop)
	}
}

func (h *Hub) InstanceID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.instanceID
}

// Register adds c and reports whether it is the user's first client here.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.users[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[c.UserID] = set
	}
	set[c] = struct{}{}
	h.total++
	metrics.WebsocketConnections.Inc()
	return len(set) == 1
}

// Unregister removes c, closes its send queue and reports whether the user
// has no client left here. Unregistering twice is a no-op returning false.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.users[c.UserID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	close(c.send)
	h.total--
	metrics.WebsocketConnections.Dec()
	if len(set) == 0 {
		delete(h.users, c.UserID)
		return true
	}
	return false
}

// Emit delivers event to every client of userID, here and on other
// instances. It never blocks on a slow client.
func (h *Hub) Emit(ctx context.Context, userID uuid.UUID, event string, payload any) {
	if h == nil {
		return
	}
	frame, err := events.NewFrame(event, payload)
	if err != nil {
		h.logger.ErrorCtx(ctx, "encode relay frame", zap.String("event", event), zap.Error(err))
		return
	}
	h.deliver(userID, event, frame)
	h.publish(ctx, events.UserChannel(userID), userID.String(), event, frame)
}

// Broadcast delivers event to every connected client.
func (h *Hub) Broadcast(ctx context.Context, event string, payload any) {
	if h == nil {
		return
	}
	frame, err := events.NewFrame(event, payload)
	if err != nil {
		h.logger.ErrorCtx(ctx, "encode relay frame", zap.String("event", event), zap.Error(err))
		return
	}
	h.broadcastLocal(event, frame)
	h.publish(ctx, events.ChannelBroadcast, "", event, frame)
}

// HandleRemote delivers a frame published by another instance.
func (h *Hub) HandleRemote(channel string, payload []byte) {
	if h == nil {
		return
	}
	var env events.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.logger.Warnf("drop malformed bridge envelope on %s: %v", channel, err)
		return
	}
	if env.Origin == h.InstanceID() {
		return
	}
	event := frameEvent(env.Frame)
	if userID, ok := events.ResolveChannel(channel); ok {
		h.deliver(userID, event, env.Frame)
		return
	}
	if channel == events.ChannelBroadcast {
		h.broadcastLocal(event, env.Frame)
	}
}

// Reply sends event to one client only. It is a no-op once c is
// unregistered.
func (h *Hub) Reply(c *Client, event string, payload any) {
	if h == nil || c == nil {
		return
	}
	frame, err := events.NewFrame(event, payload)
	if err != nil {
		h.logger.Errorf("encode reply %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.users[c.UserID][c]; ok {
		h.sendTo(c, event, frame)
	}
}

// Online reports whether userID has a client on this instance.
func (h *Hub) Online(userID uuid.UUID) bool {
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

func (h *Hub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Close drops every client; their write loops send a close frame and exit.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.users {
		for c := range set {
			close(c.send)
			metrics.WebsocketConnections.Dec()
		}
		delete(h.users, userID)
	}
	h.total = 0
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
		h.outbound = nil
	}
}

func (h *Hub) deliver(userID uuid.UUID, event string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.users[userID]
	if len(set) == 0 {
		metrics.RelayFrames.WithLabelValues(event, "offline").Inc()
		return
	}
	for c := range set {
		h.sendTo(c, event, frame)
	}
}

func (h *Hub) broadcastLocal(event string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.users {
		for c := range set {
			h.sendTo(c, event, frame)
		}
	}
}

func (h *Hub) sendTo(c *Client, event string, frame []byte) {
	if c.trySend(frame) {
		metrics.RelayFrames.WithLabelValues(event, "delivered").Inc()
		return
	}
	metrics.RelayFrames.WithLabelValues(event, "dropped").Inc()
	h.logger.Warnf("send queue full, dropped %s for client %s", event, c.ID)
}

// publish queues frame for the other instances. It never blocks: when the
// queue is full the frame is dropped and counted.
func (h *Hub) publish(ctx context.Context, channel, target, event string, frame []byte) {
	h.mu.RLock()
	out, origin := h.outbound, h.instanceID
	h.mu.RUnlock()
	if out == nil {
		return
	}

	env, err := json.Marshal(events.Envelope{Origin: origin, Target: target, Frame: frame})
	if err != nil {
		return
	}
	select {
	case out <- publishJob{ctx: context.WithoutCancel(ctx), channel: channel, payload: env}:
	default:
		metrics.RelayFrames.WithLabelValues(event, "dropped").Inc()
		h.logger.Warnf("bridge queue full, dropped %s on %s", event, channel)
	}
}

func (h *Hub) publishLoop(out <-chan publishJob, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case job := <-out:
			h.mu.RLock()
			pub := h.publisher
			h.mu.RUnlock()

			pubCtx, cancel := context.WithTimeout(job.ctx, 2*time.Second)
			if err := pub.Publish(pubCtx, job.channel, job.payload); err != nil {
				h.logger.WarnCtx(job.ctx, "bridge publish failed", zap.String("channel", job.channel), zap.Error(err))
			}
			cancel()
		}
	}
}

func frameEvent(frame []byte) string {
	var f struct {
		Event string `json:"event"`
	}
	_ = json.Unmarshal(frame, &f)
	return f.Event
}
