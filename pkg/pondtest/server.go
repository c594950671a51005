package pondtest

import (
	"context"
	goerrs "errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/sessamekesh/duckpond-client/pkg/errors"
	"github.com/sessamekesh/duckpond-client/pkg/message/client"
	"github.com/sessamekesh/duckpond-client/pkg/message/server"
	utils "github.com/sessamekesh/duckpond-client/pkg/util"
	"go.uber.org/zap"
)

var duckColors = []string{"white", "brown", "green", "blue", "orange"}

type PondServerParams struct {
	AllowAllHosts    bool
	AllowlistedHosts []string
	DenylistedHosts  []string

	// Answer joins, moves, quacks and interacts like a real pond. When false the
	// server only records what it receives.
	AutoRespond bool
	ShortTags   bool

	MoveSpeed   float32
	PondRadius  float32
	CrackerSeed int64

	Logger *zap.Logger
}

// Received is one client frame, decoded the way the game server would.
type Received struct {
	PlayerUuid string
	Message    *client.ClientMessage
	Raw        string
}

type pondPlayer struct {
	uuid     string
	name     string
	color    string
	pos      mgl32.Vec2
	score    uint64
	joined   bool
	conn     *websocket.Conn
	outgoing chan []byte
}

// PondServer is a small in-process duck pond speaking the client wire format.
type PondServer struct {
	params     PondServerParams
	upgrader   *websocket.Upgrader
	serializer server.ServerMessageSerializer
	parser     client.ClientMessageSerializer

	mut_players sync.RWMutex
	players     map[string]*pondPlayer
	cracker     server.CrackersData
	rng         *rand.Rand

	received chan Received
	accepted chan string

	httpServer *httptest.Server
	wg         sync.WaitGroup

	log       *zap.Logger
	stringGen *utils.RandomStringGenerator
}

func checkOrigin(r *http.Request, params PondServerParams) bool {
	origin := r.Header.Get("Origin")
	if lo.Contains(params.DenylistedHosts, origin) {
		return false
	}
	if params.AllowAllHosts || origin == "" {
		return true
	}
	return lo.Contains(params.AllowlistedHosts, origin)
}

func CreatePondServer(params PondServerParams) *PondServer {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	if params.MoveSpeed <= 0 {
		params.MoveSpeed = 5
	}
	if params.PondRadius <= 0 {
		params.PondRadius = 100
	}
	if params.CrackerSeed == 0 {
		params.CrackerSeed = time.Now().UnixNano()
	}

	ps := &PondServer{
		params: params,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, params)
			},
		},
		serializer: server.ServerMessageSerializer{ShortTags: params.ShortTags},
		players:    make(map[string]*pondPlayer),
		rng:        rand.New(rand.NewSource(params.CrackerSeed)),
		received:   make(chan Received, 256),
		accepted:   make(chan string, 16),
		log:        logger.With(zap.String("handler", "PondServer")),
		stringGen:  utils.CreateRandomStringGenerator(params.CrackerSeed),
	}
	ps.cracker = ps.placeCracker()
	return ps
}

// Start serves the pond on an httptest server; the endpoint is WsUrl().
func (ps *PondServer) Start() {
	ps.httpServer = httptest.NewServer(ps.Handler())
}

func (ps *PondServer) WsUrl() string {
	return "ws" + strings.TrimPrefix(ps.httpServer.URL, "http") + "/ws"
}

// Close drops every player connection, then stops the httptest server.
func (ps *PondServer) Close() {
	ps.mut_players.RLock()
	for _, p := range ps.players {
		p.conn.Close()
	}
	ps.mut_players.RUnlock()

	ps.wg.Wait()
	if ps.httpServer != nil {
		ps.httpServer.Close()
	}
}

// Kick closes one player's socket without a close frame.
func (ps *PondServer) Kick(playerUuid string) error {
	ps.mut_players.RLock()
	defer ps.mut_players.RUnlock()
	player, ok := ps.players[playerUuid]
	if !ok {
		return errUnknownPlayer
	}
	return player.conn.Close()
}

func (ps *PondServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ps.onWsRequest)
	return mux
}

// Received yields client frames in arrival order.
func (ps *PondServer) Received() <-chan Received {
	return ps.received
}

// Accepted yields the player uuid of each new connection.
func (ps *PondServer) Accepted() <-chan string {
	return ps.accepted
}

func (ps *PondServer) placeCracker() server.CrackersData {
	r := ps.params.PondRadius
	return server.CrackersData{
		NewCrackerXPosition:  (ps.rng.Float32()*2 - 1) * r,
		NewCrackerYPosition:  (ps.rng.Float32()*2 - 1) * r,
		NewCrackerPointValue: uint64(1 + ps.rng.Intn(10)),
	}
}

func (ps *PondServer) onWsRequest(w http.ResponseWriter, r *http.Request) {
	log := ps.log.With(zap.String("wsConnId", ps.stringGen.GetRandomString(6)))

	c, err := ps.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade HTTP request to WebSocket connection", zap.Error(err))
		return
	}
	defer c.Close()

	ps.wg.Add(1)
	defer ps.wg.Done()

	player := &pondPlayer{
		uuid:     uuid.NewString(),
		conn:     c,
		outgoing: make(chan []byte, 64),
	}
	log = log.With(zap.String("playerUuid", player.uuid))

	ps.mut_players.Lock()
	ps.players[player.uuid] = player
	ps.mut_players.Unlock()

	select {
	case ps.accepted <- player.uuid:
	default:
	}

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-done:
				return
			case frame := <-player.outgoing:
				if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
					log.Warn("Failed to write to client", zap.Error(err))
					return
				}
			}
		}
	}()

	for {
		msgType, payload, msgErr := c.ReadMessage()
		if msgErr != nil {
			if !websocket.IsCloseError(msgErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("Client read ended", zap.Error(msgErr))
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		ps.onClientFrame(player, payload, log)
	}

	close(done)
	<-writerDone
	ps.removePlayer(player)
}

func (ps *PondServer) onClientFrame(player *pondPlayer, payload []byte, log *zap.Logger) {
	msg, err := ps.parser.Parse(payload)
	if err != nil {
		log.Warn("Unparseable client frame", zap.Error(err))
	}

	select {
	case ps.received <- Received{PlayerUuid: player.uuid, Message: msg, Raw: string(payload)}:
	default:
		log.Warn("Received buffer full, dropping record")
	}

	if err != nil || !ps.params.AutoRespond {
		return
	}

	switch msg.ActionType {
	case client.ActionType_Join:
		if err := ps.onJoin(player, msg.Join.FriendlyName); err != nil {
			log.Warn("Rejected join", zap.Error(err))
		}
	case client.ActionType_Move:
		ps.onMove(player, mgl32.Vec2{float32(msg.Move.XDirection), float32(msg.Move.YDirection)})
	case client.ActionType_Quack:
		ps.onQuack(player)
	case client.ActionType_Interact:
		ps.onInteract(player)
	}
}

// onJoin rejects a name already held by another joined duck.
func (ps *PondServer) onJoin(player *pondPlayer, name string) error {
	ps.mut_players.Lock()
	if lo.ContainsBy(ps.joinedOthers(player), func(p *pondPlayer) bool { return p.name == name }) {
		ps.mut_players.Unlock()
		return &errors.NameCollision{CollisionContext: "pond", Name: name}
	}
	player.name = name
	player.color = duckColors[ps.rng.Intn(len(duckColors))]
	player.pos = mgl32.Vec2{0, 0}
	player.joined = true
	joined := server.PlayerJoinedData{
		PlayerUuid:         player.uuid,
		PlayerFriendlyName: player.name,
		Color:              player.color,
		XPosition:          player.pos.X(),
		YPosition:          player.pos.Y(),
		CrackerX:           ps.cracker.NewCrackerXPosition,
		CrackerY:           ps.cracker.NewCrackerYPosition,
		CrackerPoints:      ps.cracker.NewCrackerPointValue,
	}
	others := ps.joinedOthers(player)
	ps.mut_players.Unlock()

	ps.SendTo(player.uuid, server.YouJoined{Data: joined})
	for _, other := range others {
		ps.SendTo(player.uuid, server.OtherPlayerJoined{Data: server.PlayerJoinedData{
			PlayerUuid:         other.uuid,
			PlayerFriendlyName: other.name,
			Color:              other.color,
			XPosition:          other.pos.X(),
			YPosition:          other.pos.Y(),
		}})
	}
	ps.broadcastExcept(player.uuid, server.OtherPlayerJoined{Data: joined})
	ps.sendLeaderboards()
	return nil
}

func (ps *PondServer) onMove(player *pondPlayer, dir mgl32.Vec2) {
	if dir.Len() > 1 {
		dir = dir.Normalize()
	}

	ps.mut_players.Lock()
	if !player.joined {
		ps.mut_players.Unlock()
		return
	}
	old := player.pos
	next := old.Add(dir.Mul(ps.params.MoveSpeed))
	if next.Len() > ps.params.PondRadius {
		next = next.Normalize().Mul(ps.params.PondRadius)
	}
	player.pos = next
	moved := server.MovedData{
		PlayerUuid:         player.uuid,
		PlayerFriendlyName: player.name,
		Color:              player.color,
		OldXPosition:       old.X(),
		OldYPosition:       old.Y(),
		NewXPosition:       next.X(),
		NewYPosition:       next.Y(),
	}
	ps.mut_players.Unlock()

	ps.SendTo(player.uuid, server.YouMoved{Data: moved})
	ps.broadcastExcept(player.uuid, server.OtherPlayerMoved{Data: moved})
}

func (ps *PondServer) onQuack(player *pondPlayer) {
	ps.mut_players.Lock()
	if !player.joined {
		ps.mut_players.Unlock()
		return
	}
	quack := server.QuackData{
		PlayerUuid:         player.uuid,
		PlayerFriendlyName: player.name,
		PlayerXPosition:    player.pos.X(),
		PlayerYPosition:    player.pos.Y(),
		QuackPitch:         0.75 + ps.rng.Float32()*0.5,
	}
	ps.mut_players.Unlock()

	ps.SendTo(player.uuid, server.YouQuacked{Data: quack})
	ps.broadcastExcept(player.uuid, server.OtherPlayerQuacked{Data: quack})
}

// onInteract eats the cracker when the duck is within reach of it.
func (ps *PondServer) onInteract(player *pondPlayer) {
	ps.mut_players.Lock()
	cracker := mgl32.Vec2{ps.cracker.NewCrackerXPosition, ps.cracker.NewCrackerYPosition}
	if !player.joined || player.pos.Sub(cracker).Len() > ps.params.MoveSpeed*2 {
		ps.mut_players.Unlock()
		return
	}
	old := ps.cracker
	next := ps.placeCracker()
	player.score += old.NewCrackerPointValue
	ps.cracker = next
	data := server.CrackersData{
		PlayerUuid:           player.uuid,
		PlayerFriendlyName:   player.name,
		OldCrackerXPosition:  old.NewCrackerXPosition,
		OldCrackerYPosition:  old.NewCrackerYPosition,
		NewCrackerXPosition:  next.NewCrackerXPosition,
		NewCrackerYPosition:  next.NewCrackerYPosition,
		OldCrackerPointValue: old.NewCrackerPointValue,
		NewCrackerPointValue: next.NewCrackerPointValue,
		NewPlayerScore:       player.score,
	}
	ps.mut_players.Unlock()

	ps.SendTo(player.uuid, server.YouGotCrackers{Data: data})
	ps.broadcastExcept(player.uuid, server.OtherPlayerGotCrackers{Data: data})
	ps.sendLeaderboards()
}

func (ps *PondServer) removePlayer(player *pondPlayer) {
	ps.mut_players.Lock()
	delete(ps.players, player.uuid)
	wasJoined := player.joined
	ps.mut_players.Unlock()

	if wasJoined && ps.params.AutoRespond {
		ps.broadcastExcept(player.uuid, server.UserDisconnected{Data: server.UserDisconnectedData{DisconnectedPlayerUuid: player.uuid}})
		ps.sendLeaderboards()
	}
}

// joinedOthers must be called with mut_players held.
func (ps *PondServer) joinedOthers(player *pondPlayer) []*pondPlayer {
	return lo.Filter(lo.Values(ps.players), func(p *pondPlayer, _ int) bool {
		return p.joined && p.uuid != player.uuid
	})
}

func (ps *PondServer) sendLeaderboards() {
	ps.mut_players.RLock()
	ranked := lo.Filter(lo.Values(ps.players), func(p *pondPlayer, _ int) bool { return p.joined })
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score == ranked[j].score {
			return ranked[i].name < ranked[j].name
		}
		return ranked[i].score > ranked[j].score
	})

	board := server.LeaderboardData{}
	names := []*string{&board.Name1stPlace, &board.Name2ndPlace, &board.Name3rdPlace, &board.Name4thPlace, &board.Name5thPlace}
	scores := []*uint64{&board.Score1stPlace, &board.Score2ndPlace, &board.Score3rdPlace, &board.Score4thPlace, &board.Score5thPlace}
	for i, p := range lo.Slice(ranked, 0, 5) {
		*names[i] = p.name
		*scores[i] = p.score
	}

	type standing struct {
		uuid  string
		board server.LeaderboardData
	}
	standings := lo.Map(ranked, func(p *pondPlayer, i int) standing {
		b := board
		b.YourPoints = p.score
		b.YourLeaderboardPlace = uint64(i + 1)
		return standing{uuid: p.uuid, board: b}
	})
	ps.mut_players.RUnlock()

	for _, s := range standings {
		ps.SendTo(s.uuid, server.LeaderboardUpdate{Data: s.board})
	}
}

var errUnknownPlayer = goerrs.New("unknown player")

// SendTo queues an event for one connected player.
func (ps *PondServer) SendTo(playerUuid string, ev server.Event) error {
	frame, err := ps.serializer.Serialize(ev)
	if err != nil {
		return err
	}
	return ps.SendRaw(playerUuid, frame)
}

// SendRaw queues an arbitrary text frame, malformed or not.
func (ps *PondServer) SendRaw(playerUuid string, frame []byte) error {
	ps.mut_players.RLock()
	player, ok := ps.players[playerUuid]
	ps.mut_players.RUnlock()
	if !ok {
		return errUnknownPlayer
	}

	select {
	case player.outgoing <- frame:
		return nil
	default:
		ps.log.Warn("Outgoing buffer full, dropping frame", zap.String("playerUuid", playerUuid))
		return nil
	}
}

func (ps *PondServer) broadcastExcept(exceptUuid string, ev server.Event) {
	ps.mut_players.RLock()
	targets := lo.FilterMap(lo.Values(ps.players), func(p *pondPlayer, _ int) (string, bool) {
		return p.uuid, p.joined && p.uuid != exceptUuid
	})
	ps.mut_players.RUnlock()

	for _, id := range targets {
		ps.SendTo(id, ev)
	}
}

// Serve runs the pond on addr until ctx is cancelled.
func (ps *PondServer) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: ps.Handler(),
	}

	errs := make(chan error, 1)
	go func() {
		ps.log.Info("Starting pond server", zap.String("addr", addr))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		ps.log.Error("Failed to gracefully shut down pond server", zap.Error(err))
		return err
	}
	ps.log.Info("Pond server shut down")
	return nil
}
