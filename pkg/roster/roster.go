package roster

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sessamekesh/duckpond-client/pkg/events"
	"github.com/sessamekesh/duckpond-client/pkg/message/server"
	"go.uber.org/zap"
)

type Duck struct {
	Uuid       string
	Name       string
	Color      string
	X, Y       float32
	FacingLeft bool
	Score      uint64
	Alive      bool
}

type Cracker struct {
	X, Y   float32
	Points uint64
}

// Roster is an in-memory view of the pond built from server events. Reads are
// safe from any goroutine; updates arrive on the tick via the event bus.
type Roster struct {
	mut sync.RWMutex

	self        *Duck
	ducks       map[string]*Duck
	cracker     *Cracker
	leaderboard server.LeaderboardData
	myPlace     uint64

	log *zap.Logger
}

func CreateRoster(logger *zap.Logger) *Roster {
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	return &Roster{
		ducks: make(map[string]*Duck),
		log:   logger.With(zap.String("handler", "Roster")),
	}
}

// Attach subscribes the roster to every event it folds.
func (r *Roster) Attach(bus *events.Bus) {
	bus.Subscribe("roster", r.Apply)
}

// validUuid rejects placeholder ids from undecodable payloads.
func (r *Roster) validUuid(id string, action server.ActionType) bool {
	if _, err := uuid.Parse(id); err != nil {
		r.log.Warn("Skipping event with invalid player id", zap.Stringer("actionType", action), zap.String("playerUuid", id))
		return false
	}
	return true
}

func (r *Roster) Apply(ev server.Event) {
	r.mut.Lock()
	defer r.mut.Unlock()

	switch e := ev.(type) {
	case server.YouJoined:
		if !r.validUuid(e.Data.PlayerUuid, e.ActionType()) {
			return
		}
		r.self = r.upsertJoined(e.Data)
		if e.Data.CrackerPoints > 0 {
			r.cracker = &Cracker{X: e.Data.CrackerX, Y: e.Data.CrackerY, Points: e.Data.CrackerPoints}
		}
	case server.OtherPlayerJoined:
		if r.validUuid(e.Data.PlayerUuid, e.ActionType()) {
			r.upsertJoined(e.Data)
		}
	case server.OtherPlayerMoved:
		if !r.validUuid(e.Data.PlayerUuid, e.ActionType()) {
			return
		}
		d := r.duck(e.Data.PlayerUuid)
		d.Name = e.Data.PlayerFriendlyName
		d.Color = e.Data.Color
		if e.Data.NewXPosition != e.Data.OldXPosition {
			d.FacingLeft = e.Data.NewXPosition < e.Data.OldXPosition
		}
		d.X, d.Y = e.Data.NewXPosition, e.Data.NewYPosition
	case server.OtherPlayerQuacked:
		if !r.validUuid(e.Data.PlayerUuid, e.ActionType()) {
			return
		}
		d := r.duck(e.Data.PlayerUuid)
		d.X, d.Y = e.Data.PlayerXPosition, e.Data.PlayerYPosition
	case server.YouGotCrackers:
		r.applyCrackers(e.Data, e.ActionType())
	case server.OtherPlayerGotCrackers:
		r.applyCrackers(e.Data, e.ActionType())
	case server.YouDied:
		if !r.validUuid(e.Data.PlayerUuid, e.ActionType()) {
			return
		}
		if r.self != nil {
			r.self.Alive = false
		}
	case server.OtherPlayerDied:
		if d, ok := r.ducks[e.Data.PlayerUuid]; ok {
			d.Alive = false
		}
	case server.UserDisconnected:
		delete(r.ducks, e.Data.DisconnectedPlayerUuid)
	case server.LeaderboardUpdate:
		if e.Data == server.PlaceholderLeaderboard() {
			r.log.Warn("Skipping empty leaderboard update")
			return
		}
		r.leaderboard = e.Data
		r.myPlace = e.Data.YourLeaderboardPlace
		if r.self != nil {
			r.self.Score = e.Data.YourPoints
		}
	}
}

func (r *Roster) duck(id string) *Duck {
	d, ok := r.ducks[id]
	if !ok {
		d = &Duck{Uuid: id, Alive: true}
		r.ducks[id] = d
	}
	return d
}

func (r *Roster) upsertJoined(data server.PlayerJoinedData) *Duck {
	d := r.duck(data.PlayerUuid)
	d.Name = data.PlayerFriendlyName
	d.Color = data.Color
	d.X, d.Y = data.XPosition, data.YPosition
	d.Alive = true
	return d
}

func (r *Roster) applyCrackers(data server.CrackersData, action server.ActionType) {
	if !r.validUuid(data.PlayerUuid, action) {
		return
	}
	r.cracker = &Cracker{X: data.NewCrackerXPosition, Y: data.NewCrackerYPosition, Points: data.NewCrackerPointValue}
	r.duck(data.PlayerUuid).Score = data.NewPlayerScore
}

func (r *Roster) Self() (Duck, bool) {
	r.mut.RLock()
	defer r.mut.RUnlock()
	if r.self == nil {
		return Duck{}, false
	}
	return *r.self, true
}

func (r *Roster) Duck(id string) (Duck, bool) {
	r.mut.RLock()
	defer r.mut.RUnlock()
	d, ok := r.ducks[id]
	if !ok {
		return Duck{}, false
	}
	return *d, true
}

// Others returns every known duck except the local player, sorted by name.
func (r *Roster) Others() []Duck {
	r.mut.RLock()
	defer r.mut.RUnlock()

	var selfId string
	if r.self != nil {
		selfId = r.self.Uuid
	}
	others := lo.FilterMap(lo.Values(r.ducks), func(d *Duck, _ int) (Duck, bool) {
		return *d, d.Uuid != selfId
	})
	sort.Slice(others, func(i, j int) bool {
		if others[i].Name == others[j].Name {
			return others[i].Uuid < others[j].Uuid
		}
		return others[i].Name < others[j].Name
	})
	return others
}

func (r *Roster) Cracker() (Cracker, bool) {
	r.mut.RLock()
	defer r.mut.RUnlock()
	if r.cracker == nil {
		return Cracker{}, false
	}
	return *r.cracker, true
}

func (r *Roster) Leaderboard() ([]server.LeaderboardEntry, uint64) {
	r.mut.RLock()
	defer r.mut.RUnlock()
	return r.leaderboard.Entries(), r.myPlace
}
