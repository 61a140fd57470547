package waifuwardb

import (
	"time"

	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
)

// Entrant is a row of the global character catalog.
type Entrant struct {
	bun.BaseModel `bun:"table:entrants,alias:e"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Name          string    `bun:"name,unique,notnull" json:"name"`
	Description   string    `bun:"description,notnull" json:"description"`
	Group         string    `bun:"grp,notnull" json:"group"`
	ImageRef      string    `bun:"image_ref,notnull" json:"image_ref"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Alias maps an alternate spelling to an entrant name or a group label.
type Alias struct {
	bun.BaseModel `bun:"table:aliases,alias:a"`
	Alias         string    `bun:"alias,pk" json:"alias"`
	Name          string    `bun:"name,notnull" json:"name"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Bracket is a tournament owned by one guild.
type Bracket struct {
	bun.BaseModel `bun:"table:brackets,alias:b"`
	ID            int64                       `bun:"id,pk,autoincrement" json:"id"`
	Name          string                      `bun:"name,unique,notnull" json:"name"`
	Status        waifuwartypes.BracketStatus `bun:"status,notnull,default:1" json:"status"`
	GuildID       sharedtypes.GuildID         `bun:"guild_id,notnull" json:"guild_id"`
	CreatedAt     time.Time                   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time                   `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// RosterEntry places an entrant at a position of a bracket's current round.
type RosterEntry struct {
	bun.BaseModel `bun:"table:roster,alias:r"`
	BracketID     int64  `bun:"bracket_id,pk" json:"bracket_id"`
	Position      int    `bun:"position,pk" json:"position"`
	Name          string `bun:"name,notnull" json:"name"`

	Entrant *Entrant `bun:"rel:belongs-to,join:name=name" json:"-"`
}

// Vote is one ballot. Choice false is the left (odd) position.
type Vote struct {
	bun.BaseModel `bun:"table:votes,alias:v"`
	ID            int64                 `bun:"id,pk,autoincrement" json:"id"`
	UserID        sharedtypes.DiscordID `bun:"user_id,notnull" json:"user_id"`
	BracketID     int64                 `bun:"bracket_id,notnull" json:"bracket_id"`
	Division      int                   `bun:"division,notnull" json:"division"`
	Choice        bool                  `bun:"choice,notnull" json:"choice"`
	CreatedAt     time.Time             `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Tally is the vote count of one division.
type Tally struct {
	Division int `bun:"division"`
	Left     int `bun:"left_votes"`
	Right    int `bun:"right_votes"`
}

// ToDomain converts the row into the shared entrant type.
func (e *Entrant) ToDomain() waifuwartypes.Entrant {
	return waifuwartypes.Entrant{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Group:       e.Group,
		ImageRef:    e.ImageRef,
	}
}

// ToDomain converts the row into the shared bracket type.
func (b *Bracket) ToDomain() waifuwartypes.Bracket {
	return waifuwartypes.Bracket{
		ID:        b.ID,
		Name:      b.Name,
		Status:    b.Status,
		GuildID:   b.GuildID,
		CreatedAt: b.CreatedAt,
	}
}

// ToDomain converts the row into a roster slot. The entrant relation must be loaded.
func (r *RosterEntry) ToDomain() waifuwartypes.RosterSlot {
	slot := waifuwartypes.RosterSlot{Position: r.Position}
	if r.Entrant != nil {
		slot.Entrant = r.Entrant.ToDomain()
	} else {
		slot.Entrant = waifuwartypes.Entrant{Name: r.Name}
	}
	return slot
}
