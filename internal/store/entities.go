// Package store holds the gorm row shapes that back spec §3's data
// model and the Store type that wraps *gorm.DB behind the small set
// of transactional operations domain handlers need — the same shape
// the teacher's currency.Service and tournament.Service give
// *gorm.DB, adapted from chip ledgers to Hive's game/challenge/
// tournament/schedule/chat entities.
package store

import "time"

// Account is the persisted form of spec §3's Account: "{ id: UserId,
// username, is_bot, is_admin, ratings: Map<Speed, Rating> }".
type Account struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"username"`
	IsBot     bool      `gorm:"not null;default:false" json:"is_bot"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	// Email/PasswordHash back the bot-token exchange
	// (original_source/apis/src/api/v1/auth/get_token_handler.rs): a
	// human account authenticates through the main Hive web app, never
	// through this service, so these stay empty for it. Bots are
	// provisioned here directly and exchange email+password for a
	// session token through this service instead.
	Email        *string `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	PasswordHash string  `gorm:"type:varchar(255)" json:"-"`
}

func (Account) TableName() string { return "accounts" }

// Rating is a per-speed rating row, keyed by (account_id, speed).
// spec §3 models Account.ratings as Map<Speed, Rating>; gorm has no
// native map column, so it's a child table instead.
type Rating struct {
	AccountID string  `gorm:"type:varchar(36);primaryKey" json:"account_id"`
	Speed     string  `gorm:"type:varchar(20);primaryKey" json:"speed"`
	Rating    float64 `gorm:"not null;default:1500" json:"rating"`
	Deviation float64 `gorm:"not null;default:350" json:"deviation"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Rating) TableName() string { return "ratings" }

// Challenge is the persisted form of spec §3's Challenge entity.
type Challenge struct {
	ID            string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChallengerID  string  `gorm:"type:varchar(36);not null;index" json:"challenger_id"`
	OpponentID    *string `gorm:"type:varchar(36);index" json:"opponent_id,omitempty"`
	ColorChoice   string  `gorm:"type:varchar(10);not null" json:"color_choice"`
	TimeMode      string  `gorm:"type:varchar(20);not null" json:"time_mode"`
	TimeBase      *int    `json:"time_base,omitempty"`
	TimeIncrement *int    `json:"time_increment,omitempty"`
	DaysPerMove   *int    `json:"days_per_move,omitempty"`
	TotalTime     *int    `json:"total_time,omitempty"`
	Rated         bool    `gorm:"not null" json:"rated"`
	Visibility    string  `gorm:"type:varchar(10);not null" json:"visibility"`
	BandLower     *int    `json:"band_lower,omitempty"`
	BandUpper     *int    `json:"band_upper,omitempty"`
	CreatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Challenge) TableName() string { return "challenges" }

// Game is the persisted form of spec §3's Game entity. History,
// move_times, game_control_history, and hashes are append-only
// sequences; they're stored as JSON columns rather than child tables
// since they're never queried independently of the game and are
// always read/written as a whole (same tradeoff the teacher makes for
// Hand.community_cards / Hand.winners).
type Game struct {
	ID                string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	WhiteID           string  `gorm:"type:varchar(36);not null;index" json:"white_id"`
	BlackID           string  `gorm:"type:varchar(36);not null;index" json:"black_id"`
	HistoryJSON       string  `gorm:"type:text" json:"-"`
	Status            string  `gorm:"type:varchar(20);not null;index" json:"status"`
	Result            *string `gorm:"type:varchar(20)" json:"result,omitempty"`
	Turn              int     `gorm:"not null;default:0" json:"turn"`
	TimeMode          string  `gorm:"type:varchar(20);not null" json:"time_mode"`
	TimeBase          *int    `json:"time_base,omitempty"`
	TimeIncrement     *int    `json:"time_increment,omitempty"`
	WhiteTimeLeftMs   *int64  `json:"white_time_left_ms,omitempty"`
	BlackTimeLeftMs   *int64  `json:"black_time_left_ms,omitempty"`
	LastInteraction   *time.Time `json:"last_interaction,omitempty"`
	MoveTimesJSON     string  `gorm:"type:text" json:"-"`
	ControlHistoryJSON string `gorm:"type:text" json:"-"`
	HashesJSON        string  `gorm:"type:text" json:"-"`
	TournamentID      *string `gorm:"type:varchar(36);index" json:"tournament_id,omitempty"`
	GameStart         string  `gorm:"type:varchar(10);not null;default:'Moves'" json:"game_start"`
	Rated             bool    `gorm:"not null" json:"rated"`
	WhiteRatingAtEnd  *float64 `json:"white_rating_at_end,omitempty"`
	BlackRatingAtEnd  *float64 `json:"black_rating_at_end,omitempty"`
	CreatedAt         time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Game) TableName() string { return "games" }

// Tournament is the persisted form of spec §3's Tournament entity.
// Invitees/players/organizers are stored as JSON arrays of UserId,
// matching the teacher's tendency to keep small id-sets inline rather
// than in a join table when membership is never filtered by id alone.
type Tournament struct {
	ID             string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name           string  `gorm:"type:varchar(100);not null" json:"name"`
	Status         string  `gorm:"type:varchar(20);not null;index" json:"status"`
	Seats          int     `gorm:"not null" json:"seats"`
	MinSeats       int     `gorm:"not null" json:"min_seats"`
	Rounds         int     `gorm:"not null" json:"rounds"`
	TimeMode       string  `gorm:"type:varchar(20);not null" json:"time_mode"`
	TimeBase       *int    `json:"time_base,omitempty"`
	TimeIncrement  *int    `json:"time_increment,omitempty"`
	Scoring        string  `gorm:"type:varchar(10);not null" json:"scoring"`
	TiebreakersJSON string `gorm:"type:text" json:"-"`
	InviteesJSON   string  `gorm:"type:text" json:"-"`
	PlayersJSON    string  `gorm:"type:text" json:"-"`
	OrganizersJSON string  `gorm:"type:text" json:"-"`
	GamesJSON      string  `gorm:"type:text" json:"-"`
	RoundDurationS *int    `json:"round_duration_s,omitempty"`
	StartAt        *time.Time `json:"start_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Tournament) TableName() string { return "tournaments" }

// Schedule is the persisted form of spec §3's Schedule entity.
type Schedule struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	GameID       string    `gorm:"type:varchar(36);not null;index" json:"game_id"`
	TournamentID *string   `gorm:"type:varchar(36);index" json:"tournament_id,omitempty"`
	ProposerID   string    `gorm:"type:varchar(36);not null" json:"proposer_id"`
	OpponentID   string    `gorm:"type:varchar(36);not null" json:"opponent_id"`
	StartAt      time.Time `gorm:"not null;index" json:"start_at"`
	Agreed       bool      `gorm:"not null;default:false" json:"agreed"`
	Notified     bool      `gorm:"not null;default:false" json:"notified"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Schedule) TableName() string { return "schedules" }

// ChatMessage is the persisted form of spec §3's ChatMessage,
// grounded on the teacher's history.Tracker append+sequence shape
// (internal/server/history/tracker.go) but storing chat lines instead
// of hand actions.
type ChatMessage struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string    `gorm:"type:varchar(36);not null" json:"user_id"`
	Username    string    `gorm:"type:varchar(32);not null" json:"username"`
	Text        string    `gorm:"type:varchar(1000);not null" json:"text"`
	Destination string    `gorm:"type:varchar(20);not null;index" json:"destination"`
	GameID      *string   `gorm:"type:varchar(36);index" json:"game_id,omitempty"`
	TournamentID *string  `gorm:"type:varchar(36);index" json:"tournament_id,omitempty"`
	RecipientID *string   `gorm:"type:varchar(36);index" json:"recipient_id,omitempty"`
	Turn        *int      `json:"turn,omitempty"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

// RatingChange is the audit-trail row for a rating mutation, the same
// role the teacher's currency.Transaction plays for chip balances
// (internal/currency/types.go) — adapted from "chip delta with
// before/after balance" to "rating delta with before/after rating".
type RatingChange struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	AccountID     string    `gorm:"type:varchar(36);not null;index" json:"account_id"`
	Speed         string    `gorm:"type:varchar(20);not null;index" json:"speed"`
	GameID        string    `gorm:"type:varchar(36);not null;index" json:"game_id"`
	RatingBefore  float64   `gorm:"not null" json:"rating_before"`
	RatingAfter   float64   `gorm:"not null" json:"rating_after"`
	DeviationBefore float64 `gorm:"not null" json:"deviation_before"`
	DeviationAfter  float64 `gorm:"not null" json:"deviation_after"`
	CreatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (RatingChange) TableName() string { return "rating_changes" }
